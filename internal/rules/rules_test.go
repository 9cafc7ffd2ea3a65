package rules_test

import (
	"os"
	"path/filepath"
	"testing"

	"rulesight/internal/config"
	"rulesight/internal/domain"
	"rulesight/internal/model"
	"rulesight/internal/parser"
	"rulesight/internal/rules"
	"rulesight/internal/semantic"
)

type chainResult struct {
	files []*model.ParsedFile
	dom   domain.Result
	rules []model.BusinessRule
}

func runChain(t *testing.T, source string) chainResult {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "order.ts")
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	pr, err := parser.New(config.DefaultConfig(), nil).Run(dir)
	if err != nil {
		t.Fatalf("parser.Run: %v", err)
	}
	sem := semantic.New(nil).Run(pr.Files)
	cfg := config.DefaultConfig()
	dom := domain.New(cfg, nil).Run(pr.Files, sem.Nodes, sem.Edges)

	sources := map[string][]byte{}
	for _, f := range pr.Files {
		sources[f.Path] = f.Source
	}
	out := rules.New(cfg, nil).Run(sem.Nodes, dom.Entities, dom.Relations, sources)
	return chainResult{files: pr.Files, dom: dom, rules: out}
}

// A method that assigns an entity's state field inside a guard directly
// produces a STATE_TRANSITION rule with confidence at or above the
// threshold typically used to accept a rule automatically.
const shipSource = `
export class Order {
  status: string;

  ship(): void {
    if (this.status === "PLACED") {
      this.status = "SHIPPED";
    }
  }
}
`

func TestRun_StateAssignmentProducesHighConfidenceStateTransition(t *testing.T) {
	res := runChain(t, shipSource)

	var found *model.BusinessRule
	for i := range res.rules {
		if res.rules[i].Type == model.RuleStateTransition {
			found = &res.rules[i]
		}
	}
	if found == nil {
		t.Fatalf("expected a STATE_TRANSITION rule, got %+v", res.rules)
	}
	if found.Entity != "Order" {
		t.Errorf("Entity = %q, want Order", found.Entity)
	}
	if found.Confidence < 0.65 {
		t.Errorf("Confidence = %.2f, want >= 0.65", found.Confidence)
	}
}

// A guard clause that throws before reaching a mutation earns the explicit
// throw bonus on top of the state-transition signals.
const cancelSource = `
export class Order {
  status: string;

  cancel(): void {
    if (this.status === "SHIPPED") {
      throw new Error("cannot cancel a shipped order");
    }
    this.status = "CANCELLED";
  }
}
`

func TestRun_ThrowGuardProducesInvariantRule(t *testing.T) {
	res := runChain(t, cancelSource)

	var found *model.BusinessRule
	for i := range res.rules {
		if res.rules[i].Type == model.RuleInvariant {
			found = &res.rules[i]
		}
	}
	if found == nil {
		t.Fatalf("expected an INVARIANT rule from the throw guard, got %+v", res.rules)
	}
}

// A policy method on a class with no mutable state of its own is capped at
// 0.60 confidence since it never qualifies as an entity.
const pricingSource = `
export class Pricing {
  quote(amount: number, isPremium: boolean): number {
    if (isPremium) {
      return amount * 0.9;
    } else {
      return amount;
    }
  }
}
`

func TestRun_PolicyOutsideEntityIsCappedAtSixty(t *testing.T) {
	res := runChain(t, pricingSource)

	var found *model.BusinessRule
	for i := range res.rules {
		if res.rules[i].Type == model.RulePolicy {
			found = &res.rules[i]
		}
	}
	if found == nil {
		t.Fatalf("expected a POLICY rule, got %+v", res.rules)
	}
	if found.Confidence > 0.60 {
		t.Errorf("Confidence = %.2f, want <= 0.60 (Pricing never qualifies as an entity)", found.Confidence)
	}
}

func TestRun_RulesSortedByFileThenSpan(t *testing.T) {
	res := runChain(t, cancelSource)
	for i := 1; i < len(res.rules); i++ {
		if res.rules[i-1].FilePath == res.rules[i].FilePath && res.rules[i-1].Span.Start > res.rules[i].Span.Start {
			t.Fatalf("rules not ordered by span start at index %d", i)
		}
	}
}
