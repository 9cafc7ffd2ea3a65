package arch

import (
	"testing"

	"rulesight/internal/model"
)

func TestRun_DomainCallingInfra(t *testing.T) {
	a := New(nil)
	relations := []model.DomainRelation{
		{Type: model.RelCalls, From: "domain/Order.ship", To: "infra/Mailer.send"},
		{Type: model.RelCalls, From: "domain/Order.ship", To: "domain/Invoice.issue"},
	}
	out := a.Run(nil, relations, nil, nil, nil)
	if !hasType(out, model.ViolationDomainCallingInfra) {
		t.Errorf("expected a DOMAIN_CALLING_INFRA violation, got %+v", out)
	}
}

// ANEMIC_ENTITY only fires for entities already in the qualified entity
// set; a class with mutable state but no mutator that the domain builder
// never qualified as an entity in the first place must not trigger it.
func TestRun_AnemicEntityOnlyFiresForQualifiedEntities(t *testing.T) {
	a := New(nil)
	out := a.Run(nil, nil, nil, nil, nil)
	if hasType(out, model.ViolationAnemicEntity) {
		t.Errorf("expected no ANEMIC_ENTITY violation when there are no entities")
	}
}

func TestRun_AnemicEntityFiresWhenNoModifier(t *testing.T) {
	a := New(nil)
	entities := []model.DomainEntity{
		{Name: "Order", FilePath: "order.ts", StateFields: []string{"status"}},
	}
	out := a.Run(entities, nil, nil, nil, nil)
	if !hasType(out, model.ViolationAnemicEntity) {
		t.Errorf("expected ANEMIC_ENTITY for an entity with state fields but no MODIFIES relation")
	}
}

func TestRun_FatService(t *testing.T) {
	a := New(nil)
	var methods []model.SemanticNode
	for i := 0; i < 8; i++ {
		methods = append(methods, model.SemanticNode{Kind: model.KindMethod, Class: "BillingService", FilePath: "billing.ts"})
	}
	out := a.Run(nil, nil, nil, nil, methods)
	if !hasType(out, model.ViolationFatService) {
		t.Errorf("expected FAT_SERVICE for a class with 8 methods ending in Service")
	}
}

func TestRun_LayerViolation(t *testing.T) {
	a := New(nil)
	imports := []model.SemanticNode{
		{Kind: model.KindImport, FilePath: "domain/order.ts", StaticType: "../infra/db"},
	}
	out := a.Run(nil, nil, nil, imports, nil)
	if !hasType(out, model.ViolationLayerViolation) {
		t.Errorf("expected LAYER_VIOLATION for a domain file importing infra")
	}
}

// Identical (entity, type) rules recurring across three distinct files
// collapse into one SCATTERED_RULE violation naming all three paths.
func TestRun_ScatteredRule(t *testing.T) {
	a := New(nil)
	rules := []model.BusinessRule{
		{ID: "POLICY:a.ts:1", Type: model.RulePolicy, Entity: "Invoice", FilePath: "a.ts"},
		{ID: "POLICY:b.ts:1", Type: model.RulePolicy, Entity: "Invoice", FilePath: "b.ts"},
		{ID: "POLICY:c.ts:1", Type: model.RulePolicy, Entity: "Invoice", FilePath: "c.ts"},
	}
	out := a.Run(nil, nil, rules, nil, nil)
	var found *model.ArchitecturalViolation
	for i := range out {
		if out[i].Type == model.ViolationScatteredRule {
			found = &out[i]
		}
	}
	if found == nil {
		t.Fatalf("expected a SCATTERED_RULE violation, got %+v", out)
	}
	if len(found.RelatedID) != 3 {
		t.Errorf("RelatedID = %v, want all 3 file paths", found.RelatedID)
	}
}

func TestRun_IDsAreIdempotent(t *testing.T) {
	a := New(nil)
	relations := []model.DomainRelation{
		{Type: model.RelCalls, From: "domain/Order.ship", To: "infra/Mailer.send"},
	}
	first := a.Run(nil, relations, nil, nil, nil)
	second := a.Run(nil, relations, nil, nil, nil)
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected exactly one violation each run, got %d and %d", len(first), len(second))
	}
	if first[0].ID != second[0].ID {
		t.Errorf("violation ID changed across identical runs: %q vs %q", first[0].ID, second[0].ID)
	}
}

func hasType(violations []model.ArchitecturalViolation, t model.ViolationType) bool {
	for _, v := range violations {
		if v.Type == t {
			return true
		}
	}
	return false
}
