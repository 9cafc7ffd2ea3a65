package report_test

import (
	"testing"

	"rulesight/internal/model"
	"rulesight/internal/report"
)

func TestAssemble_ProjectsEveryFieldThrough(t *testing.T) {
	entities := []model.DomainEntity{{Name: "Order"}}
	relations := []model.DomainRelation{{Type: model.RelCalls, From: "a", To: "b"}}
	rules := []model.BusinessRule{{ID: "INVARIANT:order.ts:1"}}
	impact := &model.ImpactSimulationResult{RootRule: rules[0].ID, GlobalRisk: 0.5}
	violations := []model.ArchitecturalViolation{{ID: "v1", Type: model.ViolationAnemicEntity}}
	crossLayer := []model.CrossLayerEdge{{From: "domain/Order.ship", To: "infra/Mailer.send"}}

	got := report.Assemble(entities, relations, rules, impact, violations, crossLayer)

	if len(got.Entities) != 1 || got.Entities[0].Name != "Order" {
		t.Errorf("Entities = %+v, want the input entities unchanged", got.Entities)
	}
	if len(got.Relations) != 1 {
		t.Errorf("Relations = %+v, want the input relations unchanged", got.Relations)
	}
	if len(got.Rules) != 1 {
		t.Errorf("Rules = %+v, want the input rules unchanged", got.Rules)
	}
	if got.Impact != impact {
		t.Error("Impact should be the same pointer handed in")
	}
	if len(got.ArchitecturalViolations) != 1 {
		t.Errorf("ArchitecturalViolations = %+v, want the input violations unchanged", got.ArchitecturalViolations)
	}
	if len(got.CrossLayerEdges) != 1 || got.CrossLayerEdges[0] != crossLayer[0] {
		t.Errorf("CrossLayerEdges = %+v, want the input cross-layer edges unchanged", got.CrossLayerEdges)
	}
}

func TestAssemble_NilImpactWhenNoRulesExist(t *testing.T) {
	got := report.Assemble(nil, nil, nil, nil, nil, nil)
	if got.Impact != nil {
		t.Error("expected a nil Impact when no seed result is given")
	}
}
