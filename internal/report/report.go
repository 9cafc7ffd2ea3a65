// Package report implements stage 7: a pure projection that
// assembles entities, relations, rules, an optional seeded impact result,
// and violations into the final TechnicalReport value. No computation
// happens here — every field is handed in by an earlier stage.
package report

import "rulesight/internal/model"

// Assemble builds the final report. impact may be nil when there are no
// rules to seed a simulation from.
func Assemble(entities []model.DomainEntity, relations []model.DomainRelation, rules []model.BusinessRule, impact *model.ImpactSimulationResult, violations []model.ArchitecturalViolation, crossLayer []model.CrossLayerEdge) model.TechnicalReport {
	return model.TechnicalReport{
		Entities:                entities,
		Relations:               relations,
		Rules:                   rules,
		Impact:                  impact,
		ArchitecturalViolations: violations,
		CrossLayerEdges:         crossLayer,
	}
}
