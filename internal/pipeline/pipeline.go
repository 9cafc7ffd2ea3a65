// Package pipeline wires the seven analysis stages together behind two
// operations: a full project analysis and a single rule's impact
// simulation. One zap.Logger threads through a fixed stage sequence and the
// run returns a single aggregate result.
package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"rulesight/internal/arch"
	"rulesight/internal/config"
	"rulesight/internal/domain"
	"rulesight/internal/graph"
	"rulesight/internal/impact"
	"rulesight/internal/logx"
	"rulesight/internal/model"
	"rulesight/internal/parser"
	"rulesight/internal/report"
	"rulesight/internal/rules"
	"rulesight/internal/semantic"
)

// Pipeline runs the parse -> enrich -> model -> rules -> impact -> arch ->
// report sequence over one project root.
type Pipeline struct {
	cfg config.Config
	log *zap.Logger

	parser   *parser.Parser
	enricher *semantic.Enricher
	builder  *domain.Builder
	engine   *rules.Engine
	sim      *impact.Simulator
	analyzer *arch.Analyzer
}

// New builds a Pipeline from a loaded configuration. A nil logger defaults
// to a no-op per logx.Sugared.
func New(cfg config.Config, log *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		log:      log,
		parser:   parser.New(cfg, log),
		enricher: semantic.New(log),
		builder:  domain.New(cfg, log),
		engine:   rules.New(cfg, log),
		sim:      impact.New(cfg, log),
		analyzer: arch.New(log),
	}
}

// AnalysisResult bundles the report with the parser's non-fatal
// diagnostics: they ride alongside the report instead of aborting the run.
type AnalysisResult struct {
	Report      model.TechnicalReport
	Diagnostics []model.ParseDiagnostic
}

// base carries every pre-impact stage's output; Analyze and
// SimulateRuleImpact both build one before branching.
type base struct {
	parsed      parser.Result
	files       []*model.ParsedFile
	semanticRes semantic.Result
	domainRes   domain.Result
	rules       []model.BusinessRule
}

func (p *Pipeline) runBase(projectPath string) (base, error) {
	parsed, err := p.parser.Run(projectPath)
	if err != nil {
		return base{}, fmt.Errorf("pipeline: parse: %w", err)
	}

	semanticRes := p.enricher.Run(parsed.Files)
	domainRes := p.builder.Run(parsed.Files, semanticRes.Nodes, semanticRes.Edges)

	sources := make(map[string][]byte, len(parsed.Files))
	for _, f := range parsed.Files {
		sources[f.Path] = f.Source
	}
	businessRules := p.engine.Run(semanticRes.Nodes, domainRes.Entities, domainRes.Relations, sources)

	return base{
		parsed:      parsed,
		files:       parsed.Files,
		semanticRes: semanticRes,
		domainRes:   domainRes,
		rules:       businessRules,
	}, nil
}

// Analyze runs every stage over projectPath and returns the assembled
// report. Impact is seeded from the first rule in deterministic order, or
// left nil when no rules were found.
func (p *Pipeline) Analyze(projectPath string) (AnalysisResult, error) {
	sugar := logx.Sugared(p.log, logx.Report)
	b, err := p.runBase(projectPath)
	if err != nil {
		return AnalysisResult{}, err
	}

	var imports, methods []model.SemanticNode
	for _, n := range b.semanticRes.Nodes {
		switch n.Kind {
		case model.KindImport:
			imports = append(imports, n)
		case model.KindMethod:
			methods = append(methods, n)
		}
	}
	violations := p.analyzer.Run(b.domainRes.Entities, b.domainRes.Relations, b.rules, imports, methods)

	crossLayer := p.auditCrossLayer(b.domainRes.Relations, violations)

	var impactResult *model.ImpactSimulationResult
	if len(b.rules) > 0 {
		res, err := p.sim.Run(b.rules[0].ID, b.domainRes.Entities, b.rules, b.domainRes.Relations)
		if err != nil {
			return AnalysisResult{}, fmt.Errorf("pipeline: seed impact: %w", err)
		}
		impactResult = &res
	}

	rep := report.Assemble(b.domainRes.Entities, b.domainRes.Relations, b.rules, impactResult, violations, crossLayer)
	sugar.Infow("analysis complete",
		"entities", len(rep.Entities), "rules", len(rep.Rules), "violations", len(rep.ArchitecturalViolations))

	return AnalysisResult{Report: rep, Diagnostics: b.parsed.Diagnostics}, nil
}

// SimulateRuleImpact reruns parsing through rule extraction, then computes
// the impact of changing ruleID alone.
func (p *Pipeline) SimulateRuleImpact(projectPath, ruleID string) (model.ImpactSimulationResult, error) {
	b, err := p.runBase(projectPath)
	if err != nil {
		return model.ImpactSimulationResult{}, err
	}
	return p.sim.Run(ruleID, b.domainRes.Entities, b.rules, b.domainRes.Relations)
}

// BuildGraph reruns parsing through relation extraction and returns a
// queryable Mangle-backed store over the resulting relation set, for ad hoc
// reachability questions the fixed impact/architecture algorithms don't
// expose (see cmd/rulesight's reaches subcommand).
func (p *Pipeline) BuildGraph(projectPath string) (*graph.Store, error) {
	b, err := p.runBase(projectPath)
	if err != nil {
		return nil, err
	}
	store, err := graph.NewStore(b.domainRes.Relations)
	if err != nil {
		return nil, fmt.Errorf("pipeline: build graph: %w", err)
	}
	return store, nil
}

// auditCrossLayer queries the declarative graph store for domain-to-infra
// edges over the same relation set the architectural analyzer scanned
// directly, returning the flagged pairs for the report and logging a
// debug line when the two disagree. The analyzer's own finding remains the
// report's authoritative violation list; this is a second, independently
// computed view of the same graph surfaced alongside it.
func (p *Pipeline) auditCrossLayer(relations []model.DomainRelation, violations []model.ArchitecturalViolation) []model.CrossLayerEdge {
	sugar := logx.Sugared(p.log, logx.Architecture)
	store, err := graph.NewStore(relations)
	if err != nil {
		sugar.Debugw("graph store unavailable, skipping cross-layer audit", "error", err)
		return nil
	}
	pairs, err := store.CrossLayerEdges()
	if err != nil {
		sugar.Debugw("cross-layer query failed", "error", err)
		return nil
	}

	direct := 0
	for _, v := range violations {
		if v.Type == model.ViolationDomainCallingInfra {
			direct++
		}
	}
	if len(pairs) != direct {
		sugar.Debugw("cross-layer audit disagreement", "declarative", len(pairs), "direct", direct)
	}

	edges := make([]model.CrossLayerEdge, 0, len(pairs))
	for _, pair := range pairs {
		edges = append(edges, model.CrossLayerEdge{From: pair[0], To: pair[1]})
	}
	return edges
}
