// Package arch implements stage 6: it inspects the already-built
// model and emits architectural violations, entirely from the relation,
// rule, and entity sets already computed — no text parsing, and no new AST
// traversal.
package arch

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rulesight/internal/logx"
	"rulesight/internal/model"
)

// violationNamespace seeds the deterministic, idempotent violation IDs:
// uuid.NewSHA1 over a fixed namespace plus the violation's own content
// yields the same ID on every run over unchanged input, per the pipeline's
// idempotence property.
var violationNamespace = uuid.MustParse("8f14e45f-ceea-467e-9c40-a1dc3b9a4e5e")

// Analyzer detects architectural violations.
type Analyzer struct {
	log *zap.SugaredLogger
}

// New builds an Analyzer.
func New(log *zap.Logger) *Analyzer {
	return &Analyzer{log: logx.Sugared(log, logx.Architecture)}
}

// Run inspects entities, relations, rules, and import-node semantic data
// and returns every violation it detects, deterministically ordered.
func (a *Analyzer) Run(entities []model.DomainEntity, relations []model.DomainRelation, rules []model.BusinessRule, imports []model.SemanticNode, methods []model.SemanticNode) []model.ArchitecturalViolation {
	var out []model.ArchitecturalViolation
	out = append(out, a.domainCallingInfra(relations)...)
	out = append(out, a.ruleInController(rules)...)
	out = append(out, a.anemicEntity(entities, relations)...)
	out = append(out, a.fatService(methods)...)
	out = append(out, a.layerViolation(imports)...)
	out = append(out, a.scatteredRule(rules)...)

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (a *Analyzer) domainCallingInfra(relations []model.DomainRelation) []model.ArchitecturalViolation {
	var out []model.ArchitecturalViolation
	for _, r := range relations {
		if r.Type != model.RelCalls {
			continue
		}
		if strings.Contains(strings.ToLower(r.From), "domain") && strings.Contains(strings.ToLower(r.To), "infra") {
			out = append(out, a.violation(model.ViolationDomainCallingInfra,
				fmt.Sprintf("%s calls into infrastructure via %s", r.From, r.To), "", []string{r.From, r.To}))
		}
	}
	return out
}

func (a *Analyzer) ruleInController(rules []model.BusinessRule) []model.ArchitecturalViolation {
	var out []model.ArchitecturalViolation
	for _, r := range rules {
		if strings.HasSuffix(r.Method, "Controller") || strings.Contains(strings.ToLower(r.FilePath), "controller") {
			out = append(out, a.violation(model.ViolationRuleInController,
				fmt.Sprintf("business rule %s lives in a controller", r.ID), r.FilePath, []string{r.ID}))
		}
	}
	return out
}

func (a *Analyzer) anemicEntity(entities []model.DomainEntity, relations []model.DomainRelation) []model.ArchitecturalViolation {
	modifiesFrom := map[string]bool{}
	for _, r := range relations {
		if r.Type == model.RelModifies {
			modifiesFrom[entityFromMethodKey(r.From)] = true
		}
	}
	var out []model.ArchitecturalViolation
	for _, e := range entities {
		if len(e.StateFields) == 0 {
			continue
		}
		if modifiesFrom[e.Name] {
			continue
		}
		out = append(out, a.violation(model.ViolationAnemicEntity,
			fmt.Sprintf("entity %s has state fields but no method modifies them", e.Name), e.FilePath, []string{e.Name}))
	}
	return out
}

func entityFromMethodKey(key string) string {
	if idx := strings.Index(key, "."); idx >= 0 {
		return key[:idx]
	}
	return key
}

func (a *Analyzer) fatService(methods []model.SemanticNode) []model.ArchitecturalViolation {
	countByClass := map[string]int{}
	fileByClass := map[string]string{}
	for _, m := range methods {
		if m.Kind != model.KindMethod || m.Class == "" {
			continue
		}
		if !strings.HasSuffix(m.Class, "Service") {
			continue
		}
		countByClass[m.Class]++
		fileByClass[m.Class] = m.FilePath
	}
	var out []model.ArchitecturalViolation
	names := make([]string, 0, len(countByClass))
	for name := range countByClass {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if countByClass[name] < 8 {
			continue
		}
		out = append(out, a.violation(model.ViolationFatService,
			fmt.Sprintf("%s declares %d methods", name, countByClass[name]), fileByClass[name], []string{name}))
	}
	return out
}

func (a *Analyzer) layerViolation(imports []model.SemanticNode) []model.ArchitecturalViolation {
	var out []model.ArchitecturalViolation
	for _, imp := range imports {
		if imp.Kind != model.KindImport {
			continue
		}
		if !pathHasSegment(imp.FilePath, "domain") {
			continue
		}
		if strings.Contains(strings.ToLower(imp.StaticType), "infra") {
			out = append(out, a.violation(model.ViolationLayerViolation,
				fmt.Sprintf("%s under a domain path imports %s", imp.FilePath, imp.StaticType), imp.FilePath, []string{imp.FilePath}))
		}
	}
	return out
}

func pathHasSegment(path, segment string) bool {
	for _, part := range strings.Split(filepathToSlash(path), "/") {
		if strings.EqualFold(part, segment) {
			return true
		}
	}
	return false
}

func filepathToSlash(path string) string {
	return strings.ReplaceAll(path, "\\", "/")
}

func (a *Analyzer) scatteredRule(rules []model.BusinessRule) []model.ArchitecturalViolation {
	type key struct {
		entity string
		typ    model.RuleType
	}
	filesByGroup := map[key]map[string]bool{}
	for _, r := range rules {
		if r.Entity == "" {
			continue
		}
		k := key{entity: r.Entity, typ: r.Type}
		if filesByGroup[k] == nil {
			filesByGroup[k] = map[string]bool{}
		}
		filesByGroup[k][r.FilePath] = true
	}

	var keys []key
	for k := range filesByGroup {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].entity != keys[j].entity {
			return keys[i].entity < keys[j].entity
		}
		return keys[i].typ < keys[j].typ
	})

	var out []model.ArchitecturalViolation
	for _, k := range keys {
		files := filesByGroup[k]
		if len(files) < 3 {
			continue
		}
		var paths []string
		for f := range files {
			paths = append(paths, f)
		}
		sort.Strings(paths)
		out = append(out, a.violation(model.ViolationScatteredRule,
			fmt.Sprintf("rule (%s, %s) is scattered across %d files", k.entity, k.typ, len(paths)), "", paths))
	}
	return out
}

// violation builds an ArchitecturalViolation with a stable, content-derived
// ID so repeated runs over unchanged input produce identical IDs.
func (a *Analyzer) violation(t model.ViolationType, message, filePath string, related []string) model.ArchitecturalViolation {
	seed := fmt.Sprintf("%s|%s|%s|%s", t, message, filePath, strings.Join(related, ","))
	id := uuid.NewSHA1(violationNamespace, []byte(seed)).String()
	return model.ArchitecturalViolation{
		ID:        id,
		Type:      t,
		Message:   message,
		FilePath:  filePath,
		RelatedID: related,
	}
}
