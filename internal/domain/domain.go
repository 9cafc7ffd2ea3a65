// Package domain implements stage 3: it identifies which classes are
// domain entities and materializes entities plus the structural relation
// set (CALLS, MODIFIES, USES), building per-class field/method tables with
// plain maps and slices over the already-parsed semantic nodes.
package domain

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"rulesight/internal/config"
	"rulesight/internal/logx"
	"rulesight/internal/model"
	"rulesight/internal/semantic"
)

// Builder infers domain entities and structural relations from a semantic
// enrichment result.
type Builder struct {
	log     *zap.SugaredLogger
	suffix  []string
}

// New builds a Builder configured with the technical-suffix exclusion list.
func New(cfg config.Config, log *zap.Logger) *Builder {
	return &Builder{log: logx.Sugared(log, logx.Domain), suffix: cfg.TechnicalSuffixes}
}

// Result is the domain-model builder's output.
type Result struct {
	Entities  []model.DomainEntity
	Relations []model.DomainRelation
}

type classInfo struct {
	name       string
	filePath   string
	properties []model.SemanticNode
	methods    []model.SemanticNode
	ifRanges   map[string][][2]uint32 // method name -> if-statement byte ranges
}

// Run groups the semantic-enrichment output by enclosing class, qualifies
// domain entities against the four-condition gate, and emits the
// structural relation set.
func (b *Builder) Run(files []*model.ParsedFile, nodes []model.SemanticNode, edges []model.CallGraphEdge) Result {
	bySource := map[string][]byte{}
	for _, f := range files {
		bySource[f.Path] = f.Source
	}

	classes := map[string]*classInfo{}
	var order []string
	for _, n := range nodes {
		switch n.Kind {
		case model.KindClass:
			if _, ok := classes[n.Symbol]; !ok {
				classes[n.Symbol] = &classInfo{name: n.Symbol, filePath: n.FilePath, ifRanges: map[string][][2]uint32{}}
				order = append(order, n.Symbol)
			}
		case model.KindProperty:
			if n.Class == "" {
				continue
			}
			ci := classes[n.Class]
			if ci == nil {
				continue
			}
			ci.properties = append(ci.properties, n)
		case model.KindMethod:
			if n.Class == "" {
				continue
			}
			ci := classes[n.Class]
			if ci == nil {
				continue
			}
			ci.methods = append(ci.methods, n)
		case model.KindIf:
			if n.Class == "" || n.Method == "" {
				continue
			}
			ci := classes[n.Class]
			if ci == nil {
				continue
			}
			ci.ifRanges[n.Method] = append(ci.ifRanges[n.Method], [2]uint32{n.Start, n.End})
		}
	}

	var entities []model.DomainEntity
	// assignedByMethod maps "<Class>.<method>" -> set of assigned state fields
	// (used below to emit MODIFIES relations).
	assignedByMethod := map[string]map[string]bool{}

	for _, name := range order {
		ci := classes[name]
		if ci.name == "" || hasTechnicalSuffix(ci.name, b.suffix) {
			continue
		}
		mutable := mutableProperties(ci.properties)
		if len(mutable) == 0 {
			continue
		}

		assignedFields := map[string]bool{}
		assignedInsideConditional := false
		for _, n := range nodes {
			if n.Kind != model.KindBinary || n.Class != name || n.Method == "" {
				continue
			}
			field, _, ok := semantic.ThisFieldAssignment(n.Ref, bySource[n.FilePath])
			if !ok || !mutable[field] {
				continue
			}
			assignedFields[field] = true
			key := ci.name + "." + n.Method
			if assignedByMethod[key] == nil {
				assignedByMethod[key] = map[string]bool{}
			}
			assignedByMethod[key][field] = true
			if withinAnyRange(n.Start, n.End, ci.ifRanges[n.Method]) {
				assignedInsideConditional = true
			}
		}
		if len(assignedFields) == 0 {
			continue // condition 3: no mutator assigns a mutable property
		}

		hasConditionalMethod := len(ci.ifRanges) > 0
		hasEnumProperty := anyEnumTyped(ci.properties, bySource[ci.filePath])
		if !hasEnumProperty && !hasConditionalMethod && !assignedInsideConditional {
			continue // condition 4
		}

		stateFields := make([]string, 0, len(assignedFields))
		for f := range assignedFields {
			stateFields = append(stateFields, f)
		}
		sort.Strings(stateFields)

		entities = append(entities, model.DomainEntity{
			Name:        ci.name,
			FilePath:    ci.filePath,
			Properties:  propertyNames(ci.properties),
			Methods:     methodNames(ci.methods),
			StateFields: stateFields,
		})
	}

	sort.Slice(entities, func(i, j int) bool { return entities[i].Name < entities[j].Name })

	relations := b.relations(assignedByMethod, edges)
	return Result{Entities: entities, Relations: relations}
}

func (b *Builder) relations(assignedByMethod map[string]map[string]bool, edges []model.CallGraphEdge) []model.DomainRelation {
	seen := map[model.DomainRelation]bool{}
	var out []model.DomainRelation
	add := func(r model.DomainRelation) {
		if seen[r] {
			return
		}
		seen[r] = true
		out = append(out, r)
	}

	for _, methodKey := range sortedKeys(assignedByMethod) {
		fields := assignedByMethod[methodKey]
		className := strings.SplitN(methodKey, ".", 2)[0]
		for _, field := range sortedSet(fields) {
			add(model.DomainRelation{Type: model.RelModifies, From: methodKey, To: className + "." + field})
		}
	}

	for _, e := range edges {
		add(model.DomainRelation{Type: model.RelCalls, From: e.From, To: e.To})
		add(model.DomainRelation{Type: model.RelUses, From: e.From, To: e.To})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

func hasTechnicalSuffix(name string, suffixes []string) bool {
	if name == "" {
		return false
	}
	for _, s := range suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

func mutableProperties(props []model.SemanticNode) map[string]bool {
	out := map[string]bool{}
	for _, p := range props {
		if !p.Readonly {
			out[p.Symbol] = true
		}
	}
	return out
}

func propertyNames(props []model.SemanticNode) []string {
	out := make([]string, 0, len(props))
	for _, p := range props {
		out = append(out, p.Symbol)
	}
	sort.Strings(out)
	return out
}

func methodNames(methods []model.SemanticNode) []string {
	out := make([]string, 0, len(methods))
	for _, m := range methods {
		out = append(out, m.Symbol)
	}
	sort.Strings(out)
	return out
}

func withinAnyRange(start, end uint32, ranges [][2]uint32) bool {
	for _, r := range ranges {
		if start >= r[0] && end <= r[1] {
			return true
		}
	}
	return false
}

// anyEnumTyped reports whether any property's static type names a top-level
// enum declared in the owning file.
func anyEnumTyped(props []model.SemanticNode, source []byte) bool {
	return EnumTypedProperty(props, source) != ""
}

// EnumTypedProperty returns the name of the first property whose static
// type names a top-level enum declared in source, or "" if none do.
func EnumTypedProperty(props []model.SemanticNode, source []byte) string {
	if len(source) == 0 {
		return ""
	}
	enumNames := enumDeclarationNames(source)
	if len(enumNames) == 0 {
		return ""
	}
	for _, p := range props {
		t := strings.TrimSuffix(strings.TrimSpace(p.StaticType), "[]")
		if enumNames[t] {
			return p.Symbol
		}
	}
	return ""
}

// EnumDeclarationNames scans raw source for `enum Name` declarations. This
// is a deliberately stringy signal kept outside structural classification
// — enum membership does not gate rule kind, only entity
// qualification's conditional-signal check (and, downstream, the business
// rule engine's "uses an enum symbol" confidence signal).
func EnumDeclarationNames(source []byte) map[string]bool {
	return enumDeclarationNames(source)
}

func enumDeclarationNames(source []byte) map[string]bool {
	out := map[string]bool{}
	text := string(source)
	idx := 0
	for {
		pos := strings.Index(text[idx:], "enum ")
		if pos < 0 {
			break
		}
		start := idx + pos + len("enum ")
		end := start
		for end < len(text) && (isIdentChar(text[end])) {
			end++
		}
		if end > start {
			out[text[start:end]] = true
		}
		idx = end
		if idx <= start {
			break
		}
	}
	return out
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func sortedKeys(m map[string]map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedSet(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
