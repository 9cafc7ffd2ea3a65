// Package rules implements stage 4: it walks the semantic-node list
// and classifies conditional statements and arithmetic assignments into
// five rule kinds, attaching a confidence score that is a pure function of
// (rule, context), via a battery of small, independently testable AST-shape
// inspection predicates.
package rules

import (
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"

	"rulesight/internal/config"
	"rulesight/internal/domain"
	"rulesight/internal/logx"
	"rulesight/internal/model"
	"rulesight/internal/semantic"
)

// Engine classifies semantic nodes into business rules.
type Engine struct {
	log     *zap.SugaredLogger
	weights config.ConfidenceWeights
}

// New builds an Engine configured with the project's confidence-weight
// table, overridable via .rulesight.yaml.
func New(cfg config.Config, log *zap.Logger) *Engine {
	return &Engine{log: logx.Sugared(log, logx.Rules), weights: cfg.Confidence}
}

// Run classifies every If and Binary semantic node into a BusinessRule,
// collapsing duplicate identifiers.
func (e *Engine) Run(nodes []model.SemanticNode, entities []model.DomainEntity, relations []model.DomainRelation, sources map[string][]byte) []model.BusinessRule {
	entityByName := map[string]model.DomainEntity{}
	for _, en := range entities {
		entityByName[en.Name] = en
	}
	mutatesMethod := map[string]bool{}
	for _, r := range relations {
		if r.Type == model.RelModifies {
			mutatesMethod[r.From] = true
		}
	}
	propType := map[string]map[string]string{} // class -> property -> static type
	methodPublic := map[string]bool{}           // "Class.method" -> public
	for _, n := range nodes {
		switch n.Kind {
		case model.KindProperty:
			if n.Class == "" {
				continue
			}
			if propType[n.Class] == nil {
				propType[n.Class] = map[string]string{}
			}
			propType[n.Class][n.Symbol] = n.StaticType
		case model.KindMethod:
			if n.Class == "" {
				continue
			}
			methodPublic[n.Class+"."+n.Symbol] = n.Public
		}
	}

	seen := map[string]bool{}
	var out []model.BusinessRule
	add := func(r model.BusinessRule) {
		if seen[r.ID] {
			return
		}
		seen[r.ID] = true
		out = append(out, r)
	}

	for _, n := range nodes {
		source := sources[n.FilePath]
		switch n.Kind {
		case model.KindIf:
			if n.Method == "" {
				continue // conditionals outside any method do not produce rules
			}
			if r, ok := e.classifyIf(n, entityByName, mutatesMethod, methodPublic, propType, source); ok {
				add(r)
			}
		case model.KindBinary:
			if n.Method == "" {
				continue // assignments outside any method do not produce rules
			}
			if r, ok := e.classifyBinary(n, entityByName, mutatesMethod, methodPublic, propType, source); ok {
				add(r)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].FilePath != out[j].FilePath {
			return out[i].FilePath < out[j].FilePath
		}
		return out[i].Span.Start < out[j].Span.Start
	})
	return out
}

func ruleID(t model.RuleType, filePath string, start uint32) string {
	return fmt.Sprintf("%s:%s:%d", t, filePath, start)
}

func (e *Engine) classifyIf(n model.SemanticNode, entityByName map[string]model.DomainEntity, mutatesMethod, methodPublic map[string]bool, propType map[string]map[string]string, source []byte) (model.BusinessRule, bool) {
	entity, hasEntity := lookupEntity(n, entityByName)
	ref := n.Ref
	condition := ref.ChildByFieldName("condition")
	consequence := ref.ChildByFieldName("consequence")
	alternative := ref.ChildByFieldName("alternative")

	methodKey := n.Class + "." + n.Method
	methodMutates := mutatesMethod[methodKey]
	guardClause := semantic.BranchThrowsOrReturns(consequence)

	var (
		ruleType model.RuleType
		strong   bool
		matched  bool
	)
	// A true guard clause throws or returns early with no else branch; an
	// if/else where both arms return is a branching policy, not a guard, so
	// it must fall through to the policy case below rather than being
	// caught here just because its consequence happens to return.
	isGuardClause := guardClause && alternative == nil
	switch {
	case isGuardClause || (hasEntity && methodMutates):
		ruleType = model.RuleInvariant
		strong = isGuardClause
		matched = true
	case isContextRestriction(condition, source):
		ruleType = model.RuleContextRestriction
		strong = true // an if-guarded context check is always a strong structural pattern
		matched = true
	case alternative != nil || (guardClause && bothBranchesReturn(consequence, alternative)) || bothBranchesAssign(consequence, alternative):
		ruleType = model.RulePolicy
		strong = alternative != nil
		matched = true
	}
	if !matched {
		return model.BusinessRule{}, false
	}

	ctx := confidenceContext{
		insideEntity:  hasEntity,
		mutatesState:  methodMutates,
		hasThrow:      containsThrow(consequence) || containsThrow(alternative),
		methodPublic:  isMethodPublic(methodKey, methodPublic),
		usesEnum:      entityHasEnumProperty(entity, propType, source),
		nonController: !looksLikeTechnicalPath(n.FilePath),
		strongPattern: strong,
		isController:  looksLikeControllerPath(n.FilePath),
	}

	return model.BusinessRule{
		ID:          ruleID(ruleType, n.FilePath, n.Start),
		Type:        ruleType,
		Entity:      entity.Name,
		Method:      n.Method,
		FilePath:    n.FilePath,
		Condition:   e.text(condition, source),
		Consequence: e.text(consequence, source),
		Span:        model.ASTSpan{Start: n.Start, End: n.End},
		Confidence:  computeConfidence(e.weights, ctx),
	}, true
}

func (e *Engine) classifyBinary(n model.SemanticNode, entityByName map[string]model.DomainEntity, mutatesMethod, methodPublic map[string]bool, propType map[string]map[string]string, source []byte) (model.BusinessRule, bool) {
	entity, hasEntity := lookupEntity(n, entityByName)
	methodKey := n.Class + "." + n.Method
	methodMutates := mutatesMethod[methodKey]

	if field, _, ok := semantic.ThisFieldAssignment(n.Ref, source); ok && hasEntity && inStateFields(entity, field) {
		ctx := confidenceContext{
			insideEntity:  true,
			mutatesState:  true,
			hasThrow:      false,
			methodPublic:  isMethodPublic(methodKey, methodPublic),
			nonController: !looksLikeTechnicalPath(n.FilePath),
			strongPattern: true, // a direct state-field assignment is always a strong structural pattern
			isController:  looksLikeControllerPath(n.FilePath),
			usesEnum:      entityHasEnumProperty(entity, propType, source),
		}
		return model.BusinessRule{
			ID:          ruleID(model.RuleStateTransition, n.FilePath, n.Start),
			Type:        model.RuleStateTransition,
			Entity:      entity.Name,
			Method:      n.Method,
			FilePath:    n.FilePath,
			Condition:   fmt.Sprintf("%s assignment", field),
			Consequence: n.Text,
			Span:        model.ASTSpan{Start: n.Start, End: n.End},
			Confidence:  computeConfidence(e.weights, ctx),
		}, true
	}

	if semantic.IsArithmetic(n.Ref, source) && (semantic.ContainsNumericLiteral(n.Ref) || semantic.MentionsThisProperty(n.Ref, source)) {
		ctx := confidenceContext{
			insideEntity:  hasEntity,
			mutatesState:  methodMutates,
			hasThrow:      false,
			methodPublic:  isMethodPublic(methodKey, methodPublic),
			nonController: !looksLikeTechnicalPath(n.FilePath),
			strongPattern: true, // an arithmetic binary expression is always a strong structural pattern
			isController:  looksLikeControllerPath(n.FilePath),
			calculation:   true,
			usesEnum:      entityHasEnumProperty(entity, propType, source),
		}
		return model.BusinessRule{
			ID:          ruleID(model.RuleCalculation, n.FilePath, n.Start),
			Type:        model.RuleCalculation,
			Entity:      entity.Name,
			Method:      n.Method,
			FilePath:    n.FilePath,
			Condition:   "arithmetic expression",
			Consequence: n.Text,
			Span:        model.ASTSpan{Start: n.Start, End: n.End},
			Confidence:  computeConfidence(e.weights, ctx),
		}, true
	}
	return model.BusinessRule{}, false
}

func (e *Engine) text(n *sitter.Node, source []byte) string {
	if n == nil || source == nil {
		return ""
	}
	return n.Content(source)
}

func lookupEntity(n model.SemanticNode, byName map[string]model.DomainEntity) (model.DomainEntity, bool) {
	if n.Class == "" {
		return model.DomainEntity{}, false
	}
	en, ok := byName[n.Class]
	return en, ok
}

func inStateFields(e model.DomainEntity, field string) bool {
	for _, f := range e.StateFields {
		if f == field {
			return true
		}
	}
	return false
}

func bothBranchesReturn(consequence, alternative *sitter.Node) bool {
	return containsReturn(consequence) && containsReturn(alternative)
}

func containsReturn(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	if n.Type() == "return_statement" {
		return true
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if containsReturn(n.Child(i)) {
			return true
		}
	}
	return false
}

func bothBranchesAssign(consequence, alternative *sitter.Node) bool {
	if consequence == nil || alternative == nil {
		return false
	}
	return containsAssignment(consequence) && containsAssignment(alternative)
}

func containsAssignment(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "assignment_expression", "augmented_assignment_expression":
		return true
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if containsAssignment(n.Child(i)) {
			return true
		}
	}
	return false
}

func containsThrow(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	if n.Type() == "throw_statement" {
		return true
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if containsThrow(n.Child(i)) {
			return true
		}
	}
	return false
}

// isContextRestriction inspects an if-condition's AST for structural
// signals: date/time access, a status-like accessor, a feature-flag-like
// accessor, or a process-wide identifier.
func isContextRestriction(condition *sitter.Node, source []byte) bool {
	return containsDateTimeAccess(condition, source) ||
		containsIdentifierLike(condition, source, "status") ||
		containsIdentifierLike(condition, source, "flag") ||
		containsIdentifierLike(condition, source, "feature") ||
		containsProcessGlobal(condition, source)
}

func containsDateTimeAccess(n *sitter.Node, source []byte) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "new_expression":
		if ctor := n.ChildByFieldName("constructor"); ctor != nil && ctor.Content(source) == "Date" {
			return true
		}
	case "call_expression":
		fn := n.ChildByFieldName("function")
		if fn != nil && fn.Type() == "member_expression" {
			obj := fn.ChildByFieldName("object")
			prop := fn.ChildByFieldName("property")
			if obj != nil && obj.Content(source) == "Date" && prop != nil && prop.Content(source) == "now" {
				return true
			}
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if containsDateTimeAccess(n.Child(i), source) {
			return true
		}
	}
	return false
}

// containsIdentifierLike walks n for an identifier or member-expression
// property whose lowercase text contains needle — a deliberately stringy
// signal for identifier conventions like status/flag.
func containsIdentifierLike(n *sitter.Node, source []byte, needle string) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "identifier", "property_identifier":
		if strings.Contains(strings.ToLower(n.Content(source)), needle) {
			return true
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if containsIdentifierLike(n.Child(i), source, needle) {
			return true
		}
	}
	return false
}

func containsProcessGlobal(n *sitter.Node, source []byte) bool {
	if n == nil {
		return false
	}
	if n.Type() == "member_expression" {
		obj := n.ChildByFieldName("object")
		if obj != nil {
			switch obj.Content(source) {
			case "process", "process.env", "window", "globalThis":
				return true
			}
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if containsProcessGlobal(n.Child(i), source) {
			return true
		}
	}
	return false
}

// looksLikeControllerPath is the narrow "looks like a controller" penalty
// signal, applied as a 0.20 confidence deduction.
func looksLikeControllerPath(path string) bool {
	return strings.Contains(strings.ToLower(path), "controller")
}

// looksLikeTechnicalPath is the broader "controller/infrastructure/adapter
// directory" signal used for the non-technical-path confidence bonus.
func looksLikeTechnicalPath(path string) bool {
	lower := strings.ToLower(path)
	return strings.Contains(lower, "controller") || strings.Contains(lower, "infra") || strings.Contains(lower, "adapter")
}

// isMethodPublic looks up the owning method's visibility as recorded by the
// semantic enricher; a node with no enclosing method (methodKey absent)
// defaults to public, treating it as unscoped.
func isMethodPublic(methodKey string, methodPublic map[string]bool) bool {
	public, known := methodPublic[methodKey]
	if !known {
		return true
	}
	return public
}

// entityHasEnumProperty reports whether the rule's owning entity declares
// at least one enum-typed property, the "node uses an enum symbol"
// confidence signal.
func entityHasEnumProperty(entity model.DomainEntity, propType map[string]map[string]string, source []byte) bool {
	if entity.Name == "" || source == nil {
		return false
	}
	enumNames := domain.EnumDeclarationNames(source)
	if len(enumNames) == 0 {
		return false
	}
	types := propType[entity.Name]
	for _, prop := range entity.Properties {
		t := strings.TrimSuffix(strings.TrimSpace(types[prop]), "[]")
		if enumNames[t] {
			return true
		}
	}
	return false
}
