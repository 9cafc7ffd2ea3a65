// Package semantic implements stage 2: a depth-first walk over each
// parsed file's syntax tree that emits a flat, stably ordered SemanticNode
// list and a deduplicated file-level call graph. Tracks enclosing
// class/method/function scope with a save-restore pattern as it descends,
// dispatching per node type into the node kinds model.NodeKind defines.
package semantic

import (
	"fmt"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"

	"rulesight/internal/logx"
	"rulesight/internal/model"
)

// Result is the semantic-enricher stage's output for one pipeline run.
type Result struct {
	Nodes []model.SemanticNode
	Edges []model.CallGraphEdge
}

// Enricher walks parsed files and emits semantic nodes and call-graph edges.
type Enricher struct {
	log *zap.SugaredLogger
}

// New builds an Enricher. A nil logger defaults to a no-op.
func New(log *zap.Logger) *Enricher {
	return &Enricher{log: logx.Sugared(log, logx.Semantic)}
}

// Run walks every file in files, in order, and returns the combined,
// deterministically ordered result.
func (e *Enricher) Run(files []*model.ParsedFile) Result {
	var res Result
	edgeSeen := map[model.CallGraphEdge]bool{}

	for _, pf := range files {
		w := &walker{pf: pf, log: e.log}
		w.walk(pf.Tree.RootNode())
		res.Nodes = append(res.Nodes, w.nodes...)
		for _, edge := range w.edges {
			if edgeSeen[edge] {
				continue
			}
			edgeSeen[edge] = true
			res.Edges = append(res.Edges, edge)
		}
	}

	sort.SliceStable(res.Nodes, func(i, j int) bool {
		if res.Nodes[i].FilePath != res.Nodes[j].FilePath {
			return res.Nodes[i].FilePath < res.Nodes[j].FilePath
		}
		return res.Nodes[i].Start < res.Nodes[j].Start
	})
	sort.SliceStable(res.Edges, func(i, j int) bool {
		if res.Edges[i].From != res.Edges[j].From {
			return res.Edges[i].From < res.Edges[j].From
		}
		return res.Edges[i].To < res.Edges[j].To
	})
	return res
}

// walker tracks enclosing-scope state while it descends one file's tree.
// currentClass/currentMethod/currentFunc save and restore around nested
// scopes as the walk descends and returns.
type walker struct {
	pf    *model.ParsedFile
	log   *zap.SugaredLogger
	nodes []model.SemanticNode
	edges []model.CallGraphEdge

	currentClass  string
	currentMethod string
	currentFunc   string
}

// enclosing resolves the call-edge `from` identifier: when both an
// enclosing method and an enclosing function exist, method wins.
func (w *walker) enclosing() string {
	switch {
	case w.currentMethod != "":
		if w.currentClass != "" {
			return w.currentClass + "." + w.currentMethod
		}
		return fmt.Sprintf("%s#%s", w.pf.Path, w.currentMethod)
	case w.currentFunc != "":
		return fmt.Sprintf("%s#%s", w.pf.Path, w.currentFunc)
	default:
		return "<anonymous>"
	}
}

func (w *walker) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(w.pf.Source)
}

func (w *walker) emit(kind model.NodeKind, n *sitter.Node, symbol, staticType string) {
	node := model.SemanticNode{
		Kind:       kind,
		FilePath:   w.pf.Path,
		Symbol:     symbol,
		StaticType: staticType,
		Start:      n.StartByte(),
		End:        n.EndByte(),
		Enclosing:  w.enclosing(),
		Class:      w.currentClass,
		Method:     w.currentMethod,
		Text:       w.text(n),
		Ref:        n,
	}
	if kind == model.KindProperty {
		node.Readonly = hasModifier(n, "readonly")
	}
	if kind == model.KindMethod {
		node.Public = !hasModifier(n, "private") && !hasModifier(n, "protected")
	}
	w.nodes = append(w.nodes, node)
}

// hasModifier reports whether n carries the given modifier on a class
// member: tree-sitter-typescript gives readonly as a direct child token and
// public/private/protected as the token inside an accessibility_modifier
// child.
func hasModifier(n *sitter.Node, modifier string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Type() == modifier {
			return true
		}
		if c.Type() == "accessibility_modifier" && c.ChildCount() > 0 && c.Child(0).Type() == modifier {
			return true
		}
	}
	return false
}

func (w *walker) walk(n *sitter.Node) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "class_declaration", "abstract_class_declaration":
		w.walkClass(n)
		return
	case "method_definition":
		w.walkMethod(n)
		return
	case "public_field_definition":
		w.walkPropertyField(n)
		return
	case "function_declaration", "function_expression":
		w.walkFunction(n)
		return
	case "variable_declarator":
		w.walkVariableDeclarator(n)
		return
	case "import_statement":
		w.walkImport(n)
	case "if_statement":
		w.walkIf(n)
	case "throw_statement":
		w.emit(model.KindThrow, n, "", "")
	case "return_statement":
		w.emit(model.KindReturn, n, "", "")
	case "new_expression":
		w.walkNew(n)
	case "call_expression":
		w.walkCall(n)
	case "binary_expression", "assignment_expression", "augmented_assignment_expression":
		w.emit(model.KindBinary, n, "", "")
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		w.walk(n.Child(i))
	}
}

func (w *walker) walkClass(n *sitter.Node) {
	name := w.text(n.ChildByFieldName("name"))
	w.emit(model.KindClass, n, name, "")

	oldClass := w.currentClass
	w.currentClass = name
	defer func() { w.currentClass = oldClass }()

	body := n.ChildByFieldName("body")
	for i := 0; i < int(body.ChildCount()); i++ {
		w.walk(body.Child(i))
	}
}

func (w *walker) walkMethod(n *sitter.Node) {
	name := w.text(n.ChildByFieldName("name"))
	retType := w.text(n.ChildByFieldName("return_type"))
	w.emit(model.KindMethod, n, name, retType)

	oldMethod := w.currentMethod
	w.currentMethod = name
	defer func() { w.currentMethod = oldMethod }()

	body := n.ChildByFieldName("body")
	w.walk(body)
}

func (w *walker) walkFunction(n *sitter.Node) {
	name := w.text(n.ChildByFieldName("name"))
	if name == "" {
		name = "anonymous"
	}
	oldFunc := w.currentFunc
	w.currentFunc = name
	defer func() { w.currentFunc = oldFunc }()

	body := n.ChildByFieldName("body")
	w.walk(body)
}

func (w *walker) walkProperty(n *sitter.Node) {
	name := w.text(n.ChildByFieldName("name"))
	typ := w.text(n.ChildByFieldName("type"))
	w.emit(model.KindProperty, n, name, typ)
}

// walkPropertyField emits the field's Property node, then — for an
// arrow-valued field (`ship = (): void => {...}`), an idiomatic alternative
// to a method_definition — walks the arrow body with currentMethod set to
// the field's name, so calls and assignments inside it attribute to the
// field rather than to whatever enclosing scope happens to be active.
func (w *walker) walkPropertyField(n *sitter.Node) {
	w.walkProperty(n)

	value := n.ChildByFieldName("value")
	if value == nil || value.Type() != "arrow_function" {
		for i := 0; i < int(n.ChildCount()); i++ {
			w.walk(n.Child(i))
		}
		return
	}

	name := w.text(n.ChildByFieldName("name"))
	oldMethod := w.currentMethod
	w.currentMethod = name
	defer func() { w.currentMethod = oldMethod }()
	w.walk(value.ChildByFieldName("body"))
}

// walkVariableDeclarator intercepts `const name = (...) => {...}` so a
// named top-level (or nested) arrow function gets the same enclosing-scope
// treatment as a function_declaration instead of leaving calls inside it
// attributed to "<anonymous>".
func (w *walker) walkVariableDeclarator(n *sitter.Node) {
	value := n.ChildByFieldName("value")
	if value == nil || value.Type() != "arrow_function" {
		for i := 0; i < int(n.ChildCount()); i++ {
			w.walk(n.Child(i))
		}
		return
	}

	name := w.text(n.ChildByFieldName("name"))
	if name == "" {
		name = "anonymous"
	}
	oldFunc := w.currentFunc
	w.currentFunc = name
	defer func() { w.currentFunc = oldFunc }()
	w.walk(value.ChildByFieldName("body"))
}

func (w *walker) walkImport(n *sitter.Node) {
	src := w.text(n.ChildByFieldName("source"))
	w.emit(model.KindImport, n, "", src)
}

func (w *walker) walkIf(n *sitter.Node) {
	w.emit(model.KindIf, n, "", "")
	// condition/consequence/alternative are all walked via the generic
	// recursion at the bottom of walk().
}

func (w *walker) walkNew(n *sitter.Node) {
	ctor := w.text(n.ChildByFieldName("constructor"))
	w.emit(model.KindNew, n, ctor, "")
}

func (w *walker) walkCall(n *sitter.Node) {
	callee := n.ChildByFieldName("function")
	calleeText := w.text(callee)
	w.emit(model.KindCall, n, calleeText, "")
	w.edges = append(w.edges, model.CallGraphEdge{From: w.enclosing(), To: calleeText})
}

// ThisFieldAssignment inspects a Binary semantic node's AST reference and
// reports whether it is an assignment (including a compound-assignment
// counterpart) targeting `this.<field>`. Used by both the domain-model
// builder (state-field discovery) and the business-rule engine
// (STATE_TRANSITION classification) so both stages agree on what counts as
// a field assignment.
func ThisFieldAssignment(n *sitter.Node, source []byte) (field string, operator string, ok bool) {
	if n == nil {
		return "", "", false
	}
	switch n.Type() {
	case "assignment_expression", "augmented_assignment_expression":
	default:
		return "", "", false
	}
	left := n.ChildByFieldName("left")
	op := n.ChildByFieldName("operator")
	if left == nil || left.Type() != "member_expression" {
		return "", "", false
	}
	object := left.ChildByFieldName("object")
	property := left.ChildByFieldName("property")
	if object == nil || object.Type() != "this" || property == nil {
		return "", "", false
	}
	opText := "="
	if op != nil {
		opText = op.Content(source)
	}
	return property.Content(source), opText, true
}

// IsArithmetic reports whether a Binary semantic node's operator is one of
// the five arithmetic operators used for CALCULATION classification.
func IsArithmetic(n *sitter.Node, source []byte) bool {
	if n == nil || n.Type() != "binary_expression" {
		return false
	}
	op := n.ChildByFieldName("operator")
	if op == nil {
		return false
	}
	switch op.Content(source) {
	case "+", "-", "*", "/", "%":
		return true
	}
	return false
}

// MentionsThisProperty reports whether n's subtree contains a
// `this.<property>` member access, used by CALCULATION classification.
func MentionsThisProperty(n *sitter.Node, source []byte) bool {
	if n == nil {
		return false
	}
	if n.Type() == "member_expression" {
		obj := n.ChildByFieldName("object")
		if obj != nil && obj.Type() == "this" {
			return true
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if MentionsThisProperty(n.Child(i), source) {
			return true
		}
	}
	return false
}

// ContainsNumericLiteral reports whether n's subtree contains a numeric
// literal, used by CALCULATION classification.
func ContainsNumericLiteral(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	if n.Type() == "number" {
		return true
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if ContainsNumericLiteral(n.Child(i)) {
			return true
		}
	}
	return false
}

// BranchThrowsOrReturns reports whether a statement (commonly an
// if-statement's consequence) throws or returns — directly, or as any
// top-level statement of a block — the guard-clause shape INVARIANT classification
// looks for.
func BranchThrowsOrReturns(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "throw_statement", "return_statement":
		return true
	case "statement_block":
		for i := 0; i < int(n.ChildCount()); i++ {
			if BranchThrowsOrReturns(n.Child(i)) {
				return true
			}
		}
	}
	return false
}
