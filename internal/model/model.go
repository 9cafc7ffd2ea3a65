// Package model holds the data types shared across every pipeline stage.
//
// Values here are immutable once constructed by the stage that owns them;
// later stages only read. AST handles embedded in SemanticNode are scoped to
// one pipeline run and must never be retained past it (see ParsedFile).
package model

import sitter "github.com/smacker/go-tree-sitter"

// ParsedFile is a source file's path plus its syntax tree handle. Created at
// parse time, immutable thereafter. The Tree field is a per-run AST arena
// reference: callers must not retain it once the owning pipeline run ends.
type ParsedFile struct {
	Path    string
	Source  []byte
	Tree    *sitter.Tree
	Lang    string
}

// NodeKind is the closed set of semantic node tags the walker emits.
type NodeKind string

const (
	KindClass    NodeKind = "Class"
	KindMethod   NodeKind = "Method"
	KindProperty NodeKind = "Property"
	KindImport   NodeKind = "Import"
	KindBinary   NodeKind = "Binary"
	KindIf       NodeKind = "If"
	KindThrow    NodeKind = "Throw"
	KindReturn   NodeKind = "Return"
	KindNew      NodeKind = "New"
	KindCall     NodeKind = "Call"
)

// SemanticNode is a tagged handle on a syntax node, ordered stably by
// traversal order (AST start offset within a file, file path across files).
type SemanticNode struct {
	Kind       NodeKind
	FilePath   string
	Symbol     string // optional, empty if unresolved
	StaticType string // optional, empty if unresolved
	Start      uint32 // byte offset
	End        uint32 // byte offset
	Enclosing  string // enclosing callable identifier, "<anonymous>" if at top level
	Class      string // enclosing class name, "" if none
	Method     string // enclosing method name, "" if none
	Text       string // verbatim source text for this node
	Readonly   bool   // Property nodes only: declared with the readonly modifier
	Public     bool   // Method nodes only: no private/protected modifier present
	Ref        *sitter.Node
}

// CallGraphEdge is a directed edge from an enclosing callable identifier to a
// callee text, deduplicated by (From, To).
type CallGraphEdge struct {
	From string
	To   string
}

// DomainEntity is a non-technical class with mutable state and at least one
// mutator.
type DomainEntity struct {
	Name        string
	FilePath    string
	Properties  []string
	Methods     []string
	StateFields []string // intersection of mutable properties and properties actually assigned
}

// RelationType is the closed set of relation labels the domain builder emits.
type RelationType string

const (
	RelCalls     RelationType = "CALLS"
	RelDependsOn RelationType = "DEPENDS_ON"
	RelModifies  RelationType = "MODIFIES"
	RelUses      RelationType = "USES"
)

// DomainRelation is a directed edge labeled with exactly one RelationType,
// deduplicated by (Type, From, To).
type DomainRelation struct {
	Type RelationType
	From string
	To   string
}

// RuleType is the closed set of business-rule kinds the rule engine classifies into.
type RuleType string

const (
	RuleInvariant           RuleType = "INVARIANT"
	RulePolicy              RuleType = "POLICY"
	RuleCalculation         RuleType = "CALCULATION"
	RuleStateTransition     RuleType = "STATE_TRANSITION"
	RuleContextRestriction  RuleType = "CONTEXT_RESTRICTION"
)

// ASTSpan is a byte span within a file.
type ASTSpan struct {
	Start uint32
	End   uint32
}

// BusinessRule is a classified AST region encoding domain logic.
type BusinessRule struct {
	ID          string
	Type        RuleType
	Entity      string // optional, "" if none
	Method      string // optional, "" if none
	FilePath    string
	Condition   string
	Consequence string
	Span        ASTSpan
	Confidence  float64
}

// ImpactNodeKind is the closed set of node kinds the impact graph reasons
// about.
type ImpactNodeKind string

const (
	ImpactRule   ImpactNodeKind = "RULE"
	ImpactEntity ImpactNodeKind = "ENTITY"
	ImpactFile   ImpactNodeKind = "FILE"
	ImpactMethod ImpactNodeKind = "METHOD"
)

// ImpactNode is one member of an impact-simulation result's impacted set.
type ImpactNode struct {
	ID   string
	Kind ImpactNodeKind
	Risk float64
}

// ImpactExplanation is the human-auditable breakdown behind a risk score.
type ImpactExplanation struct {
	FanOut               int
	CallDepth            int
	AffectedFiles        int
	AffectedEntities     int
	CrossLayerViolations int
}

// ImpactSimulationResult is the full output of one impact simulation.
type ImpactSimulationResult struct {
	RootRule    string
	Impacted    []ImpactNode
	GlobalRisk  float64
	Explanation ImpactExplanation
}

// ViolationType is the closed set of architectural-violation kinds the
// architectural analyzer detects.
type ViolationType string

const (
	ViolationDomainCallingInfra ViolationType = "DOMAIN_CALLING_INFRA"
	ViolationRuleInController   ViolationType = "RULE_IN_CONTROLLER"
	ViolationAnemicEntity       ViolationType = "ANEMIC_ENTITY"
	ViolationFatService         ViolationType = "FAT_SERVICE"
	ViolationScatteredRule      ViolationType = "SCATTERED_RULE"
	ViolationLayerViolation     ViolationType = "LAYER_VIOLATION"
)

// ArchitecturalViolation is one structural defect flagged by the architectural analyzer.
type ArchitecturalViolation struct {
	ID        string
	Type      ViolationType
	Message   string
	FilePath  string // optional, "" if none
	RelatedID []string
}

// CrossLayerEdge is a directed edge the declarative graph store flags as
// reaching from a domain identifier into an infrastructure identifier.
type CrossLayerEdge struct {
	From string
	To   string
}

// TechnicalReport is the pipeline's single output value.
type TechnicalReport struct {
	Entities               []DomainEntity
	Relations              []DomainRelation
	Rules                  []BusinessRule
	Impact                 *ImpactSimulationResult // optional, nil if no rules exist
	ArchitecturalViolations []ArchitecturalViolation
	CrossLayerEdges        []CrossLayerEdge // declarative cross-check over the same relation set, via internal/graph
}

// ParseDiagnostic records a non-fatal per-file parse failure. Downstream
// stages behave as if the named file were absent.
type ParseDiagnostic struct {
	FilePath string
	Message  string
}
