// Package graph wraps github.com/google/mangle as an auxiliary, queryable
// store over the relation set the domain model builder produces. It is not
// on the path of the impact-simulation or architectural-analysis
// algorithms — those stay plain Go so their scoring formulas are exact and
// easy to test — but it gives callers (the CLI, embedders) a declarative
// way to ask ad hoc reachability and layering questions of the same graph.
//
// Schema parsed once via parse.Unit/analysis.AnalyzeOneUnit, evaluated to a
// fixed point with engine.EvalProgramWithStats over a factstore.FactStore,
// with derived predicates built from small, named rules layered on top of
// base facts.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	"github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"rulesight/internal/model"
)

const schema = `
Decl relation(from: string, to: string, kind: string).

Decl reaches(from: string, to: string).
reaches(From, To) :- relation(From, To, _).
reaches(From, To) :- relation(From, Mid, _), reaches(Mid, To).

Decl cross_layer_edge(from: string, to: string).
cross_layer_edge(From, To) :-
    relation(From, To, _),
    fn:string:contains(From, "domain"),
    fn:string:contains(To, "infra").
`

// Store is a fixed-point-evaluated Datalog store seeded from a domain
// relation set. It is immutable once built: callers that need a different
// relation set build a new Store.
type Store struct {
	store       factstore.FactStore
	programInfo *analysis.ProgramInfo
}

// NewStore builds a Store holding one relation(From, To, Kind) fact per
// DomainRelation and evaluates the reachability and cross-layer derivation
// rules to a fixed point.
func NewStore(relations []model.DomainRelation) (*Store, error) {
	var b strings.Builder
	b.WriteString(schema)
	for _, r := range relations {
		fmt.Fprintf(&b, "relation(%s, %s, %s).\n", quote(r.From), quote(r.To), quote(string(r.Type)))
	}

	unit, err := parse.Unit(strings.NewReader(b.String()))
	if err != nil {
		return nil, fmt.Errorf("graph: parse program: %w", err)
	}
	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("graph: analyze program: %w", err)
	}

	store := factstore.NewSimpleInMemoryStore()
	if _, err := engine.EvalProgramWithStats(programInfo, store); err != nil {
		return nil, fmt.Errorf("graph: evaluate program: %w", err)
	}

	return &Store{store: store, programInfo: programInfo}, nil
}

// quote renders s as a Mangle string literal, escaping embedded quotes and
// backslashes so arbitrary symbol and path text round-trips safely.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// Reaches reports whether to is transitively reachable from "from" over the
// relation set's edges, per the reaches/2 derivation.
func (s *Store) Reaches(from, to string) (bool, error) {
	pred := ast.PredicateSym{Symbol: "reaches", Arity: 2}
	query := ast.NewQuery(pred)

	found := false
	err := s.store.GetFacts(query, func(atom ast.Atom) error {
		if found {
			return nil
		}
		if len(atom.Args) != 2 {
			return nil
		}
		a, ok1 := stringValue(atom.Args[0])
		b, ok2 := stringValue(atom.Args[1])
		if ok1 && ok2 && a == from && b == to {
			found = true
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("graph: query reaches: %w", err)
	}
	return found, nil
}

// CrossLayerEdges returns every (from, to) pair the cross_layer_edge
// derivation flags, sorted for deterministic output.
func (s *Store) CrossLayerEdges() ([][2]string, error) {
	pred := ast.PredicateSym{Symbol: "cross_layer_edge", Arity: 2}
	query := ast.NewQuery(pred)

	var pairs [][2]string
	err := s.store.GetFacts(query, func(atom ast.Atom) error {
		if len(atom.Args) != 2 {
			return nil
		}
		a, ok1 := stringValue(atom.Args[0])
		b, ok2 := stringValue(atom.Args[1])
		if ok1 && ok2 {
			pairs = append(pairs, [2]string{a, b})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("graph: query cross_layer_edge: %w", err)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	return pairs, nil
}

func stringValue(t ast.BaseTerm) (string, bool) {
	c, ok := t.(ast.Constant)
	if !ok || c.Type != ast.StringType {
		return "", false
	}
	return c.Symbol, true
}
