// Package impact implements stage 5: given a rule identifier, it
// traverses the relation graph, computes fan-out, depth, affected
// files/entities, cross-layer contamination, and a single global risk
// score. Uses a plain breadth-first graph walk rather than a declarative
// query, since the relation set here is small enough to hold in memory for
// one simulation and the risk formula needs exact, reproducible arithmetic.
package impact

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"rulesight/internal/config"
	"rulesight/internal/logx"
	"rulesight/internal/model"
)

// ErrUnknownRule aborts a simulation for a rule id absent from the rule set.
var ErrUnknownRule = errors.New("unknown rule id")

const maxDepth = 5

// impactEdgeTypes are the relation kinds the traversal follows.
var impactEdgeTypes = map[model.RelationType]bool{
	model.RelCalls:     true,
	model.RelDependsOn: true,
	model.RelModifies:  true,
}

// Simulator computes impact-simulation results over a fixed entity/rule/
// relation set.
type Simulator struct {
	log     *zap.SugaredLogger
	weights config.ImpactWeights
}

// New builds a Simulator configured with the project's impact-weight table.
func New(cfg config.Config, log *zap.Logger) *Simulator {
	return &Simulator{log: logx.Sugared(log, logx.Impact), weights: cfg.Impact}
}

// Run simulates the impact of changing ruleID.
func (s *Simulator) Run(ruleID string, entities []model.DomainEntity, rules []model.BusinessRule, relations []model.DomainRelation) (model.ImpactSimulationResult, error) {
	rule, ok := findRule(rules, ruleID)
	if !ok {
		return model.ImpactSimulationResult{}, fmt.Errorf("%w: %s", ErrUnknownRule, ruleID)
	}

	entityByName := map[string]model.DomainEntity{}
	for _, e := range entities {
		entityByName[e.Name] = e
	}

	adjacency := buildAdjacency(relations)
	root := resolveRoot(rule)

	direct, indirect, depth, impacted := bfs(root, adjacency)
	if rule.Entity != "" {
		impacted[rule.Entity] = true
	}
	if rule.Entity != "" && rule.Method != "" {
		impacted[rule.Entity+"."+rule.Method] = true
	}

	maxFanOut, maxDepthSeen := normalizationDenominators(relations, adjacency)

	fanOutWeight := normalize(float64(direct+indirect), maxFanOut) * s.weights.FanOut
	callDepthWeight := normalize(float64(depth), maxDepthSeen) * s.weights.CallDepth
	mutationWeight := mutationFactor(rule.Type) * s.weights.Mutation
	layerWeight := layerFactor(rule) * s.weights.Layer
	criticalityWeight := s.criticalityFactor(rule, entityByName, rules, relations) * s.weights.Criticality

	risk := fanOutWeight + callDepthWeight + mutationWeight + layerWeight + criticalityWeight
	if rule.Entity == "" {
		risk = math.Max(risk, 0.85)
	}
	risk = clampRound(risk)

	ids := make([]string, 0, len(impacted))
	for id := range impacted {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var nodes []model.ImpactNode
	nodes = append(nodes, model.ImpactNode{ID: root, Kind: classifyNode(root, entityByName), Risk: risk})
	for _, id := range ids {
		if id == root {
			continue
		}
		nodes = append(nodes, model.ImpactNode{ID: id, Kind: classifyNode(id, entityByName), Risk: risk})
	}

	explanation := model.ImpactExplanation{
		FanOut:               direct + indirect,
		CallDepth:            depth,
		AffectedFiles:        countWhere(ids, isFileLike),
		AffectedEntities:     countWhere(ids, func(id string) bool { return entityByName[id].Name != "" }),
		CrossLayerViolations: countWhere(ids, isCrossLayer),
	}

	return model.ImpactSimulationResult{
		RootRule:    ruleID,
		Impacted:    nodes,
		GlobalRisk:  risk,
		Explanation: explanation,
	}, nil
}

func findRule(rules []model.BusinessRule, id string) (model.BusinessRule, bool) {
	for _, r := range rules {
		if r.ID == id {
			return r, true
		}
	}
	return model.BusinessRule{}, false
}

// resolveRoot applies the root-node resolution preference order.
func resolveRoot(rule model.BusinessRule) string {
	switch {
	case rule.Entity != "" && rule.Method != "":
		return rule.Entity + "." + rule.Method
	case rule.Method != "":
		return rule.FilePath + "#" + rule.Method
	case rule.Entity != "":
		return rule.Entity
	default:
		return rule.ID
	}
}

func buildAdjacency(relations []model.DomainRelation) map[string][]string {
	adj := map[string][]string{}
	for _, r := range relations {
		if !impactEdgeTypes[r.Type] {
			continue
		}
		adj[r.From] = append(adj[r.From], r.To)
	}
	for k := range adj {
		sort.Strings(adj[k])
	}
	return adj
}

// bfs performs a breadth-first traversal from root, capped at maxDepth,
// returning direct (depth 1) and indirect (depth >= 2) discovery counts,
// the max depth reached, and the full impacted set (including root).
func bfs(root string, adjacency map[string][]string) (direct, indirect, reachedDepth int, impacted map[string]bool) {
	impacted = map[string]bool{root: true}
	type frame struct {
		id    string
		depth int
	}
	queue := []frame{{id: root, depth: 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, next := range adjacency[cur.id] {
			if impacted[next] {
				continue
			}
			impacted[next] = true
			depth := cur.depth + 1
			if depth > reachedDepth {
				reachedDepth = depth
			}
			if depth == 1 {
				direct++
			} else {
				indirect++
			}
			queue = append(queue, frame{id: next, depth: depth})
		}
	}
	return direct, indirect, reachedDepth, impacted
}

// normalizationDenominators computes the maximum fan-out (distinct
// outgoing targets) and maximum reachable depth over every identifier
// appearing as either end of any relation.
func normalizationDenominators(relations []model.DomainRelation, adjacency map[string][]string) (maxFanOut, maxDepthSeen int) {
	nodes := map[string]bool{}
	for _, r := range relations {
		nodes[r.From] = true
		nodes[r.To] = true
	}
	for id := range nodes {
		out := map[string]bool{}
		for _, t := range adjacency[id] {
			out[t] = true
		}
		if len(out) > maxFanOut {
			maxFanOut = len(out)
		}
		_, _, depth, _ := bfs(id, adjacency)
		if depth > maxDepthSeen {
			maxDepthSeen = depth
		}
	}
	return maxFanOut, maxDepthSeen
}

func normalize(v float64, max int) float64 {
	if max <= 0 {
		return 0
	}
	n := v / float64(max)
	if n > 1 {
		n = 1
	}
	return n
}

func mutationFactor(t model.RuleType) float64 {
	switch t {
	case model.RuleStateTransition:
		return 1.0
	case model.RuleInvariant:
		return 0.9
	case model.RulePolicy:
		return 0.7
	case model.RuleCalculation:
		return 0.6
	case model.RuleContextRestriction:
		return 0.5
	default:
		return 0
	}
}

func layerFactor(rule model.BusinessRule) float64 {
	lower := strings.ToLower(rule.FilePath)
	switch {
	case strings.Contains(lower, "controller"):
		return 1.0
	case strings.Contains(lower, "service"):
		return 0.7
	case rule.Entity != "":
		return 0.2
	default:
		return 1.0
	}
}

// criticalityFactor is the mean of normalized (rules-per-entity, fan-in)
// for the rule's entity, or 1.0 if the rule has no owning entity.
func (s *Simulator) criticalityFactor(rule model.BusinessRule, entityByName map[string]model.DomainEntity, rules []model.BusinessRule, relations []model.DomainRelation) float64 {
	if rule.Entity == "" {
		return 1.0
	}

	rulesPerEntity := map[string]int{}
	maxRulesPerEntity := 0
	for _, r := range rules {
		if r.Entity == "" {
			continue
		}
		rulesPerEntity[r.Entity]++
		if rulesPerEntity[r.Entity] > maxRulesPerEntity {
			maxRulesPerEntity = rulesPerEntity[r.Entity]
		}
	}

	fanIn := map[string]int{}
	maxFanIn := 0
	for _, r := range relations {
		fanIn[r.To]++
		if fanIn[r.To] > maxFanIn {
			maxFanIn = fanIn[r.To]
		}
	}

	rulesNorm := normalize(float64(rulesPerEntity[rule.Entity]), maxRulesPerEntity)
	fanInNorm := normalize(float64(fanIn[rule.Entity]), maxFanIn)
	return (rulesNorm + fanInNorm) / 2
}

func clampRound(v float64) float64 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return math.Round(v*100) / 100
}

func countWhere(ids []string, pred func(string) bool) int {
	n := 0
	for _, id := range ids {
		if pred(id) {
			n++
		}
	}
	return n
}

// isFileLike reports whether id looks like a path: it contains a path
// separator or ends in a source extension.
func isFileLike(id string) bool {
	if strings.ContainsRune(id, '/') || strings.ContainsRune(id, filepath.Separator) {
		return true
	}
	ext := filepath.Ext(id)
	return ext == ".ts" || ext == ".tsx" || ext == ".js" || ext == ".jsx"
}

// isMethodLike reports whether id contains a method-identifier token.
func isMethodLike(id string) bool {
	return strings.ContainsAny(id, ".#")
}

func isCrossLayer(id string) bool {
	lower := strings.ToLower(id)
	return strings.Contains(lower, "controller") || strings.Contains(lower, "infra")
}

// classifyNode applies the node-identifier classification helpers above.
func classifyNode(id string, entityByName map[string]model.DomainEntity) model.ImpactNodeKind {
	switch {
	case isFileLike(id):
		return model.ImpactFile
	case entityByName[id].Name != "":
		return model.ImpactEntity
	case isMethodLike(id):
		return model.ImpactMethod
	default:
		return model.ImpactMethod
	}
}
