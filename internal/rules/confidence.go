package rules

import (
	"math"

	"rulesight/internal/config"
)

// confidenceContext is the (rule, context) pair confidence is computed as a
// pure function of — kept separate from BusinessRule so tests can pin
// expected values by constructing a context directly, without parsing
// source.
type confidenceContext struct {
	insideEntity  bool
	mutatesState  bool
	hasThrow      bool
	methodPublic  bool
	usesEnum      bool
	nonController bool
	strongPattern bool
	isController  bool
	calculation   bool
}

// computeConfidence applies the additive signal table and its caps/
// penalties, in order: accumulate, then cap/penalize, then clamp and round
// to two decimals.
func computeConfidence(w config.ConfidenceWeights, ctx confidenceContext) float64 {
	c := 0.0
	if ctx.insideEntity {
		c += w.InsideEntity
	}
	if ctx.mutatesState {
		c += w.MutatesState
	}
	if ctx.hasThrow {
		c += w.ExplicitThrow
	}
	if ctx.methodPublic {
		c += w.PublicMethod
	}
	if ctx.usesEnum {
		c += w.UsesEnum
	}
	if ctx.nonController {
		c += w.NonControllerPath
	}
	if ctx.strongPattern {
		c += w.StrongPattern
	}

	if !ctx.insideEntity {
		c = math.Min(c, 0.60)
	}
	if ctx.isController {
		c -= 0.20
	}
	if ctx.calculation && !ctx.mutatesState && !ctx.insideConditionalCalc() {
		c = math.Min(c, 0.70)
	}

	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return math.Round(c*100) / 100
}

// insideConditionalCalc reports whether a CALCULATION rule's expression
// sits inside a conditional branch. The engine does not currently track
// conditional containment at binary-expression granularity (only at
// assignment granularity for entity qualification), so this conservatively
// returns false, matching the cap unless a future pass threads that signal
// through.
func (c confidenceContext) insideConditionalCalc() bool { return false }
