package rules

import (
	"testing"

	"rulesight/internal/config"
)

func TestComputeConfidence_AdditiveSignals(t *testing.T) {
	w := config.ConfidenceWeights{
		InsideEntity:      0.25,
		MutatesState:      0.25,
		ExplicitThrow:     0.15,
		PublicMethod:      0.10,
		UsesEnum:          0.10,
		NonControllerPath: 0.10,
		StrongPattern:     0.05,
	}

	// A state-transition method that mutates state inside an entity, with a
	// public signature, a non-controller path, and a strong structural pattern,
	// should clear the threshold typically used to accept a rule automatically.
	got := computeConfidence(w, confidenceContext{
		insideEntity:  true,
		mutatesState:  true,
		methodPublic:  true,
		nonController: true,
		strongPattern: true,
	})
	if got < 0.65 {
		t.Errorf("state-transition-shaped confidence = %.2f, want >= 0.65", got)
	}

	// An invariant guard that also throws should score higher than the same
	// context without the throw.
	withThrow := computeConfidence(w, confidenceContext{
		insideEntity:  true,
		mutatesState:  true,
		hasThrow:      true,
		methodPublic:  true,
		nonController: true,
		strongPattern: true,
	})
	if withThrow <= got {
		t.Errorf("throw bonus did not increase confidence: %.2f -> %.2f", got, withThrow)
	}
}

func TestComputeConfidence_CapsAtSixtyOutsideEntity(t *testing.T) {
	w := defaultTestWeights()
	got := computeConfidence(w, confidenceContext{
		insideEntity:  false,
		methodPublic:  true,
		nonController: true,
		strongPattern: true,
	})
	if got > 0.60 {
		t.Errorf("confidence outside an entity = %.2f, want <= 0.60", got)
	}
}

func TestComputeConfidence_ControllerPenalty(t *testing.T) {
	w := defaultTestWeights()
	base := computeConfidence(w, confidenceContext{
		insideEntity: true, mutatesState: true, methodPublic: true, strongPattern: true,
	})
	penalized := computeConfidence(w, confidenceContext{
		insideEntity: true, mutatesState: true, methodPublic: true, strongPattern: true, isController: true,
	})
	if penalized >= base {
		t.Errorf("controller penalty did not reduce confidence: base=%.2f penalized=%.2f", base, penalized)
	}
	if base-penalized < 0.19 {
		t.Errorf("controller penalty too small: delta=%.2f, want ~0.20", base-penalized)
	}
}

func TestComputeConfidence_CalculationCappedUnlessMutating(t *testing.T) {
	w := defaultTestWeights()
	capped := computeConfidence(w, confidenceContext{
		insideEntity:  true,
		methodPublic:  true,
		nonController: true,
		strongPattern: true,
		calculation:   true,
	})
	if capped > 0.70 {
		t.Errorf("non-mutating calculation confidence = %.2f, want <= 0.70", capped)
	}

	uncapped := computeConfidence(w, confidenceContext{
		insideEntity:  true,
		mutatesState:  true,
		methodPublic:  true,
		nonController: true,
		strongPattern: true,
		calculation:   true,
	})
	if uncapped <= capped {
		t.Errorf("mutating calculation should exceed the non-mutating cap: uncapped=%.2f capped=%.2f", uncapped, capped)
	}
}

func TestComputeConfidence_ClampedAndRounded(t *testing.T) {
	w := config.ConfidenceWeights{
		InsideEntity: 1, MutatesState: 1, ExplicitThrow: 1, PublicMethod: 1,
		UsesEnum: 1, NonControllerPath: 1, StrongPattern: 1,
	}
	got := computeConfidence(w, confidenceContext{
		insideEntity: true, mutatesState: true, hasThrow: true, methodPublic: true,
		usesEnum: true, nonController: true, strongPattern: true,
	})
	if got != 1.0 {
		t.Errorf("confidence = %v, want clamped to 1.0", got)
	}
}

func defaultTestWeights() config.ConfidenceWeights {
	return config.ConfidenceWeights{
		InsideEntity:      0.25,
		MutatesState:      0.25,
		ExplicitThrow:     0.15,
		PublicMethod:      0.10,
		UsesEnum:          0.10,
		NonControllerPath: 0.10,
		StrongPattern:     0.05,
	}
}
