package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rulesight/internal/pipeline"
)

var impactCmd = &cobra.Command{
	Use:   "impact [path] [ruleId]",
	Short: "Simulate the blast radius of changing a single business rule",
	Args:  cobra.ExactArgs(2),
	RunE:  runImpact,
}

func runImpact(cmd *cobra.Command, args []string) error {
	root := resolveWorkspace(args, 0)
	ruleID := args[1]

	p := pipeline.New(cfg, logger)
	result, err := p.SimulateRuleImpact(root, ruleID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Rule: %s\n", result.RootRule)
	fmt.Fprintf(out, "Global risk: %.2f\n", result.GlobalRisk)
	fmt.Fprintf(out, "Fan-out: %d  Call depth: %d  Affected files: %d  Affected entities: %d  Cross-layer: %d\n",
		result.Explanation.FanOut, result.Explanation.CallDepth,
		result.Explanation.AffectedFiles, result.Explanation.AffectedEntities, result.Explanation.CrossLayerViolations)
	fmt.Fprintln(out, "Impacted nodes:")
	for _, n := range result.Impacted {
		fmt.Fprintf(out, "  [%s] %s\n", n.Kind, n.ID)
	}
	return nil
}
