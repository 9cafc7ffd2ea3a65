package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"rulesight/internal/model"
	"rulesight/internal/pipeline"
)

var outputFormat string

var analyzeCmd = &cobra.Command{
	Use:   "analyze [path]",
	Short: "Analyze a project and print its technical report",
	Long: `Runs the full pipeline - parsing, semantic enrichment, domain
modeling, business-rule extraction, a seeded impact simulation, and
architectural analysis - and prints the resulting TechnicalReport.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&outputFormat, "format", "text", "Output format: text or json")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	root := resolveWorkspace(args, 0)

	p := pipeline.New(cfg, logger)
	result, err := p.Analyze(root)
	if err != nil {
		return err
	}

	for _, d := range result.Diagnostics {
		fmt.Fprintf(cmd.ErrOrStderr(), "diagnostic: %s: %s\n", d.FilePath, d.Message)
	}

	switch outputFormat {
	case "json":
		return printJSON(cmd, result.Report)
	case "text":
		printText(cmd, result.Report)
		return nil
	default:
		return fmt.Errorf("unknown format %q, want \"text\" or \"json\"", outputFormat)
	}
}

func printJSON(cmd *cobra.Command, rep model.TechnicalReport) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func printText(cmd *cobra.Command, rep model.TechnicalReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Entities: %d\n", len(rep.Entities))
	for _, e := range rep.Entities {
		fmt.Fprintf(out, "  %s (%s) state=%v\n", e.Name, e.FilePath, e.StateFields)
	}
	fmt.Fprintf(out, "Relations: %d\n", len(rep.Relations))
	fmt.Fprintf(out, "Rules: %d\n", len(rep.Rules))
	for _, r := range rep.Rules {
		fmt.Fprintf(out, "  [%s] %s.%s confidence=%.2f (%s)\n", r.Type, r.Entity, r.Method, r.Confidence, r.ID)
	}
	if rep.Impact != nil {
		fmt.Fprintf(out, "Seeded impact (%s): risk=%.2f impacted=%d\n", rep.Impact.RootRule, rep.Impact.GlobalRisk, len(rep.Impact.Impacted))
	}
	fmt.Fprintf(out, "Architectural violations: %d\n", len(rep.ArchitecturalViolations))
	for _, v := range rep.ArchitecturalViolations {
		fmt.Fprintf(out, "  [%s] %s\n", v.Type, v.Message)
	}
	fmt.Fprintf(out, "Cross-layer edges: %d\n", len(rep.CrossLayerEdges))
	for _, e := range rep.CrossLayerEdges {
		fmt.Fprintf(out, "  %s -> %s\n", e.From, e.To)
	}
}
