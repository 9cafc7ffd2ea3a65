package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rulesight/internal/pipeline"
)

var reachesCmd = &cobra.Command{
	Use:   "reaches [path] [from] [to]",
	Short: "Query whether one identifier can reach another through the dependency graph",
	Long: `Builds the declarative graph store over a project's relation set and
answers an ad hoc reachability question: can "from" reach "to" through any
chain of CALLS/USES/MODIFIES edges? Unlike analyze's fixed impact and
architectural checks, this is a free-form query against the same graph.`,
	Args: cobra.ExactArgs(3),
	RunE: runReaches,
}

func runReaches(cmd *cobra.Command, args []string) error {
	root := resolveWorkspace(args, 0)
	from, to := args[1], args[2]

	p := pipeline.New(cfg, logger)
	store, err := p.BuildGraph(root)
	if err != nil {
		return err
	}
	ok, err := store.Reaches(from, to)
	if err != nil {
		return fmt.Errorf("reaches: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%t\n", ok)
	return nil
}
