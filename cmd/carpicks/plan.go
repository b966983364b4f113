package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-cars/config"
	"github.com/aluiziolira/go-scrape-cars/models"
	"github.com/aluiziolira/go-scrape-cars/pipeline"
)

func newPlanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Print the sub-queries a search would run, without fetching",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			criteria, err := a.buildCriteria(cmd)
			if err != nil {
				return err
			}
			return runPlan(cmd, a.cfg, criteria, cmd.OutOrStdout())
		},
	}
}

func runPlan(cmd *cobra.Command, cfg *config.Config, criteria models.SearchCriteria, out io.Writer) error {
	results := openCache(cmd.Context(), cfg, nil)
	defer results.Close()

	queries := pipeline.NewPlanner(cfg, nil, results, nil).Plan(criteria)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VEHICLE\tCACHE\tKEY")
	for _, q := range queries {
		status := "fetch"
		if listings, ok := results.Get(q.Key()); ok && !cfg.Refresh {
			status = fmt.Sprintf("cached (%d)", len(listings))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", q, status, q.Key())
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d sub-quer%s\n", len(queries), plural(len(queries), "y", "ies"))
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
