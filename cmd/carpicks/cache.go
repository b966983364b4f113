package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-cars/render"
)

func newCacheCmd(a *app) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or prune the result cache",
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show result cache entry counts and ages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			results := openCache(cmd.Context(), a.cfg, nil)
			defer results.Close()

			st := results.Stats()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "File:     %s\n", a.cfg.CacheFile)
			fmt.Fprintf(out, "TTL:      %s\n", a.cfg.CacheTTL)
			fmt.Fprintf(out, "Entries:  %d (%d stale)\n", st.Entries, st.Stale)
			fmt.Fprintf(out, "Oldest:   %s\n", render.CacheAge(st.Oldest))
			fmt.Fprintf(out, "Newest:   %s\n", render.CacheAge(st.Newest))
			return nil
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Remove stale entries from the result cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			results := openCache(cmd.Context(), a.cfg, nil)
			defer results.Close()

			removed, err := results.Prune(cmd.Context())
			if err != nil {
				return fmt.Errorf("prune cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d stale entr%s\n", removed, plural(removed, "y", "ies"))
			return nil
		},
	})

	return cacheCmd
}
