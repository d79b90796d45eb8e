package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show corpus and cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()

			docs, err := a.store.ListDocuments(ctx)
			if err != nil {
				return err
			}
			chunks, err := a.store.Count(ctx)
			if err != nil {
				return err
			}
			textCount, err := a.text.Count()
			if err != nil {
				return err
			}

			tier := a.engine.Tier(ctx)
			cacheStats := a.engine.CacheStats()

			if jsonOutput {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"documents":   len(docs),
					"chunks":      chunks,
					"text_chunks": textCount,
					"tier":        tier,
					"cache": map[string]any{
						"hits":     cacheStats.Hits,
						"misses":   cacheStats.Misses,
						"sets":     cacheStats.Sets,
						"errors":   cacheStats.Errors,
						"entries":  cacheStats.Entries,
						"hit_rate": cacheStats.HitRate(),
					},
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Documents:    %d\n", len(docs))
			fmt.Fprintf(out, "Chunks:       %d (text index: %d)\n", chunks, textCount)
			fmt.Fprintf(out, "Search tier:  %s\n", tier)
			fmt.Fprintf(out, "Cache:        %s\n", cacheStats)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")

	return cmd
}
