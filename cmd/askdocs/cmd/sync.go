package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/askdocs/internal/chunk"
	"github.com/Aman-CERP/askdocs/internal/confluence"
	"github.com/Aman-CERP/askdocs/internal/syncer"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync the configured Confluence space into the local corpus",
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

			client, err := confluence.NewClient(confluence.Config{
				BaseURL:  cfg.Confluence.BaseURL,
				Username: cfg.Confluence.Username,
				APIToken: cfg.Confluence.APIToken,
				SpaceKey: cfg.Confluence.SpaceKey,
				Timeout:  cfg.Confluence.RequestTimeout,
				PageSize: cfg.Confluence.PageSize,
			})
			if err != nil {
				return err
			}

			splitter := chunk.NewSplitter(cfg.Chunking.Size, cfg.Chunking.Overlap)
			s := syncer.New(client, a.store, a.text, a.embedder, splitter, a.engine, cfg.Database.Path)

			fmt.Fprintf(cmd.OutOrStdout(), "Syncing space %s from %s...\n",
				cfg.Confluence.SpaceKey, cfg.Confluence.BaseURL)

			stats, err := s.Sync(cmd.Context())
			if err != nil {
				return err
			}

			// Warm the vector index so the first query is fast
			if stats.PagesSynced > 0 || stats.PagesDeleted > 0 {
				if err := a.executor.Rebuild(cmd.Context()); err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Warning: index warm-up failed: %v\n", err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"Done in %s: %d pages (%d synced, %d skipped, %d deleted), %d chunks indexed.\n",
				stats.Duration.Round(10*time.Millisecond), stats.PagesTotal, stats.PagesSynced,
				stats.PagesSkipped, stats.PagesDeleted, stats.ChunksTotal)
			return nil
		},
	}

	return cmd
}
