package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/askdocs/internal/answer"
	askerrors "github.com/Aman-CERP/askdocs/internal/errors"
	"github.com/Aman-CERP/askdocs/internal/retrieval"
	"github.com/Aman-CERP/askdocs/internal/store"
)

func newQueryCmd() *cobra.Command {
	var (
		topK       int
		threshold  float64
		jsonOutput bool
		showChunks bool
	)

	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Ask a question against the synced documentation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")

			if topK < 0 {
				return askerrors.ValidationError(fmt.Sprintf("top-k must be non-negative, got %d", topK), nil)
			}
			if threshold > 1 {
				return askerrors.ValidationError(fmt.Sprintf("threshold must be at most 1, got %g", threshold), nil)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			start := time.Now()
			results, err := a.engine.Retrieve(cmd.Context(), question, retrieval.Options{
				TopK:      topK,
				Threshold: threshold,
			})
			if err != nil {
				return err
			}

			gen := answer.NewExtractive(3)
			ans, err := gen.Generate(cmd.Context(), question, results)
			if err != nil {
				return err
			}

			// Best-effort query log; a failed insert never fails the query
			_ = a.store.LogQuery(cmd.Context(), &store.QueryLog{
				Query:    question,
				Answer:   ans.Text,
				TopScore: ans.TopScore,
			})

			if jsonOutput {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"answer":      ans.Text,
					"sources":     ans.Sources,
					"top_score":   ans.TopScore,
					"results":     results,
					"duration_ms": time.Since(start).Milliseconds(),
				})
			}

			fmt.Fprintln(cmd.OutOrStdout(), answer.Format(ans))

			if showChunks {
				fmt.Fprintln(cmd.OutOrStdout())
				for i, r := range results {
					fmt.Fprintf(cmd.OutOrStdout(), "[%d] %.3f %s (%s)\n%s\n\n",
						i+1, r.Score, r.Title, r.Source, r.Text)
				}
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of results to retrieve (default from config)")
	cmd.Flags().Float64Var(&threshold, "threshold", -1, "Similarity threshold 0-1 (default from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	cmd.Flags().BoolVar(&showChunks, "show-chunks", false, "Print the retrieved chunks")

	return cmd
}
