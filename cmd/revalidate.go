package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/crossroads-ai-hack-2025/fact-it/internal/fetcher"
	"github.com/crossroads-ai-hack-2025/fact-it/internal/model"
	"github.com/crossroads-ai-hack-2025/fact-it/internal/validator"
)

var revalidateConcurrency int

var revalidateCmd = &cobra.Command{
	Use:   "revalidate <domain> [domain...]",
	Short: "Re-check cached selectors against the live pages",
	Long:  "Fetches each domain's feed page and validates its cached selector set. Passing entries get refreshed health metrics; failing ones are evicted so the next resolution rediscovers.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		pages := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{})

		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(revalidateConcurrency)

		for _, d := range args {
			g.Go(func() error {
				entry, err := env.Store.Get(ctx, d)
				if err != nil {
					return err
				}
				if entry == nil {
					zap.L().Info("no cache entry, skipping", zap.String("domain", d))
					return nil
				}

				doc, err := pages.FetchDocument(ctx, "https://"+entry.Domain+"/")
				if err != nil {
					// An unreachable page says nothing about selector
					// health; leave the entry alone.
					zap.L().Warn("fetch failed, skipping", zap.String("domain", d), zap.Error(err))
					return nil
				}

				result := validator.Validate(doc, entry.Selectors)
				if err := env.Pipeline.ReportValidation(ctx, model.ValidationReport{
					Domain:             entry.Domain,
					Valid:              result.Valid,
					PostsFound:         result.PostsFound,
					TextExtractionRate: result.TextExtractionRate,
				}); err != nil {
					return err
				}

				verdict := "ok"
				if !result.Valid {
					verdict = "evicted"
				}
				fmt.Printf("%s: %s (posts=%d rate=%.2f)\n", entry.Domain, verdict, result.PostsFound, result.TextExtractionRate)
				return nil
			})
		}

		return g.Wait()
	},
}

func init() {
	revalidateCmd.Flags().IntVar(&revalidateConcurrency, "concurrency", 4, "max domains revalidated in parallel")
	rootCmd.AddCommand(revalidateCmd)
}
