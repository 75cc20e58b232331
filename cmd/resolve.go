package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/PuerkitoBio/goquery"

	"github.com/crossroads-ai-hack-2025/fact-it/internal/observer"
	"github.com/crossroads-ai-hack-2025/fact-it/internal/sampler"
)

var (
	resolveHTMLPath string
	resolveStatic   bool
	resolveExtract  bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <domain>",
	Short: "Resolve selectors for a domain",
	Long:  "Runs one resolution pass. With --html the page is sampled for dynamic discovery and, with --extract, its posts are extracted using the resolved selectors.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		domain := args[0]

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var sample string
		var doc *goquery.Document
		if resolveHTMLPath != "" {
			raw, err := os.ReadFile(resolveHTMLPath)
			if err != nil {
				return eris.Wrapf(err, "read %s", resolveHTMLPath)
			}
			doc, err = goquery.NewDocumentFromReader(strings.NewReader(string(raw)))
			if err != nil {
				return eris.Wrap(err, "parse html")
			}
			sample, err = env.Sampler.Sample(doc)
			if err != nil {
				if !eris.Is(err, sampler.ErrNoCandidates) {
					return err
				}
				zap.L().Warn("no post-like structure in page, skipping dynamic discovery")
			}
		}

		res, err := env.Pipeline.Resolve(ctx, domain, sample, resolveStatic)
		if err != nil {
			return err
		}

		out := map[string]any{"resolution": res}
		if resolveExtract && doc != nil && res.Usable() {
			out["posts"] = observer.ExtractPosts(doc, res.Selectors)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveHTMLPath, "html", "", "path to a saved HTML page to sample")
	resolveCmd.Flags().BoolVar(&resolveStatic, "static", false, "consult only the static registry")
	resolveCmd.Flags().BoolVar(&resolveExtract, "extract", false, "extract posts from --html using the resolved selectors")
	rootCmd.AddCommand(resolveCmd)
}
