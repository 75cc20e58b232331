package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crossroads-ai-hack-2025/fact-it/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "fact-it",
	Short: "Selector discovery and caching for the fact-checking extension",
	Long:  "Resolves CSS selectors for social-media post extraction through a cache, AI-assisted discovery, and a static registry, and keeps the cache healthy from live validation feedback.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
