package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crossroads-ai-hack-2025/fact-it/internal/registry"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the selector cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		stats, err := env.Pipeline.CacheStats(cmd.Context())
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached selector set",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Pipeline.ClearCache(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("cache cleared")
		return nil
	},
}

var platformsCmd = &cobra.Command{
	Use:   "platforms",
	Short: "List domains with static fallback selectors",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := registry.New()
		if cfg.Registry.OverlayPath != "" {
			if err := reg.LoadOverlay(cfg.Registry.OverlayPath); err != nil {
				return err
			}
		}
		for _, d := range reg.Domains() {
			fmt.Println(d)
		}
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(platformsCmd)
}
