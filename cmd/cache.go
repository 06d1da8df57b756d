package cmd

import (
	"fmt"
	"log"

	"EchoFM/config"
	"EchoFM/core/artifact"
	"EchoFM/core/downloader"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the local audio cache",
	Long:  `Inspect and maintain the on-disk audio cache without starting the server.`,
}

func openArtifacts(cfg *config.Config) *artifact.Manager {
	dl := downloader.NewYtDlp(cfg.YtDlpPath, cfg.FFmpegPath, cfg.MP3Bitrate)
	m, err := artifact.NewManager(artifact.Config{
		Dir:                  cfg.CacheDir,
		SettingsPath:         cfg.CacheDir + "_settings.json",
		CapacityBytes:        cfg.CacheCapacityBytes,
		FetchTimeout:         cfg.FetchTimeout,
		EvictionInterval:     cfg.EvictionInterval,
		DefaultRetentionDays: cfg.CacheRetentionDays,
		Fetcher:              downloader.NewFetcher(dl),
	})
	if err != nil {
		log.Fatalf("Failed to open cache: %v", err)
	}
	return m
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		m := openArtifacts(cfg)
		defer m.Close()

		stats := m.GetStats()
		settings := m.GetSettings()
		fmt.Printf("Cache directory: %s\n", cfg.CacheDir)
		fmt.Printf("Files:           %d\n", stats.FileCount)
		fmt.Printf("Total size:      %s\n", humanize.Bytes(uint64(stats.TotalSize)))
		fmt.Printf("Enabled:         %t\n", settings.Enabled)
		fmt.Printf("Retention:       %d days\n", settings.RetentionDays)
	},
}

var cacheCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove cached files past their retention window",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		m := openArtifacts(cfg)
		defer m.Close()

		result := m.Cleanup()
		fmt.Printf("Removed %d files (%s freed), %d kept.\n",
			result.Deleted, humanize.Bytes(uint64(result.FreedBytes)), result.Kept)
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached file",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		m := openArtifacts(cfg)
		defer m.Close()

		deleted, freed := m.Clear()
		fmt.Printf("Removed %d files (%s freed).\n", deleted, humanize.Bytes(uint64(freed)))
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheCleanupCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
