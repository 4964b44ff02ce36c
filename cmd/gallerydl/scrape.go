package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gallerydl/pkg/browser"
	"gallerydl/pkg/config"
	"gallerydl/pkg/gallerylog"
	"gallerydl/pkg/logger"
	"gallerydl/pkg/ratelimit"
	"gallerydl/pkg/session"
	"gallerydl/pkg/storage"
)

var (
	// Scrape command flags
	dupMode      string
	maxDownloads int
	startFrom    string
	downloadsDir string
	logsDir      string
	headless     bool
	remoteURL    string
	profileDir   string
	execPath     string
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape [gallery-url]",
	Short: "Crawl the gallery and download items not yet in the log",
	Long: `Open the gallery in a browser, walk the feed newest-first, and
download every item whose fingerprint is not already in the download
log. The log is the checkpoint: re-running the command picks up where
the previous run left off.

Duplicate modes:
  finish  stop the session at the first already-downloaded item
          (assumes the feed only ever grows at the top)
  skip    leave the detail view, rescan the overview against the log,
          and resume at the first item not yet downloaded`,
	Example: `  # Crawl with the URL from the config file
  gallerydl scrape

  # Crawl a specific gallery, stopping at known content
  gallerydl scrape https://gallery.example/library --mode finish

  # Resync against gaps in the log
  gallerydl scrape --mode skip

  # Limit the session and start below a given timestamp
  gallerydl scrape --max-downloads 50 --start-from "Aug 12, 2026 3:14 PM"

  # Attach to an already running browser
  gallerydl scrape --remote-url ws://127.0.0.1:9222`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringVar(&dupMode, "mode", "", "duplicate mode: finish or skip")
	scrapeCmd.Flags().IntVar(&maxDownloads, "max-downloads", 0, "stop after this many downloads (0 = no limit)")
	scrapeCmd.Flags().StringVar(&startFrom, "start-from", "", "skip items newer than this timestamp")
	scrapeCmd.Flags().StringVarP(&downloadsDir, "downloads", "o", "", "downloads folder")
	scrapeCmd.Flags().StringVar(&logsDir, "logs", "", "folder holding the download log")
	scrapeCmd.Flags().BoolVar(&headless, "headless", true, "run the browser headless")
	scrapeCmd.Flags().StringVar(&remoteURL, "remote-url", "", "attach to a running browser instead of launching one")
	scrapeCmd.Flags().StringVar(&profileDir, "profile-dir", "", "browser profile directory")
	scrapeCmd.Flags().StringVar(&execPath, "exec-path", "", "browser binary path")
}

func runScrape(cmd *cobra.Command, args []string) error {
	flags := make(map[string]interface{})
	if len(args) == 1 {
		flags["url"] = args[0]
	}
	if dupMode != "" {
		flags["mode"] = dupMode
	}
	if maxDownloads > 0 {
		flags["max-downloads"] = maxDownloads
	}
	if startFrom != "" {
		flags["start-from"] = startFrom
	}
	if downloadsDir != "" {
		flags["downloads"] = downloadsDir
	}
	if logsDir != "" {
		flags["logs"] = logsDir
	}
	if cmd.Flags().Changed("headless") {
		flags["headless"] = headless
	}
	if remoteURL != "" {
		flags["remote-url"] = remoteURL
	}
	if profileDir != "" {
		flags["profile-dir"] = profileDir
	}
	if execPath != "" {
		flags["exec-path"] = execPath
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("gallerydl starting")

	dlog, err := gallerylog.Open(filepath.Join(cfg.Log.LogsFolder, "downloads.log"), cfg.Log.StartID, log)
	if err != nil {
		return fmt.Errorf("open download log: %w", err)
	}

	watcher, err := storage.NewWatcher(cfg.Download.DownloadsFolder, cfg.Download.CompletionPollEvery, log)
	if err != nil {
		return fmt.Errorf("prepare downloads folder: %w", err)
	}

	driver, err := browser.NewRodDriver(&cfg.Browser, watcher.Dir(), log)
	if err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer driver.Close()

	var limiter ratelimit.Limiter
	if cfg.Pacing.OperationsPerMinute > 0 {
		limiter = ratelimit.NewTokenBucket(cfg.Pacing.OperationsPerMinute, time.Minute)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl := session.New(cfg, driver, dlog, watcher, limiter, log)
	res := ctrl.Run(ctx)

	log.WithFields(map[string]interface{}{
		"success":    res.Success,
		"reason":     res.Reason,
		"downloads":  res.DownloadsCompleted,
		"thumbnails": res.ThumbnailsProcessed,
		"scrolls":    res.ScrollsPerformed,
		"errors":     len(res.Errors),
		"duration":   res.EndTime.Sub(res.StartTime).Round(time.Second).String(),
	}).Info("session summary")

	if !res.Success {
		return fmt.Errorf("session failed: %s", res.Reason)
	}
	return nil
}
