package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"gallerydl/pkg/config"
	"gallerydl/pkg/gallerylog"
	"gallerydl/pkg/logger"
)

// logCmd groups operations on the download log file.
var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Inspect or maintain the download log",
}

var logShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the log's records, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		dlog, err := openLog()
		if err != nil {
			return err
		}
		records, err := dlog.LoadAll()
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("log is empty")
			return nil
		}
		for _, r := range records {
			id := fmt.Sprintf("#%09d", r.ID)
			if r.Placeholder() {
				id += " (unconfirmed)"
			}
			prompt := strings.Join(strings.Fields(r.Prompt), " ")
			if len(prompt) > 70 {
				prompt = prompt[:70] + "..."
			}
			fmt.Printf("%s  %-22s  %s\n", id, r.TimestampText, prompt)
		}
		fmt.Printf("\n%d records\n", len(records))
		return nil
	},
}

var logRenumberCmd = &cobra.Command{
	Use:   "renumber",
	Short: "Rewrite all ids to a dense sequence, oldest record first",
	Long: `Assign ids 1..N across the whole log, oldest record getting 1.
Placeholder ids left by timed-out download checks are finalized in the
process.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dlog, err := openLog()
		if err != nil {
			return err
		}
		n, err := dlog.Renumber()
		if err != nil {
			return err
		}
		fmt.Printf("renumbered %d records\n", n)
		return nil
	},
}

// openLog builds just enough configuration to locate the log file.
// Full validation is not wanted here; inspecting the log must work
// without a gallery URL configured.
func openLog() (*gallerylog.Log, error) {
	cfg := config.DefaultConfig()
	if err := cfg.LoadFromFile(configFile); err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}
	return gallerylog.Open(filepath.Join(cfg.Log.LogsFolder, "downloads.log"), cfg.Log.StartID, logger.GetLogger())
}

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.AddCommand(logShowCmd)
	logCmd.AddCommand(logRenumberCmd)
}
