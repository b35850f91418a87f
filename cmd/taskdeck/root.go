package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskdeck/taskdeck/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "taskdeck",
	Short: "Task dashboard server with URL-synchronized selection",
	Long: `Taskdeck serves a real-time task dashboard over WebSocket.

Tasks live as tasks/{id}.json files, imported into an embedded SQLite cache.
Connected clients report URL changes; the server keeps each session's selected
task in sync with the URL's taskId query parameter and pushes task updates to
every session.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"Config file (default: taskdeck.yaml in the working directory)")
}
