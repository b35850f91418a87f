package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taskdeck/taskdeck/internal/hub"
	"github.com/taskdeck/taskdeck/internal/logging"
	"github.com/taskdeck/taskdeck/internal/task"
	"github.com/taskdeck/taskdeck/internal/ui"
	"github.com/taskdeck/taskdeck/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard hub server",
	Long: `Start the WebSocket hub server for the task dashboard.

On startup the tasks directory is fully imported into the cache, then watched
for changes. Connected clients receive task updates and statistics; each
session's selected task follows its URL's taskId query parameter.

Example usage:
  taskdeck serve                 # Listen on the configured port (default 8080)
  taskdeck serve --port 9000     # Listen on a custom port

Connect with a WebSocket client:
  ws://localhost:8080/ws`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("port") {
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}

		store, err := task.Open(cfg.DB.Path)
		if err != nil {
			return fmt.Errorf("failed to open task cache: %w", err)
		}
		defer store.Close()

		if err := store.InitSchema(); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}

		importer := watch.NewImporter(store, logging.New(cfg, "import"))
		stats, err := importer.FullImport(cfg.Tasks.Dir)
		if err != nil {
			return fmt.Errorf("failed to import tasks: %w", err)
		}
		fmt.Printf("%s Imported %d tasks (%d failed)\n",
			ui.RenderPass("✓"), stats.Imported, stats.Failed)

		server := hub.NewServer(&hub.Config{
			Port:   cfg.Server.Port,
			Tasks:  store,
			Logger: logging.New(cfg, "hub"),
		})
		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to start hub server: %w", err)
		}

		watcher, err := watch.NewWatcher()
		if err != nil {
			_ = server.Stop()
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		if err := os.MkdirAll(cfg.Tasks.Dir, 0755); err != nil {
			_ = server.Stop()
			return fmt.Errorf("failed to create tasks directory: %w", err)
		}
		if err := watcher.Start(cfg.Tasks.Dir); err != nil {
			_ = server.Stop()
			return fmt.Errorf("failed to start watcher: %w", err)
		}

		watchLogger := logging.New(cfg, "watch")
		go func() {
			for {
				select {
				case ev, ok := <-watcher.Events():
					if !ok {
						return
					}
					broadcastEvent(server, importer, ev, watchLogger)
				case err, ok := <-watcher.Errors():
					if !ok {
						return
					}
					watchLogger.Printf("Watcher error: %v", err)
				}
			}
		}()

		fmt.Printf("%s Hub server started on http://localhost:%d\n",
			ui.RenderAccent("▲"), cfg.Server.Port)
		fmt.Printf("   WebSocket endpoint: ws://localhost:%d/ws\n", cfg.Server.Port)
		fmt.Printf("   Watching: %s\n", cfg.Tasks.Dir)
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		<-ctx.Done()

		fmt.Println("\nShutting down...")
		if err := watcher.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error stopping watcher: %v\n", err)
		}
		if err := server.Stop(); err != nil {
			return fmt.Errorf("error during shutdown: %w", err)
		}

		fmt.Println("Hub server stopped")
		return nil
	},
}

// broadcastEvent applies one watcher event to the cache and tells every
// session about it.
func broadcastEvent(server *hub.Server, importer *watch.Importer, ev watch.Event, logger *log.Logger) {
	switch ev.Op {
	case watch.OpCreate, watch.OpModify:
		t, err := importer.ImportFile(ev.Path)
		if err != nil {
			logger.Printf("Failed to import %s: %v", ev.Path, err)
			return
		}
		action := "updated"
		if ev.Op == watch.OpCreate {
			action = "created"
		}
		server.BroadcastTaskUpdate(hub.TaskUpdateData{
			TaskID:   t.ID,
			Action:   action,
			Status:   t.Status,
			Title:    t.Title,
			Priority: t.Priority,
		})

	case watch.OpDelete:
		id, err := importer.Remove(ev.Path)
		if err != nil {
			logger.Printf("Failed to remove %s: %v", ev.Path, err)
			return
		}
		server.BroadcastTaskUpdate(hub.TaskUpdateData{
			TaskID: id,
			Action: "deleted",
		})
	}
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	rootCmd.AddCommand(serveCmd)
}
