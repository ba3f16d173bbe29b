package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"provmark/internal/engine"
)

func init() {
	var watchPaths []string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the provenance-marking daemon",
		Long: `Starts the daemon: listens for editor events on the IPC socket,
watches configured paths for external file changes, and annotates
AI-generated insertions as they are detected.`,
		Run: func(cmd *cobra.Command, args []string) {
			loader, cfg, err := loadConfig()
			if err != nil {
				exitErr("load config", err)
			}
			if len(watchPaths) > 0 {
				cfg.Watch.Paths = watchPaths
			}

			log, err := newLogger(cfg)
			if err != nil {
				exitErr("init logging", err)
			}

			eng, err := engine.New(cfg, log)
			if err != nil {
				exitErr("init engine", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(),
				syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			loader.OnChange(eng.ApplyConfig)
			if err := loader.Watch(ctx); err != nil {
				log.Warn("config hot reload unavailable", "error", err)
			}
			defer loader.Stop()

			log.Info("provmarkd starting",
				"socket", cfg.IPC.SocketPath,
				"watch_paths", cfg.Watch.Paths)

			if err := eng.Run(ctx); err != nil {
				exitErr("run", err)
			}
		},
	}

	cmd.Flags().StringSliceVarP(&watchPaths, "path", "p", nil,
		"Paths to watch for external file changes (overrides config)")

	RootCmd.AddCommand(cmd)
}
