package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/costmap/internal/choropleth"
	"github.com/sells-group/costmap/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the map API",
	Long:  "Loads the dataset and boundary once and serves scenes, legends and interactive map sessions over HTTP.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		in, err := loadInputs(ctx, cfg)
		if err != nil {
			return err
		}
		defer in.Close()

		opts := mapOptions(cfg)
		engine := choropleth.NewEngine(in.Dataset, in.Features, opts)

		scfg := server.ConfigFrom(cfg.Server, cfg.Map)
		if servePort != 0 {
			scfg.Port = servePort
		}
		srv := server.New(scfg, engine, opts)

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
