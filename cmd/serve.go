package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/insightgenie/internal/server"
	"github.com/KaramelBytes/insightgenie/internal/session"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the browser UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		addr := serveAddr
		ttl := session.DefaultTTL
		maxMB := 0
		if cfg != nil {
			if addr == "" {
				addr = cfg.ListenAddr
			}
			if cfg.SessionTTLMin > 0 {
				ttl = time.Duration(cfg.SessionTTLMin) * time.Minute
			}
			maxMB = cfg.MaxUploadMB
		}
		if addr == "" {
			addr = "127.0.0.1:8501"
		}

		sessions := session.NewManager(ttl, histogramBins())
		go sessions.Run(ctx, time.Minute)

		probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		a := connectAssistant(probeCtx, false)
		cancel()

		srv, err := server.New(sessions, a, server.Config{MaxUploadMB: maxMB})
		if err != nil {
			return err
		}
		cmd.Printf("✓ Insight Genie running at http://%s\n", addr)
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: listen_addr from config)")
}
