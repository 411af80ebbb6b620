package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/linanwx/nagopanel/bus"
	"github.com/linanwx/nagopanel/channel"
	"github.com/linanwx/nagopanel/config"
	"github.com/linanwx/nagopanel/logger"
	"github.com/linanwx/nagopanel/panel"
	"github.com/linanwx/nagopanel/web"
)

const (
	busBufferSize   = 256
	shutdownTimeout = 5 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the panel for a host",
	Long: `Run the panel: connect to the host, serve the browser shell and render
every response the host pushes.

Host transports:
  - stdio: newline-delimited JSON on stdin/stdout (default)
  - websocket: dial the host at a ws:// URL

Examples:
  nagopanel serve                               # host on stdin/stdout
  nagopanel serve --host-url ws://127.0.0.1:7000/panel
  nagopanel serve --addr 127.0.0.1:9000         # shell on another port`,
	RunE: runServe,
}

var (
	serveStdio   bool
	serveHostURL string
	serveAddr    string
)

func init() {
	serveCmd.Flags().BoolVar(&serveStdio, "stdio", false, "Talk to the host over stdin/stdout")
	serveCmd.Flags().StringVar(&serveHostURL, "host-url", "", "Dial the host at this websocket URL")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address of the browser shell")
	serveCmd.MarkFlagsMutuallyExclusive("stdio", "host-url")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyServeFlags(cmd, cfg); err != nil {
		return err
	}

	host, err := buildHostChannel(cfg.Host)
	if err != nil {
		return err
	}
	manager := channel.NewManager()
	manager.Register(host)

	b := bus.NewBus(busBufferSize)
	defer b.Close()

	highlighter := panel.NewChromaHighlighter(cfg.Render.HighlightStyle)
	server, err := web.NewServer(web.Config{
		Addr:           cfg.Web.Addr,
		Title:          cfg.Web.Title,
		OriginPatterns: cfg.Web.OriginPatterns,
		Transport:      cfg.Host.Transport,
	}, b, highlighter)
	if err != nil {
		return err
	}
	dispatcher := NewDispatcher(manager, b, highlighter)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(); err != nil {
		return err
	}
	if err := manager.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start host channel: %w", err)
	}

	logger.Info("nagopanel started", "transport", cfg.Host.Transport, "shell", "http://"+server.Addr())
	// stdout may be the host protocol; human output goes to stderr.
	fmt.Fprintf(cmd.ErrOrStderr(), "nagopanel shell at http://%s\n", server.Addr())

	dispatcher.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error stopping web shell", "err", err)
	}
	if err := manager.StopAll(); err != nil {
		logger.Error("error stopping channels", "err", err)
	}

	logger.Info("nagopanel stopped")
	return nil
}

// applyServeFlags lets command-line flags override the loaded config.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("stdio") && serveStdio {
		cfg.Host.Transport = config.TransportStdio
	}
	if url := strings.TrimSpace(serveHostURL); url != "" {
		cfg.Host.Transport = config.TransportWebSocket
		cfg.Host.URL = url
	}
	if addr := strings.TrimSpace(serveAddr); addr != "" {
		cfg.Web.Addr = addr
	}
	return cfg.Validate()
}

func buildHostChannel(h config.HostConfig) (channel.Channel, error) {
	switch h.Transport {
	case config.TransportStdio:
		if term.IsTerminal(int(os.Stdin.Fd())) {
			logger.Warn("stdio transport selected but stdin is a terminal; expecting JSON lines from a host")
		}
		return channel.NewStdioChannel(os.Stdin, os.Stdout), nil
	case config.TransportWebSocket:
		return channel.NewWebSocketChannel(h.URL, time.Duration(h.ReconnectSeconds)*time.Second), nil
	default:
		return nil, fmt.Errorf("unknown host transport %q", h.Transport)
	}
}
