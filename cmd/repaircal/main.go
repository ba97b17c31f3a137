package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"repaircal/internal/appointment"
	"repaircal/internal/backend"
	"repaircal/internal/capture"
	"repaircal/internal/config"
	appLog "repaircal/internal/log"
	"repaircal/internal/view"
	"repaircal/internal/web"
)

type flagConfig struct {
	configPath string
	envPath    string
	listen     string
	once       bool
	snapshot   string
	debug      bool
}

func main() {
	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	defer appLog.Sync()

	if err := run(flags); err != nil {
		appLog.Error("repaircal failed", err)
		appLog.Sync()
		os.Exit(1)
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/repaircal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.envPath, "env", ".env", "Optional dotenv file with REPAIRCAL_* overrides")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Build the board once, print it as JSON and exit")
	flag.StringVar(&cfg.snapshot, "snapshot", "", "Serve, capture /calendar as PNG to this path and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()
	return cfg
}

func run(flags flagConfig) error {
	if err := config.LoadEnv(flags.envPath); err != nil {
		return err
	}
	conf, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", flags.configPath, err)
	}
	conf.ApplyEnv()
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if !flags.debug {
		appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	}

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", conf.Timezone)
	}
	holidays, err := conf.Determiner()
	if err != nil {
		return err
	}

	appLog.Info("repaircal starting",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"api", conf.API.BaseURL,
		"holiday_years", holidays.Years(),
		"once", flags.once,
		"snapshot", flags.snapshot,
	)

	client := backend.NewClient(conf.API.BaseURL, conf.API.Timeout(), loc)
	now := func() time.Time { return time.Now().In(loc) }

	board := view.NewCalendar(client, holidays, now)
	history := view.NewHistory(client, now)
	analysis := view.NewAnalysis(client, now)
	editor := appointment.NewEditor(client, nil, loc)
	unmountBoard := editor.Views().Mount("calendar", board)
	defer unmountBoard()
	unmountHistory := editor.Views().Mount("history", history)
	defer unmountHistory()
	unmountAnalysis := editor.Views().Mount("analysis", analysis)
	defer unmountAnalysis()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flags.once {
		return printBoard(ctx, board)
	}

	srv := web.NewServer(conf, web.Deps{
		Repo:     client,
		Editor:   editor,
		Board:    board,
		History:  history,
		Analysis: analysis,
		Holidays: holidays,
		Location: loc,
		Now:      now,
	}, flags.debug)

	if flags.snapshot != "" {
		return snapshot(ctx, srv, conf, flags.snapshot)
	}

	// Initial load; the board is refreshed again on every page request.
	if n := editor.Views().Refresh(ctx); n > 0 {
		appLog.Info("initial load incomplete", "failed_views", n)
	}
	err = srv.Run(ctx)
	appLog.Info("repaircal exiting")
	return err
}

func printBoard(ctx context.Context, board *view.Calendar) error {
	if err := board.Refresh(ctx); err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(board.Snapshot().Grid)
}

func snapshot(ctx context.Context, srv *web.Server, conf *config.Config, out string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	base := "http://" + dialAddr(conf.Listen)
	if err := waitHealthy(ctx, base+"/health", 10*time.Second); err != nil {
		return err
	}

	opts := capture.Options{
		URL:        base + "/calendar",
		OutputPath: out,
		Width:      conf.Capture.Width,
		Height:     conf.Capture.Height,
		Timeout:    time.Duration(conf.Capture.TimeoutSeconds) * time.Second,
	}
	if conf.BasicAuth != nil {
		opts.Username, opts.Password = conf.BasicAuth.Username, conf.BasicAuth.Password
	}
	_, capErr := capture.Snapshot(ctx, opts)

	cancel()
	if err := <-errCh; err != nil {
		appLog.Error("server shutdown failed", err)
	}
	return capErr
}

// dialAddr turns a listen address such as ":8080" into one we can dial.
func dialAddr(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func waitHealthy(ctx context.Context, url string, within time.Duration) error {
	deadline := time.Now().Add(within)
	client := &http.Client{Timeout: time.Second}
	for time.Now().Before(deadline) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return errors.New("server did not become healthy in time")
}
