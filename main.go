// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/phsym/console-slog"
	"github.com/spf13/pflag"

	"github.com/ffutop/syringe-pump/internal/config"
	"github.com/ffutop/syringe-pump/internal/gateway"
	"github.com/ffutop/syringe-pump/internal/metrics"
	"github.com/ffutop/syringe-pump/pump"
	"github.com/ffutop/syringe-pump/transport"
	"github.com/ffutop/syringe-pump/transport/local"
	"github.com/ffutop/syringe-pump/transport/serial"
	"github.com/ffutop/syringe-pump/transport/tcp"
)

func main() {
	configFile := pflag.StringP("config", "c", "", "Configuration file path.")
	execs := pflag.StringArrayP("exec", "e", nil, "Command line to run against the first line, e.g. \"01RAT 5 MM\". Repeatable.")
	logLevel := pflag.StringP("log_level", "v", "", "Log verbosity level (debug, info, warn, error), overrides the config file.")
	pflag.Parse()

	// Load Configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	setupLogger(cfg.Log)

	if len(cfg.Lines) == 0 {
		slog.Error("No pump lines configured. Exiting.")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := transport.NewRegistry()

	if len(*execs) > 0 {
		if err := runExec(ctx, registry, cfg.Lines[0], *execs); err != nil {
			slog.Error("Exec failed", "err", err)
			os.Exit(1)
		}
		return
	}

	slog.Info("Starting syringe pump gateway...")

	var wg sync.WaitGroup
	if cfg.Metrics.Address != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.Serve(ctx, cfg.Metrics.Address); err != nil {
				slog.Error("Metrics server stopped with error", "err", err)
			}
		}()
	}

	served := 0
	for _, lineCfg := range cfg.Lines {
		if lineCfg.Listen == "" {
			slog.Warn("Line has no listen address, skipping", "line", lineCfg.Name)
			continue
		}
		p, closeLine, err := openLine(ctx, registry, lineCfg)
		if err != nil {
			slog.Error("Failed to open pump line", "line", lineCfg.Name, "err", err)
			continue
		}
		defer closeLine()

		gw := gateway.NewGateway(lineCfg.Name, []transport.Upstream{tcp.NewServer(lineCfg.Listen)}, p)
		served++
		wg.Add(1)
		go func(g *gateway.Gateway) {
			defer wg.Done()
			if err := g.Start(ctx); err != nil {
				slog.Error("Gateway stopped with error", "name", g.Name, "err", err)
			}
		}(gw)
	}

	if served == 0 {
		slog.Error("No pump line could be served. Exiting.")
		stop()
		wg.Wait()
		os.Exit(1)
	}

	<-ctx.Done()
	slog.Info("Shutting down...")
	wg.Wait()
	slog.Info("Goodbye.")
}

// openLine opens the pump described by cfg. The returned func closes the
// pump and any emulator behind it.
func openLine(ctx context.Context, registry *transport.Registry, cfg config.LineConfig) (*pump.Pump, func(), error) {
	var opener transport.Opener
	cleanup := func() {}
	switch cfg.Type {
	case "local":
		lo := local.NewOpener(cfg.Local)
		opener = lo
		cleanup = func() { lo.Close() }
	default:
		opener = serial.NewOpener(cfg.Serial.ReadTimeout)
	}

	opts := []pump.Option{
		pump.WithSettle(cfg.Settle),
		pump.WithOpenSettle(cfg.OpenSettle),
		pump.WithLogger(slog.Default().With("line", cfg.Name)),
	}
	if cfg.StrictUnits {
		opts = append(opts, pump.WithStrictUnits())
	}

	slog.Info("Opening pump line", "line", cfg.Name, "type", cfg.Type, "port", cfg.Port(), "settle", cfg.Settle)
	p, err := pump.Open(ctx, registry, opener, cfg.Port(), opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return p, func() {
		if err := p.Close(); err != nil {
			slog.Error("Failed to close pump line", "line", cfg.Name, "err", err)
		}
		cleanup()
	}, nil
}

func runExec(ctx context.Context, registry *transport.Registry, cfg config.LineConfig, lines []string) error {
	p, closeLine, err := openLine(ctx, registry, cfg)
	if err != nil {
		return err
	}
	defer closeLine()

	g := gateway.NewGateway(cfg.Name, nil, p)
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		g.Start(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	for _, line := range lines {
		resp, err := g.Handle(ctx, line)
		if err != nil {
			return fmt.Errorf("%s: %w", line, err)
		}
		fmt.Printf("%s\t%q\n", line, resp)
	}
	return nil
}

func setupLogger(cfg config.LogConfig) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	out := os.Stdout
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Printf("Failed to open log file, falling back to stdout: %v\n", err)
		} else {
			out = f
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	case "console":
		handler = console.NewHandler(out, &console.HandlerOptions{Level: level, AddSource: level == slog.LevelDebug})
	default:
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}
