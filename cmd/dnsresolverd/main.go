// Copyright (c) 2024 Elisamuel Resto Donate <sam@samresto.dev>
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/user00265/dnstk/config"
	"github.com/user00265/dnstk/server"
)

// multiLevelHandler routes ERROR logs to stderr, everything else to stdout
type multiLevelHandler struct {
	infoHandler  slog.Handler
	errorHandler slog.Handler
}

func (h *multiLevelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (h *multiLevelHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return h.errorHandler.Handle(ctx, r)
	}
	return h.infoHandler.Handle(ctx, r)
}

func (h *multiLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &multiLevelHandler{
		infoHandler:  h.infoHandler.WithAttrs(attrs),
		errorHandler: h.errorHandler.WithAttrs(attrs),
	}
}

func (h *multiLevelHandler) WithGroup(name string) slog.Handler {
	return &multiLevelHandler{
		infoHandler:  h.infoHandler.WithGroup(name),
		errorHandler: h.errorHandler.WithGroup(name),
	}
}

const Version = "1.0.0"

var (
	GitHash = ""
	Branch  = ""
)

func main() {
	handler := &multiLevelHandler{
		infoHandler:  slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		errorHandler: slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}),
	}
	slog.SetDefault(slog.New(handler))

	var (
		bind       = flag.String("b", "", "bind address and port (host:port)")
		rootHints  = flag.String("r", "", "root hints file (overrides config's resolver.root_hints_file)")
		configFile = flag.String("c", "", "config file (YAML)")
		version    = flag.Bool("v", false, "show version")
	)
	flag.Parse()

	if *version {
		versionStr := fmt.Sprintf("dnsresolverd %s", Version)
		if GitHash != "" {
			versionStr += fmt.Sprintf("+%s", GitHash)
		}
		fmt.Println(versionStr)
		fmt.Println("GitHub: https://github.com/user00265/dnstk")
		os.Exit(0)
	}

	var cfg *config.Config
	var err error

	if *configFile != "" {
		cfg, err = config.LoadConfig(*configFile)
		if err != nil {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	} else {
		cfg = &config.Config{
			Server: config.ServerConfig{
				Bind:           "0.0.0.0:53",
				Timeout:        5,
				AutoReload:     true,
				ReloadDebounce: 2,
			},
			Resolver: config.ResolverConfig{
				Transport: "tcp",
			},
			Logging: config.LoggingConfig{
				Level: "info",
			},
		}
	}

	if *bind != "" {
		cfg.Server.Bind = *bind
	}
	if *rootHints != "" {
		cfg.Resolver.RootHintsFile = *rootHints
	}

	if cfg.Resolver.RootHintsFile == "" {
		fmt.Fprintf(os.Stderr, "usage: dnsresolverd [options]\n")
		fmt.Fprintf(os.Stderr, "  -b address:port  bind address and port (default: 0.0.0.0:53)\n")
		fmt.Fprintf(os.Stderr, "  -r file          root hints file (BIND-style, one trusted root A record)\n")
		fmt.Fprintf(os.Stderr, "  -c config.yaml   config file (YAML)\n")
		fmt.Fprintf(os.Stderr, "  -v               show version\n")
		os.Exit(1)
	}

	srv, err := server.New(cfg, *configFile)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		for sig := range sigChan {
			switch sig {
			case syscall.SIGHUP:
				slog.Info("received SIGHUP, reloading root hints and ACL")
				if err := srv.Reload(); err != nil {
					slog.Error("failed to reload", "error", err)
				}
			case syscall.SIGINT, syscall.SIGTERM:
				srv.Shutdown()
				os.Exit(0)
			}
		}
	}()

	slog.Info("dnsresolverd starting", "version", Version, "bind", cfg.Server.Bind, "root_hints", cfg.Resolver.RootHintsFile)
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
