// Copyright 2026 The Peerway Authors
// SPDX-License-Identifier: Apache-2.0

// Peerway-probe connects a signaling channel to a coordination server
// and logs every event it observes. It exists for diagnosing server
// reachability and failover behavior: run it against a server, watch
// whether the session comes up on the WebSocket or downgrades to
// polling, and see the raw message flow.
//
//	peerway-probe --config peerway.yaml --id probe-1 --token t0
//	peerway-probe --host localhost --port 9000 --id probe-1 --token t0
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/peerway/peerway/lib/config"
	"github.com/peerway/peerway/signaling"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "peerway-probe: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("peerway-probe", pflag.ContinueOnError)
	configPath := flagSet.String("config", "", "path to peerway.yaml")
	host := flagSet.String("host", "", "server host (overrides config)")
	port := flagSet.Int("port", 0, "server port (overrides config)")
	secure := flagSet.Bool("secure", false, "use TLS (overrides config)")
	key := flagSet.String("key", "", "API key (overrides config)")
	sessionID := flagSet.String("id", "", "session id (required)")
	token := flagSet.String("token", "", "session token (required)")
	noFallback := flagSet.Bool("no-fallback", false, "disable the polling fallback")
	logLevel := flagSet.String("log-level", "", "debug, info, warn, or error")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if *sessionID == "" || *token == "" {
		return fmt.Errorf("--id and --token are required")
	}

	loaded := &config.Config{}
	if *configPath != "" {
		var err error
		loaded, err = config.Load(*configPath)
		if err != nil {
			return err
		}
	}

	// Flags override the file.
	if *host != "" {
		loaded.Server.Host = *host
	}
	if *port != 0 {
		loaded.Server.Port = *port
	}
	if flagSet.Changed("secure") {
		loaded.Server.Secure = *secure
	}
	if *key != "" {
		loaded.Server.Key = *key
	}
	if *logLevel != "" {
		loaded.Log.Level = *logLevel
	}
	if loaded.Server.Host == "" {
		return fmt.Errorf("server host is required (--host or config file)")
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	// Without --config, nothing has defaulted the port/path/key yet.
	loaded.ApplyDefaults()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: loaded.LogLevel(),
	}))

	channel := signaling.New(loaded.Signaling(logger), !*noFallback)
	channel.Subscribe(signaling.Events{
		Message: func(message signaling.Message) {
			logger.Info("message",
				"type", message.Type,
				"src", message.Src,
				"payload", string(message.Payload),
			)
		},
		Disconnected: func() {
			logger.Warn("channel disconnected")
		},
		Error: func(err error) {
			logger.Error("channel error", "error", err)
		},
	})

	if err := channel.Start(*sessionID, *token); err != nil {
		return fmt.Errorf("starting channel: %w", err)
	}
	defer channel.Close()

	logger.Info("channel started",
		"host", loaded.Server.Host,
		"port", loaded.Server.Port,
		"session", *sessionID,
	)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt

	logger.Info("shutting down")
	return nil
}
