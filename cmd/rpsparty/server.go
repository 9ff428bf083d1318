package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/lox/rpsparty/cmd/rpsparty/shared"
	"github.com/lox/rpsparty/internal/randutil"
	"github.com/lox/rpsparty/internal/server"
)

// ServerCmd runs the lobby broker.
type ServerCmd struct {
	Addr   string `kong:"help='Server address, overrides the config file'"`
	Config string `kong:"default='rpsparty.hcl',help='Path to HCL config file'"`
	Debug  bool   `kong:"help='Enable debug logging'"`
	Seed   *int64 `kong:"help='Deterministic RNG seed for room codes and dealing (optional)'"`
}

func (c *ServerCmd) Run() error {
	logger := shared.SetupLogger(c.Debug)

	cfg, err := server.LoadServerConfig(c.Config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// --debug wins over the configured level.
	if !c.Debug {
		if level, err := zerolog.ParseLevel(cfg.Server.LogLevel); err == nil {
			logger = logger.Level(level)
		}
	}

	var seed int64
	if c.Seed != nil {
		seed = *c.Seed
		logger.Info().Int64("seed", seed).Msg("Using deterministic seed")
	} else {
		seed = time.Now().UnixNano()
	}
	rng := randutil.New(seed)

	addr := c.Addr
	if addr == "" {
		addr = cfg.ListenAddress()
	}

	s := server.NewServer(logger, rng, server.WithConfig(cfg))

	logger.Info().
		Str("address", addr).
		Int("send_buffer", cfg.Limits.SendBuffer).
		Int64("max_message_size", cfg.Limits.MaxMessageSize).
		Msg("Starting rpsparty server")

	ctx := shared.SetupSignalHandler(logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := s.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}
