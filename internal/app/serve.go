package app

import (
	"context"
	"net"

	"github.com/chriscorrea/langsift/internal/detect"
	"github.com/chriscorrea/langsift/internal/server"
)

// ServeConfig holds the options of the serve command.
type ServeConfig struct {
	ModelPath        string
	FallbackLanguage string
	Addr             string
	AllowedOrigins   []string
	MaxBatch         int

	// Registry shares the loaded detector; a fresh one when nil
	Registry *detect.Registry
	// Listener replaces listening on Addr
	Listener net.Listener
}

// Serve loads the model into the registry and serves the HTTP API until ctx is cancelled.
func Serve(ctx context.Context, cfg ServeConfig) error {
	reg := cfg.Registry
	if reg == nil {
		reg = detect.NewRegistry(func(path string) (*detect.Detector, error) {
			return loadDetector(path, cfg.FallbackLanguage)
		})
	}

	d, err := reg.Get(cfg.ModelPath)
	if err != nil {
		return err
	}

	srv := server.New(d, server.Options{
		Addr:           cfg.Addr,
		AllowedOrigins: cfg.AllowedOrigins,
		MaxBatch:       cfg.MaxBatch,
	})
	if cfg.Listener != nil {
		return srv.Serve(ctx, cfg.Listener)
	}
	return srv.Run(ctx)
}
