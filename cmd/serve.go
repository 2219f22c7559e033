package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/opd-ai/montessoricomic/srv/certs"
	"github.com/opd-ai/montessoricomic/srv/ui"
)

const shutdownTimeout = 30 * time.Second

func (r *runner) serve(ctx context.Context, cmd *cli.Command) error {
	newRenderer, err := r.newRenderer()
	if err != nil {
		return fmt.Errorf("preparing image generator: %w", err)
	}

	handler := ui.NewGeneratorUI(ui.Options{
		Client:      r.claude(),
		Parser:      r.parser(),
		NewRenderer: newRenderer,
		Password:    r.cfg.Password.Reveal(),
		RateLimit:   r.cfg.RateLimitPerMinute,
		Logger:      r.log.Named("http"),
	})

	server := &http.Server{
		Addr:              r.cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// panel rendering holds the request open for several minutes
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	listen := server.ListenAndServe
	if r.cfg.TLSEnabled() {
		generated, err := certs.Ensure(r.cfg.TLSCertFile, r.cfg.TLSKeyFile)
		if err != nil {
			return err
		}
		if generated {
			r.log.Warn("Using self-signed certificate", zap.String("cert", r.cfg.TLSCertFile))
		}
		server.TLSConfig = certs.ServerConfig()
		listen = func() error {
			return server.ListenAndServeTLS(r.cfg.TLSCertFile, r.cfg.TLSKeyFile)
		}
	}

	errc := make(chan error, 1)
	go func() {
		r.log.Info("Listening",
			zap.String("addr", server.Addr),
			zap.Bool("tls", r.cfg.TLSEnabled()),
			zap.Bool("password", r.cfg.PasswordEnabled()))
		errc <- listen()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	r.log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
