// Package api exposes the studio over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/aggressionjsk/ai-saas-app/internal/asset"
	"github.com/aggressionjsk/ai-saas-app/internal/config"
	"github.com/aggressionjsk/ai-saas-app/internal/engine"
	xglog "github.com/aggressionjsk/ai-saas-app/internal/log"
)

// RecorderCheck reports whether video recording can work on this host.
type RecorderCheck interface {
	Available() error
}

// Deps wires the server to the rest of the process.
type Deps struct {
	Config   config.ServerConfig
	Studio   *engine.Studio
	Verifier SessionVerifier
	Recorder RecorderCheck
	Version  string
	Title    string
}

type Server struct {
	cfg      config.ServerConfig
	studio   *engine.Studio
	verifier SessionVerifier
	recorder RecorderCheck
	version  string
	title    string
	share    *shareSigner
	logger   zerolog.Logger
	started  time.Time
}

func New(d Deps) *Server {
	if d.Verifier == nil {
		d.Verifier = NewTokenVerifier(nil)
	}
	if d.Title == "" {
		d.Title = "Zukku AI Studio"
	}
	return &Server{
		cfg:      d.Config,
		studio:   d.Studio,
		verifier: d.Verifier,
		recorder: d.Recorder,
		version:  d.Version,
		title:    d.Title,
		share:    newShareSigner(d.Config.ShareSecret, d.Config.ShareTTL),
		logger:   xglog.WithComponent("api"),
		started:  time.Now(),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestID)
	r.Use(xglog.Middleware())
	r.Use(instrument)

	r.Get("/", s.handleLanding)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/api/process-video", s.handleProcessVideo)
	r.Get(sharePath+"{id}", s.handleShare)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/dashboard", s.handleDashboard)
		r.Put("/api/prompt", s.handlePrompt)

		r.Group(func(r chi.Router) {
			r.Use(rateLimit(s.cfg.RateLimit))
			r.Post("/api/image", s.handleGenerateImage)
			r.Post("/api/video", s.handleGenerateVideo)
		})

		r.Get("/api/assets/image", s.handleDownload(asset.KindImage))
		r.Get("/api/assets/video", s.handleDownload(asset.KindVideo))
		r.Get("/api/assets/video/qr", s.handleVideoQR)
		r.Get("/api/assets/{id}", s.handleAssetByID)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) { writeNotFound(w) })
	return r
}

// ListenAndServe runs the server until ctx is canceled, then shuts down
// gracefully within the configured timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Listen).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.logger.Info().Dur("timeout", timeout).Msg("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
