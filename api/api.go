// Package api exposes the reward split flows over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/bitfsorg/pledgesplit-go/rewards"
)

// Options configures the HTTP layer.
type Options struct {
	RateRPS            float64 // 0 disables rate limiting
	RateBurst          int
	TrustXForwardedFor bool
	AllowedOrigins     []string // Defaults to "*"
}

// API routes HTTP requests to the rewards service.
type API struct {
	router   *mux.Router
	svc      *rewards.Service
	logger   *zap.Logger
	opts     Options
	limiters *limiterStore
}

// New creates the API and registers its routes.
func New(svc *rewards.Service, logger *zap.Logger, opts Options) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	a := &API{
		router: mux.NewRouter(),
		svc:    svc,
		logger: logger,
		opts:   opts,
	}
	if opts.RateRPS > 0 {
		a.limiters = newLimiterStore(opts.RateRPS, opts.RateBurst)
	}
	a.setupRoutes()
	return a
}

func (a *API) setupRoutes() {
	a.router.Use(a.logRequests)
	if a.limiters != nil {
		a.router.Use(rateLimit(a.limiters, a.opts.TrustXForwardedFor, time.Second))
	}

	a.router.HandleFunc("/healthz", a.handleHealth).Methods("GET")

	r := a.router.PathPrefix("/api").Subrouter()
	r.HandleFunc("/signer", a.handleSigner).Methods("GET")
	r.HandleFunc("/splits/preview", a.handlePreview).Methods("POST")
	r.HandleFunc("/issues/{issue_id}/pledges", a.handleListPledges).Methods("GET")
	r.HandleFunc("/issues/{issue_id}/pledges", a.handleAddPledge).Methods("POST")
	r.HandleFunc("/issues/{issue_id}/split/preview", a.handlePreviewIssue).Methods("GET")
	r.HandleFunc("/issues/{issue_id}/split", a.handleGetSplit).Methods("GET")
	r.HandleFunc("/issues/{issue_id}/split", a.handleSplitIssue).Methods("POST")
	r.HandleFunc("/receipts/{digest}", a.handleGetReceipt).Methods("GET")
}

// Handler returns the routed handler wrapped with CORS.
func (a *API) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   a.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	})
	return c.Handler(a.router)
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (a *API) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if a.limiters != nil {
		a.limiters.startJanitor(ctx.Done(), 2*time.Minute)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("API server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
		)
	})
}
