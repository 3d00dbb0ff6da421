// Package server exposes a Detector over a small JSON HTTP API.
//
//	POST /v1/detect        {"text": "..."}        -> detect.Result
//	POST /v1/detect/batch  {"texts": ["...", ...]} -> {"results": [...]}
//	GET  /v1/languages                             -> {"modelId": "...", "languages": [{"code", "name"}]}
//	GET  /healthz                                  -> {"status", "modelLoaded"}
//
// Every endpoint answers 503 while no model is loaded and 400 for malformed bodies.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/chriscorrea/langsift/internal/detect"
)

const (
	DefaultMaxBodyBytes = 1 << 20
	DefaultMaxBatch     = 1000
	shutdownTimeout     = 10 * time.Second
)

// Detector is the part of detect.Detector the API serves.
type Detector interface {
	Detect(text string) (detect.Result, error)
	DetectBatch(texts []string) ([]detect.Result, error)
	SupportedLanguages() []string
	IsLoaded() bool
	ModelID() string
}

// Options configures the server.
type Options struct {
	Addr           string
	AllowedOrigins []string // CORS origins; empty allows any
	MaxBodyBytes   int64
	MaxBatch       int
}

// Server serves the detection API.
type Server struct {
	detector Detector
	opts     Options
	router   *chi.Mux
}

// New builds the router around d.
func New(d Detector, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = DefaultMaxBatch
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{detector: d, opts: opts}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/detect", s.handleDetect)
		r.Post("/detect/batch", s.handleDetectBatch)
		r.Get("/languages", s.handleLanguages)
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run listens on Addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("http listening")
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down: %w", err)
		}
		<-errc
		return nil
	}
}

type detectRequest struct {
	// Text is nil when the field is absent; a JSON null detects as empty text
	Text json.RawMessage `json:"text"`
}

type batchRequest struct {
	Texts []string `json:"texts"`
}

type batchResponse struct {
	Results []detect.Result `json:"results"`
}

type languageInfo struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type languagesResponse struct {
	ModelID   string         `json:"modelId,omitempty"`
	Languages []languageInfo `json:"languages"`
}

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"modelLoaded"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !s.detector.IsLoaded() {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", ModelLoaded: true})
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Text == nil {
		writeError(w, http.StatusBadRequest, errors.New(`missing "text"`))
		return
	}
	var text string
	if err := json.Unmarshal(req.Text, &text); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf(`"text" must be a string: %w`, err))
		return
	}

	res, err := s.detector.Detect(text)
	if err != nil {
		writeDetectError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDetectBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Texts == nil {
		writeError(w, http.StatusBadRequest, errors.New(`missing "texts"`))
		return
	}
	if len(req.Texts) > s.opts.MaxBatch {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Errorf("batch of %d texts exceeds the limit of %d", len(req.Texts), s.opts.MaxBatch))
		return
	}

	results, err := s.detector.DetectBatch(req.Texts)
	if err != nil {
		writeDetectError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batchResponse{Results: results})
}

func (s *Server) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	if !s.detector.IsLoaded() {
		writeError(w, http.StatusServiceUnavailable, detect.ErrModelNotLoaded)
		return
	}

	codes := s.detector.SupportedLanguages()
	langs := make([]languageInfo, len(codes))
	for i, code := range codes {
		langs[i] = languageInfo{Code: code, Name: detect.LanguageName(code)}
	}
	writeJSON(w, http.StatusOK, languagesResponse{ModelID: s.detector.ModelID(), Languages: langs})
}

// decode reads a JSON body into v, answering 400 or 413 itself on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("malformed JSON body: %w", err))
		return false
	}
	return true
}

func writeDetectError(w http.ResponseWriter, err error) {
	if errors.Is(err, detect.ErrModelNotLoaded) {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	log.Error().Err(err).Msg("detection failed")
	writeError(w, http.StatusInternalServerError, errors.New("detection failed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("failed to write response")
	}
}

// requestLogger logs each request at debug level with its status and latency.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		log.Debug().
			Str("requestId", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	})
}
