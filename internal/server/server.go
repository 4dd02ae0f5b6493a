// =============================================================================
// Invoice Export - HTTP Server
// =============================================================================
//
// This module serves the exporters over HTTP so review screens can download
// an export without going through the input directory.
//
// ENDPOINTS:
//   GET  /healthz                 -> "ok"
//   GET  /api/formats             -> supported formats with MIME type
//   POST /api/export/{format}     -> the exported file
//
// EXPORT REQUEST:
//   Body:    one invoice as a JSON object, or several as a JSON array
//   Query:   profile=<code> selects an export profile (default: "default")
//   Reply:   200 with the file, Content-Disposition
//            attachment; filename="invoice-data-<ISO8601>.<ext>"
//   Errors:  400 malformed input, 404 unknown format or profile,
//            422 rejected by strict validation,
//            as JSON {"error": ..., "error_description": ...}
//
// =============================================================================

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/ginjaninja78/invoice-export/internal/config"
	"github.com/ginjaninja78/invoice-export/internal/converter"
	"github.com/ginjaninja78/invoice-export/internal/export"
	"github.com/ginjaninja78/invoice-export/internal/invoiceparser"
	"github.com/ginjaninja78/invoice-export/internal/taks"
	"github.com/ginjaninja78/invoice-export/internal/types"
	"github.com/ginjaninja78/invoice-export/internal/validation"
	"github.com/ginjaninja78/invoice-export/pkg/utils"
)

// DefaultMaxBodyBytes limits export request bodies.
const DefaultMaxBodyBytes = 10 << 20

// Options configures a Server.
type Options struct {
	// Profiles are the export profiles selectable with ?profile=.
	Profiles map[string]*config.ExportProfile

	// Sequencer supplies TAKS timestamps. Nil uses the wall clock.
	Sequencer *taks.Sequencer

	// Clock supplies the download file name time. Nil is time.Now.
	Clock func() time.Time

	// MaxBodyBytes limits the request body. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// RequestTimeout bounds each request. Zero means 60s.
	RequestTimeout time.Duration
}

// Server exposes the exporters over HTTP.
type Server struct {
	opts         Options
	router       chi.Router
	transformers map[string]*converter.Transformer
	logger       *slog.Logger
}

// New creates a Server. It fails if a profile's transformation rules are
// invalid.
func New(opts Options, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Sequencer == nil {
		opts.Sequencer = taks.NewSequencer(nil)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}

	s := &Server{
		opts:         opts,
		transformers: make(map[string]*converter.Transformer, len(opts.Profiles)),
		logger:       logger,
	}
	for code, profile := range opts.Profiles {
		t, err := converter.NewTransformer(profile.Transformations)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", code, err)
		}
		s.transformers[code] = t
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.RequestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/formats", s.handleFormats)
		r.Post("/export/{format}", s.handleExport)
	})

	s.router = r
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.opts.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.logger.Info("starting export server", "addr", addr)
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down export server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("export server stopped")
	return nil
}

// =============================================================================
// HANDLERS
// =============================================================================

type formatInfo struct {
	Name      string `json:"name"`
	MIMEType  string `json:"mimeType"`
	Extension string `json:"extension"`
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	var formats []formatInfo
	for _, name := range export.Formats() {
		exp, err := export.New(name, export.Options{})
		if err != nil {
			continue
		}
		formats = append(formats, formatInfo{Name: name, MIMEType: exp.MIMEType(), Extension: exp.Extension()})
	}
	writeJSON(w, http.StatusOK, formats)
}

// ValidationResponse is the 422 body of a strictly rejected export.
type ValidationResponse struct {
	ErrorResponse
	Issues []*validation.ValidationError `json:"issues"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	logger := s.logger.With("request_id", middleware.GetReqID(r.Context()), "format", format)

	if !config.IsKnownFormat(format) {
		writeJSONError(w, http.StatusNotFound, "unknown_format", fmt.Sprintf("unknown export format %q", format))
		return
	}

	profile, ok := s.profile(r.URL.Query().Get("profile"))
	if !ok {
		writeJSONError(w, http.StatusNotFound, "unknown_profile", fmt.Sprintf("unknown profile %q", r.URL.Query().Get("profile")))
		return
	}

	invoices, err := invoiceparser.ParseJSON(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request_too_large", err.Error())
			return
		}
		writeJSONError(w, http.StatusBadRequest, "malformed_input", err.Error())
		return
	}

	if err := s.transformers[profile.ProfileCode].Apply(invoices); err != nil {
		writeJSONError(w, http.StatusBadRequest, "transformation_failed", err.Error())
		return
	}

	vr := validation.NewValidatorWithOptions(validation.ValidationOptions{
		Strict:                 profile.StrictValidation,
		RequireCountryOfOrigin: true,
		RequireHSCode:          true,
	}).ValidateAll(invoices)
	if vr.ErrorCount > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, ValidationResponse{
			ErrorResponse: ErrorResponse{
				Error:            "validation_failed",
				ErrorDescription: fmt.Sprintf("validation failed with %d errors", vr.ErrorCount),
			},
			Issues: vr.Errors,
		})
		return
	}

	exp, err := export.New(format, export.Options{
		TAKS:      profile.TAKS,
		Sequencer: s.opts.Sequencer,
		Logger:    logger,
	})
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "unknown_format", err.Error())
		return
	}

	out, err := exp.Export(invoices)
	if err != nil {
		if errors.Is(err, types.ErrMalformedInput) {
			writeJSONError(w, http.StatusBadRequest, "malformed_input", err.Error())
			return
		}
		logger.Error("export failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "server_error", "export failed")
		return
	}

	fileName := utils.GenerateOutputFileName(utils.DefaultFileNameFormat, utils.NameParams{
		Ext:  exp.Extension(),
		Time: s.opts.Clock(),
	})
	exportID := uuid.New().String()

	w.Header().Set("Content-Type", contentType(exp.MIMEType()))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Data)))
	w.Header().Set("X-Export-Id", exportID)
	w.Header().Set("X-Export-Warnings", strconv.Itoa(len(out.Warnings)+vr.WarningCount))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Data)

	logger.Info("exported",
		"export_id", exportID,
		"profile", profile.ProfileCode,
		"invoices", out.Invoices,
		"line_items", out.LineItems,
		"defaulted_fields", len(out.Warnings),
		"validation_warnings", vr.WarningCount,
	)
}

// profile resolves ?profile=. Empty selects the "default" profile file if
// one exists, otherwise the built-in default.
func (s *Server) profile(code string) (*config.ExportProfile, bool) {
	builtin := config.DefaultProfile()
	if code == "" {
		code = builtin.ProfileCode
	}
	if p, ok := s.opts.Profiles[code]; ok {
		return p, true
	}
	if code == builtin.ProfileCode {
		return builtin, true
	}
	return nil, false
}

func contentType(mime string) string {
	switch mime {
	case "text/plain", "text/csv":
		return mime + "; charset=utf-8"
	}
	return mime
}

// =============================================================================
// RESPONSES
// =============================================================================

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, ErrorResponse{Error: code, ErrorDescription: description})
}

// requestLogger logs each request with slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
			)
		})
	}
}
