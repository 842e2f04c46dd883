package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mattjoyce/hubgate/internal/queue"
	"github.com/mattjoyce/hubgate/internal/signature"
	"github.com/mattjoyce/hubgate/internal/twitch"
)

// Server represents the webhook HTTP server.
type Server struct {
	config Config
	queue  JobQueuer
	logger *slog.Logger
	server *http.Server

	// endpoints maps URL paths to their configurations
	endpoints map[string]*EndpointConfig
	verifiers map[string]*signature.Verifier
}

// New creates a new webhook server instance. secrets is consulted on every
// request, so rotating a secret in the source takes effect immediately.
func New(config Config, secrets signature.SecretSource, queue JobQueuer, logger *slog.Logger) *Server {
	endpoints := make(map[string]*EndpointConfig)
	verifiers := make(map[string]*signature.Verifier)
	for i := range config.Endpoints {
		ep := &config.Endpoints[i]

		if ep.MaxBodySize == 0 {
			ep.MaxBodySize = DefaultMaxBodySize
		}
		if ep.BufferThreshold == 0 {
			ep.BufferThreshold = signature.DefaultBufferThreshold
		}
		if ep.Receiver == "" {
			ep.Receiver = DefaultReceiver
		}

		endpoints[ep.Path] = ep
		verifiers[ep.Path] = signature.NewVerifier(signature.Options{
			Header:    ep.SignatureHeader,
			SecretKey: ep.SecretRef,
			Secrets:   secrets,
		})
	}

	return &Server{
		config:    config,
		queue:     queue,
		logger:    logger,
		endpoints: endpoints,
		verifiers: verifiers,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start starts the webhook HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.setupRoutes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	useTLS := s.config.TLSCert != "" && s.config.TLSKey != ""
	s.logger.Info("webhook server starting",
		"listen", s.config.Listen,
		"endpoints", len(s.endpoints),
		"tls", useTLS,
	)
	if !useTLS && s.config.AllowInsecure {
		s.logger.Warn("secure connection requirement disabled")
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if useTLS {
			err = s.server.ListenAndServeTLS(s.config.TLSCert, s.config.TLSKey)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webhook server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("webhook server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	for path, ep := range s.endpoints {
		r.Route(path, func(r chi.Router) {
			r.Use(s.verifySignature(ep))
			r.Post("/", s.handleWebhook)
		})
	}

	return r
}

// loggingMiddleware logs HTTP requests (excludes sensitive payloads).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("webhook request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// verifySignature checks the hub signature before the endpoint handler
// runs. Rejected requests never reach the handler.
func (s *Server) verifySignature(ep *EndpointConfig) func(http.Handler) http.Handler {
	verifier := s.verifiers[ep.Path]
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := newHTTPRequest(w, r, ep, s.config)
			defer func() {
				if err := req.close(); err != nil {
					s.logger.Warn("failed to release request body", "path", ep.Path, "error", err)
				}
			}()

			res := verifier.Verify(r.Context(), req)
			s.logOutcome(r, ep, res)

			if res.Allowed() {
				next.ServeHTTP(w, r.WithContext(withOutcome(r.Context(), res.Outcome)))
				return
			}
			status, body := rejection(res)
			s.respondJSON(w, status, body)
		})
	}
}

func (s *Server) logOutcome(r *http.Request, ep *EndpointConfig, res signature.Result) {
	attrs := []any{
		"path", ep.Path,
		"receiver", ep.Receiver,
		"header", res.Header,
		"outcome", res.Outcome.String(),
		"request_id", middleware.GetReqID(r.Context()),
	}
	switch res.Outcome {
	case signature.NotApplicable:
		return
	case signature.Passed:
		s.logger.Debug("webhook signature verified", attrs...)
	case signature.Skipped:
		s.logger.Info("signature header absent, skipping verification", attrs...)
	case signature.MissingSecret:
		s.logger.Error("webhook secret not configured", append(attrs, "secret_ref", ep.SecretRef)...)
	default:
		s.logger.Warn("webhook signature rejected", append(attrs, "error", res.Err)...)
	}
}

// rejection maps a failed verification to its HTTP status and body.
func rejection(res signature.Result) (int, ErrorResponse) {
	switch res.Outcome {
	case signature.BadHeaderFormat:
		return http.StatusBadRequest, ErrorResponse{Error: "malformed signature header", Detail: res.Value}
	case signature.BadHexEncoding:
		return http.StatusBadRequest, ErrorResponse{Error: "malformed signature digest"}
	case signature.InsecureTransport:
		return http.StatusForbidden, ErrorResponse{Error: "secure connection required"}
	case signature.MissingSecret:
		return http.StatusInternalServerError, ErrorResponse{Error: "receiver not configured"}
	case signature.BodyUnreadable:
		var maxErr *http.MaxBytesError
		if errors.As(res.Err, &maxErr) {
			return http.StatusRequestEntityTooLarge, ErrorResponse{Error: "payload too large"}
		}
		return http.StatusBadRequest, ErrorResponse{Error: "failed to read request body"}
	default:
		return http.StatusForbidden, ErrorResponse{Error: "forbidden"}
	}
}

// handleWebhook enqueues an admitted delivery.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	endpoint, ok := s.endpoints[r.URL.Path]
	if !ok {
		s.respondError(w, http.StatusNotFound, "endpoint not found")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, endpoint.MaxBodySize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		s.respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	eventType, dedupeKey, err := describePayload(endpoint.Receiver, body)
	if err != nil {
		s.logger.Warn("webhook payload rejected",
			"path", endpoint.Path,
			"receiver", endpoint.Receiver,
			"error", err,
		)
		s.respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	requestID := middleware.GetReqID(ctx)
	result, err := s.queue.Enqueue(ctx, queue.EnqueueRequest{
		Receiver:     endpoint.Receiver,
		EventType:    eventType,
		Payload:      body,
		SubmittedBy:  "webhook:" + endpoint.Path,
		DedupeKey:    dedupeKey,
		Verification: outcomeFrom(ctx).String(),
		RequestID:    requestID,
	})
	if err != nil {
		s.logger.Error("failed to enqueue webhook job",
			"path", endpoint.Path,
			"receiver", endpoint.Receiver,
			"error", err,
		)
		s.respondError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}

	s.logger.Info("webhook job enqueued",
		"path", endpoint.Path,
		"receiver", endpoint.Receiver,
		"event_type", eventType,
		"job_id", result.JobID,
		"duplicate", result.Duplicate,
	)

	s.respondJSON(w, http.StatusAccepted, TriggerResponse{JobID: result.JobID, Duplicate: result.Duplicate})
}

// describePayload derives the queue event type and dedupe key for a body.
func describePayload(receiver string, body []byte) (eventType, dedupeKey string, err error) {
	switch receiver {
	case ReceiverTwitch:
		data, err := twitch.Decode(body)
		if err != nil {
			return "", "", err
		}
		return data.EventType(), data.DedupeKey(), nil
	default:
		if len(body) > 0 && !json.Valid(body) {
			return "", "", fmt.Errorf("body is not valid JSON")
		}
		return "webhook", "", nil
	}
}

type outcomeKey struct{}

func withOutcome(ctx context.Context, o signature.Outcome) context.Context {
	return context.WithValue(ctx, outcomeKey{}, o)
}

func outcomeFrom(ctx context.Context) signature.Outcome {
	if o, ok := ctx.Value(outcomeKey{}).(signature.Outcome); ok {
		return o
	}
	return signature.NotApplicable
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}
