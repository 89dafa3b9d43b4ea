package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"persona/internal/persona"
	"persona/internal/platform/metrics"
	"persona/internal/platform/middleware"
	"persona/internal/proof"
	"persona/internal/request"
	"persona/internal/verification"
	"persona/pkg/platform/audit"
	"persona/pkg/platform/httputil"
	"persona/pkg/platform/sentinel"
	"persona/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks

// ProofService runs the verification pipeline.
type ProofService interface {
	HandleProof(ctx context.Context, p *proof.Proof) (*verification.Result, error)
}

// RequestGenerator builds Reclaim request URLs.
type RequestGenerator interface {
	Generate(providerID, userAddress, callbackBase string) (*request.Request, error)
}

// PersonaReader serves stored persona documents.
type PersonaReader interface {
	Read(ctx context.Context, key persona.UserKey) (*persona.Document, error)
}

// Handler serves the proof callback, request generation and persona lookup.
type Handler struct {
	logger    *slog.Logger
	service   ProofService
	personas  PersonaReader
	metrics   *metrics.Metrics
	generator RequestGenerator
	sessions  middleware.SessionValidator
	auditor   verification.AuditPublisher
	baseURL   string
	timeout   time.Duration
}

type Option func(*Handler)

// WithRequestGenerator enables GET /api/generate-request.
func WithRequestGenerator(g RequestGenerator) Option {
	return func(h *Handler) { h.generator = g }
}

// WithSessionValidator enables ?session= checks on the proof callback.
func WithSessionValidator(v middleware.SessionValidator) Option {
	return func(h *Handler) { h.sessions = v }
}

// WithPublicBaseURL fixes the origin used in callback URLs instead of the
// request's Host header.
func WithPublicBaseURL(base string) Option {
	return func(h *Handler) { h.baseURL = strings.TrimRight(base, "/") }
}

func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

func WithAuditPublisher(p verification.AuditPublisher) Option {
	return func(h *Handler) { h.auditor = p }
}

// New creates a new verification Handler.
func New(service ProofService, personas PersonaReader, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		logger:   logger,
		service:  service,
		personas: personas,
		metrics:  m,
		timeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the verification routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	apiRouter := chi.NewRouter()
	apiRouter.Use(middleware.Recovery(h.logger, h.metrics))
	apiRouter.Use(middleware.RequestID)
	apiRouter.Use(middleware.RequestTime)
	apiRouter.Use(middleware.ClientMetadata)
	apiRouter.Use(middleware.Logger(h.logger))
	apiRouter.Use(middleware.Timeout(h.timeout))
	apiRouter.Use(middleware.ContentTypeJSON)
	apiRouter.Use(middleware.LatencyMiddleware(h.metrics))

	apiRouter.With(middleware.OptionalSession(h.sessions, h.logger)).
		Post("/api/receive-proof", h.handleReceiveProof)
	apiRouter.Get("/api/generate-request", h.handleGenerateRequest)
	apiRouter.Get("/api/personas/{address}", h.handleGetPersona)

	r.Mount("/", apiRouter)
}

// ReceiveProofResponse is returned when a proof was accepted.
type ReceiveProofResponse struct {
	Success         bool   `json:"success"`
	TransactionHash string `json:"transactionHash"`
	UserKey         string `json:"userKey"`
	Namespace       string `json:"namespace"`
	Replayed        bool   `json:"replayed"`
}

// FailureResponse is returned for every rejected proof.
type FailureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *Handler) handleReceiveProof(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var p proof.Proof
	if err := httputil.DecodeJSON(w, r, &p); err != nil {
		h.logger.WarnContext(ctx, "invalid proof body",
			"request_id", requestID,
			"error", err.Error(),
		)
		writeFailure(w, http.StatusBadRequest, string(verification.KindInvalidProof), "request body is not a valid proof")
		return
	}

	if session := middleware.GetSession(ctx); session != nil {
		if session.ProviderID != p.ProviderID || !strings.EqualFold(session.UserAddress, p.BoundAddress()) {
			h.logger.WarnContext(ctx, "proof does not match verification session",
				"request_id", requestID,
				"session_id", session.SessionID,
				"provider_id", p.ProviderID,
			)
			writeFailure(w, http.StatusBadRequest, string(verification.KindInvalidProof), "proof does not match the verification session")
			return
		}
	}

	result, err := h.service.HandleProof(ctx, &p)
	if err != nil {
		status, kind, msg := failureFor(err)
		writeFailure(w, status, kind, msg)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ReceiveProofResponse{
		Success:         true,
		TransactionHash: result.Receipt.TxHash,
		UserKey:         result.UserKey.String(),
		Namespace:       result.Namespace,
		Replayed:        result.Replayed,
	})
}

// failureFor maps a pipeline error to status, error kind and client message.
// Messages of 5xx answers are generic.
func failureFor(err error) (int, string, string) {
	var verr *verification.Error
	if !errors.As(err, &verr) {
		return http.StatusInternalServerError, string(verification.KindInternal), "internal error"
	}
	switch verr.Kind {
	case verification.KindInvalidProof, verification.KindMalformedClaim, verification.KindUnsupportedProvider:
		return http.StatusBadRequest, string(verr.Kind), verr.Message
	case verification.KindStoreUnavailable:
		return http.StatusServiceUnavailable, string(verr.Kind), "persona store is unavailable, retry later"
	case verification.KindWriteRejected:
		return http.StatusBadGateway, string(verr.Kind), "persona write was not accepted by the ledger"
	default:
		return http.StatusInternalServerError, string(verification.KindInternal), "internal error"
	}
}

func writeFailure(w http.ResponseWriter, status int, kind, msg string) {
	httputil.WriteJSON(w, status, FailureResponse{Success: false, Error: kind, Message: msg})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) handleGenerateRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	if h.generator == nil {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "request generation is not configured"})
		return
	}

	providerID := strings.TrimSpace(r.URL.Query().Get("providerId"))
	userAddress := strings.TrimSpace(r.URL.Query().Get("userAddress"))
	if providerID == "" || userAddress == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "providerId and userAddress are required"})
		return
	}

	req, err := h.generator.Generate(providerID, userAddress, h.callbackBase(r))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate proof request",
			"request_id", requestID,
			"provider_id", providerID,
			"error", err,
		)
		httputil.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to generate request config"})
		return
	}

	h.emit(ctx, audit.Event{
		UserKey:    userAddress,
		Action:     string(audit.EventVerificationRequest),
		ProviderID: providerID,
		Outcome:    audit.OutcomeSuccess,
	})
	httputil.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) callbackBase(r *http.Request) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	return "https://" + r.Host
}

func (h *Handler) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key, err := persona.ParseUserKey(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid address"})
		return
	}

	doc, err := h.personas.Read(ctx, key)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		httputil.WriteJSON(w, http.StatusNotFound, errorResponse{Error: "persona not found"})
		return
	case err != nil:
		h.logger.ErrorContext(ctx, "failed to read persona",
			"request_id", middleware.GetRequestID(ctx),
			"user_key", key.String(),
			"error", err,
		)
		httputil.WriteJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "persona store is unavailable"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) emit(ctx context.Context, event audit.Event) {
	if h.auditor == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	event.ClientIP = requestcontext.ClientIP(ctx)
	event.UserAgent = requestcontext.UserAgent(ctx)
	if err := h.auditor.Emit(ctx, event); err != nil {
		h.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err,
			"request_id", event.RequestID,
		)
	}
}
