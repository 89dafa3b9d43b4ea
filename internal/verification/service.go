// Package verification turns a witness-signed proof into a persona update:
// verify, extract, read the current document, merge, write.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"persona/internal/claims"
	"persona/internal/persona"
	"persona/internal/persona/store"
	"persona/internal/proof"
	"persona/internal/verification/metrics"
	"persona/pkg/platform/audit"
	"persona/pkg/platform/sentinel"
	"persona/pkg/requestcontext"
)

//go:generate mockgen -destination=mocks/verification.go -package=mocks persona/internal/verification Extractor,Locker,Receipts,AuditPublisher
//go:generate mockgen -destination=mocks/store.go -package=mocks persona/internal/persona/store Store
//go:generate mockgen -destination=mocks/verifier.go -package=mocks persona/internal/proof Verifier

// Extractor turns a verified proof into the attribute record for its provider.
type Extractor interface {
	Extract(providerID string, p *proof.Proof) (persona.AttributeRecord, error)
}

// AuditPublisher records pipeline outcomes.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Result describes an accepted persona update.
type Result struct {
	UserKey   persona.UserKey
	Namespace string
	Receipt   persona.WriteReceipt
	Replayed  bool
}

// Service runs the verification pipeline. It holds no per-request state;
// concurrent calls for the same user are serialized by the Locker.
type Service struct {
	verifier  proof.Verifier
	extractor Extractor
	store     store.Store

	locker        Locker
	lockWait      time.Duration
	receipts      Receipts
	auditor       AuditPublisher
	metrics       *metrics.Metrics
	addressPolicy func(string) error
	logger        *slog.Logger
	tracer        trace.Tracer
	now           func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLocker replaces the default in-process locker. wait bounds how long a
// call queues behind another write for the same user.
func WithLocker(l Locker, wait time.Duration) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
		if wait > 0 {
			s.lockWait = wait
		}
	}
}

func WithReceipts(r Receipts) Option {
	return func(s *Service) {
		if r != nil {
			s.receipts = r
		}
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithAddressPolicy adds a check on the bound address beyond the user key
// syntax, e.g. a bech32 prefix.
func WithAddressPolicy(policy func(string) error) Option {
	return func(s *Service) {
		s.addressPolicy = policy
	}
}

// WithClock overrides the merge timestamp source. A time stored on the
// request context takes precedence.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(verifier proof.Verifier, extractor Extractor, st store.Store, opts ...Option) (*Service, error) {
	if verifier == nil || extractor == nil || st == nil {
		return nil, errors.New("verifier, extractor and store are required")
	}
	s := &Service{
		verifier:  verifier,
		extractor: extractor,
		store:     st,
		locker:    NewMemoryLocker(),
		lockWait:  10 * time.Second,
		receipts:  NewMemoryReceipts(10000, 24*time.Hour),
		logger:    slog.Default(),
		tracer:    otel.Tracer("persona/verification"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// HandleProof verifies p and merges its attributes into the bound user's
// persona. Every error is an *Error; a failed call leaves the stored
// document unchanged or in the state of one complete write.
func (s *Service) HandleProof(ctx context.Context, p *proof.Proof) (result *Result, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "verification.HandleProof",
		trace.WithAttributes(attribute.String("provider_id", providerID(p))))
	namespace := ""
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "panic in verification pipeline",
				"panic", r,
				"request_id", requestcontext.RequestID(ctx),
			)
			result, err = nil, newError(KindInternal, "internal error", fmt.Errorf("panic: %v", r))
		}
		s.finish(ctx, span, p, namespace, result, err, start)
	}()

	if p == nil {
		return nil, newError(KindInvalidProof, "proof is required", proof.ErrInvalidProof)
	}

	if err := s.verifier.Verify(ctx, p); err != nil {
		return nil, newError(KindInvalidProof, "proof verification failed", err)
	}

	key, err := s.userKey(p)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("user_key", key.String()))

	record, err := s.extractor.Extract(p.ProviderID, p)
	if err != nil {
		return nil, classifyExtractError(err)
	}
	namespace = record.Namespace()

	identifier := p.ClaimData.Identifier
	if prior, ok := s.lookupReceipt(ctx, identifier); ok {
		return prior, nil
	}

	release, err := s.acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	defer release()

	// a concurrent submission of the same proof may have finished while we queued
	if prior, ok := s.lookupReceipt(ctx, identifier); ok {
		return prior, nil
	}

	existing, err := s.read(ctx, key)
	if err != nil {
		return nil, err
	}

	merged := persona.Merge(existing, record, s.requestTime(ctx))

	writeStart := time.Now()
	receipt, err := s.store.Write(ctx, key, merged)
	s.metrics.ObserveStoreWrite(writeStart)
	if err != nil {
		return nil, newError(KindWriteRejected, "persona write was not accepted", err)
	}

	result = &Result{UserKey: key, Namespace: namespace, Receipt: receipt}
	if identifier != "" {
		if rerr := s.receipts.Record(ctx, identifier, result); rerr != nil {
			s.logger.WarnContext(ctx, "failed to record proof receipt",
				"error", rerr,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}
	return result, nil
}

func (s *Service) userKey(p *proof.Proof) (persona.UserKey, error) {
	address := p.BoundAddress()
	key, err := persona.ParseUserKey(address)
	if err != nil {
		return "", newError(KindMalformedClaim, "contextAddress is not a valid user key", err)
	}
	if s.addressPolicy != nil {
		if err := s.addressPolicy(key.String()); err != nil {
			return "", newError(KindMalformedClaim, "contextAddress is not an accepted address", err)
		}
	}
	return key, nil
}

func classifyExtractError(err error) *Error {
	var unsupported *claims.UnsupportedProviderError
	if errors.As(err, &unsupported) {
		return newError(KindUnsupportedProvider, err.Error(), err)
	}
	var malformed *claims.MalformedClaimError
	if errors.As(err, &malformed) {
		return newError(KindMalformedClaim, err.Error(), err)
	}
	if errors.Is(err, persona.ErrInvalidRecord) {
		return newError(KindMalformedClaim, "claim produced an invalid attribute record", err)
	}
	return newError(KindInternal, "claim extraction failed", err)
}

func (s *Service) lookupReceipt(ctx context.Context, identifier string) (*Result, bool) {
	if identifier == "" {
		return nil, false
	}
	prior, ok, err := s.receipts.Lookup(ctx, identifier)
	if err != nil {
		// a broken receipt backend degrades to a fresh write, which merges to the same document
		s.logger.WarnContext(ctx, "proof receipt lookup failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	prior.Replayed = true
	return prior, true
}

func (s *Service) acquire(ctx context.Context, key persona.UserKey) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	start := time.Now()
	release, err := s.locker.Acquire(lockCtx, key.String())
	s.metrics.ObserveLockWait(start)
	if err != nil {
		return nil, newError(KindStoreUnavailable, "persona is busy, retry later", err)
	}
	return release, nil
}

func (s *Service) read(ctx context.Context, key persona.UserKey) (*persona.Document, error) {
	ctx, span := s.tracer.Start(ctx, "verification.ReadPersona")
	defer span.End()

	start := time.Now()
	doc, err := s.store.Read(ctx, key)
	s.metrics.ObserveStoreRead(start)
	switch {
	case err == nil:
		return doc, nil
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, nil
	default:
		span.RecordError(err)
		return nil, newError(KindStoreUnavailable, "persona store is unavailable", err)
	}
}

func (s *Service) requestTime(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestcontext.ContextKeyRequestTime).(time.Time); ok {
		return t.UTC()
	}
	return s.now().UTC()
}

func (s *Service) finish(ctx context.Context, span trace.Span, p *proof.Proof, namespace string, result *Result, err error, start time.Time) {
	defer span.End()
	s.metrics.ObservePipeline(start)

	if err != nil {
		kind := KindOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
		s.metrics.IncrementProof(namespace, string(kind))
		level := slog.LevelWarn
		if kind == KindInternal || kind == KindStoreUnavailable || kind == KindWriteRejected {
			level = slog.LevelError
		}
		s.logger.Log(ctx, level, "proof rejected",
			"kind", string(kind),
			"provider_id", providerID(p),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		action := audit.EventProofRejected
		if kind == KindWriteRejected || kind == KindStoreUnavailable {
			action = audit.EventPersonaWriteFailed
		}
		s.emit(ctx, audit.Event{
			UserKey:    boundAddress(p),
			Action:     string(action),
			ProviderID: providerID(p),
			Namespace:  namespace,
			Outcome:    audit.OutcomeFailure,
			Reason:     string(kind),
		})
		return
	}

	span.SetAttributes(attribute.Bool("replayed", result.Replayed))
	action := audit.EventPersonaUpdated
	if result.Replayed {
		action = audit.EventProofReplayed
		s.metrics.IncrementReplay()
	}
	s.metrics.IncrementProof(namespace, "success")
	s.logger.InfoContext(ctx, "persona updated",
		"user_key", result.UserKey.String(),
		"namespace", namespace,
		"tx_hash", result.Receipt.TxHash,
		"replayed", result.Replayed,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, audit.Event{
		UserKey:    result.UserKey.String(),
		Action:     string(action),
		ProviderID: providerID(p),
		Namespace:  namespace,
		Outcome:    audit.OutcomeSuccess,
		TxHash:     result.Receipt.TxHash,
		Replayed:   result.Replayed,
	})
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	event.ClientIP = requestcontext.ClientIP(ctx)
	event.UserAgent = requestcontext.UserAgent(ctx)
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err,
			"request_id", event.RequestID,
		)
	}
}

func providerID(p *proof.Proof) string {
	if p == nil {
		return ""
	}
	return p.ProviderID
}

func boundAddress(p *proof.Proof) string {
	if p == nil {
		return ""
	}
	return p.BoundAddress()
}
