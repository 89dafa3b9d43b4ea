package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"persona/internal/claims"
	"persona/internal/ledger"
	"persona/internal/persona/store"
	"persona/internal/platform/config"
	"persona/internal/platform/kafka"
	"persona/internal/platform/postgres"
	"persona/internal/platform/redis"
	"persona/internal/proof"
	"persona/internal/request"
	"persona/internal/verification"
	vmetrics "persona/internal/verification/metrics"
	"persona/pkg/platform/audit"
	"persona/pkg/platform/audit/publisher"
	kafkasink "persona/pkg/platform/audit/store/kafka"
	auditmemory "persona/pkg/platform/audit/store/memory"
	auditpostgres "persona/pkg/platform/audit/store/postgres"
	"persona/pkg/platform/circuit"
)

// infra holds the optional backing services. Nil fields are not configured.
type infra struct {
	redis   *redis.Client
	db      *sql.DB
	kafka   *kgo.Client
	breaker *circuit.Breaker
}

func buildInfra(ctx context.Context, cfg *config.Config, log *slog.Logger) (*infra, error) {
	deps := &infra{}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	deps.redis = rdb

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		deps.close()
		return nil, err
	}
	deps.db = db

	kc, err := kafka.NewClient(cfg.Kafka)
	if err != nil {
		deps.close()
		return nil, err
	}
	if kc != nil {
		if err := kafka.EnsureTopic(ctx, kc, cfg.Kafka.Topic, 3); err != nil {
			log.Warn("could not ensure audit topic", "topic", cfg.Kafka.Topic, "error", err)
		}
	}
	deps.kafka = kc

	log.Info("backing services",
		"redis", rdb != nil,
		"postgres", db != nil,
		"kafka", kc != nil,
	)
	return deps, nil
}

func (d *infra) close() {
	if d.kafka != nil {
		d.kafka.Close()
	}
	if d.db != nil {
		_ = d.db.Close()
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
}

type app struct {
	service   *verification.Service
	personas  store.Store
	audit     *publisher.Publisher
	generator *request.Generator
	sessions  *request.SessionIssuer
}

func buildApp(ctx context.Context, cfg *config.Config, deps *infra, log *slog.Logger) (*app, error) {
	auditPub, err := buildAudit(ctx, cfg, deps, log)
	if err != nil {
		return nil, err
	}

	personas, err := buildStore(cfg, deps, log)
	if err != nil {
		return nil, err
	}

	registry, err := claims.NewDefaultRegistry(cfg.Providers.Twitter, cfg.Providers.GitHub)
	if err != nil {
		return nil, err
	}
	verifier, err := proof.NewReclaimVerifier(cfg.Reclaim.Witnesses, cfg.Reclaim.MinSignatures)
	if err != nil {
		return nil, err
	}

	opts := []verification.Option{
		verification.WithLogger(log),
		verification.WithAuditPublisher(auditPub),
		verification.WithMetrics(vmetrics.New()),
	}
	if deps.redis != nil {
		opts = append(opts,
			verification.WithLocker(verification.NewRedisLocker(deps.redis.Client, cfg.Pipeline.LockTTL, verification.WithLockLogger(log)), cfg.Pipeline.LockWait),
			verification.WithReceipts(verification.NewRedisReceipts(deps.redis.Client, cfg.Pipeline.ReceiptTTL)),
		)
	} else {
		opts = append(opts,
			verification.WithLocker(verification.NewMemoryLocker(), cfg.Pipeline.LockWait),
			verification.WithReceipts(verification.NewMemoryReceipts(cfg.Pipeline.OverlaySize, cfg.Pipeline.ReceiptTTL)),
		)
	}
	if cfg.Ledger.EnforceAddress {
		opts = append(opts, verification.WithAddressPolicy(ledger.AddressPolicy(cfg.Ledger.AddressPrefix)))
	}
	svc, err := verification.NewService(verifier, registry, personas, opts...)
	if err != nil {
		return nil, err
	}

	a := &app{service: svc, personas: personas, audit: auditPub}
	if cfg.RequestGenerationEnabled() {
		sessions, err := buildSessions(cfg, deps, log)
		if err != nil {
			return nil, err
		}
		gen, err := request.NewGenerator(request.Config{
			AppID:        cfg.Reclaim.AppID,
			AppSecret:    cfg.Reclaim.AppSecret,
			ShareBaseURL: cfg.Reclaim.ShareBaseURL,
		}, sessions)
		if err != nil {
			return nil, err
		}
		a.generator = gen
		a.sessions = sessions
	}
	return a, nil
}

func buildAudit(ctx context.Context, cfg *config.Config, deps *infra, log *slog.Logger) (*publisher.Publisher, error) {
	var st audit.Store = auditmemory.NewInMemoryStore()
	if deps.db != nil {
		pg := auditpostgres.New(deps.db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("audit schema: %w", err)
		}
		st = pg
	}
	opts := []publisher.Option{
		publisher.WithAsyncBuffer(cfg.Pipeline.AuditBuffer),
		publisher.WithLogger(log),
	}
	if deps.kafka != nil {
		opts = append(opts, publisher.WithSinks(kafkasink.NewSink(deps.kafka, cfg.Kafka.Topic)))
	}
	return publisher.NewPublisher(st, opts...), nil
}

func buildStore(cfg *config.Config, deps *infra, log *slog.Logger) (store.Store, error) {
	if cfg.Ledger.Backend == config.BackendMemory {
		log.Warn("persona documents are kept in memory and lost on restart")
		return store.NewMemory(), nil
	}

	wallet, err := ledger.NewWalletFromMnemonic(cfg.Ledger.AdminMnemonic, cfg.Ledger.AddressPrefix)
	if err != nil {
		return nil, fmt.Errorf("admin wallet: %w", err)
	}
	client, err := ledger.NewClient(ledger.ClientConfig{
		LCDEndpoint: cfg.Ledger.LCDEndpoint,
		ChainID:     cfg.Ledger.ChainID,
		GasLimit:    cfg.Ledger.GasLimit,
		GasPrice:    cfg.Ledger.GasPrice,
		Timeout:     cfg.Ledger.Timeout,
	}, wallet, ledger.WithLogger(log))
	if err != nil {
		return nil, err
	}
	log.Info("ledger signer", "address", wallet.Address(), "contract", cfg.Ledger.ContractAddress)

	deps.breaker = circuit.New("ledger",
		circuit.WithFailureThreshold(cfg.Ledger.BreakerFailures),
		circuit.WithCooldown(cfg.Ledger.BreakerCooldown),
	)
	var st store.Store = store.NewLedger(ledger.NewDocustore(client, cfg.Ledger.ContractAddress))
	st = store.WithBreaker(st, deps.breaker, log)
	st = store.WithOverlay(st, store.OverlaySize(cfg.Pipeline.OverlaySize), store.OverlayTTL(cfg.Pipeline.OverlayTTL))
	return st, nil
}

func buildSessions(cfg *config.Config, deps *infra, log *slog.Logger) (*request.SessionIssuer, error) {
	key := []byte(cfg.Server.SessionSigningKey)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("session key: %w", err)
		}
		log.Warn("SESSION_SIGNING_KEY not set; sessions are only valid on this instance until restart")
	}
	var consumer request.Consumer = request.NewMemoryConsumer(cfg.Server.SessionCacheSize)
	if deps.redis != nil {
		consumer = request.NewRedisConsumer(deps.redis.Client)
	}
	return request.NewSessionIssuer(key, cfg.Server.SessionTTL, consumer)
}
