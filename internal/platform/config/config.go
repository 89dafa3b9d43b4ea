package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "persona/pkg/platform/strings"
)

// Config is the process-wide configuration. It is built once by Load in main
// and passed by pointer; nothing mutates it afterwards.
type Config struct {
	Server    Server
	Logging   Logging
	Ledger    Ledger
	Reclaim   Reclaim
	Providers Providers
	Redis     RedisConfig
	Postgres  PostgresConfig
	Kafka     KafkaConfig
	Pipeline  Pipeline
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr              string
	PublicBaseURL     string // used to build the proof callback URL; empty means derive from Host
	ReadHeaderTimeout time.Duration
	RequestTimeout    time.Duration
	ShutdownTimeout   time.Duration
	SessionSigningKey string
	SessionTTL        time.Duration
	// SessionCacheSize is the point at which the in-process redeemed-session
	// cache sweeps expired entries. Unexpired entries are never evicted.
	SessionCacheSize  int
}

// Logging controls the slog handler.
type Logging struct {
	Level  string
	Format string // text|json
}

// StoreBackend selects the persona store implementation.
type StoreBackend string

const (
	BackendLedger StoreBackend = "ledger"
	BackendMemory StoreBackend = "memory"
)

// Ledger configures the docustore contract and the signing account.
type Ledger struct {
	Backend         StoreBackend
	RPCEndpoint     string
	LCDEndpoint     string
	ChainID         string
	ContractAddress string
	AdminMnemonic   string
	AddressPrefix   string
	GasLimit        uint64
	GasPrice        string // e.g. "0.001uxion"
	Timeout         time.Duration
	BreakerFailures int
	BreakerCooldown time.Duration
	EnforceAddress  bool // require contextAddress to be a bech32 address with AddressPrefix
}

// Reclaim configures proof request generation and witness verification.
type Reclaim struct {
	AppID         string
	AppSecret     string
	ShareBaseURL  string
	Witnesses     []string
	MinSignatures int
}

// Providers maps namespaces to provider IDs.
type Providers struct {
	Twitter string
	GitHub  string
}

// RedisConfig configures the optional Redis client. Empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures the optional audit database. Empty URL disables it.
type PostgresConfig struct {
	URL          string
	MaxOpenConns int
}

// KafkaConfig configures the optional audit event stream.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Pipeline tunes the verification pipeline.
type Pipeline struct {
	LockTTL     time.Duration
	LockWait    time.Duration
	ReceiptTTL  time.Duration
	OverlayTTL  time.Duration
	OverlaySize int
	AuditBuffer int
}

const (
	DefaultTwitterProviderID = "e6fe962d-8b4e-4ce5-abcc-3d21c88bd64a"
	DefaultGitHubProviderID  = "8ce3c937-b5d7-4034-8b65-92633011904a"

	// DefaultReclaimWitness is the attestor address signing Reclaim claims.
	DefaultReclaimWitness = "0x244897572368eadf65bfbc5aec98d8e5443a9072"

	defaultRPCEndpoint  = "https://rpc.xion-testnet-2.burnt.com"
	defaultLCDEndpoint  = "https://api.xion-testnet-2.burnt.com"
	defaultChainID      = "xion-testnet-2"
	defaultShareBaseURL = "https://share.reclaimprotocol.org/verifier/"
)

// Load builds a Config from environment variables, applying defaults and
// validating the result so main fails fast on misconfiguration.
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	e := env{getenv: getenv}

	cfg := &Config{
		Server: Server{
			Addr:              e.str("PERSONA_ADDR", ":8080"),
			PublicBaseURL:     strings.TrimRight(e.str("PUBLIC_BASE_URL", ""), "/"),
			ReadHeaderTimeout: e.duration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
			RequestTimeout:    e.duration("HTTP_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout:   e.duration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
			SessionSigningKey: e.str("SESSION_SIGNING_KEY", ""),
			SessionTTL:        e.duration("SESSION_TTL", 15*time.Minute),
			SessionCacheSize:  e.int("SESSION_CACHE_SIZE", 10000),
		},
		Logging: Logging{
			Level:  e.str("LOG_LEVEL", "info"),
			Format: e.str("LOG_FORMAT", "text"),
		},
		Ledger: Ledger{
			Backend:         StoreBackend(strings.ToLower(e.str("PERSONA_STORE", string(BackendLedger)))),
			RPCEndpoint:     e.str("XION_RPC_ENDPOINT", defaultRPCEndpoint),
			LCDEndpoint:     strings.TrimRight(e.str("XION_LCD_ENDPOINT", defaultLCDEndpoint), "/"),
			ChainID:         e.str("XION_CHAIN_ID", defaultChainID),
			ContractAddress: e.str("DOCUSTORE_CONTRACT_ADDRESS", ""),
			AdminMnemonic:   e.str("ADMIN_MNEMONIC", ""),
			AddressPrefix:   e.str("XION_ADDRESS_PREFIX", "xion"),
			GasLimit:        uint64(e.int("XION_GAS_LIMIT", 400000)),
			GasPrice:        e.str("XION_GAS_PRICE", "0.001uxion"),
			Timeout:         e.duration("XION_TIMEOUT", 15*time.Second),
			BreakerFailures: e.int("XION_BREAKER_FAILURES", 5),
			BreakerCooldown: e.duration("XION_BREAKER_COOLDOWN", 30*time.Second),
			EnforceAddress:  e.bool("ENFORCE_BECH32_ADDRESS", false),
		},
		Reclaim: Reclaim{
			AppID:         e.str("RECLAIM_APP_ID", ""),
			AppSecret:     e.str("RECLAIM_APP_SECRET", ""),
			ShareBaseURL:  e.str("RECLAIM_SHARE_BASE_URL", defaultShareBaseURL),
			Witnesses:     pstrings.SplitCSVLower(e.str("RECLAIM_WITNESSES", DefaultReclaimWitness)),
			MinSignatures: e.int("RECLAIM_MIN_SIGNATURES", 1),
		},
		Providers: Providers{
			Twitter: e.str("PROVIDER_ID_TWITTER", DefaultTwitterProviderID),
			GitHub:  e.str("PROVIDER_ID_GITHUB", DefaultGitHubProviderID),
		},
		Redis: RedisConfig{
			URL:          e.str("REDIS_URL", ""),
			PoolSize:     e.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: e.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  e.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  e.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: e.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			URL:          e.str("DATABASE_URL", ""),
			MaxOpenConns: e.int("DATABASE_MAX_OPEN_CONNS", 10),
		},
		Kafka: KafkaConfig{
			Brokers: pstrings.SplitCSV(e.str("KAFKA_BROKERS", "")),
			Topic:   e.str("KAFKA_AUDIT_TOPIC", "persona.audit"),
		},
		Pipeline: Pipeline{
			LockTTL:     e.duration("PERSONA_LOCK_TTL", 30*time.Second),
			LockWait:    e.duration("PERSONA_LOCK_WAIT", 10*time.Second),
			ReceiptTTL:  e.duration("PERSONA_RECEIPT_TTL", 24*time.Hour),
			OverlayTTL:  e.duration("PERSONA_OVERLAY_TTL", 2*time.Minute),
			OverlaySize: e.int("PERSONA_OVERLAY_SIZE", 10000),
			AuditBuffer: e.int("AUDIT_BUFFER", 256),
		},
	}

	if len(e.errs) > 0 {
		return nil, errors.Join(e.errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	var errs []error
	switch c.Ledger.Backend {
	case BackendLedger:
		if c.Ledger.ContractAddress == "" {
			errs = append(errs, errors.New("DOCUSTORE_CONTRACT_ADDRESS is required for the ledger store"))
		}
		if c.Ledger.AdminMnemonic == "" {
			errs = append(errs, errors.New("ADMIN_MNEMONIC is required for the ledger store"))
		}
		if c.Ledger.LCDEndpoint == "" || c.Ledger.ChainID == "" {
			errs = append(errs, errors.New("XION_LCD_ENDPOINT and XION_CHAIN_ID are required for the ledger store"))
		}
		if c.Ledger.GasLimit == 0 {
			errs = append(errs, errors.New("XION_GAS_LIMIT must be positive"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("PERSONA_STORE %q is not one of ledger|memory", c.Ledger.Backend))
	}
	if len(c.Reclaim.Witnesses) == 0 {
		errs = append(errs, errors.New("RECLAIM_WITNESSES must list at least one witness address"))
	}
	if c.Reclaim.MinSignatures < 1 {
		errs = append(errs, errors.New("RECLAIM_MIN_SIGNATURES must be at least 1"))
	}
	if c.Providers.Twitter == "" || c.Providers.GitHub == "" {
		errs = append(errs, errors.New("provider IDs must not be empty"))
	}
	if c.Providers.Twitter == c.Providers.GitHub {
		errs = append(errs, errors.New("provider IDs must be distinct"))
	}
	if c.Pipeline.LockWait <= 0 || c.Pipeline.LockTTL <= 0 {
		errs = append(errs, errors.New("PERSONA_LOCK_TTL and PERSONA_LOCK_WAIT must be positive"))
	}
	return errors.Join(errs...)
}

// RequestGenerationEnabled reports whether the generate-request endpoint can
// sign Reclaim requests.
func (c *Config) RequestGenerationEnabled() bool {
	return c.Reclaim.AppID != "" && c.Reclaim.AppSecret != ""
}

type env struct {
	getenv func(string) string
	errs   []error
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *env) int(key string, def int) int {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (e *env) bool(key string, def bool) bool {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}
