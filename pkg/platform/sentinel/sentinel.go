package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, the ledger client and the
// lock/receipt backends return these (optionally wrapped) so the pipeline can
// branch on them without matching strings:
// - ErrNotFound: document or record does not exist
// - ErrConflict: another holder owns the resource (e.g. a per-user lock)
// - ErrExpired: token or session has expired
// - ErrAlreadyUsed: one-time resource already consumed
// - ErrUnavailable: backend temporarily unavailable (network, open breaker)
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrExpired     = errors.New("expired")
	ErrAlreadyUsed = errors.New("already used")
	ErrUnavailable = errors.New("unavailable")
)
