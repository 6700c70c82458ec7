package ledger

import (
	"context"
	"fmt"
	"sync"

	"recibo/internal/logger"
	"recibo/pkg/errors"
	"recibo/pkg/metrics"
	"recibo/pkg/retry"
)

type Status string

const (
	// Wire values match the persisted lista.json format.
	StatusPending Status = "PENDENTE"
	StatusSettled Status = "PAGO"
)

// Payee is one ledger row. Name is the display name and, after
// normalization, the join key.
type Payee struct {
	Name   string `json:"nome"`
	Status Status `json:"status"`
}

type SettlementOutcome int

const (
	OutcomeSettled SettlementOutcome = iota
	OutcomeAlreadySettled
	OutcomeNoSuchPayee
)

func (o SettlementOutcome) String() string {
	switch o {
	case OutcomeSettled:
		return "settled"
	case OutcomeAlreadySettled:
		return "already_settled"
	default:
		return "no_such_payee"
	}
}

// Store is the injected persistence for the payee list. Save rewrites the
// full list; there is no partial or append format.
type Store interface {
	Load(ctx context.Context) ([]Payee, error)
	Save(ctx context.Context, payees []Payee) error
}

// Ledger owns the in-memory payee list and serializes every mutation through
// one mutex. Persistence happens inside the critical section, after the
// in-memory change and before the lock is released, so memory and disk can
// never drift further apart than one lost mutation.
type Ledger struct {
	mu          sync.Mutex
	entries     []Payee
	store       Store
	retryPolicy retry.Policy
	logger      logger.Logger
}

// Open loads the persisted payee list and validates the unique-name
// invariant before serving anything.
func Open(ctx context.Context, store Store, policy retry.Policy, log logger.Logger) (*Ledger, error) {
	entries, err := store.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrPersistence)
	}

	seen := make(map[string]string, len(entries))
	for _, p := range entries {
		key := NormalizeName(p.Name)
		if other, dup := seen[key]; dup {
			return nil, errors.ErrValidation.WithDetail(
				"message", fmt.Sprintf("payees %q and %q normalize to the same name", other, p.Name),
			)
		}
		seen[key] = p.Name
	}

	l := &Ledger{
		entries:     entries,
		store:       store,
		retryPolicy: policy,
		logger:      log,
	}
	l.updatePendingGauge()
	return l, nil
}

// PendingNames returns the display names of every payee still pending, in
// insertion order.
func (l *Ledger) PendingNames() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	names := make([]string, 0, len(l.entries))
	for _, p := range l.entries {
		if p.Status != StatusSettled {
			names = append(names, p.Name)
		}
	}
	return names
}

// Snapshot returns a copy of the full payee list in insertion order.
func (l *Ledger) Snapshot() []Payee {
	l.mu.Lock()
	defer l.mu.Unlock()

	snapshot := make([]Payee, len(l.entries))
	copy(snapshot, l.entries)
	return snapshot
}

// MarkSettled settles the payee whose normalized name equals the normalized
// input. It is idempotent: a second call for a settled payee returns
// OutcomeAlreadySettled without touching memory or disk. A persistence
// failure rolls the in-memory change back and surfaces as an error, so a
// reported settlement is always on disk.
func (l *Ledger) MarkSettled(ctx context.Context, name string) (SettlementOutcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := NormalizeName(name)

	idx := -1
	for i, p := range l.entries {
		if NormalizeName(p.Name) == key {
			idx = i
			break
		}
	}

	if idx == -1 {
		return OutcomeNoSuchPayee, nil
	}

	if l.entries[idx].Status == StatusSettled {
		return OutcomeAlreadySettled, nil
	}

	l.entries[idx].Status = StatusSettled

	if err := l.flushLocked(ctx); err != nil {
		l.entries[idx].Status = StatusPending
		return OutcomeNoSuchPayee, err
	}

	l.updatePendingGauge()
	return OutcomeSettled, nil
}

// ResetAll sets every payee back to pending. Like MarkSettled, the change is
// rolled back if it cannot be persisted.
func (l *Ledger) ResetAll(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	previous := make([]Status, len(l.entries))
	for i := range l.entries {
		previous[i] = l.entries[i].Status
		l.entries[i].Status = StatusPending
	}

	if err := l.flushLocked(ctx); err != nil {
		for i := range l.entries {
			l.entries[i].Status = previous[i]
		}
		return err
	}

	l.updatePendingGauge()
	return nil
}

func (l *Ledger) flushLocked(ctx context.Context) error {
	err := retry.RetryWithCallback(ctx, l.retryPolicy, func() error {
		return l.store.Save(ctx, l.entries)
	}, func(attempt int, attemptErr error) {
		l.logger.WarnwCtx(ctx, "Ledger flush failed, retrying", "attempt", attempt, "error", attemptErr)
	})

	if err != nil {
		metrics.LedgerFlushesTotal.WithLabelValues("error").Inc()
		l.logger.ErrorwCtx(ctx, "Ledger flush exhausted retries", "error", err)
		return errors.Wrap(err, errors.ErrPersistence)
	}

	metrics.LedgerFlushesTotal.WithLabelValues("success").Inc()
	return nil
}

func (l *Ledger) updatePendingGauge() {
	pending := 0
	for _, p := range l.entries {
		if p.Status != StatusSettled {
			pending++
		}
	}
	metrics.LedgerPendingPayees.Set(float64(pending))
}
