package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"possync/internal/model"
	"possync/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reservation is the outcome of IdempotencyLedger.ResolveOrReserve: either
// the sale already stored under Key (Existing != nil) or permission to
// create one under Key.
type Reservation struct {
	Key      string
	Existing *model.Sale
}

// Hit reports whether the key already maps to a committed sale.
func (r Reservation) Hit() bool { return r.Existing != nil }

// IdempotencyLedger maps client idempotency keys to committed sales.
// It performs a cheap existence check only; mutual exclusion between
// concurrent submissions of one key comes from the unique index on
// sales.external_id, which ResolveConflict turns back into a read.
type IdempotencyLedger struct {
	repo repository.SaleRepository
}

func NewIdempotencyLedger(repo repository.SaleRepository) *IdempotencyLedger {
	return &IdempotencyLedger{repo: repo}
}

// ResolveOrReserve looks key up. A nil or blank key is replaced by a fresh
// random one, which by construction cannot hit.
func (l *IdempotencyLedger) ResolveOrReserve(ctx context.Context, ownerID uuid.UUID, key *string) (Reservation, error) {
	k := ""
	if key != nil {
		k = strings.TrimSpace(*key)
	}
	if k == "" {
		return Reservation{Key: uuid.NewString()}, nil
	}
	if len(k) > 64 {
		return Reservation{}, fieldError("external_id", "must be at most 64 characters")
	}

	existing, err := l.repo.FindByExternalID(ctx, k)
	switch {
	case err == nil:
		if existing.OwnerID != ownerID {
			return Reservation{}, ErrIdempotencyKeyInUse
		}
		return Reservation{Key: k, Existing: existing}, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Reservation{Key: k}, nil
	default:
		return Reservation{}, fmt.Errorf("idempotency lookup: %w", err)
	}
}

// ResolveConflict inspects a failed commit. When the failure is the
// external_id uniqueness violation of a concurrent winner, the winner's
// sale is returned with ok=true and the caller must report it as existing.
func (l *IdempotencyLedger) ResolveConflict(ctx context.Context, ownerID uuid.UUID, key string, commitErr error) (*model.Sale, bool, error) {
	if !errors.Is(commitErr, gorm.ErrDuplicatedKey) {
		return nil, false, nil
	}
	existing, err := l.repo.FindByExternalID(ctx, key)
	if err != nil {
		// The duplicate was some other unique column (e.g. an inline SKU).
		return nil, false, nil
	}
	if existing.OwnerID != ownerID {
		return nil, false, ErrIdempotencyKeyInUse
	}
	return existing, true, nil
}
