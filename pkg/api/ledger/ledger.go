// Package ledger performs authorized balance mutations. Every credit is
// written together with its audit record as one atomic unit; no other
// code path mutates coin balances.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/gamelab-hdl/gamelab/pkg/api/store"
	"github.com/sirupsen/logrus"
)

var (
	// ErrForbidden is returned when the caller lacks the required
	// privilege.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidAmount is returned for non-positive credit amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrNotFound is returned when the target user does not exist.
	ErrNotFound = errors.New("user not found")
)

// Ledger credits coins on behalf of the single privileged account.
type Ledger struct {
	log     logrus.FieldLogger
	store   store.Store
	adminID uint
}

// New creates a Ledger. adminID identifies the one account allowed to
// credit other users.
func New(
	log logrus.FieldLogger,
	st store.Store,
	adminID uint,
) *Ledger {
	return &Ledger{
		log:     log.WithField("component", "ledger"),
		store:   st,
		adminID: adminID,
	}
}

// Credit adds amount coins to the named user and records the
// transaction. Preconditions are checked in order: actor privilege,
// amount validity, target existence. The balance update and the audit
// record commit together or not at all.
func (l *Ledger) Credit(
	ctx context.Context,
	actor *store.User,
	targetName string,
	amount int64,
) (*store.Transaction, error) {
	if actor == nil || actor.ID != l.adminID {
		return nil, ErrForbidden
	}

	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	target, err := l.store.GetUserByName(ctx, targetName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("looking up target user: %w", err)
	}

	adminID := actor.ID
	comment := fmt.Sprintf("credited by %s", actor.Name)

	txn, err := l.store.CreditCoins(
		ctx, target.ID, &adminID, amount, comment,
	)
	if err != nil {
		return nil, fmt.Errorf("applying credit: %w", err)
	}

	l.log.WithField("admin_id", actor.ID).
		WithField("target_id", target.ID).
		WithField("amount", amount).
		Info("Coins credited")

	return txn, nil
}
