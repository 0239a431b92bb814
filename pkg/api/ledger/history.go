package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/gamelab-hdl/gamelab/pkg/api/store"
)

const (
	// DefaultHistoryLimit caps history pages when the caller does not
	// ask for a smaller one.
	DefaultHistoryLimit = 50

	// SystemActor is shown for transactions without an acting admin.
	SystemActor = "system"

	// NoComment is shown for transactions without a comment.
	NoComment = "no comment"
)

// Entry is one resolved history row: the raw transaction joined with
// the acting admin's display name.
type Entry struct {
	ID       uint      `json:"id"`
	Date     time.Time `json:"date"`
	Action   string    `json:"action"`
	Resource string    `json:"resource"`
	Amount   int64     `json:"amount"`
	Admin    string    `json:"admin"`
	Comment  string    `json:"comment"`
}

// History returns the newest transactions for the target user. A user
// may read only their own history; the admin may read anyone's.
func (l *Ledger) History(
	ctx context.Context,
	viewer *store.User,
	targetID uint,
	limit int,
) ([]Entry, error) {
	if viewer == nil ||
		(viewer.ID != targetID && viewer.ID != l.adminID) {
		return nil, ErrForbidden
	}

	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}

	txns, err := l.store.ListTransactionsForUser(ctx, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("reading transaction log: %w", err)
	}

	users, err := l.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving admin names: %w", err)
	}

	names := make(map[uint]string, len(users))
	for i := range users {
		names[users[i].ID] = users[i].Name
	}

	entries := make([]Entry, 0, len(txns))

	for i := range txns {
		t := &txns[i]

		admin := SystemActor
		if t.AdminID != nil {
			if name, ok := names[*t.AdminID]; ok {
				admin = name
			}
		}

		comment := t.Comment
		if comment == "" {
			comment = NoComment
		}

		entries = append(entries, Entry{
			ID:       t.ID,
			Date:     t.Timestamp,
			Action:   t.Action,
			Resource: t.Resource,
			Amount:   t.Amount,
			Admin:    admin,
			Comment:  comment,
		})
	}

	return entries, nil
}
