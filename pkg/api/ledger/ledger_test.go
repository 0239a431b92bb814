package ledger_test

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamelab-hdl/gamelab/pkg/api/ledger"
	"github.com/gamelab-hdl/gamelab/pkg/api/store"
	"github.com/gamelab-hdl/gamelab/pkg/config"
)

type fixture struct {
	ledger *ledger.Ledger
	store  store.Store
	admin  *store.User
	alice  *store.User
	bob    *store.User
}

func setupLedger(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: ":memory:"},
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	st := store.NewStore(log, cfg)
	require.NoError(t, st.Start(context.Background()))

	t.Cleanup(func() { _ = st.Stop() })

	f := &fixture{store: st}

	for _, name := range []string{"Admin", "Alice", "Bob"} {
		user := &store.User{Name: name, PasswordHash: "x"}
		require.NoError(t, st.CreateUser(context.Background(), user))

		switch name {
		case "Admin":
			f.admin = user
		case "Alice":
			f.alice = user
		case "Bob":
			f.bob = user
		}
	}

	f.ledger = ledger.New(log, st, f.admin.ID)

	return f
}

func (f *fixture) coins(t *testing.T, id uint) int64 {
	t.Helper()

	user, err := f.store.GetUserByID(context.Background(), id)
	require.NoError(t, err)

	return user.Coins
}

func (f *fixture) logLen(t *testing.T, id uint) int {
	t.Helper()

	txns, err := f.store.ListTransactionsForUser(context.Background(), id, 100)
	require.NoError(t, err)

	return len(txns)
}

func TestLedger_CreditSuccess(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	txn, err := f.ledger.Credit(ctx, f.admin, "Alice", 50)
	require.NoError(t, err)
	require.NotNil(t, txn)

	assert.Equal(t, f.alice.ID, txn.UserID)
	require.NotNil(t, txn.AdminID)
	assert.Equal(t, f.admin.ID, *txn.AdminID)
	assert.Equal(t, store.ActionAdd, txn.Action)
	assert.EqualValues(t, 50, txn.Amount)
	assert.Equal(t, store.ResourceCoins, txn.Resource)
	assert.Equal(t, "credited by Admin", txn.Comment)

	assert.EqualValues(t, 50, f.coins(t, f.alice.ID))
	assert.Equal(t, 1, f.logLen(t, f.alice.ID))
}

func TestLedger_CreditForbiddenForNonAdmin(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	_, err := f.ledger.Credit(ctx, f.bob, "Alice", 50)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrForbidden)

	// Nil actor is equally rejected.
	_, err = f.ledger.Credit(ctx, nil, "Alice", 50)
	assert.ErrorIs(t, err, ledger.ErrForbidden)

	// No balance or log change.
	assert.EqualValues(t, 0, f.coins(t, f.alice.ID))
	assert.Equal(t, 0, f.logLen(t, f.alice.ID))
}

func TestLedger_CreditInvalidAmount(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	for _, amount := range []int64{0, -1, -50} {
		_, err := f.ledger.Credit(ctx, f.admin, "Alice", amount)
		require.Error(t, err, "amount %d", amount)
		assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	}

	assert.EqualValues(t, 0, f.coins(t, f.alice.ID))
	assert.Equal(t, 0, f.logLen(t, f.alice.ID))
}

func TestLedger_CreditUnknownTarget(t *testing.T) {
	f := setupLedger(t)

	_, err := f.ledger.Credit(context.Background(), f.admin, "Mallory", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestLedger_PreconditionOrder(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	// A non-admin crediting an unknown target with a bad amount gets
	// the privilege failure, not the later ones.
	_, err := f.ledger.Credit(ctx, f.bob, "Mallory", -1)
	assert.ErrorIs(t, err, ledger.ErrForbidden)

	// The admin with a bad amount and unknown target gets the amount
	// failure before the lookup.
	_, err = f.ledger.Credit(ctx, f.admin, "Mallory", -1)
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

func TestLedger_CreditAccumulates(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.ledger.Credit(ctx, f.admin, "Alice", 10)
		require.NoError(t, err)
	}

	assert.EqualValues(t, 30, f.coins(t, f.alice.ID))
	assert.Equal(t, 3, f.logLen(t, f.alice.ID))
}

func TestHistory_Authorization(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	_, err := f.ledger.Credit(ctx, f.admin, "Alice", 10)
	require.NoError(t, err)

	// Alice reads her own history.
	own, err := f.ledger.History(ctx, f.alice, f.alice.ID, 0)
	require.NoError(t, err)
	assert.Len(t, own, 1)

	// The admin reads anyone's history.
	admins, err := f.ledger.History(ctx, f.admin, f.alice.ID, 0)
	require.NoError(t, err)
	assert.Len(t, admins, 1)

	// Bob may not read Alice's history.
	_, err = f.ledger.History(ctx, f.bob, f.alice.ID, 0)
	assert.ErrorIs(t, err, ledger.ErrForbidden)

	// Nil viewer is rejected.
	_, err = f.ledger.History(ctx, nil, f.alice.ID, 0)
	assert.ErrorIs(t, err, ledger.ErrForbidden)
}

func TestHistory_EntriesResolved(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	_, err := f.ledger.Credit(ctx, f.admin, "Alice", 25)
	require.NoError(t, err)

	entries, err := f.ledger.History(ctx, f.alice, f.alice.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "Admin", e.Admin)
	assert.Equal(t, store.ActionAdd, e.Action)
	assert.Equal(t, store.ResourceCoins, e.Resource)
	assert.EqualValues(t, 25, e.Amount)
	assert.Equal(t, "credited by Admin", e.Comment)
	assert.False(t, e.Date.IsZero())
}

func TestHistory_SystemSentinels(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	// A system-originated change has no admin and no comment.
	_, err := f.store.CreditCoins(ctx, f.alice.ID, nil, 5, "")
	require.NoError(t, err)

	entries, err := f.ledger.History(ctx, f.alice, f.alice.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, ledger.SystemActor, entries[0].Admin)
	assert.Equal(t, ledger.NoComment, entries[0].Comment)
}

func TestHistory_OrderAndLimit(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := f.ledger.Credit(ctx, f.admin, "Alice", int64(i+1))
		require.NoError(t, err)
	}

	entries, err := f.ledger.History(ctx, f.alice, f.alice.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 6)

	// Newest first.
	for i := 1; i < len(entries); i++ {
		assert.False(
			t,
			entries[i].Date.After(entries[i-1].Date),
			"entries must be ordered newest-first",
		)
		assert.Less(t, entries[i].ID, entries[i-1].ID)
	}

	// An explicit limit caps the page.
	page, err := f.ledger.History(ctx, f.alice, f.alice.ID, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.EqualValues(t, 6, page[0].Amount)
	assert.EqualValues(t, 5, page[1].Amount)

	// Oversized limits are clamped to the default.
	_, err = f.ledger.History(ctx, f.alice, f.alice.ID, 100000)
	require.NoError(t, err)
}

func TestHistory_EmptyForFreshUser(t *testing.T) {
	f := setupLedger(t)

	entries, err := f.ledger.History(
		context.Background(), f.bob, f.bob.ID, 0,
	)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
