package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gamelab-hdl/gamelab/pkg/config"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a requested row does not exist. Callers
// should match it with errors.Is.
var ErrNotFound = errors.New("record not found")

// Store provides persistence for users and their transaction log.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	// User access.
	GetUserByID(ctx context.Context, id uint) (*User, error)
	GetUserByName(ctx context.Context, name string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	CreateUser(ctx context.Context, user *User) error
	UpdateUserPassword(ctx context.Context, name, passwordHash string) error

	// CreditCoins applies a coin balance change and appends the audit
	// record as one atomic unit.
	CreditCoins(
		ctx context.Context,
		targetID uint,
		adminID *uint,
		amount int64,
		comment string,
	) (*Transaction, error)

	// ListTransactionsForUser returns the newest transactions for a
	// user, capped at limit.
	ListTransactionsForUser(
		ctx context.Context, userID uint, limit int,
	) ([]Transaction, error)

	// Seeding from config.
	SeedUsers(ctx context.Context, users []config.SeedUser) error
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// NewStore creates a new Store backed by the configured database driver.
func NewStore(
	log logrus.FieldLogger,
	cfg *config.DatabaseConfig,
) Store {
	return &store{
		log: log.WithField("component", "store"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var (
		dialector gorm.Dialector
		err       error
	)

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	s.db, err = gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	if s.cfg.Driver == "sqlite" {
		// SQLite supports a single writer. Cap the pool so concurrent
		// credits queue on one connection instead of failing with a
		// busy error.
		sqlDB, dbErr := s.db.DB()
		if dbErr != nil {
			return fmt.Errorf("getting underlying db: %w", dbErr)
		}

		sqlDB.SetMaxOpenConns(1)
	}

	if err := s.db.WithContext(ctx).AutoMigrate(
		&User{},
		&Transaction{},
	); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).Info("Database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// --- User access ---

func (s *store) GetUserByID(
	ctx context.Context, id uint,
) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, fmt.Errorf("getting user by id: %w", mapNotFound(err))
	}

	return &user, nil
}

func (s *store) GetUserByName(
	ctx context.Context, name string,
) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).
		Where("name = ?", name).
		First(&user).Error; err != nil {
		return nil, fmt.Errorf("getting user by name: %w", mapNotFound(err))
	}

	return &user, nil
}

func (s *store) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := s.db.WithContext(ctx).
		Order("id ASC").
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	return users, nil
}

func (s *store) CreateUser(ctx context.Context, user *User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	return nil
}

func (s *store) UpdateUserPassword(
	ctx context.Context, name, passwordHash string,
) error {
	result := s.db.WithContext(ctx).
		Model(&User{}).
		Where("name = ?", name).
		Update("password_hash", passwordHash)
	if result.Error != nil {
		return fmt.Errorf("updating password: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("updating password for %q: %w", name, ErrNotFound)
	}

	return nil
}

// --- Ledger writes ---

// CreditCoins increments the target's coin balance and appends the
// transaction record inside one database transaction. Either both
// writes commit or neither does.
func (s *store) CreditCoins(
	ctx context.Context,
	targetID uint,
	adminID *uint,
	amount int64,
	comment string,
) (*Transaction, error) {
	txn := &Transaction{
		UserID:    targetID,
		AdminID:   adminID,
		Action:    ActionAdd,
		Amount:    amount,
		Resource:  ResourceCoins,
		Comment:   comment,
		Timestamp: time.Now().UTC(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&User{}).
			Where("id = ?", targetID).
			Update("coins", gorm.Expr("coins + ?", amount))
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			return ErrNotFound
		}

		return tx.Create(txn).Error
	})
	if err != nil {
		return nil, fmt.Errorf("crediting coins: %w", err)
	}

	return txn, nil
}

// --- Transaction log reads ---

func (s *store) ListTransactionsForUser(
	ctx context.Context, userID uint, limit int,
) ([]Transaction, error) {
	var txns []Transaction
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&txns).Error; err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}

	return txns, nil
}

// --- Seeding ---

// SeedUsers creates config-sourced users that do not exist yet.
// Existing users keep their current password and balances.
func (s *store) SeedUsers(
	ctx context.Context, users []config.SeedUser,
) error {
	created := 0

	for _, u := range users {
		var existing User

		err := s.db.WithContext(ctx).
			Where("name = ?", u.Name).
			First(&existing).Error
		if err == nil {
			continue
		}

		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("checking seed user %q: %w", u.Name, err)
		}

		hash, err := bcrypt.GenerateFromPassword(
			[]byte(u.Password), bcrypt.DefaultCost,
		)
		if err != nil {
			return fmt.Errorf("hashing password for %q: %w", u.Name, err)
		}

		newUser := User{
			ID:           u.ID,
			Name:         u.Name,
			PasswordHash: string(hash),
		}

		if err := s.db.WithContext(ctx).Create(&newUser).Error; err != nil {
			return fmt.Errorf("seeding user %q: %w", u.Name, err)
		}

		created++
	}

	if created > 0 {
		s.log.WithField("count", created).
			Info("Seeded users from config")
	}

	return nil
}

// mapNotFound translates gorm's record-not-found into the store's
// sentinel so callers do not depend on gorm.
func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	return err
}
