// Package accountstore implements authgate.AccountProvider on GORM. The
// engine only sees the interface; this adapter owns the schema and the
// soft-delete flag.
package accountstore

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	authgate "github.com/e202/authgate"
)

type accountRow struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	Username     string `gorm:"not null"`
	PasswordHash string `gorm:"not null"`
	Deleted      bool   `gorm:"not null;default:false"`
}

func (accountRow) TableName() string { return "accounts" }

// Store is a GORM-backed account provider.
type Store struct {
	db *gorm.DB
}

// New migrates the accounts table and returns a Store.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&accountRow{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// FindByID returns the account or (nil, nil) when absent. Soft-deleted rows
// are treated as absent.
func (s *Store) FindByID(ctx context.Context, id string) (*authgate.Account, error) {
	return s.findOne(ctx, "id = ?", id)
}

// FindByEmail returns the account or (nil, nil) when absent.
func (s *Store) FindByEmail(ctx context.Context, email string) (*authgate.Account, error) {
	return s.findOne(ctx, "email = ?", email)
}

func (s *Store) findOne(ctx context.Context, query string, arg any) (*authgate.Account, error) {
	var row accountRow
	err := s.db.WithContext(ctx).Where(query, arg).Where("deleted = ?", false).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toAccount(&row), nil
}

// Create inserts the account, assigning a fresh UUID when the caller left the
// ID empty, and writes the generated ID back.
func (s *Store) Create(ctx context.Context, account *authgate.Account) error {
	row := accountRow{
		ID:           account.ID,
		Email:        account.Email,
		Username:     account.Username,
		PasswordHash: account.PasswordHash,
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return authgate.ErrEmailTaken
		}
		return err
	}

	account.ID = row.ID
	return nil
}

// isUniqueViolation recognizes a duplicate-email insert. Soft-deleted rows
// keep their email under the unique index while reading as absent, so the
// constraint can fire even after the duplicate check passed.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// UpdatePasswordHash replaces the stored credential hash.
func (s *Store) UpdatePasswordHash(ctx context.Context, id, newHash string) error {
	result := s.db.WithContext(ctx).Model(&accountRow{}).
		Where("id = ?", id).
		Update("password_hash", newHash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SoftDelete flags the account as deleted; the row remains for audit.
func (s *Store) SoftDelete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Model(&accountRow{}).
		Where("id = ?", id).
		Update("deleted", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func toAccount(row *accountRow) *authgate.Account {
	return &authgate.Account{
		ID:           row.ID,
		Email:        row.Email,
		Username:     row.Username,
		PasswordHash: row.PasswordHash,
		Deleted:      row.Deleted,
	}
}
