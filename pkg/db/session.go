// Package db implements the session persistence adapter: a small SQLite
// store holding the active identity, the only piece of session state that
// survives a restart. Contacts, conversations, messages, and connection
// state are always rebuilt fresh from the server.
package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"Ripple/pkg/models"
)

// Store is a SessionStore backed by SQLite via gorm.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the session database at the given path and
// migrates its schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&models.User{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database schema: %w", err)
	}

	return &Store{db: db}, nil
}

// OpenDefault opens the session database in the application's config
// directory.
func OpenDefault() (*Store, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("could not get user config dir: %w", err)
	}
	return Open(filepath.Join(configDir, "Ripple", "session.db"))
}

// Load returns the saved identity, or (nil, nil) when no session was saved.
func (s *Store) Load() (*models.User, error) {
	var user models.User
	err := s.db.First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}
	return &user, nil
}

// Save persists the identity, replacing any previously saved one. The table
// holds at most one row.
func (s *Store) Save(user models.User) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.User{}).Error; err != nil {
			return fmt.Errorf("failed to clear previous identity: %w", err)
		}
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to save identity: %w", err)
		}
		return nil
	})
}

// Clear removes any saved identity.
func (s *Store) Clear() error {
	if err := s.db.Where("1 = 1").Delete(&models.User{}).Error; err != nil {
		return fmt.Errorf("failed to clear identity: %w", err)
	}
	return nil
}
