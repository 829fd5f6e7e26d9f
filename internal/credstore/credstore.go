// Package credstore persists the access/refresh token pair between runs,
// the way the browser client kept them in localStorage. Expiry is never
// checked here: a dead token is discovered by the first rejected request.
package credstore

import (
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	slotAccess  = "access"
	slotRefresh = "refresh"
)

type credential struct {
	Slot  string `gorm:"primaryKey"`
	Value string `gorm:"not null"`
}

type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the token database at path.
// Use ":memory:" in tests.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}
	if err := db.AutoMigrate(&credential{}); err != nil {
		return nil, fmt.Errorf("migrate credential store: %w", err)
	}
	return &Store{db: db}, nil
}

// Access returns the current access token, or "" when signed out.
func (s *Store) Access() string { return s.get(slotAccess) }

// Refresh returns the current refresh token, or "" when absent.
func (s *Store) Refresh() string { return s.get(slotRefresh) }

// SetTokens stores each token that is non-empty, leaving the other slot
// untouched. Mirrors the original client, which only overwrote the slots
// the token endpoint actually returned.
func (s *Store) SetTokens(access, refresh string) error {
	if access != "" {
		if err := s.put(slotAccess, access); err != nil {
			return err
		}
	}
	if refresh != "" {
		if err := s.put(slotRefresh, refresh); err != nil {
			return err
		}
	}
	return nil
}

// Clear removes both tokens.
func (s *Store) Clear() error {
	if err := s.db.Where("slot IN ?", []string{slotAccess, slotRefresh}).
		Delete(&credential{}).Error; err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

func (s *Store) get(slot string) string {
	var cred credential
	err := s.db.Where("slot = ?", slot).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ""
	}
	if err != nil {
		// An unreadable store behaves as signed out.
		return ""
	}
	return cred.Value
}

func (s *Store) put(slot, value string) error {
	cred := credential{Slot: slot, Value: value}
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slot"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&cred).Error; err != nil {
		return fmt.Errorf("store %s token: %w", slot, err)
	}
	return nil
}
