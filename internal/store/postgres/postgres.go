// Package postgres is the gorm-backed store. Uniqueness rules live in the
// schema (see database.Migrate) and violations are reported as store errors.
package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/rivofx/newpulse/internal/account"
	"github.com/rivofx/newpulse/internal/conversation"
	"github.com/rivofx/newpulse/internal/feed"
	"github.com/rivofx/newpulse/internal/relationship"
	"github.com/rivofx/newpulse/internal/store"
)

// PostgreSQL error codes the store translates.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeInvalidText         = "22P02"
)

// Store implements every service store over one *gorm.DB.
type Store struct {
	db  *gorm.DB
	pub feed.Publisher
}

var (
	_ relationship.Store = (*Store)(nil)
	_ conversation.Store = (*Store)(nil)
	_ account.Store      = (*Store)(nil)
)

// New returns a store over db. Inserts and updates of published tables reach
// pub through gorm callbacks registered here; membership events, which are
// written inside a transaction, are published by the store after commit.
func New(db *gorm.DB, pub feed.Publisher) (*Store, error) {
	if pub == nil {
		pub = feed.Discard
	}
	if err := registerFeedCallbacks(db, pub); err != nil {
		return nil, err
	}
	return &Store{db: db, pub: pub}, nil
}

// translate maps driver errors onto store errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return store.ErrConflict
		case codeForeignKeyViolation, codeInvalidText:
			// A dangling reference or a malformed uuid cannot match a row.
			return store.ErrNotFound
		}
	}
	return err
}
