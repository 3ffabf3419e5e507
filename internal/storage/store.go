// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage is the backend's authoritative item store, kept in SQLite.
package storage

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/glog"
	"golang.org/x/crypto/pbkdf2"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/proxima-tui/internal/database"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// PasswordIterations is the PBKDF2 work factor for stored passwords.
	PasswordIterations = 100_000

	saltSize = 16
	keySize  = 32
)

// Schema creates the tables used by the store.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	pseudonym  TEXT PRIMARY KEY,
	salt       BLOB NOT NULL,
	hash       BLOB NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
	owner      TEXT NOT NULL,
	category   TEXT NOT NULL,
	pos        INTEGER NOT NULL,
	body       TEXT NOT NULL,
	removed    INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (owner, category, pos)
);
`

var (
	// ErrUserExists is returned when registering a taken pseudonym.
	ErrUserExists = errors.New("pseudonym already registered")

	// ErrBadCredentials is returned when a password does not match.
	ErrBadCredentials = errors.New("bad credentials")
)

// =============================================================================
// STORE
// =============================================================================

// Store keeps one dense ledger per user. Positions are assigned here and
// nowhere else.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer; one connection also serialises position
	// assignment.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// USERS
// =============================================================================

// CreateUser registers pseudonym and seeds its ledger with the default
// access mode and the user data singleton.
func (s *Store) CreateUser(ctx context.Context, pseudonym, password string) error {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	hash := hashPassword(password, salt)

	return s.tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO users (pseudonym, salt, hash, created_at) VALUES (?, ?, ?, ?)`,
			pseudonym, salt, hash, time.Now().Unix())
		if err != nil {
			var exists int
			if qerr := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE pseudonym = ?`, pseudonym).Scan(&exists); qerr == nil && exists > 0 {
				return ErrUserExists
			}
			return fmt.Errorf("failed to insert user: %w", err)
		}
		seed := database.NewLedger(pseudonym)
		if _, err := add(ctx, tx, pseudonym, seed.AccessMode(0)); err != nil {
			return err
		}
		_, err = add(ctx, tx, pseudonym, &seed.User)
		return err
	})
}

// Authenticate checks a password.
func (s *Store) Authenticate(ctx context.Context, pseudonym, password string) error {
	var salt, hash []byte
	err := s.db.QueryRowContext(ctx, `SELECT salt, hash FROM users WHERE pseudonym = ?`, pseudonym).Scan(&salt, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrBadCredentials
	}
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if subtle.ConstantTimeCompare(hashPassword(password, salt), hash) != 1 {
		return ErrBadCredentials
	}
	return nil
}

// RegisterDevice records a new client installation and returns its
// position in the device collection.
func (s *Store) RegisterDevice(ctx context.Context, pseudonym, name string) (int, error) {
	id, err := s.Add(ctx, pseudonym, &database.Device{Name: name, LastSeen: time.Now()})
	if err != nil {
		return 0, err
	}
	return id.Pos, nil
}

func hashPassword(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, PasswordIterations, keySize, sha256.New)
}

// =============================================================================
// ITEMS
// =============================================================================

// Add stores item at the next free position of its category and returns
// the assigned id.
func (s *Store) Add(ctx context.Context, owner string, item database.Item) (database.ItemID, error) {
	var id database.ItemID
	err := s.tx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = add(ctx, tx, owner, item)
		return err
	})
	return id, err
}

func add(ctx context.Context, tx *sql.Tx, owner string, item database.Item) (database.ItemID, error) {
	cat := item.Category()
	item = item.Clone()
	if cat.Positional() {
		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM items WHERE owner = ? AND category = ?`, owner, cat.String()).Scan(&n); err != nil {
			return database.ItemID{}, fmt.Errorf("failed to count %s: %w", cat, err)
		}
		item.SetID(database.ItemID{Category: cat, Pos: n})
	}
	if err := put(ctx, tx, owner, item); err != nil {
		return database.ItemID{}, err
	}
	glog.V(2).Infof("[storage] %s added %s", owner, item.ID())
	return item.ID(), nil
}

func put(ctx context.Context, tx *sql.Tx, owner string, item database.Item) error {
	body, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", item.ID(), err)
	}
	id := item.ID()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO items (owner, category, pos, body, removed, updated_at) VALUES (?, ?, ?, ?, 0, ?)
		ON CONFLICT (owner, category, pos) DO UPDATE SET body = excluded.body, removed = 0, updated_at = excluded.updated_at`,
		owner, id.Category.String(), id.Pos, string(body), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", id, err)
	}
	return nil
}

// Get loads one item. Removed items are reported as not found.
func (s *Store) Get(ctx context.Context, owner string, id database.ItemID) (database.Item, error) {
	var body string
	var removed bool
	err := s.db.QueryRowContext(ctx,
		`SELECT body, removed FROM items WHERE owner = ? AND category = ? AND pos = ?`,
		owner, id.Category.String(), id.Pos).Scan(&body, &removed)
	if errors.Is(err, sql.ErrNoRows) || removed {
		return nil, fmt.Errorf("%w: %s", database.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", id, err)
	}
	return decode(id.Category, body)
}

// Update overwrites an existing item. The user data singleton is upserted.
func (s *Store) Update(ctx context.Context, owner string, item database.Item) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		id := item.ID()
		if id.Category.Positional() {
			var exists int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM items WHERE owner = ? AND category = ? AND pos = ?`,
				owner, id.Category.String(), id.Pos).Scan(&exists); err != nil {
				return err
			}
			if exists == 0 {
				return fmt.Errorf("%w: %s", database.ErrNotFound, id)
			}
		}
		return put(ctx, tx, owner, item)
	})
}

// Remove tombstones an item. Positions of other items never change.
func (s *Store) Remove(ctx context.Context, owner string, id database.ItemID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE items SET removed = 1, updated_at = ? WHERE owner = ? AND category = ? AND pos = ? AND removed = 0`,
		time.Now().UnixNano(), owner, id.Category.String(), id.Pos)
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", database.ErrNotFound, id)
	}
	return nil
}

// All returns the owner's whole ledger.
func (s *Store) All(ctx context.Context, owner string) (*database.Ledger, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, pos, body, removed FROM items WHERE owner = ? ORDER BY category, pos`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	l := &database.Ledger{User: database.UserData{Pseudonym: owner}}
	var removed []database.ItemID
	for rows.Next() {
		var (
			catName string
			pos     int
			body    string
			gone    bool
		)
		if err := rows.Scan(&catName, &pos, &body, &gone); err != nil {
			return nil, err
		}
		cat, err := database.ParseCategory(catName)
		if err != nil {
			return nil, err
		}
		item, err := decode(cat, body)
		if err != nil {
			return nil, err
		}
		if !l.InsertOrUpdate(item) {
			return nil, fmt.Errorf("%w: stored %s leaves a gap", database.ErrDensity, item.ID())
		}
		if gone {
			removed = append(removed, item.ID())
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, id := range removed {
		l.Remove(id)
	}
	return l, nil
}

// Handle executes a database request for owner and always produces a reply;
// failures become Error replies.
func (s *Store) Handle(ctx context.Context, owner string, req database.Request) database.Reply {
	switch req.Kind {
	case database.RequestAdd:
		id, err := s.Add(ctx, owner, req.Item)
		if err != nil {
			return database.ErrorReply(err.Error())
		}
		return database.AddedItem(id)
	case database.RequestGet:
		item, err := s.Get(ctx, owner, req.ID)
		if err != nil {
			return database.ErrorReply(err.Error())
		}
		return database.ReturnedItem(item)
	case database.RequestUpdate:
		if err := s.Update(ctx, owner, req.Item); err != nil {
			return database.ErrorReply(err.Error())
		}
		return database.Ack()
	case database.RequestRemove:
		if err := s.Remove(ctx, owner, req.ID); err != nil {
			return database.ErrorReply(err.Error())
		}
		return database.Ack()
	case database.RequestGetAll:
		l, err := s.All(ctx, owner)
		if err != nil {
			return database.ErrorReply(err.Error())
		}
		return database.AllItems(l)
	}
	return database.ErrorReply(fmt.Sprintf("unsupported request %q", req.Kind))
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func decode(cat database.Category, body string) (database.Item, error) {
	item, err := database.NewItem(cat)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(body), item); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", cat, err)
	}
	return item, nil
}
