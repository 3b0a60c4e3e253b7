// Package db persists the account registry snapshot in sqlite. The core
// touches it only at process start (load) and stop (save).
package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"echochamber/account"
	"echochamber/security"
)

const timeFormat = time.RFC3339

type DB struct {
	conn *sql.DB
}

func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			salt TEXT NOT NULL,
			hash TEXT NOT NULL,
			created TEXT NOT NULL,
			last_login TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS relations (
			account_id TEXT NOT NULL,
			other_id TEXT NOT NULL,
			kind TEXT NOT NULL CHECK(kind IN ('friend', 'pending')),
			PRIMARY KEY (account_id, other_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_relations_account ON relations(account_id)`,
	}
	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("initializing schema: %w", err)
		}
	}
	return nil
}

// LoadAccounts reads the persisted registry snapshot.
func (db *DB) LoadAccounts() ([]account.Snapshot, error) {
	rows, err := db.conn.Query("SELECT id, username, salt, hash, created, last_login FROM accounts")
	if err != nil {
		return nil, fmt.Errorf("loading accounts: %w", err)
	}
	defer rows.Close()

	var snaps []account.Snapshot
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var idStr, username, saltHex, hashHex, createdStr, lastLoginStr string
		if err := rows.Scan(&idStr, &username, &saltHex, &hashHex, &createdStr, &lastLoginStr); err != nil {
			return nil, fmt.Errorf("scanning account row: %w", err)
		}
		snap, err := decodeAccount(idStr, username, saltHex, hashHex, createdStr, lastLoginStr)
		if err != nil {
			return nil, err
		}
		index[snap.ID] = len(snaps)
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading accounts: %w", err)
	}

	relRows, err := db.conn.Query("SELECT account_id, other_id, kind FROM relations")
	if err != nil {
		return nil, fmt.Errorf("loading relations: %w", err)
	}
	defer relRows.Close()

	for relRows.Next() {
		var accountStr, otherStr, kind string
		if err := relRows.Scan(&accountStr, &otherStr, &kind); err != nil {
			return nil, fmt.Errorf("scanning relation row: %w", err)
		}
		accountID, err := uuid.Parse(accountStr)
		if err != nil {
			return nil, fmt.Errorf("parsing relation account id %q: %w", accountStr, err)
		}
		otherID, err := uuid.Parse(otherStr)
		if err != nil {
			return nil, fmt.Errorf("parsing relation counterpart id %q: %w", otherStr, err)
		}
		i, ok := index[accountID]
		if !ok {
			continue
		}
		switch kind {
		case "friend":
			snaps[i].Friends = append(snaps[i].Friends, otherID)
		case "pending":
			snaps[i].PendingSent = append(snaps[i].PendingSent, otherID)
		}
	}
	return snaps, relRows.Err()
}

// SaveAccounts replaces the stored snapshot with the given one in a single
// transaction. Friendships are stored once per direction to mirror the
// in-memory sets; pending entries only on the sender's side.
func (db *DB) SaveAccounts(snaps []account.Snapshot) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("saving accounts: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM relations"); err != nil {
		return fmt.Errorf("clearing relations: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM accounts"); err != nil {
		return fmt.Errorf("clearing accounts: %w", err)
	}

	for _, snap := range snaps {
		lastLogin := ""
		if !snap.LastLogin.IsZero() {
			lastLogin = snap.LastLogin.Format(timeFormat)
		}
		_, err := tx.Exec(
			"INSERT INTO accounts (id, username, salt, hash, created, last_login) VALUES (?, ?, ?, ?, ?, ?)",
			snap.ID.String(), snap.Username,
			security.HexEncode(snap.Salt), security.HexEncode(snap.Hash),
			snap.Created.Format(timeFormat), lastLogin,
		)
		if err != nil {
			return fmt.Errorf("saving account %s: %w", snap.Username, err)
		}
		for _, id := range snap.Friends {
			if _, err := tx.Exec(
				"INSERT INTO relations (account_id, other_id, kind) VALUES (?, ?, 'friend')",
				snap.ID.String(), id.String(),
			); err != nil {
				return fmt.Errorf("saving relations of %s: %w", snap.Username, err)
			}
		}
		for _, id := range snap.PendingSent {
			if _, err := tx.Exec(
				"INSERT INTO relations (account_id, other_id, kind) VALUES (?, ?, 'pending')",
				snap.ID.String(), id.String(),
			); err != nil {
				return fmt.Errorf("saving relations of %s: %w", snap.Username, err)
			}
		}
	}
	return tx.Commit()
}

func decodeAccount(idStr, username, saltHex, hashHex, createdStr, lastLoginStr string) (account.Snapshot, error) {
	id, err := uuid.Parse(idStr)
	if err != nil {
		return account.Snapshot{}, fmt.Errorf("parsing account id %q: %w", idStr, err)
	}
	salt, err := security.HexDecode(saltHex)
	if err != nil {
		return account.Snapshot{}, fmt.Errorf("decoding salt of %s: %w", username, err)
	}
	hash, err := security.HexDecode(hashHex)
	if err != nil {
		return account.Snapshot{}, fmt.Errorf("decoding hash of %s: %w", username, err)
	}
	created, err := time.Parse(timeFormat, createdStr)
	if err != nil {
		return account.Snapshot{}, fmt.Errorf("parsing creation date of %s: %w", username, err)
	}
	var lastLogin time.Time
	if lastLoginStr != "" {
		lastLogin, err = time.Parse(timeFormat, lastLoginStr)
		if err != nil {
			return account.Snapshot{}, fmt.Errorf("parsing last login of %s: %w", username, err)
		}
	}
	return account.Snapshot{
		ID:        id,
		Username:  username,
		Salt:      salt,
		Hash:      hash,
		Permanent: true,
		Created:   created,
		LastLogin: lastLogin,
	}, nil
}
