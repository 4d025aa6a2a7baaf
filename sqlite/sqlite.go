// Package sqlite implements credential and challenge persistence with a
// SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/splitsecure/go-webauthn/challenge"
	"github.com/splitsecure/go-webauthn/webauthn"
)

// Store implements webauthn.CredentialStore and challenge.Store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) a SQLite database at path and prepares
// the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	s, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing database handle and prepares the schema.
func New(db *sql.DB) (*Store, error) {
	stmts := []string{
		`PRAGMA foreign_keys = ON`,
		`CREATE TABLE IF NOT EXISTS credentials
			( credential_id BLOB PRIMARY KEY
			, user_id TEXT NOT NULL
			, public_key BLOB NOT NULL
			, sign_count INTEGER NOT NULL
			, transports TEXT NOT NULL
			, aaguid BLOB
			, label TEXT NOT NULL
			, created_at INTEGER NOT NULL
			, last_used_at INTEGER
			)`,
		`CREATE INDEX IF NOT EXISTS credentials_user_id ON credentials(user_id)`,
		`CREATE TABLE IF NOT EXISTS challenges
			( scope TEXT PRIMARY KEY
			, value BLOB NOT NULL
			, expires_at INTEGER NOT NULL
			)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return nil, errors.Wrapf(err, "executing %q", stmt)
		}
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetByID(ctx context.Context, credentialID []byte) (*webauthn.Credential, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT credential_id, user_id, public_key, sign_count, transports, aaguid, label, created_at, last_used_at
		 FROM credentials WHERE credential_id = ?`, credentialID)
	cred, err := scanCredential(row)
	if err == sql.ErrNoRows {
		return nil, webauthn.ErrCredentialNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get credential")
	}
	return cred, nil
}

func (s *Store) ListForUser(ctx context.Context, userID string) ([]webauthn.Credential, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT credential_id, user_id, public_key, sign_count, transports, aaguid, label, created_at, last_used_at
		 FROM credentials WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list credentials")
	}
	defer func() { _ = rows.Close() }()

	var creds []webauthn.Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan credential")
		}
		creds = append(creds, *cred)
	}
	return creds, rows.Err()
}

func (s *Store) CountForUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM credentials WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "count credentials")
	}
	return n, nil
}

func (s *Store) Insert(ctx context.Context, cred *webauthn.Credential) error {
	transports, err := json.Marshal(cred.Transports)
	if err != nil {
		return errors.Wrap(err, "encoding transports")
	}
	var lastUsed sql.NullInt64
	if !cred.LastUsedAt.IsZero() {
		lastUsed = sql.NullInt64{Int64: cred.LastUsedAt.UnixMilli(), Valid: true}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO credentials
		 (credential_id, user_id, public_key, sign_count, transports, aaguid, label, created_at, last_used_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cred.ID, cred.UserID, cred.PublicKey, cred.SignCount,
		string(transports), cred.AAGUID, cred.Label,
		cred.CreatedAt.UnixMilli(), lastUsed)
	if err != nil {
		return errors.Wrap(err, "insert credential")
	}
	return nil
}

// UpdateSignCount performs the compare-and-set the coordinator requires:
// the row is only written when the stored counter still equals oldCount,
// so a concurrent replay observes zero affected rows instead of
// clobbering a newer counter.
func (s *Store) UpdateSignCount(ctx context.Context, credentialID []byte, oldCount, newCount uint32, lastUsedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE credentials SET sign_count = ?, last_used_at = ?
		 WHERE credential_id = ? AND sign_count = ?`,
		newCount, lastUsedAt.UnixMilli(), credentialID, oldCount)
	if err != nil {
		return errors.Wrap(err, "update sign count")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return webauthn.ErrCounterRegressed
	}
	return nil
}

func (s *Store) Put(ctx context.Context, scope string, value []byte, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO challenges (scope, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (scope) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		scope, value, expiresAt.UnixMilli())
	if err != nil {
		return errors.Wrap(err, "put challenge")
	}
	return nil
}

// Take deletes and returns a challenge in one statement, so concurrent
// consumers of the same scope cannot both succeed.
func (s *Store) Take(ctx context.Context, scope string) ([]byte, time.Time, error) {
	var value []byte
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`DELETE FROM challenges WHERE scope = ? RETURNING value, expires_at`,
		scope).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, challenge.ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, errors.Wrap(err, "take challenge")
	}
	return value, time.UnixMilli(expiresAt), nil
}

// DeleteExpiredChallenges clears challenges whose TTL elapsed without
// being consumed. Suitable for a periodic maintenance call.
func (s *Store) DeleteExpiredChallenges(ctx context.Context, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM challenges WHERE expires_at < ?`, now.UnixMilli())
	if err != nil {
		return errors.Wrap(err, "delete expired challenges")
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCredential(row scanner) (*webauthn.Credential, error) {
	var (
		cred       webauthn.Credential
		transports string
		createdAt  int64
		lastUsed   sql.NullInt64
	)
	err := row.Scan(&cred.ID, &cred.UserID, &cred.PublicKey, &cred.SignCount,
		&transports, &cred.AAGUID, &cred.Label, &createdAt, &lastUsed)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(transports), &cred.Transports); err != nil {
		return nil, errors.Wrap(err, "decoding transports")
	}
	cred.CreatedAt = time.UnixMilli(createdAt)
	if lastUsed.Valid {
		cred.LastUsedAt = time.UnixMilli(lastUsed.Int64)
	}
	return &cred, nil
}
