// Package sqlite provides a SQLite-backed core.Store. It plays the remote
// document store for single-machine deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/aretw0/contractflow/pkg/adapters/sqlite/migrations"
	"github.com/aretw0/contractflow/pkg/core"
)

// Store persists contracts and signatures in SQLite.
type Store struct {
	db *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func toNullMillis(value time.Time) sql.NullInt64 {
	if value.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(value), Valid: true}
}

func fromNullMillis(value sql.NullInt64) time.Time {
	if !value.Valid {
		return time.Time{}
	}
	return fromMillis(value.Int64)
}

// Open opens the database at path and applies the embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// GetContract implements core.Store.
func (s *Store) GetContract(ctx context.Context, id string) (core.Contract, error) {
	var (
		c                    core.Contract
		status               string
		created, updated     int64
		lastActivity, signed sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, owner_id, content, status, version, created_at, updated_at,
       ip_address, user_agent, last_activity, view_count, signed_by, signed_at
FROM contracts WHERE id = ?`, id).Scan(
		&c.ID, &c.OwnerID, &c.Content, &status, &c.Version, &created, &updated,
		&c.Metadata.IPAddress, &c.Metadata.UserAgent, &lastActivity, &c.Metadata.ViewCount,
		&c.Metadata.SignedBy, &signed,
	)
	if err != nil {
		return core.Contract{}, mapError("get contract", err)
	}
	c.Status = core.Status(status)
	c.CreatedAt = fromMillis(created)
	c.UpdatedAt = fromMillis(updated)
	c.Metadata.LastActivity = fromNullMillis(lastActivity)
	c.Metadata.SignedAt = fromNullMillis(signed)

	rows, err := s.db.QueryContext(ctx, `
SELECT version, content, updated_at FROM contract_versions
WHERE contract_id = ? ORDER BY version`, id)
	if err != nil {
		return core.Contract{}, mapError("list contract versions", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			rev core.Revision
			at  int64
		)
		if err := rows.Scan(&rev.Version, &rev.Content, &at); err != nil {
			return core.Contract{}, mapError("scan contract version", err)
		}
		rev.UpdatedAt = fromMillis(at)
		c.PreviousVersions = append(c.PreviousVersions, rev)
	}
	if err := rows.Err(); err != nil {
		return core.Contract{}, mapError("list contract versions", err)
	}
	return c, nil
}

// PutContract implements core.Store. The contract row and its version
// history are replaced in one transaction.
func (s *Store) PutContract(ctx context.Context, c core.Contract) error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("contract id is required: %w", core.ErrValidation)
	}
	content := c.Content
	if content == nil {
		content = []byte{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError("begin put contract", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO contracts (
    id, owner_id, content, status, version, created_at, updated_at,
    ip_address, user_agent, last_activity, view_count, signed_by, signed_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    owner_id = excluded.owner_id,
    content = excluded.content,
    status = excluded.status,
    version = excluded.version,
    created_at = excluded.created_at,
    updated_at = excluded.updated_at,
    ip_address = excluded.ip_address,
    user_agent = excluded.user_agent,
    last_activity = excluded.last_activity,
    view_count = excluded.view_count,
    signed_by = excluded.signed_by,
    signed_at = excluded.signed_at`,
		c.ID, c.OwnerID, content, string(c.Status), c.Version, toMillis(c.CreatedAt), toMillis(c.UpdatedAt),
		c.Metadata.IPAddress, c.Metadata.UserAgent, toNullMillis(c.Metadata.LastActivity), c.Metadata.ViewCount,
		c.Metadata.SignedBy, toNullMillis(c.Metadata.SignedAt),
	); err != nil {
		return mapError("put contract", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM contract_versions WHERE contract_id = ?`, c.ID); err != nil {
		return mapError("clear contract versions", err)
	}
	for _, rev := range c.PreviousVersions {
		revContent := rev.Content
		if revContent == nil {
			revContent = []byte{}
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO contract_versions (contract_id, version, content, updated_at) VALUES (?, ?, ?, ?)`,
			c.ID, rev.Version, revContent, toMillis(rev.UpdatedAt),
		); err != nil {
			return mapError("put contract version", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return mapError("commit put contract", err)
	}
	return nil
}

// GetSignature implements core.Store.
func (s *Store) GetSignature(ctx context.Context, contractID string, role core.Role) (core.Signature, error) {
	sig := core.Signature{ContractID: contractID, Role: role}
	var signedAt int64
	err := s.db.QueryRowContext(ctx, `
SELECT signer_user_id, name, signature_image, signed_at FROM signatures
WHERE contract_id = ? AND role = ?`, contractID, string(role)).Scan(
		&sig.SignerUserID, &sig.Name, &sig.SignatureImage, &signedAt,
	)
	if err != nil {
		return core.Signature{}, mapError("get signature", err)
	}
	sig.SignedAt = fromMillis(signedAt)
	return sig, nil
}

// PutSignature implements core.Store. Signing a contract that does not
// exist fails with core.ErrNotFound.
func (s *Store) PutSignature(ctx context.Context, sig core.Signature) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO signatures (contract_id, role, signer_user_id, name, signature_image, signed_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (contract_id, role) DO UPDATE SET
    signer_user_id = excluded.signer_user_id,
    name = excluded.name,
    signature_image = excluded.signature_image,
    signed_at = excluded.signed_at`,
		sig.ContractID, string(sig.Role), sig.SignerUserID, sig.Name, sig.SignatureImage, toMillis(sig.SignedAt),
	)
	if err != nil {
		return mapError("put signature", err)
	}
	return nil
}

// DeleteSignature implements core.Store.
func (s *Store) DeleteSignature(ctx context.Context, contractID string, role core.Role) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM signatures WHERE contract_id = ? AND role = ?`, contractID, string(role))
	if err != nil {
		return mapError("delete signature", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError("delete signature", err)
	}
	if n == 0 {
		return fmt.Errorf("delete signature: %w", core.ErrNotFound)
	}
	return nil
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string { return "sqlite" }

// mapError translates driver errors into the store sentinels.
func mapError(op string, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, sql.ErrConnDone), isClosedError(err), isBusyError(err):
		return fmt.Errorf("%s: %w: %w", op, core.ErrUnavailable, err)
	case isForeignKeyError(err):
		return fmt.Errorf("%s: contract does not exist: %w", op, core.ErrNotFound)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func isBusyError(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code() & 0xff
	return code == sqlite3lib.SQLITE_BUSY || code == sqlite3lib.SQLITE_LOCKED
}

func isForeignKeyError(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}

// database/sql does not export its closed-handle error.
func isClosedError(err error) bool {
	return strings.Contains(err.Error(), "sql: database is closed")
}

var _ core.Store = (*Store)(nil)
