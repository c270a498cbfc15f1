// Package keychain remembers account credentials between runs in a
// local sqlite file. Session cookies are deliberately never stored here,
// only what is needed to start a fresh login.
package keychain

import (
	"context"
	"database/sql"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("services/keychain")

var ErrNotFound = errors.New("no credentials stored for account")

const schema = `
CREATE TABLE IF NOT EXISTS credentials (
	username TEXT NOT NULL PRIMARY KEY,
	password TEXT NOT NULL,
	updated_at INTEGER NOT NULL DEFAULT (unixepoch())
);
`

type Credential struct {
	Username string
	Password string
}

type Service struct {
	db *sql.DB
}

// Open opens (or creates) the keychain database at path. ":memory:"
// works for tests.
func Open(path string) (Service, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return Service{}, err
	}
	return NewService(db)
}

func NewService(db *sql.DB) (Service, error) {
	_, err := db.Exec(schema)
	if err != nil {
		return Service{}, err
	}
	return Service{db: db}, nil
}

func (s Service) Close() error {
	return s.db.Close()
}

func (s Service) Set(ctx context.Context, cred Credential) error {
	ctx, span := tracer.Start(ctx, "keychain:Set")
	defer span.End()

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO credentials (username, password, updated_at)
		 VALUES (?, ?, unixepoch())
		 ON CONFLICT (username) DO UPDATE
		 SET password = excluded.password, updated_at = excluded.updated_at`,
		cred.Username, cred.Password,
	)
	if err != nil {
		span.SetStatus(codes.Error, "failed to store credentials")
	}
	return err
}

func (s Service) Get(ctx context.Context, username string) (Credential, error) {
	ctx, span := tracer.Start(ctx, "keychain:Get")
	defer span.End()

	row := s.db.QueryRowContext(
		ctx,
		`SELECT username, password FROM credentials WHERE username = ?`,
		username,
	)
	var cred Credential
	err := row.Scan(&cred.Username, &cred.Password)
	if err == sql.ErrNoRows {
		return Credential{}, ErrNotFound
	}
	if err != nil {
		span.SetStatus(codes.Error, "failed to read credentials")
		return Credential{}, err
	}
	return cred, nil
}

// Latest returns the most recently stored credential, for runs that
// don't name an account explicitly.
func (s Service) Latest(ctx context.Context) (Credential, error) {
	ctx, span := tracer.Start(ctx, "keychain:Latest")
	defer span.End()

	row := s.db.QueryRowContext(
		ctx,
		`SELECT username, password FROM credentials ORDER BY updated_at DESC LIMIT 1`,
	)
	var cred Credential
	err := row.Scan(&cred.Username, &cred.Password)
	if err == sql.ErrNoRows {
		return Credential{}, ErrNotFound
	}
	if err != nil {
		span.SetStatus(codes.Error, "failed to read credentials")
		return Credential{}, err
	}
	return cred, nil
}

func (s Service) Delete(ctx context.Context, username string) error {
	ctx, span := tracer.Start(ctx, "keychain:Delete")
	defer span.End()

	_, err := s.db.ExecContext(
		ctx,
		`DELETE FROM credentials WHERE username = ?`,
		username,
	)
	if err != nil {
		span.SetStatus(codes.Error, "failed to delete credentials")
	}
	return err
}
