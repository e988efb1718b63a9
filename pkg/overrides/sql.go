package overrides

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"

	"github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/fluxcd/homeless/pkg/spec"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	tableOverrides = "overrides"
	colDocument    = "document"
)

// SQLStore keeps override documents as JSON in a table
// `overrides(job, environment, document)`.
type SQLStore struct {
	db *sql.DB
	sq squirrel.StatementBuilderType
}

// NewSQLStore opens a database with one of the drivers above.
func NewSQLStore(driver, dsn string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s database", driver)
	}
	return NewSQLStoreFromDB(db, driver)
}

func NewSQLStoreFromDB(db *sql.DB, driver string) (*SQLStore, error) {
	var placeholders squirrel.PlaceholderFormat
	switch driver {
	case DriverPostgres:
		placeholders = squirrel.Dollar
	case DriverSQLite:
		placeholders = squirrel.Question
	default:
		return nil, errors.Errorf("unsupported database driver %q", driver)
	}
	return &SQLStore{
		db: db,
		sq: squirrel.StatementBuilder.PlaceholderFormat(placeholders),
	}, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Migrate creates the table if it isn't there already.
func (s *SQLStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+tableOverrides+` (
  `+AttrJob+` TEXT NOT NULL,
  `+AttrEnvironment+` TEXT NOT NULL,
  `+colDocument+` TEXT NOT NULL,
  PRIMARY KEY (`+AttrJob+`, `+AttrEnvironment+`)
)`)
	return errors.Wrap(err, "creating overrides table")
}

func (s *SQLStore) Get(ctx context.Context, job, environment string) (*spec.Map, error) {
	var document string
	err := s.sq.Select(colDocument).
		From(tableOverrides).
		Where(squirrel.Eq{AttrJob: job, AttrEnvironment: environment}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&document)
	switch {
	case err == sql.ErrNoRows:
		return nil, nil
	case err != nil:
		return nil, errors.Wrapf(err, "fetching overrides for %s in %s", job, environment)
	}
	overrides, err := spec.DecodeJSONMap(bytes.NewReader([]byte(document)))
	return overrides, errors.Wrapf(err, "decoding overrides for %s in %s", job, environment)
}

// Put stores overrides for job in environment, replacing any there
// were before.
func (s *SQLStore) Put(ctx context.Context, job, environment string, overrides *spec.Map) error {
	document, err := json.Marshal(overrides)
	if err != nil {
		return errors.Wrap(err, "encoding overrides")
	}
	_, err = s.sq.Insert(tableOverrides).
		Columns(AttrJob, AttrEnvironment, colDocument).
		Values(job, environment, string(document)).
		Suffix("ON CONFLICT ("+AttrJob+", "+AttrEnvironment+") DO UPDATE SET "+colDocument+" = excluded."+colDocument).
		RunWith(s.db).
		ExecContext(ctx)
	return errors.Wrapf(err, "storing overrides for %s in %s", job, environment)
}
