package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
)

const defaultListLimit = 100

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// emissionRow is the database shape of an Emission.
type emissionRow struct {
	ID           string    `db:"id"`
	Selector     string    `db:"selector"`
	SelectorKind string    `db:"selector_kind"`
	Args         string    `db:"args"`
	MatchedKeys  string    `db:"matched_keys"`
	Invocations  int       `db:"invocations"`
	Source       string    `db:"source"`
	EmittedAt    time.Time `db:"emitted_at"`
}

// SQLiteEmissionStore implements EmissionStore backed by SQLite.
type SQLiteEmissionStore struct {
	db *sqlx.DB
}

// NewSQLiteEmissionStore returns a new SQLiteEmissionStore.
func NewSQLiteEmissionStore(db *sqlx.DB) *SQLiteEmissionStore {
	return &SQLiteEmissionStore{db: db}
}

// Record inserts an emission into the journal.
func (s *SQLiteEmissionStore) Record(ctx context.Context, e *Emission) error {
	if e.ID == "" {
		return fmt.Errorf("recording emission: id is required")
	}
	row, err := toRow(e)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO emissions (id, selector, selector_kind, args, matched_keys, invocations, source, emitted_at)
		VALUES (:id, :selector, :selector_kind, :args, :matched_keys, :invocations, :source, :emitted_at)`,
		row,
	)
	if err != nil {
		return fmt.Errorf("inserting emission %q: %w", e.ID, err)
	}
	return nil
}

// List returns emissions ordered by emitted_at descending.
func (s *SQLiteEmissionStore) List(ctx context.Context, filter EmissionFilter) ([]*Emission, error) {
	var (
		where []string
		args  []any
	)
	if filter.Selector != "" {
		where = append(where, "selector = ?")
		args = append(args, filter.Selector)
	}
	if filter.Source != "" {
		where = append(where, "source = ?")
		args = append(args, filter.Source)
	}
	if !filter.Since.IsZero() {
		where = append(where, "emitted_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := "SELECT id, selector, selector_kind, args, matched_keys, invocations, source, emitted_at FROM emissions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY emitted_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	var rows []emissionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying emissions: %w", err)
	}

	out := make([]*Emission, 0, len(rows))
	for i := range rows {
		e, err := rows[i].toEmission()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Get returns the emission with the given id, or nil if it does not exist.
func (s *SQLiteEmissionStore) Get(ctx context.Context, id string) (*Emission, error) {
	var row emissionRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, selector, selector_kind, args, matched_keys, invocations, source, emitted_at
		FROM emissions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting emission %q: %w", id, err)
	}
	return row.toEmission()
}

// Purge deletes emissions recorded before the given time.
func (s *SQLiteEmissionStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM emissions WHERE emitted_at < ?", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("purging emissions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting purged emissions: %w", err)
	}
	return n, nil
}

func toRow(e *Emission) (*emissionRow, error) {
	args := e.Args
	if args == nil {
		args = []any{}
	}
	argsJSON, err := jsonAPI.MarshalToString(args)
	if err != nil {
		return nil, fmt.Errorf("encoding args for emission %q: %w", e.ID, err)
	}
	keys := e.MatchedKeys
	if keys == nil {
		keys = []string{}
	}
	keysJSON, err := jsonAPI.MarshalToString(keys)
	if err != nil {
		return nil, fmt.Errorf("encoding matched keys for emission %q: %w", e.ID, err)
	}
	kind := e.SelectorKind
	if kind == "" {
		kind = SelectorKey
	}
	return &emissionRow{
		ID:           e.ID,
		Selector:     e.Selector,
		SelectorKind: kind,
		Args:         argsJSON,
		MatchedKeys:  keysJSON,
		Invocations:  e.Invocations,
		Source:       e.Source,
		EmittedAt:    e.EmittedAt.UTC(),
	}, nil
}

func (r *emissionRow) toEmission() (*Emission, error) {
	e := &Emission{
		ID:           r.ID,
		Selector:     r.Selector,
		SelectorKind: r.SelectorKind,
		Invocations:  r.Invocations,
		Source:       r.Source,
		EmittedAt:    r.EmittedAt,
	}
	if err := jsonAPI.UnmarshalFromString(r.Args, &e.Args); err != nil {
		return nil, fmt.Errorf("parsing args for emission %q: %w", r.ID, err)
	}
	if err := jsonAPI.UnmarshalFromString(r.MatchedKeys, &e.MatchedKeys); err != nil {
		return nil, fmt.Errorf("parsing matched keys for emission %q: %w", r.ID, err)
	}
	return e, nil
}
