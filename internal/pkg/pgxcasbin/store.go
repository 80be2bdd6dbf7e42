package pgxcasbin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/lo"
)

const fieldCount = 6

var (
	ErrRuleTooLong   = errors.New("pgxcasbin: rule has more than six fields")
	ErrEmptyPtype    = errors.New("pgxcasbin: ptype is empty")
	ErrInvalidFilter = errors.New("pgxcasbin: filter must be map[string][][]string")

	columns = strings.Join(lo.Times(fieldCount, func(i int) string { return "v" + strconv.Itoa(i) }), ", ")
)

// DB is the part of pgxpool.Pool the adapter needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type store struct {
	db    DB
	table string

	insertSQL string
	deleteSQL string
}

func newStore(db DB, table string) *store {
	s := &store{db: db, table: lo.SnakeCase(table)}

	params := lo.Times(fieldCount, func(i int) string { return "$" + strconv.Itoa(i+2) })
	s.insertSQL = fmt.Sprintf("insert into %s (ptype, %s) values ($1, %s) on conflict do nothing",
		s.table, columns, strings.Join(params, ", "))

	match := lo.Times(fieldCount, func(i int) string { return "v" + strconv.Itoa(i) + " = $" + strconv.Itoa(i+2) })
	s.deleteSQL = fmt.Sprintf("delete from %s where ptype = $1 and %s", s.table, strings.Join(match, " and "))

	return s
}

// row pads rule to fieldCount columns and prefixes the ptype.
func row(ptype string, rule []string) ([]any, error) {
	if len(rule) > fieldCount {
		return nil, fmt.Errorf("%w: %d", ErrRuleTooLong, len(rule))
	}
	padded := make([]string, fieldCount)
	copy(padded, rule)
	return lo.ToAnySlice(append([]string{ptype}, padded...)), nil
}

func (s *store) selectWhere(ctx context.Context, ptype string, fieldIndex int, values ...string) ([][]string, error) {
	if fieldIndex+len(values) > fieldCount {
		return nil, fmt.Errorf("%w: %d", ErrRuleTooLong, fieldIndex+len(values))
	}

	query := fmt.Sprintf("select ptype, %s from %s", columns, s.table)
	var (
		conds []string
		args  []any
	)
	if ptype != "" {
		args = append(args, ptype)
		conds = append(conds, "ptype = $1")
	}
	for i, v := range values {
		if v == "" {
			continue
		}
		args = append(args, v)
		conds = append(conds, "v"+strconv.Itoa(fieldIndex+i)+" = $"+strconv.Itoa(len(args)))
	}
	if len(conds) > 0 {
		query += " where " + strings.Join(conds, " and ")
	}

	rows, err := s.db.Query(ctx, query+" order by id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines [][]string
	for rows.Next() {
		cols := make([]sql.NullString, fieldCount+1)
		dst := make([]any, len(cols))
		for i := range cols {
			dst[i] = &cols[i]
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}

		line := lo.Map(cols, func(c sql.NullString, _ int) string { return c.String })
		lines = append(lines, trimTrailingEmpty(line))
	}

	return lines, rows.Err()
}

func (s *store) insert(ctx context.Context, ptype string, rules ...[]string) error {
	return s.batch(ctx, s.db, s.insertSQL, ptype, rules)
}

func (s *store) delete(ctx context.Context, ptype string, rules ...[]string) error {
	return s.batch(ctx, s.db, s.deleteSQL, ptype, rules)
}

func (s *store) deleteWhere(ctx context.Context, ptype string, fieldIndex int, values ...string) error {
	if ptype == "" {
		return ErrEmptyPtype
	}
	if fieldIndex+len(values) > fieldCount {
		return fmt.Errorf("%w: %d", ErrRuleTooLong, fieldIndex+len(values))
	}

	query := fmt.Sprintf("delete from %s where ptype = $1", s.table)
	args := []any{ptype}
	for i, v := range values {
		if v == "" {
			continue
		}
		args = append(args, v)
		query += " and v" + strconv.Itoa(fieldIndex+i) + " = $" + strconv.Itoa(len(args))
	}

	_, err := s.db.Exec(ctx, query, args...)
	return err
}

// replaceAll swaps the whole table contents in one transaction.
func (s *store) replaceAll(ctx context.Context, lines [][]string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }() //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, "delete from "+s.table); err != nil {
		return err
	}

	b := &pgx.Batch{}
	for _, line := range lines {
		args, err := row(line[0], line[1:])
		if err != nil {
			return err
		}
		b.Queue(s.insertSQL, args...)
	}
	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

type batcher interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

func (*store) batch(ctx context.Context, db batcher, query, ptype string, rules [][]string) error {
	if len(rules) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, rule := range rules {
		args, err := row(ptype, rule)
		if err != nil {
			return err
		}
		b.Queue(query, args...)
	}

	return db.SendBatch(ctx, b).Close()
}

func trimTrailingEmpty(line []string) []string {
	n := len(line)
	for n > 0 && line[n-1] == "" {
		n--
	}
	return line[:n]
}
