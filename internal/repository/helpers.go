package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"familyhub/internal/database"
)

// MaxBatchSize is the largest number of ids accepted by a single multi-get.
// Callers with more ids split them into chunks of this size.
const MaxBatchSize = 10

// ErrBatchTooLarge is returned by multi-gets called with more than MaxBatchSize ids
var ErrBatchTooLarge = errors.New("batch exceeds maximum size")

func checkBatch(ids []string) error {
	if len(ids) > MaxBatchSize {
		return fmt.Errorf("%w: %d ids (max %d)", ErrBatchTooLarge, len(ids), MaxBatchSize)
	}
	return nil
}

// placeholders returns "?, ?, ?" for n arguments
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// queryStrings runs a single-column query and collects the values. Rows are
// closed before returning so callers can issue the next query on a
// single-connection pool.
func queryStrings(ctx context.Context, db database.DBTX, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// queryGrouped runs a two-column (key, value) query and groups values by key
func queryGrouped(ctx context.Context, db database.DBTX, query string, args ...any) (map[string][]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		out[key] = append(out[key], value)
	}
	return out, rows.Err()
}

// changed reports whether a write touched at least one row
func changed(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	s := ns.String
	return &s
}
