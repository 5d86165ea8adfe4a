package database

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/nyaadere/animatch/internal/domain"
)

// KVRepo implements domain.KVStore on top of the kv_store table
type KVRepo struct {
	log zerolog.Logger
	db  *DB
}

// NewKVRepo creates a new key/value repository
func NewKVRepo(log zerolog.Logger, db *DB) domain.KVStore {
	return &KVRepo{
		log: log.With().Str("repo", "kv").Logger(),
		db:  db,
	}
}

// Get returns the value stored under key and whether it was present
func (r *KVRepo) Get(ctx context.Context, key string) (string, bool, error) {
	queryBuilder := r.db.squirrel.
		Select("value").
		From("kv_store").
		Where(sq.Eq{"key": key})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return "", false, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Get")

	var value string
	err = r.db.handler.QueryRowContext(ctx, query, args...).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, errors.Wrap(err, "error executing query")
	}

	return value, true, nil
}

// Set inserts or replaces the value stored under key
func (r *KVRepo) Set(ctx context.Context, key, value string) error {
	now := time.Now().Format(time.RFC3339)

	queryBuilder := r.db.squirrel.
		Replace("kv_store").
		Columns("key", "value", "updated_at").
		Values(key, value, now)

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Set")

	_, err = r.db.handler.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "error executing query")
	}

	return nil
}

// Delete removes the value stored under key, if any
func (r *KVRepo) Delete(ctx context.Context, key string) error {
	queryBuilder := r.db.squirrel.
		Delete("kv_store").
		Where(sq.Eq{"key": key})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building delete query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Delete")

	_, err = r.db.handler.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "error executing delete query")
	}

	return nil
}

// Keys returns all keys starting with prefix, in key order
func (r *KVRepo) Keys(ctx context.Context, prefix string) ([]string, error) {
	queryBuilder := r.db.squirrel.
		Select("key").
		From("kv_store").
		Where(sq.Expr("key LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%")).
		OrderBy("key")

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Keys")

	rows, err := r.db.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error executing query")
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, errors.Wrap(err, "error scanning row")
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating rows")
	}

	return keys, nil
}

// escapeLike neutralizes LIKE wildcards in a literal prefix. Cache keys
// contain ':' and '/' but a payload-derived key could carry '%' or '_'.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
