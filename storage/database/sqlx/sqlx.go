// Package sqlxrepos implements the repositories on Postgres with sqlx and squirrel.
package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/reportal/core"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type repository struct {
	exec core.DBExecutor
}

// getExec returns the transaction passed down by a service, if any.
func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

func (repo repository) selectAll(ctx context.Context, exec []core.DBExecutor, dest interface{}, q sq.Sqlizer) error {
	query, args, err := q.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.SelectContext(ctx, repo.getExec(exec), dest, query, args...)
}

func (repo repository) getOne(ctx context.Context, exec []core.DBExecutor, dest interface{}, q sq.Sqlizer) error {
	query, args, err := q.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.GetContext(ctx, repo.getExec(exec), dest, query, args...)
}

// execute runs q and returns the number of affected rows.
func (repo repository) execute(ctx context.Context, exec []core.DBExecutor, q sq.Sqlizer) (int, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := repo.getExec(exec).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	cnt, err := res.RowsAffected()
	return int(cnt), err
}

func (repo repository) count(ctx context.Context, exec []core.DBExecutor, q sq.SelectBuilder) (int, error) {
	var cnt int
	err := repo.getOne(ctx, exec, &cnt, q)
	return cnt, err
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// validUUIDs keeps the valid UUIDs of ids; Postgres rejects the others. Nil stays nil.
func validUUIDs(ids []string) []string {
	if ids == nil {
		return nil
	}
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	return valid
}

// inFilter matches col against vals: nil vals are ignored, empty ones match nothing.
func inFilter(where sq.And, col string, vals []string, uuids bool) sq.And {
	if vals == nil {
		return where
	}
	if uuids {
		vals = validUUIDs(vals)
	}
	return append(where, sq.Eq{col: vals})
}

func orderBy(q sq.SelectBuilder, ordering []core.DBOrdering) sq.SelectBuilder {
	for _, ord := range ordering {
		q = q.OrderBy(ord.String())
	}
	return q
}

func paginate(q sq.SelectBuilder, page core.Page) sq.SelectBuilder {
	if page.IsZero() {
		return q
	}
	return q.Limit(uint64(page.Limit())).Offset(uint64(page.Offset()))
}

func ilike(val string) string {
	return "%" + val + "%"
}
