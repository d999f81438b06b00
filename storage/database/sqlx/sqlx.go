package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// store runs queries against either the DB or the transaction of the current unit of work.
// Queries are written with "?" placeholders and rebound to the driver's bindvar.
type store struct {
	db   *sqlx.DB // nil inside a unit of work
	exec sqlx.ExtContext
}

func newStore(db *sqlx.DB) store {
	return store{db: db, exec: db}
}

// inTx runs fn in a serializable transaction. Nested calls join the current transaction.
func (s store) inTx(ctx context.Context, fn func(tx store) error) error {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(store{exec: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back transaction (%v)", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func (s store) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.GetContext(ctx, s.exec, dest, s.exec.Rebind(query), args...)
}

func (s store) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, s.exec, dest, s.exec.Rebind(query), args...)
}

func (s store) execute(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := s.exec.ExecContext(ctx, s.exec.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s store) namedExec(ctx context.Context, query string, arg interface{}) error {
	_, err := sqlx.NamedExecContext(ctx, s.exec, query, arg)
	return err
}

// conditions collects the WHERE clauses of a query.
type conditions struct {
	clauses []string
	args    []interface{}
}

func (c *conditions) add(clause string, args ...interface{}) {
	c.clauses = append(c.clauses, clause)
	c.args = append(c.args, args...)
}

func (c conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

func likePattern(s string) string {
	return "%" + strings.ToLower(s) + "%"
}

// isUniqueViolation reports whether err is a unique constraint violation of postgres or mysql.
func isUniqueViolation(err error) bool {
	switch e := errors.Cause(err).(type) {
	case *pq.Error:
		return e.Code == "23505"
	case *mysql.MySQLError:
		return e.Number == 1062
	}
	return false
}

// trapNoRowsErr maps the "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}
