// Package sqlxrepos implements the core repositories on top of sqlx.
// Queries use `?` placeholders rebound for the executor's driver, so they run on both postgres and sqlite3.
package sqlxrepos

import (
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/trezcool/maktaba/core"
)

const pgUniqueViolation = pq.ErrorCode("23505")

type baseRepository struct {
	db core.DBExecutor
}

func (repo baseRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.db
}

// uniqueViolation reports whether err is a unique constraint violation, along with a hint naming the
// violated constraint (postgres) or its columns (sqlite3).
func uniqueViolation(err error) (string, bool) {
	switch e := errors.Cause(err).(type) {
	case *pq.Error:
		return e.Constraint, e.Code == pgUniqueViolation
	case sqlite3.Error:
		return e.Error(), e.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return "", false
}

// where joins conditions with AND.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// orderBy keeps the orderings on whitelisted fields (mapped to their columns), `def` when none remains.
func orderBy(ordering []core.DBOrdering, columns map[string]string, def string) string {
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		col, ok := columns[ord.Field]
		if !ok {
			continue
		}
		orderList = append(orderList, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	if len(orderList) == 0 {
		return " ORDER BY " + def
	}
	return " ORDER BY " + strings.Join(orderList, ", ")
}

// rowsAffected returns notFound when the statement changed nothing.
func rowsAffected(res interface{ RowsAffected() (int64, error) }, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "getting affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}
