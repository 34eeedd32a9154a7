package sqlite

import (
	"time"

	"github.com/wolfeidau/kitakits/internal/store"
	"zombiezen.com/go/sqlite"
)

// NewStores returns all stores backed by pool.
func NewStores(pool *Pool) store.Stores {
	return store.Stores{
		Users:    NewUserStore(pool),
		Sessions: NewSessionStore(pool),
		Items:    NewItemStore(pool),
		Audit:    NewAuditStore(pool),
		Reports:  NewReportStore(pool),
	}
}

func isConstraintViolation(err error) bool {
	return sqlite.ErrCode(err).ToPrimary() == sqlite.ResultConstraint
}

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toNanos(*t)
}

func columnString(stmt *sqlite.Stmt, col int) *string {
	if stmt.ColumnType(col) == sqlite.TypeNull {
		return nil
	}
	s := stmt.ColumnText(col)
	return &s
}

func columnTime(stmt *sqlite.Stmt, col int) *time.Time {
	if stmt.ColumnType(col) == sqlite.TypeNull {
		return nil
	}
	t := fromNanos(stmt.ColumnInt64(col))
	return &t
}
