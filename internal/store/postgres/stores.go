// Package postgres provides PostgreSQL-backed stores sharing one pgx pool.
package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wolfeidau/kitakits/internal/store"
)

// NewStores returns all stores backed by pool.
func NewStores(pool *pgxpool.Pool) store.Stores {
	return store.Stores{
		Users:    NewUserStore(pool),
		Sessions: NewSessionStore(pool),
		Items:    NewItemStore(pool),
		Audit:    NewAuditStore(pool),
		Reports:  NewReportStore(pool),
	}
}
