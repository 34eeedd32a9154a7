// Package memory provides in-memory implementations of the store
// interfaces. Data is lost on restart.
package memory

import "github.com/wolfeidau/kitakits/internal/store"

// NewStores returns a fresh set of in-memory stores.
func NewStores() store.Stores {
	items := NewItemStore()
	audit := NewAuditStore()

	return store.Stores{
		Users:    NewUserStore(),
		Sessions: NewSessionStore(),
		Items:    items,
		Audit:    audit,
		Reports:  NewReportStore(items, audit),
	}
}
