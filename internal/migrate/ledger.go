package migrate

import "time"

// LedgerEntry marks one source file as applied. Append-only: rows are
// written once by the applier and never updated or removed.
type LedgerEntry struct {
	Filename  string    `gorm:"primaryKey"`
	AppliedAt time.Time `gorm:"not null"`
}

func (LedgerEntry) TableName() string { return "sql_migrations" }
