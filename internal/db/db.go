package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"refreshd/internal/migrate"
	"refreshd/internal/runs"
)

// Connect opens the shared Postgres pool. minSize/maxSize bound the
// underlying sql.DB; the scheduler relies on this as its only global
// concurrency ceiling.
func Connect(dsn string, minSize, maxSize int) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if maxSize > 0 {
		sqlDB.SetMaxOpenConns(maxSize)
	}
	if minSize > 0 {
		sqlDB.SetMaxIdleConns(minSize)
	}
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	return gdb, nil
}

// AutoMigrateAndIndexes creates the orchestrator's own tables: the
// migration ledger and the run history. The analytics objects
// themselves come from the SQL corpus, never from here.
func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&migrate.LedgerEntry{},
		&runs.JobRun{},
	); err != nil {
		return err
	}

	stmts := []string{
		`create index if not exists idx_job_runs_name_started on job_runs(job_name, started_at desc);`,
		`create index if not exists idx_job_runs_started on job_runs(started_at desc);`,
		`create index if not exists idx_job_runs_failed on job_runs(started_at desc) where success = false;`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
