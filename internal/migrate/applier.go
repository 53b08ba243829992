package migrate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"refreshd/internal/runs"
	"refreshd/internal/sqljob"
)

// Applier executes unapplied SQL files exactly once, keyed by filename
// in the ledger. Files run in lexicographic order; each file's outcome
// is independent of the others.
type Applier struct {
	DB   *gorm.DB
	Runs runs.Sink
	Log  zerolog.Logger

	// Conn handles statements that must run outside a transaction
	// (CONCURRENTLY operations). Defaults to the gorm handle.
	Conn runs.Conn
}

type Summary struct {
	Applied []string
	Skipped []string
	Failed  []string
}

// Apply runs every file whose name is not yet in the ledger and writes
// one JobRun per attempted file. A failed file stays out of the ledger
// so the next startup retries it; the remaining queue still runs. The
// returned error aggregates per-file failures.
//
// Files containing CONCURRENTLY statements execute outside a
// transaction, so a crash between the last statement and the ledger
// write replays the file on restart. Such statements are expected to
// be idempotent (IF NOT EXISTS, REFRESH CONCURRENTLY).
func (a *Applier) Apply(ctx context.Context, files []sqljob.File) (Summary, error) {
	conn := a.Conn
	if conn == nil {
		conn = runs.GormConn{DB: a.DB}
	}

	ordered := make([]sqljob.File, len(files))
	copy(ordered, files)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })

	applied, err := a.appliedSet(ctx)
	if err != nil {
		return Summary{}, err
	}

	var sum Summary
	var errs []error
	for _, f := range ordered {
		if applied[f.Name] {
			sum.Skipped = append(sum.Skipped, f.Name)
			continue
		}

		if err := a.applyFile(ctx, conn, f); err != nil {
			a.Log.Error().Err(err).Str("file", f.Name).Msg("sql file failed, leaving unapplied")
			sum.Failed = append(sum.Failed, f.Name)
			errs = append(errs, err)
			continue
		}
		sum.Applied = append(sum.Applied, f.Name)
	}
	return sum, errors.Join(errs...)
}

func (a *Applier) appliedSet(ctx context.Context) (map[string]bool, error) {
	var entries []LedgerEntry
	if err := a.DB.WithContext(ctx).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("migrate: load ledger: %w", err)
	}
	set := make(map[string]bool, len(entries))
	for _, e := range entries {
		set[e.Filename] = true
	}
	return set, nil
}

func (a *Applier) applyFile(ctx context.Context, conn runs.Conn, f sqljob.File) error {
	// Supporting @indexes statements live in the comment header, so the
	// splitter never sees them; they apply once, after the body.
	stmts := append(sqljob.SplitStatements(f.Raw), indexStatements(f)...)

	run := newFileRun(f, stmts)
	var rows int64
	var sawDML bool
	var err error

	if requiresNoTx(stmts) {
		a.Log.Warn().Str("file", f.Name).
			Msg("file contains CONCURRENTLY statements, applying outside a transaction")
		rows, sawDML, err = a.applyOutsideTx(ctx, conn, f.Name, stmts)
	} else {
		rows, sawDML, err = a.applyInTx(ctx, f.Name, stmts)
	}

	run.FinishedAt = time.Now().UTC()
	run.DurationMS = float64(run.FinishedAt.Sub(run.StartedAt)) / float64(time.Millisecond)
	if err == nil {
		run.Success = true
		if sawDML {
			run.RowsAffected = &rows
		}
	} else {
		msg := err.Error()
		run.Message = &msg
	}
	_ = a.Runs.Record(ctx, run)

	return err
}

// applyInTx runs the file's statements and the ledger insert in one
// transaction: either everything lands or nothing does.
func (a *Applier) applyInTx(ctx context.Context, filename string, stmts []string) (int64, bool, error) {
	var rows int64
	var sawDML bool
	err := a.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, stmt := range stmts {
			res := tx.Exec(stmt)
			if res.Error != nil {
				return fmt.Errorf("migrate: %s: %w", filename, res.Error)
			}
			if runs.ReportsRowCount(stmt) {
				rows += res.RowsAffected
				sawDML = true
			}
		}
		return tx.Create(&LedgerEntry{Filename: filename, AppliedAt: time.Now().UTC()}).Error
	})
	return rows, sawDML, err
}

// applyOutsideTx runs statements in autocommit mode, then records the
// ledger entry. The gap between the final statement and the ledger
// write is the documented at-least-once window.
func (a *Applier) applyOutsideTx(ctx context.Context, conn runs.Conn, filename string, stmts []string) (int64, bool, error) {
	var rows int64
	var sawDML bool
	for _, stmt := range stmts {
		affected, err := conn.Exec(ctx, stmt)
		if err != nil {
			return rows, sawDML, fmt.Errorf("migrate: %s: %w", filename, err)
		}
		if runs.ReportsRowCount(stmt) {
			rows += affected
			sawDML = true
		}
	}
	if err := a.DB.WithContext(ctx).Create(&LedgerEntry{Filename: filename, AppliedAt: time.Now().UTC()}).Error; err != nil {
		return rows, sawDML, fmt.Errorf("migrate: %s: ledger write: %w", filename, err)
	}
	return rows, sawDML, nil
}

func newFileRun(f sqljob.File, stmts []string) runs.JobRun {
	run := runs.JobRun{
		ID:         uuid.NewString(),
		JobName:    sqljob.Stem(f.Name),
		JobKind:    string(sqljob.KindSchema),
		SourceFile: f.Name,
		RefreshSQL: strings.Join(stmts, ";\n"),
		StartedAt:  time.Now().UTC(),
	}
	if len(f.Definitions) > 0 {
		d := f.Definitions[0]
		run.JobName = d.Name
		run.JobKind = string(d.Kind)
		run.ObjectName = d.ObjectName
	}
	return run
}

func indexStatements(f sqljob.File) []string {
	var out []string
	for _, d := range f.Definitions {
		out = append(out, d.IndexSQL...)
	}
	return out
}

// requiresNoTx reports whether any statement cannot run inside a
// transaction block (Postgres rejects CONCURRENTLY operations there).
func requiresNoTx(stmts []string) bool {
	for _, stmt := range stmts {
		if strings.Contains(strings.ToUpper(stmt), "CONCURRENTLY") {
			return true
		}
	}
	return false
}
