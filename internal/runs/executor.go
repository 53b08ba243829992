package runs

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"refreshd/internal/sqljob"
)

// Conn executes one SQL statement against the shared resource and
// reports the affected-row count when the driver supplies one.
type Conn interface {
	Exec(ctx context.Context, sql string) (rowsAffected int64, err error)
}

// GormConn adapts a gorm handle to Conn.
type GormConn struct {
	DB *gorm.DB
}

func (c GormConn) Exec(ctx context.Context, sql string) (int64, error) {
	res := c.DB.WithContext(ctx).Exec(sql)
	return res.RowsAffected, res.Error
}

// Execute runs the definition's refresh statement and returns exactly
// one JobRun regardless of outcome. The error, if any, is folded into
// the run's message; callers decide whether to surface it further.
func Execute(ctx context.Context, conn Conn, def sqljob.Definition) JobRun {
	run := JobRun{
		ID:         uuid.NewString(),
		JobName:    def.Name,
		JobKind:    string(def.Kind),
		ObjectName: def.ObjectName,
		SourceFile: def.SourceFile,
		RefreshSQL: def.RefreshSQL,
		StartedAt:  time.Now().UTC(),
	}

	affected, err := conn.Exec(ctx, def.RefreshSQL)

	run.FinishedAt = time.Now().UTC()
	run.DurationMS = float64(run.FinishedAt.Sub(run.StartedAt)) / float64(time.Millisecond)

	if err != nil {
		execErr := &ExecError{Job: def.Name, Connectivity: IsConnectivity(err), Err: err}
		msg := execErr.Error()
		run.Message = &msg
		return run
	}

	run.Success = true
	if ReportsRowCount(def.RefreshSQL) {
		run.RowsAffected = &affected
	}
	return run
}

// ReportsRowCount reports whether the statement's command tag carries
// a meaningful affected-row count. REFRESH, CALL and DDL report zero
// rows, which would be misleading to record.
func ReportsRowCount(sql string) bool {
	verb, _, _ := strings.Cut(strings.TrimSpace(sql), " ")
	switch strings.ToUpper(verb) {
	case "INSERT", "UPDATE", "DELETE", "MERGE":
		return true
	}
	return false
}
