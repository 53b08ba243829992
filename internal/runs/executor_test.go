package runs

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refreshd/internal/sqljob"
)

type fakeConn struct {
	rows  int64
	err   error
	sleep time.Duration
	execs []string
}

func (c *fakeConn) Exec(ctx context.Context, sql string) (int64, error) {
	if c.sleep > 0 {
		time.Sleep(c.sleep)
	}
	c.execs = append(c.execs, sql)
	return c.rows, c.err
}

func testDef() sqljob.Definition {
	return sqljob.Definition{
		Name:       "player_stats",
		Kind:       sqljob.KindMaterializedView,
		ObjectName: "mv_player_stats",
		RefreshSQL: "REFRESH MATERIALIZED VIEW CONCURRENTLY mv_player_stats",
		SourceFile: "010_player_stats.sql",
	}
}

func TestExecuteSuccess(t *testing.T) {
	conn := &fakeConn{rows: 42, sleep: 2 * time.Millisecond}
	run := Execute(context.Background(), conn, testDef())

	assert.True(t, run.Success)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "player_stats", run.JobName)
	assert.Equal(t, "materialized_view", run.JobKind)
	assert.Equal(t, []string{"REFRESH MATERIALIZED VIEW CONCURRENTLY mv_player_stats"}, conn.execs)
	assert.False(t, run.StartedAt.IsZero())
	assert.False(t, run.FinishedAt.IsZero())
	assert.Greater(t, run.DurationMS, 0.0)
	assert.Nil(t, run.Message)
	// REFRESH does not report a row count.
	assert.Nil(t, run.RowsAffected)
}

func TestExecuteRowsAffectedForDML(t *testing.T) {
	def := testDef()
	def.Kind = sqljob.KindIncrementalInsert
	def.RefreshSQL = "INSERT INTO rollups SELECT 1"

	conn := &fakeConn{rows: 17}
	run := Execute(context.Background(), conn, def)

	require.NotNil(t, run.RowsAffected)
	assert.Equal(t, int64(17), *run.RowsAffected)
}

func TestExecuteFailure(t *testing.T) {
	conn := &fakeConn{err: errors.New("relation does not exist")}
	run := Execute(context.Background(), conn, testDef())

	assert.False(t, run.Success)
	require.NotNil(t, run.Message)
	assert.Contains(t, *run.Message, "relation does not exist")
	assert.Nil(t, run.RowsAffected)
	assert.False(t, run.FinishedAt.IsZero())
}

func TestExecuteConnectivityFailure(t *testing.T) {
	conn := &fakeConn{err: &net.OpError{Op: "dial", Err: errors.New("refused")}}
	run := Execute(context.Background(), conn, testDef())

	assert.False(t, run.Success)
	require.NotNil(t, run.Message)
	assert.Contains(t, *run.Message, "connectivity")
}

func TestIsConnectivity(t *testing.T) {
	assert.False(t, IsConnectivity(nil))
	assert.False(t, IsConnectivity(errors.New("syntax error")))
	assert.False(t, IsConnectivity(&pgconn.PgError{Code: "42P01"}))
	assert.True(t, IsConnectivity(&pgconn.PgError{Code: "08006"}))
	assert.True(t, IsConnectivity(&net.OpError{Op: "dial", Err: errors.New("refused")}))
	assert.True(t, IsConnectivity(&ExecError{Job: "x", Connectivity: true, Err: errors.New("down")}))
}

func TestReportsRowCount(t *testing.T) {
	assert.True(t, ReportsRowCount("INSERT INTO t SELECT 1"))
	assert.True(t, ReportsRowCount("  delete from t where id = 1"))
	assert.False(t, ReportsRowCount("REFRESH MATERIALIZED VIEW mv"))
	assert.False(t, ReportsRowCount("CALL prune_sessions()"))
	assert.False(t, ReportsRowCount(""))
}
