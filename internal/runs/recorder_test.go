package runs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&JobRun{}))
	return db
}

func mkRun(name string, startedAt time.Time, success bool) JobRun {
	return JobRun{
		ID:         uuid.NewString(),
		JobName:    name,
		JobKind:    "materialized_view",
		StartedAt:  startedAt,
		FinishedAt: startedAt.Add(time.Second),
		DurationMS: 1000,
		Success:    success,
	}
}

type countingObserver struct{ seen int }

func (o *countingObserver) ObserveRun(JobRun) { o.seen++ }

func TestRecorderRecordAndList(t *testing.T) {
	db := newTestDB(t)
	obs := &countingObserver{}
	rec := &Recorder{DB: db, Log: zerolog.Nop(), Obs: obs}
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, rec.Record(ctx, mkRun("a", base, true)))
	require.NoError(t, rec.Record(ctx, mkRun("a", base.Add(time.Hour), false)))
	require.NoError(t, rec.Record(ctx, mkRun("b", base.Add(2*time.Hour), true)))

	assert.Equal(t, 3, obs.seen)

	all, err := rec.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Newest first.
	assert.Equal(t, "b", all[0].JobName)

	byName, err := rec.List(ctx, Filter{JobName: "a"})
	require.NoError(t, err)
	require.Len(t, byName, 2)

	since := base.Add(30 * time.Minute)
	until := base.Add(90 * time.Minute)
	windowed, err := rec.List(ctx, Filter{Since: &since, Until: &until})
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, "a", windowed[0].JobName)
	assert.False(t, windowed[0].Success)
}

func TestRecorderListLimit(t *testing.T) {
	db := newTestDB(t)
	rec := &Recorder{DB: db, Log: zerolog.Nop()}
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, rec.Record(ctx, mkRun("a", base.Add(time.Duration(i)*time.Minute), true)))
	}

	got, err := rec.List(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRecorderWriteFailureDoesNotPanic(t *testing.T) {
	db := newTestDB(t)
	rec := &Recorder{DB: db, Log: zerolog.Nop()}
	ctx := context.Background()

	run := mkRun("a", time.Now().UTC(), true)
	require.NoError(t, rec.Record(ctx, run))
	// Duplicate primary key: the write fails, the caller just gets an
	// error back.
	err := rec.Record(ctx, run)
	assert.Error(t, err)
}
