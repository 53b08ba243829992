package sqljob

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFileBasic(t *testing.T) {
	text := `-- @name player_stats
-- @type materialized_view
-- @object mv_player_stats
-- @description Advanced per-player aggregates.
-- @refresh_sql REFRESH MATERIALIZED VIEW mv_player_stats
CREATE MATERIALIZED VIEW mv_player_stats AS SELECT 1;
`
	f, err := ParseFile("010_player_stats.sql", text)
	require.NoError(t, err)
	require.Len(t, f.Definitions, 1)

	d := f.Definitions[0]
	assert.Equal(t, "player_stats", d.Name)
	assert.Equal(t, KindMaterializedView, d.Kind)
	assert.Equal(t, "mv_player_stats", d.ObjectName)
	assert.Equal(t, "REFRESH MATERIALIZED VIEW mv_player_stats", d.RefreshSQL)
	assert.Equal(t, "Advanced per-player aggregates.", d.Description)
	assert.Equal(t, "010_player_stats.sql", d.SourceFile)
	assert.True(t, d.Recurring())
}

func TestParseFileDefaultRefresh(t *testing.T) {
	text := `-- @name map_splits
-- @type materialized_view
-- @object mv_map_splits
CREATE MATERIALIZED VIEW mv_map_splits AS SELECT 1;
`
	f, err := ParseFile("020_map_splits.sql", text)
	require.NoError(t, err)
	require.Len(t, f.Definitions, 1)
	assert.Equal(t, "REFRESH MATERIALIZED VIEW CONCURRENTLY mv_map_splits", f.Definitions[0].RefreshSQL)
}

func TestParseFileContinuationLines(t *testing.T) {
	text := `-- @name session_rollup
-- @type incremental_insert
-- @object session_rollups
-- @description Rolls sessions into hourly buckets.
-- |Second line of the description.
-- @refresh_sql INSERT INTO session_rollups
-- |SELECT date_trunc('hour', started_at), count(*)
-- |FROM sessions GROUP BY 1
SELECT 1;
`
	f, err := ParseFile("030_rollup.sql", text)
	require.NoError(t, err)
	require.Len(t, f.Definitions, 1)

	d := f.Definitions[0]
	assert.Equal(t, "Rolls sessions into hourly buckets.\nSecond line of the description.", d.Description)
	assert.Equal(t, "INSERT INTO session_rollups\nSELECT date_trunc('hour', started_at), count(*)\nFROM sessions GROUP BY 1", d.RefreshSQL)
}

func TestParseFileMultipleBlocks(t *testing.T) {
	text := `-- @name heatmap_schema
-- @type schema
-- @object player_session_heatmaps
CREATE TABLE player_session_heatmaps (player_id text);

-- @name heatmap_refresh
-- @type aggregation
-- @object player_session_heatmaps
-- @refresh_sql INSERT INTO player_session_heatmaps SELECT 1
`
	f, err := ParseFile("040_heatmaps.sql", text)
	require.NoError(t, err)
	require.Len(t, f.Definitions, 2)

	assert.Equal(t, "heatmap_schema", f.Definitions[0].Name)
	assert.Equal(t, KindSchema, f.Definitions[0].Kind)
	assert.False(t, f.Definitions[0].Recurring())

	assert.Equal(t, "heatmap_refresh", f.Definitions[1].Name)
	assert.True(t, f.Definitions[1].Recurring())
}

func TestParseFileRepeatedIndexes(t *testing.T) {
	text := `-- @name stats
-- @type materialized_view
-- @object mv_stats
-- @indexes create unique index ux_stats on mv_stats(player_id)
-- @indexes create index ix_stats_score on mv_stats(score)
-- |where score > 0
SELECT 1;
`
	f, err := ParseFile("050_stats.sql", text)
	require.NoError(t, err)
	require.Len(t, f.Definitions, 1)
	assert.Equal(t, []string{
		"create unique index ux_stats on mv_stats(player_id)",
		"create index ix_stats_score on mv_stats(score)\nwhere score > 0",
	}, f.Definitions[0].IndexSQL)
}

func TestParseFileKeyOrderFree(t *testing.T) {
	// @name need not come first in a header block.
	text := `-- @type materialized_view
-- @object mv_x
-- @name x
SELECT 1;
`
	f, err := ParseFile("010_x.sql", text)
	require.NoError(t, err)
	require.Len(t, f.Definitions, 1)
	assert.Equal(t, "x", f.Definitions[0].Name)
	assert.Equal(t, "mv_x", f.Definitions[0].ObjectName)
	assert.Equal(t, "REFRESH MATERIALIZED VIEW CONCURRENTLY mv_x", f.Definitions[0].RefreshSQL)
}

func TestParseFileAdjacentBlocksSplitOnName(t *testing.T) {
	// Two headers back to back, no body between them: the second
	// @name still starts a new block.
	text := `-- @name first
-- @type aggregation
-- @object a
-- @refresh_sql INSERT INTO a SELECT 1
-- @name second
-- @type aggregation
-- @object b
-- @refresh_sql INSERT INTO b SELECT 1
`
	f, err := ParseFile("011_pair.sql", text)
	require.NoError(t, err)
	require.Len(t, f.Definitions, 2)
	assert.Equal(t, "first", f.Definitions[0].Name)
	assert.Equal(t, "a", f.Definitions[0].ObjectName)
	assert.Equal(t, "second", f.Definitions[1].Name)
	assert.Equal(t, "b", f.Definitions[1].ObjectName)
}

func TestParseFileMissingRequiredFields(t *testing.T) {
	cases := []struct {
		name    string
		text    string
		missing string
	}{
		{
			name:    "missing object",
			text:    "-- @name broken\n-- @type schema\nSELECT 1;\n",
			missing: "object",
		},
		{
			name:    "missing name",
			text:    "-- @type schema\n-- @object t\nSELECT 1;\n",
			missing: "name",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseFile("bad.sql", tc.text)
			require.Error(t, err)
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "bad.sql", perr.File)
			assert.Equal(t, tc.missing, perr.Missing)
		})
	}
}

func TestParseFileNoHeader(t *testing.T) {
	// Pure DDL migration files have no definition blocks but still
	// carry an executable body for the applier.
	f, err := ParseFile("001_schema.sql", "-- base schema\nCREATE TABLE rounds (id bigint);\n")
	require.NoError(t, err)
	assert.Empty(t, f.Definitions)
	assert.NotEmpty(t, f.Raw)
}

func TestParseFileUnknownKind(t *testing.T) {
	text := "-- @name weird\n-- @type vacuum_sweep\n-- @object rounds\n-- @refresh_sql VACUUM rounds\n"
	f, err := ParseFile("060_weird.sql", text)
	require.NoError(t, err)
	require.Len(t, f.Definitions, 1)
	assert.Equal(t, Kind("vacuum_sweep"), f.Definitions[0].Kind)
}

func TestSplitStatements(t *testing.T) {
	sql := `-- header comment
CREATE TABLE a (
    id bigint
);

-- another comment
CREATE INDEX ix_a ON a(id);
INSERT INTO a VALUES (1)`

	stmts := SplitStatements(sql)
	require.Len(t, stmts, 3)
	assert.Equal(t, "CREATE TABLE a (\n    id bigint\n)", stmts[0])
	assert.Equal(t, "CREATE INDEX ix_a ON a(id)", stmts[1])
	assert.Equal(t, "INSERT INTO a VALUES (1)", stmts[2])
}

func TestSplitStatementsEmpty(t *testing.T) {
	assert.Empty(t, SplitStatements("-- only comments\n\n-- nothing else\n"))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, text string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644))
	}

	write("002_b.sql", "-- @name b\n-- @type schema\n-- @object tb\nCREATE TABLE tb (id int);\n")
	write("001_a.sql", "-- @name a\n-- @type schema\n-- @object ta\nCREATE TABLE ta (id int);\n")
	write("003_bad.sql", "-- @name incomplete\nSELECT 1;\n")
	write("notes.txt", "not sql")

	files, errs := LoadDir(dir)
	require.Len(t, errs, 1)
	var perr *ParseError
	require.ErrorAs(t, errs[0], &perr)
	assert.Equal(t, "003_bad.sql", perr.File)

	require.Len(t, files, 2)
	assert.Equal(t, "001_a.sql", files[0].Name)
	assert.Equal(t, "002_b.sql", files[1].Name)

	defs := Definitions(files)
	require.Len(t, defs, 2)
	assert.Equal(t, "a", defs[0].Name)
}

func TestLoadDirMissing(t *testing.T) {
	files, errs := LoadDir(filepath.Join(t.TempDir(), "nope"))
	assert.Empty(t, files)
	assert.Empty(t, errs)
}

func TestStem(t *testing.T) {
	assert.Equal(t, "010_player_stats", Stem("010_player_stats.sql"))
	assert.Equal(t, "x", Stem("dir/x.sql"))
}
