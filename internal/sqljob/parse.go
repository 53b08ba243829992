package sqljob

import (
	"path/filepath"
	"strings"
)

// Metadata header dialect, embedded in SQL comments:
//
//	-- @name player_stats
//	-- @type materialized_view
//	-- @object mv_player_stats
//	-- @description text...
//	-- |continuation line
//	-- @indexes create unique index ...
//	-- @refresh_sql insert into ...
//	-- |continuation line
//	<executable body...>
//
// A new block begins at each @name directive. Continuation lines
// attach to the most recent directive and join with a newline.

type headerBlock struct {
	line    int
	fields  map[string]string
	indexes []string
	lastKey string
}

func (b *headerBlock) set(key, value string) {
	if key == "indexes" {
		b.indexes = append(b.indexes, value)
	} else {
		b.fields[key] = value
	}
	b.lastKey = key
}

func (b *headerBlock) appendContinuation(text string) {
	if b.lastKey == "" {
		return
	}
	if b.lastKey == "indexes" {
		if n := len(b.indexes); n > 0 {
			b.indexes[n-1] += "\n" + text
		}
		return
	}
	b.fields[b.lastKey] += "\n" + text
}

func (b *headerBlock) definition(sourceFile string) (Definition, *ParseError) {
	name := strings.TrimSpace(b.fields["name"])
	object := strings.TrimSpace(b.fields["object"])
	if name == "" {
		return Definition{}, &ParseError{File: sourceFile, Line: b.line, Missing: "name"}
	}
	if object == "" {
		return Definition{}, &ParseError{File: sourceFile, Line: b.line, Missing: "object"}
	}

	kind := Kind(strings.TrimSpace(b.fields["type"]))
	if kind == "" {
		kind = KindCustom
	}

	refresh := strings.TrimSpace(b.fields["refresh_sql"])
	if refresh == "" && kind == KindMaterializedView {
		refresh = "REFRESH MATERIALIZED VIEW CONCURRENTLY " + object
	}

	return Definition{
		Name:        name,
		Kind:        kind,
		ObjectName:  object,
		RefreshSQL:  refresh,
		Description: strings.TrimSpace(b.fields["description"]),
		IndexSQL:    b.indexes,
		SourceFile:  sourceFile,
	}, nil
}

// ParseFile extracts every definition block from one SQL file. A block
// missing @name or @object fails the whole file; statement bodies are
// not validated here, only at execution time.
func ParseFile(name, text string) (File, error) {
	f := File{Name: name, Raw: text}

	var block *headerBlock
	flush := func() error {
		if block == nil {
			return nil
		}
		def, perr := block.definition(name)
		block = nil
		if perr != nil {
			return perr
		}
		f.Definitions = append(f.Definitions, def)
		return nil
	}

	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if !strings.HasPrefix(line, "--") {
			// Executable body; terminates any open header block.
			if line != "" {
				if err := flush(); err != nil {
					return File{}, err
				}
			}
			continue
		}

		content := strings.TrimSpace(strings.TrimPrefix(line, "--"))
		switch {
		case content == "":
			continue
		case strings.HasPrefix(content, "@"):
			key, value, _ := strings.Cut(content[1:], " ")
			key = strings.TrimSpace(key)
			value = strings.TrimSpace(value)
			// Keys are order-free within a block; a second @name is
			// what starts the next block.
			if key == "name" && block != nil && block.fields["name"] != "" {
				if err := flush(); err != nil {
					return File{}, err
				}
			}
			if block == nil {
				if !recognizedKey(key) {
					continue
				}
				block = &headerBlock{line: i + 1, fields: map[string]string{}}
			}
			block.set(key, value)
		case strings.HasPrefix(content, "|"):
			if block != nil {
				block.appendContinuation(strings.TrimLeft(content[1:], " "))
			}
		default:
			// Plain documentation comment.
		}
	}

	if err := flush(); err != nil {
		return File{}, err
	}
	return f, nil
}

func recognizedKey(key string) bool {
	switch key {
	case "name", "type", "object", "description", "indexes", "refresh_sql":
		return true
	}
	return false
}

// SplitStatements breaks SQL text into executable statements.
// Comment-only and blank lines are dropped; statements terminate at a
// semicolon ending a line, with a final unterminated statement kept.
func SplitStatements(sql string) []string {
	var statements []string
	var buf []string

	for _, raw := range strings.Split(sql, "\n") {
		stripped := strings.TrimSpace(raw)
		if stripped == "" || strings.HasPrefix(stripped, "--") {
			continue
		}

		buf = append(buf, raw)
		if strings.HasSuffix(stripped, ";") {
			stmt := strings.TrimRight(strings.TrimSpace(strings.Join(buf, "\n")), ";")
			stmt = strings.TrimSpace(stmt)
			if stmt != "" {
				statements = append(statements, stmt)
			}
			buf = nil
		}
	}

	if len(buf) > 0 {
		if stmt := strings.TrimSpace(strings.Join(buf, "\n")); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}

// Stem returns the filename without directory or extension, used as
// the audit job name for files that carry no definition header.
func Stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
