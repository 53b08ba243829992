package sqljob

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoadDir reads every *.sql file under dir in lexicographic order.
// Files that fail to parse are dropped and reported in the returned
// error slice; the rest of the corpus loads. A missing directory is
// not an error, it yields an empty corpus.
func LoadDir(dir string) ([]File, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, []error{fmt.Errorf("sqljob: read dir %s: %w", dir, err)}
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var files []File
	var errs []error
	for _, name := range names {
		text, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			errs = append(errs, fmt.Errorf("sqljob: read %s: %w", name, err))
			continue
		}
		f, err := ParseFile(name, string(text))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		files = append(files, f)
	}
	return files, errs
}

// Definitions flattens the corpus into its definition list, keeping
// file order.
func Definitions(files []File) []Definition {
	var defs []Definition
	for _, f := range files {
		defs = append(defs, f.Definitions...)
	}
	return defs
}
