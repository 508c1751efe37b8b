package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/querystream/percolator/internal/query"
)

// LoadFile reads one query file. A file holds either a single query object
// or an array of them.
func LoadFile(path string) ([]*query.MonitorQuery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file %s: %w", path, err)
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var queries []*query.MonitorQuery
		if err := json.Unmarshal(data, &queries); err != nil {
			return nil, fmt.Errorf("parsing query file %s: %w", path, err)
		}
		return queries, nil
	}
	q := new(query.MonitorQuery)
	if err := json.Unmarshal(data, q); err != nil {
		return nil, fmt.Errorf("parsing query file %s: %w", path, err)
	}
	return []*query.MonitorQuery{q}, nil
}

// LoadDir reads every *.json file in dir, returning the queries keyed by
// the file that defined them. Unreadable files fail the load; an absent
// directory is not an error and yields nothing.
func LoadDir(dir string) (map[string][]*query.MonitorQuery, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading query directory %s: %w", dir, err)
	}
	byFile := make(map[string][]*query.MonitorQuery)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		queries, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		if len(queries) > 0 {
			byFile[path] = queries
		}
	}
	return byFile, nil
}
