package store

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// load reads the entity graph from path, tolerating a missing file (a
// fresh $VEX_HOME) by returning an empty graph, matching grove's
// loadPersistedInstances treatment of a missing instances directory.
func load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return newGraph(), nil
		}
		return nil, err
	}
	g := newGraph()
	if err := json.Unmarshal(data, g); err != nil {
		return nil, err
	}
	if g.Repos == nil {
		g.Repos = make(map[string]*Repository)
	}
	return g, nil
}

// save writes g to path atomically: write to a temp file in the same
// directory, then rename over the destination. No concurrent reader can
// ever observe a half-written file, because rename(2) is atomic within a
// filesystem.
func save(path string, g *Graph) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".repos-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(g); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
