package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mikehostetler/wreckit/internal/item"
	"github.com/mikehostetler/wreckit/internal/util"
	"github.com/mikehostetler/wreckit/internal/werr"
)

const currentSchemaVersion = 1

// ReadJSON reads and validates a JSON file at path into v. A stray
// "<path>.tmp" left over from a crashed write is never read — only the
// final, renamed path is considered authoritative.
func ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is store-computed, not user input
	if err != nil {
		if os.IsNotExist(err) {
			return werr.Wrap(werr.ItemNotFound, "file not found: "+path, err)
		}
		return werr.Wrap(werr.Git, "reading "+path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return werr.Wrap(werr.InvalidJSON, "parsing "+path, err)
	}
	return nil
}

// WriteJSON schema-validates v (via validate, which may be nil to skip)
// and atomically writes it to path.
func WriteJSON(path string, v interface{}, validate func() error) error {
	if validate != nil {
		if err := validate(); err != nil {
			return werr.Wrap(werr.SchemaValidation, "validating "+path, err)
		}
	}
	return util.EnsureDirAndWriteJSON(path, v)
}

// ReadMarkdown reads a markdown artifact's raw content.
func ReadMarkdown(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is store-computed, not user input
	if err != nil {
		if os.IsNotExist(err) {
			return "", werr.Wrap(werr.ArtifactNotCreated, "artifact not found: "+path, err)
		}
		return "", werr.Wrap(werr.Git, "reading "+path, err)
	}
	return string(data), nil
}

// WriteMarkdown atomically writes markdown content to path.
func WriteMarkdown(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return util.AtomicWriteFile(path, []byte(content), 0o644)
}

// Exists reports whether a path exists on disk.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ReadItem loads an item.json by id.
func (s *Store) ReadItem(id string) (*item.Item, error) {
	var it item.Item
	if err := ReadJSON(s.ItemJSONPath(id), &it); err != nil {
		return nil, err
	}
	return &it, nil
}

// WriteItem atomically, schema-validates and persists an item.json.
// Validation is per-item only (ValidID, known state); cross-item DAG
// validation is the caller's responsibility (it requires the full set).
func (s *Store) WriteItem(it *item.Item) error {
	if it.SchemaVersion == 0 {
		it.SchemaVersion = currentSchemaVersion
	}
	return WriteJSON(s.ItemJSONPath(it.ID), it, it.Validate)
}

// ReadPRD loads prd.json for an item.
func (s *Store) ReadPRD(id string) (*item.PRD, error) {
	var prd item.PRD
	if err := ReadJSON(s.PRDJSONPath(id), &prd); err != nil {
		return nil, err
	}
	return &prd, nil
}

// WritePRD atomically persists prd.json, validating every story.
func (s *Store) WritePRD(id string, prd *item.PRD) error {
	if prd.SchemaVersion == 0 {
		prd.SchemaVersion = currentSchemaVersion
	}
	validate := func() error {
		if len(prd.Stories) == 0 || len(prd.Stories) > 15 {
			return fmt.Errorf("prd must have 1-15 stories, got %d", len(prd.Stories))
		}
		var errs []string
		for _, st := range prd.Stories {
			errs = append(errs, st.Validate()...)
		}
		if len(errs) > 0 {
			return fmt.Errorf("%d story validation errors: %v", len(errs), errs)
		}
		return nil
	}
	return WriteJSON(s.PRDJSONPath(id), prd, validate)
}

// ListItemIDs scans the items directory and returns every item id found
// (directories with a readable item.json). Malformed entries are
// skipped, not fatal — the index is a best-effort, rebuildable
// projection.
func (s *Store) ListItemIDs() ([]string, error) {
	entries, err := os.ReadDir(s.ItemsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if Exists(s.ItemJSONPath(e.Name())) {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// LoadAllItems loads every item under the items directory, skipping (and
// not failing on) entries whose item.json fails to parse.
func (s *Store) LoadAllItems() (map[string]*item.Item, []error) {
	ids, err := s.ListItemIDs()
	if err != nil {
		return nil, []error{err}
	}
	items := make(map[string]*item.Item, len(ids))
	var errs []error
	for _, id := range ids {
		it, err := s.ReadItem(id)
		if err != nil {
			errs = append(errs, fmt.Errorf("loading %s: %w", id, err))
			continue
		}
		items[id] = it
	}
	return items, errs
}

// RebuildIndex scans the items directory and writes a fresh index.json.
func (s *Store) RebuildIndex(now time.Time) (*item.Index, error) {
	items, _ := s.LoadAllItems()
	list := make([]*item.Item, 0, len(items))
	for _, it := range items {
		list = append(list, it)
	}
	idx := item.BuildIndex(list, now)
	if err := WriteJSON(s.IndexJSONPath(), idx, nil); err != nil {
		return nil, err
	}
	return idx, nil
}
