// internal/catalog/catalog.go

// Package catalog loads scenarios, UI maps and uploaded resources from the
// on-disk data directory. The layout mirrors the server that produces these
// files: data/scenarios/<id>.json, data/ui_maps/<id>.json, and
// data/resources/<project_id>/metadata.json alongside the stored files.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/mjbeckett/stepflow/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const resourceTokenPrefix = "resource:"

// Catalog reads named entities from a data directory.
type Catalog struct {
	dataDir string
}

// New creates a catalog over the given data directory.
func New(dataDir string) *Catalog {
	return &Catalog{dataDir: dataDir}
}

// LoadScenario reads a scenario by id. Returns nil (and no error) when the
// scenario does not exist, matching the loader contract the engine consumes.
func (c *Catalog) LoadScenario(id string) (*schemas.Scenario, error) {
	path := filepath.Join(c.dataDir, "scenarios", id+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read scenario %q: %w", id, err)
	}

	var sc schemas.Scenario
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to decode scenario %q: %w", id, err)
	}
	if sc.ID == "" {
		sc.ID = id
	}
	return &sc, nil
}

// LoadUIMap reads a single UI map by id.
func (c *Catalog) LoadUIMap(id string) (*schemas.UIMap, error) {
	path := filepath.Join(c.dataDir, "ui_maps", id+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read ui map %q: %w", id, err)
	}

	var m schemas.UIMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode ui map %q: %w", id, err)
	}
	if m.ID == "" {
		m.ID = id
	}
	return &m, nil
}

// LoadUIMapsForProject reads every UI map belonging to a project, keyed by
// map name. Unreadable files are skipped so one corrupt map does not take
// down a run.
func (c *Catalog) LoadUIMapsForProject(projectID string) (map[string]map[string]schemas.ElementSpec, error) {
	dir := filepath.Join(c.dataDir, "ui_maps")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]map[string]schemas.ElementSpec{}, nil
		}
		return nil, fmt.Errorf("failed to list ui maps: %w", err)
	}

	byName := make(map[string]map[string]schemas.ElementSpec)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var m schemas.UIMap
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}
		if m.ProjectID != projectID {
			continue
		}
		name := m.Name
		if name == "" {
			name = strings.TrimSuffix(entry.Name(), ".json")
		}
		byName[name] = m.Elements
	}
	return byName, nil
}

// ResolveResource turns a "resource:<id>" token into the path of the stored
// file. Non-token inputs pass through untouched.
func (c *Catalog) ResolveResource(token, projectID string) (string, error) {
	if !strings.HasPrefix(token, resourceTokenPrefix) {
		return token, nil
	}
	resourceID := strings.TrimPrefix(token, resourceTokenPrefix)
	if projectID == "" {
		return "", fmt.Errorf("project id is required to resolve resource paths")
	}

	dir := filepath.Join(c.dataDir, "resources", projectID)
	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return "", fmt.Errorf("resource metadata not found for project %q: %w", projectID, err)
	}

	var resources []schemas.Resource
	if err := json.Unmarshal(data, &resources); err != nil {
		return "", fmt.Errorf("failed to decode resource metadata for project %q: %w", projectID, err)
	}

	for _, r := range resources {
		if r.ID == resourceID {
			path := filepath.Join(dir, r.Filename)
			if _, err := os.Stat(path); err != nil {
				return "", fmt.Errorf("resource file not found: %s", path)
			}
			return path, nil
		}
	}
	return "", fmt.Errorf("resource not found: %s", resourceID)
}
