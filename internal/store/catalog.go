package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// WatcherPath is one row of watcher_paths: the persisted inventory of
// watched repositories, restored at boot.
type WatcherPath struct {
	RepoFullName string
	LocalPath    string
	Watching     bool
}

// UpsertWatcherPath inserts or updates the watched path for repo.
func (s *Store) UpsertWatcherPath(repo, path string) error {
	_, err := s.exec(`
		INSERT INTO watcher_paths (repo_full_name, local_path, watching)
		VALUES (?, ?, 1)
		ON CONFLICT(repo_full_name) DO UPDATE SET local_path = excluded.local_path, watching = 1
	`, repo, path)
	if err != nil {
		return fmt.Errorf("upsert watcher path %s: %w", repo, err)
	}
	return nil
}

// DeleteWatcherPath removes repo from the watched-path catalog.
func (s *Store) DeleteWatcherPath(repo string) error {
	_, err := s.exec(`DELETE FROM watcher_paths WHERE repo_full_name = ?`, repo)
	if err != nil {
		return fmt.Errorf("delete watcher path %s: %w", repo, err)
	}
	return nil
}

// AllWatcherPaths returns every watcher_paths row with watching = 1.
func (s *Store) AllWatcherPaths() ([]WatcherPath, error) {
	rows, err := s.query(`SELECT repo_full_name, local_path, watching FROM watcher_paths WHERE watching = 1`)
	if err != nil {
		return nil, fmt.Errorf("query watcher paths: %w", err)
	}
	defer rows.Close()

	var out []WatcherPath
	for rows.Next() {
		var wp WatcherPath
		var watching int
		if err := rows.Scan(&wp.RepoFullName, &wp.LocalPath, &watching); err != nil {
			return nil, fmt.Errorf("scan watcher path: %w", err)
		}
		wp.Watching = watching != 0
		out = append(out, wp)
	}
	return out, rows.Err()
}

// Project is one row of the repository catalog.
type Project struct {
	ID           string
	RepoFullName string
	Metadata     json.RawMessage
}

// UpsertProject inserts or updates a project keyed on repo_full_name.
// projectJSON is the full record; it is stored verbatim as metadata and
// repo_full_name/id are pulled out of it.
func (s *Store) UpsertProject(projectJSON []byte) error {
	var rec map[string]any
	if err := json.Unmarshal(projectJSON, &rec); err != nil {
		return fmt.Errorf("unmarshal project: %w", err)
	}

	repoFullName, _ := rec["repo_full_name"].(string)
	if repoFullName == "" {
		return fmt.Errorf("upsert project: repo_full_name is required")
	}

	id, _ := rec["id"].(string)
	if id == "" {
		id = repoFullName
	}

	_, err := s.exec(`
		INSERT INTO projects (id, repo_full_name, metadata, updated_at)
		VALUES (?, ?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT(repo_full_name) DO UPDATE SET
			metadata = excluded.metadata,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
	`, id, repoFullName, string(projectJSON))
	if err != nil {
		return fmt.Errorf("upsert project %s: %w", repoFullName, err)
	}
	return nil
}

// AllProjects returns every project in the catalog.
func (s *Store) AllProjects() ([]Project, error) {
	rows, err := s.query(`SELECT id, repo_full_name, metadata FROM projects ORDER BY repo_full_name`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		var metadata string
		if err := rows.Scan(&p.ID, &p.RepoFullName, &metadata); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.Metadata = json.RawMessage(metadata)
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteProject removes a project by id.
func (s *Store) DeleteProject(id string) error {
	_, err := s.exec(`DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	return nil
}

// GetPreference returns a user_preferences value. ok is false if the key is
// unset.
func (s *Store) GetPreference(key string) (value string, ok bool, err error) {
	row := s.queryRow(`SELECT value FROM user_preferences WHERE key = ?`, key)
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get preference %s: %w", key, err)
	}
	return value, true, nil
}

// SetPreference inserts or updates a user_preferences value.
func (s *Store) SetPreference(key, value string) error {
	_, err := s.exec(`
		INSERT INTO user_preferences (key, value, updated_at)
		VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
	`, key, value)
	if err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}

// ModelScore is a user-tunable per-model scoring row.
type ModelScore struct {
	ModelKey      string
	Coding        float64
	Analysis      float64
	Documentation float64
	Speed         float64
}

// UpsertModelScore inserts or updates a model's scores.
func (s *Store) UpsertModelScore(modelKey string, coding, analysis, documentation, speed float64) error {
	_, err := s.exec(`
		INSERT INTO model_scores (model_key, coding, analysis, documentation, speed)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(model_key) DO UPDATE SET
			coding = excluded.coding,
			analysis = excluded.analysis,
			documentation = excluded.documentation,
			speed = excluded.speed
	`, modelKey, coding, analysis, documentation, speed)
	if err != nil {
		return fmt.Errorf("upsert model score %s: %w", modelKey, err)
	}
	return nil
}

// AllModelScores returns every model_scores row.
func (s *Store) AllModelScores() ([]ModelScore, error) {
	rows, err := s.query(`SELECT model_key, coding, analysis, documentation, speed FROM model_scores ORDER BY model_key`)
	if err != nil {
		return nil, fmt.Errorf("query model scores: %w", err)
	}
	defer rows.Close()

	var out []ModelScore
	for rows.Next() {
		var ms ModelScore
		if err := rows.Scan(&ms.ModelKey, &ms.Coding, &ms.Analysis, &ms.Documentation, &ms.Speed); err != nil {
			return nil, fmt.Errorf("scan model score: %w", err)
		}
		out = append(out, ms)
	}
	return out, rows.Err()
}

// EditorModels is a per-editor list of supported models.
type EditorModels struct {
	EditorType      string
	SupportedModels []string
}

// UpsertEditorModels inserts or updates the supported-model list for an
// editor type.
func (s *Store) UpsertEditorModels(editorType string, supportedModels []string) error {
	data, err := json.Marshal(supportedModels)
	if err != nil {
		return fmt.Errorf("marshal supported models: %w", err)
	}

	_, err = s.exec(`
		INSERT INTO editor_models (editor_type, supported_models)
		VALUES (?, ?)
		ON CONFLICT(editor_type) DO UPDATE SET supported_models = excluded.supported_models
	`, editorType, string(data))
	if err != nil {
		return fmt.Errorf("upsert editor models %s: %w", editorType, err)
	}
	return nil
}

// AllEditorModels returns every editor_models row.
func (s *Store) AllEditorModels() ([]EditorModels, error) {
	rows, err := s.query(`SELECT editor_type, supported_models FROM editor_models ORDER BY editor_type`)
	if err != nil {
		return nil, fmt.Errorf("query editor models: %w", err)
	}
	defer rows.Close()

	var out []EditorModels
	for rows.Next() {
		var em EditorModels
		var supported string
		if err := rows.Scan(&em.EditorType, &supported); err != nil {
			return nil, fmt.Errorf("scan editor models: %w", err)
		}
		if err := json.Unmarshal([]byte(supported), &em.SupportedModels); err != nil {
			return nil, fmt.Errorf("unmarshal supported models: %w", err)
		}
		out = append(out, em)
	}
	return out, rows.Err()
}
