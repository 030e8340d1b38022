package provenance

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ashgrove-systems/godagent-memory/internal/errs"
)

// Store persists sources and provenance chains across two sqlite-backed
// databases, one row per entry, matching the teacher's store.go idiom of
// a thin *sql.DB wrapper with an initSchema step.
type Store struct {
	sources    *sql.DB
	provenance *sql.DB
}

// Open opens (creating if absent) sources.db and provenance.db under dir.
func Open(dir string) (*Store, error) {
	sourcesDB, err := sql.Open("sqlite", filepath.Join(dir, "sources.db"))
	if err != nil {
		return nil, fmt.Errorf("open sources.db: %w", err)
	}
	provenanceDB, err := sql.Open("sqlite", filepath.Join(dir, "provenance.db"))
	if err != nil {
		sourcesDB.Close()
		return nil, fmt.Errorf("open provenance.db: %w", err)
	}

	s := &Store{sources: sourcesDB, provenance: provenanceDB}
	if err := s.initSchema(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	if _, err := s.sources.Exec(`
		CREATE TABLE IF NOT EXISTS sources (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			uri TEXT NOT NULL,
			kind TEXT NOT NULL,
			relevance REAL NOT NULL,
			domain TEXT NOT NULL DEFAULT '',
			tags JSON NOT NULL DEFAULT '[]',
			retrieved_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sources_domain ON sources(domain);
	`); err != nil {
		return fmt.Errorf("init sources schema: %w", err)
	}

	if _, err := s.provenance.Exec(`
		CREATE TABLE IF NOT EXISTS provenance (
			id TEXT PRIMARY KEY,
			domain TEXT NOT NULL,
			source_ids JSON NOT NULL,
			steps JSON NOT NULL,
			parent_id TEXT,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_provenance_parent ON provenance(parent_id);
	`); err != nil {
		return fmt.Errorf("init provenance schema: %w", err)
	}
	return nil
}

// Close closes both underlying databases.
func (s *Store) Close() error {
	err1 := s.sources.Close()
	err2 := s.provenance.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// StoreSource persists a source and assigns it an id.
func (s *Store) StoreSource(src Source) (SourceID, error) {
	id := SourceID(newID("src"))
	if src.RetrievedAt.IsZero() {
		src.RetrievedAt = time.Now()
	}
	tagsJSON, err := json.Marshal(src.Tags)
	if err != nil {
		return "", fmt.Errorf("marshal tags: %w", err)
	}
	_, err = s.sources.Exec(
		`INSERT INTO sources (id, title, uri, kind, relevance, domain, tags, retrieved_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(id), src.Title, src.URI, src.Kind, src.Relevance, src.Domain, tagsJSON, src.RetrievedAt,
	)
	if err != nil {
		return "", fmt.Errorf("store source: %w", err)
	}
	return id, nil
}

// GetSource looks up a source by id.
func (s *Store) GetSource(id SourceID) (Source, error) {
	if err := validateID(string(id), "src"); err != nil {
		return Source{}, fmt.Errorf("%w: %s", errs.ErrProvenanceValidation, err)
	}
	row := s.sources.QueryRow(
		`SELECT id, title, uri, kind, relevance, domain, tags, retrieved_at FROM sources WHERE id = ?`, string(id))
	return scanSource(row)
}

func scanSource(row *sql.Row) (Source, error) {
	var got Source
	var gotID string
	var tagsJSON []byte
	if err := row.Scan(&gotID, &got.Title, &got.URI, &got.Kind, &got.Relevance, &got.Domain, &tagsJSON, &got.RetrievedAt); err != nil {
		if err == sql.ErrNoRows {
			return Source{}, errs.ErrNotFound
		}
		return Source{}, fmt.Errorf("get source: %w", err)
	}
	got.ID = SourceID(gotID)
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &got.Tags); err != nil {
			return Source{}, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	return got, nil
}

// StoreProvenance persists a derivation chain. Requires at least one
// source and one step (spec.md §4.8).
func (s *Store) StoreProvenance(p Provenance) (ProvenanceID, error) {
	if len(p.Sources) == 0 || len(p.Steps) == 0 {
		return "", fmt.Errorf("%w: provenance requires >=1 source and >=1 step", errs.ErrProvenanceValidation)
	}
	for _, step := range p.Steps {
		if step.Confidence <= 0 || step.Confidence > 1 {
			return "", fmt.Errorf("%w: step confidence %.4f must be in (0,1]", errs.ErrProvenanceValidation, step.Confidence)
		}
	}

	id := ProvenanceID(newID("prov"))
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	sourcesJSON, err := json.Marshal(p.Sources)
	if err != nil {
		return "", fmt.Errorf("marshal sources: %w", err)
	}
	stepsJSON, err := json.Marshal(p.Steps)
	if err != nil {
		return "", fmt.Errorf("marshal steps: %w", err)
	}

	var parent interface{}
	if p.ParentID != "" {
		parent = string(p.ParentID)
	}

	_, err = s.provenance.Exec(
		`INSERT INTO provenance (id, domain, source_ids, steps, parent_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		string(id), p.Domain, sourcesJSON, stepsJSON, parent, p.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("store provenance: %w", err)
	}
	return id, nil
}

// GetProvenance looks up a derivation chain by id.
func (s *Store) GetProvenance(id ProvenanceID) (Provenance, error) {
	if err := validateID(string(id), "prov"); err != nil {
		return Provenance{}, fmt.Errorf("%w: %s", errs.ErrProvenanceValidation, err)
	}
	row := s.provenance.QueryRow(
		`SELECT id, domain, source_ids, steps, parent_id, created_at FROM provenance WHERE id = ?`, string(id))

	var gotID, domain string
	var sourcesJSON, stepsJSON []byte
	var parent sql.NullString
	var createdAt time.Time
	if err := row.Scan(&gotID, &domain, &sourcesJSON, &stepsJSON, &parent, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return Provenance{}, errs.ErrNotFound
		}
		return Provenance{}, fmt.Errorf("get provenance: %w", err)
	}

	var sources []SourceID
	if err := json.Unmarshal(sourcesJSON, &sources); err != nil {
		return Provenance{}, fmt.Errorf("unmarshal sources: %w", err)
	}
	var steps []DerivationStep
	if err := json.Unmarshal(stepsJSON, &steps); err != nil {
		return Provenance{}, fmt.Errorf("unmarshal steps: %w", err)
	}

	p := Provenance{
		ID:        ProvenanceID(gotID),
		Domain:    domain,
		Sources:   sources,
		Steps:     steps,
		CreatedAt: createdAt,
	}
	if parent.Valid {
		p.ParentID = ProvenanceID(parent.String)
	}
	return p, nil
}
