package provenance

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ashgrove-systems/godagent-memory/internal/errs"
)

// ByDomain lists every source classified under domain, newest first. Backs
// the daemon's `knowledge.by_domain` RPC (spec.md §4.14).
func (s *Store) ByDomain(domain string) ([]Source, error) {
	rows, err := s.sources.Query(
		`SELECT id, title, uri, kind, relevance, domain, tags, retrieved_at FROM sources WHERE domain = ? ORDER BY retrieved_at DESC`,
		domain,
	)
	if err != nil {
		return nil, fmt.Errorf("query by domain: %w", err)
	}
	return scanSources(rows)
}

// ByTags lists every source carrying at least one of the given tags,
// newest first. Backs the daemon's `knowledge.by_tags` RPC.
func (s *Store) ByTags(tags []string) ([]Source, error) {
	if len(tags) == 0 {
		return nil, nil
	}

	rows, err := s.sources.Query(
		`SELECT id, title, uri, kind, relevance, domain, tags, retrieved_at FROM sources ORDER BY retrieved_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query for tag scan: %w", err)
	}
	all, err := scanSources(rows)
	if err != nil {
		return nil, err
	}

	want := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		want[t] = struct{}{}
	}

	var out []Source
	for _, src := range all {
		for _, t := range src.Tags {
			if _, ok := want[t]; ok {
				out = append(out, src)
				break
			}
		}
	}
	return out, nil
}

// DeleteSource removes a source by id. Backs the daemon's
// `knowledge.delete` RPC. Deleting a source already cited by a provenance
// chain does not touch the chain — provenance entries hold the source id,
// not a live reference, matching spec.md §4.8's append-only derivation log.
func (s *Store) DeleteSource(id SourceID) error {
	res, err := s.sources.Exec(`DELETE FROM sources WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func scanSources(rows *sql.Rows) ([]Source, error) {
	defer rows.Close()
	var out []Source
	for rows.Next() {
		var got Source
		var gotID string
		var tagsJSON []byte
		if err := rows.Scan(&gotID, &got.Title, &got.URI, &got.Kind, &got.Relevance, &got.Domain, &tagsJSON, &got.RetrievedAt); err != nil {
			return nil, fmt.Errorf("scan source row: %w", err)
		}
		got.ID = SourceID(gotID)
		if len(tagsJSON) > 0 {
			if err := json.Unmarshal(tagsJSON, &got.Tags); err != nil {
				return nil, fmt.Errorf("unmarshal tags: %w", err)
			}
		}
		out = append(out, got)
	}
	return out, rows.Err()
}
