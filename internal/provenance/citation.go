package provenance

import "github.com/ashgrove-systems/godagent-memory/internal/errs"

const defaultMaxCitationDepth = 10

// CitationPath walks parent_provenance_id links from id up to maxDepth
// hops, emitting every cited source in traversal order with a
// contribution of relevance * (1/n) where n is the chain's own source
// count (spec.md §4.8 "Citation path"). A cycle (a provenance id revisited
// during the walk) aborts the traversal rather than looping forever.
func (s *Store) CitationPath(id ProvenanceID, maxDepth int) ([]CitationEntry, error) {
	if maxDepth <= 0 {
		maxDepth = defaultMaxCitationDepth
	}

	var out []CitationEntry
	visited := make(map[ProvenanceID]struct{})
	cur := id

	for depth := 0; depth < maxDepth && cur != ""; depth++ {
		if _, seen := visited[cur]; seen {
			return nil, errs.ErrCyclicGraph
		}
		visited[cur] = struct{}{}

		chain, err := s.GetProvenance(cur)
		if err != nil {
			return nil, err
		}

		n := len(chain.Sources)
		if n == 0 {
			cur = chain.ParentID
			continue
		}
		contribution := 1.0 / float64(n)
		for _, srcID := range chain.Sources {
			src, err := s.GetSource(srcID)
			if err != nil {
				return nil, err
			}
			out = append(out, CitationEntry{
				Source:       src,
				ProvenanceID: chain.ID,
				Contribution: src.Relevance * contribution,
			})
		}

		cur = chain.ParentID
	}
	return out, nil
}
