package provenance

import "testing"

func TestStore_ByDomainFiltersToMatchingSources(t *testing.T) {
	s := newTestStore(t)
	_, err := s.StoreSource(Source{Title: "a", Domain: "medical", Relevance: 0.9})
	if err != nil {
		t.Fatalf("store a: %v", err)
	}
	_, err = s.StoreSource(Source{Title: "b", Domain: "finance", Relevance: 0.8})
	if err != nil {
		t.Fatalf("store b: %v", err)
	}

	got, err := s.ByDomain("medical")
	if err != nil {
		t.Fatalf("by domain: %v", err)
	}
	if len(got) != 1 || got[0].Title != "a" {
		t.Fatalf("expected only 'a' under medical domain, got %+v", got)
	}
}

func TestStore_ByTagsMatchesAnyOverlappingTag(t *testing.T) {
	s := newTestStore(t)
	_, err := s.StoreSource(Source{Title: "a", Tags: []string{"llm", "safety"}, Relevance: 0.9})
	if err != nil {
		t.Fatalf("store a: %v", err)
	}
	_, err = s.StoreSource(Source{Title: "b", Tags: []string{"networking"}, Relevance: 0.8})
	if err != nil {
		t.Fatalf("store b: %v", err)
	}

	got, err := s.ByTags([]string{"safety", "networking"})
	if err != nil {
		t.Fatalf("by tags: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both sources to match one of the requested tags, got %d", len(got))
	}
}

func TestStore_DeleteSourceRemovesRowAndErrorsOnMissing(t *testing.T) {
	s := newTestStore(t)
	id, err := s.StoreSource(Source{Title: "a", Relevance: 0.9})
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	if err := s.DeleteSource(id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetSource(id); err == nil {
		t.Fatalf("expected source to be gone after delete")
	}
	if err := s.DeleteSource(id); err == nil {
		t.Fatalf("expected error deleting an already-deleted source")
	}
}
