package shadow

import (
	"context"
	"testing"
)

type fakeRetriever struct {
	docs []RawDocument
	err  error
}

func (f *fakeRetriever) RetrieveExcluding(ctx context.Context, embedding []float32, clusterID string, k int) ([]RawDocument, error) {
	return f.docs, f.err
}

func TestValidate_StrongCrediblyRefutingEvidenceIsGuilty(t *testing.T) {
	r := &fakeRetriever{docs: []RawDocument{
		{Content: "a", Kind: EvidenceAcademic, Similarity: 0.9},
		{Content: "b", Kind: EvidenceOfficial, Similarity: 0.85},
		{Content: "c", Kind: EvidenceAcademic, Similarity: 0.8},
	}}
	result, err := Validate(context.Background(), r, []float32{1, 0}, "cluster-1", 5, Config{})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Verdict != VerdictGuilty {
		t.Fatalf("expected Guilty, got %v (score %v)", result.Verdict, result.RefutationScore)
	}
}

func TestValidate_WeakAnecdotalEvidenceIsInnocent(t *testing.T) {
	r := &fakeRetriever{docs: []RawDocument{
		{Content: "a", Kind: EvidenceAnecdotal, Similarity: 0.2},
		{Content: "b", Kind: EvidenceBlog, Similarity: 0.1},
		{Content: "c", Kind: EvidenceAnecdotal, Similarity: 0.15},
	}}
	result, err := Validate(context.Background(), r, []float32{1, 0}, "cluster-1", 5, Config{})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Verdict != VerdictInnocent {
		t.Fatalf("expected Innocent, got %v (score %v)", result.Verdict, result.RefutationScore)
	}
}

func TestValidate_TooFewDocumentsIsInsufficientEvidence(t *testing.T) {
	r := &fakeRetriever{docs: []RawDocument{
		{Content: "a", Kind: EvidenceAcademic, Similarity: 0.9},
	}}
	result, err := Validate(context.Background(), r, []float32{1, 0}, "cluster-1", 5, Config{MinSampleSize: 3})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Verdict != VerdictInsufficientEvidence {
		t.Fatalf("expected InsufficientEvidence with only 1 document, got %v", result.Verdict)
	}
}

func TestValidate_EvidenceSortedByRefutationStrength(t *testing.T) {
	r := &fakeRetriever{docs: []RawDocument{
		{Content: "weak", Kind: EvidenceAnecdotal, Similarity: 0.9},
		{Content: "strong", Kind: EvidenceAcademic, Similarity: 0.9},
	}}
	result, err := Validate(context.Background(), r, []float32{1, 0}, "cluster-1", 5, Config{})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(result.Evidence) != 2 || result.Evidence[0].Document.Content != "strong" {
		t.Fatalf("expected strongest evidence first, got %+v", result.Evidence)
	}
}

func TestValidate_UnknownKindFallsBackToAnecdotalCredibility(t *testing.T) {
	r := &fakeRetriever{docs: []RawDocument{{Content: "a", Kind: "mystery", Similarity: 0.5}}}
	result, err := Validate(context.Background(), r, []float32{1, 0}, "cluster-1", 5, Config{})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Evidence[0].Credibility != credibilityWeights[EvidenceAnecdotal] {
		t.Fatalf("expected anecdotal fallback credibility, got %v", result.Evidence[0].Credibility)
	}
}
