package postturn

import "testing"

func TestParseMemoryCandidatesTolersFencedCodeBlock(t *testing.T) {
	raw := "```json\n[{\"content\": \"likes tea\", \"importance\": 0.4}]\n```"
	candidates, err := parseMemoryCandidates(raw)
	if err != nil {
		t.Fatalf("parseMemoryCandidates: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Content != "likes tea" {
		t.Fatalf("candidates = %+v", candidates)
	}
}

func TestParseMemoryCandidatesEmptyInputYieldsNoCandidates(t *testing.T) {
	candidates, err := parseMemoryCandidates("   ")
	if err != nil {
		t.Fatalf("parseMemoryCandidates: %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("candidates = %+v, want none", candidates)
	}
}

func TestParseMemoryCandidatesRejectsMalformedJSON(t *testing.T) {
	if _, err := parseMemoryCandidates("not json at all"); err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}
