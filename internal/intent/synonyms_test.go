package intent

import "testing"

func TestSynonyms_PhraseExpansion(t *testing.T) {
	res, ok := matchSynonyms("pull up my budget")
	if !ok {
		t.Fatal("expected a match")
	}
	if res.Type != TypeNavigate {
		t.Errorf("type = %v, want navigate", res.Type)
	}
	if res.Source != SourceSynonym {
		t.Errorf("source = %v, want synonym_expansion", res.Source)
	}
	// The input field reports the original phrasing, not the expansion.
	if res.Input != "pull up my budget" {
		t.Errorf("input = %q, want original text", res.Input)
	}
}

func TestSynonyms_VerbExpansion(t *testing.T) {
	res, ok := matchSynonyms("erase the last entry")
	if !ok {
		t.Fatal("expected a match")
	}
	if res.Type != TypeDelete {
		t.Errorf("type = %v, want delete", res.Type)
	}
}

func TestSynonyms_ConfidenceHaircut(t *testing.T) {
	exact, ok := matchExactRules("go to the budget page")
	if !ok {
		t.Fatal("setup: exact rule should match")
	}

	syn, ok := matchSynonyms("take me to the budget page")
	if !ok {
		t.Fatal("expected a synonym match")
	}
	want := exact.Confidence * synonymPenalty
	if syn.Confidence != want {
		t.Errorf("confidence = %v, want %v", syn.Confidence, want)
	}
}

func TestSynonyms_UnchangedInputFallsThrough(t *testing.T) {
	// Canonical phrasing contains no synonyms, so the layer must not fire
	// even though the exact layer would match.
	if _, ok := matchSynonyms("go to the budget page"); ok {
		t.Error("synonym layer matched input it did not expand")
	}
}
