package safety

import (
	"strings"
	"testing"
)

func TestDetectEmptyMessage(t *testing.T) {
	d := NewDetector()
	for _, msg := range []string{"", "   ", "\n\t  \n"} {
		det := d.Detect(msg)
		if len(det.Categories) != 0 {
			t.Fatalf("expected no categories for %q, got %v", msg, det.Categories)
		}
		if det.AdditionalInstructions != "" {
			t.Fatalf("expected no instructions for %q", msg)
		}
	}
}

func TestDetectIsCaseInsensitive(t *testing.T) {
	d := NewDetector()
	det := d.Detect("My client disclosed a SAFEGUARDING Concern about their child.")
	if !det.HasCategory(CategorySafeguarding) {
		t.Fatalf("expected safeguarding detected, got %v", det.Categories)
	}
}

func TestDetectCollapsesWhitespaceInPhrases(t *testing.T) {
	d := NewDetector()
	det := d.Detect("They described   suicidal\n\tthoughts during our last session.")
	if !det.HasCategory(CategorySuicidalIdeation) {
		t.Fatalf("expected suicidal ideation detected across whitespace, got %v", det.Categories)
	}
}

func TestDetectKeywordsMatchWholeWordsOnly(t *testing.T) {
	d := NewDetector()
	// "abusers" contains "abuse" as a prefix but not as a whole word.
	det := d.Detect("we discussed how abusers present in formal settings")
	if det.HasCategory(CategorySafeguarding) {
		t.Fatalf("expected no safeguarding match for partial word, got %v", det.Categories)
	}
	det = d.Detect("there are signs of neglect in the household")
	if !det.HasCategory(CategorySafeguarding) {
		t.Fatalf("expected whole-word keyword match, got %v", det.Categories)
	}
}

func TestDetectMultipleCategoriesInStableOrder(t *testing.T) {
	d := NewDetector()
	det := d.Detect("My client self harmed after disclosing abuse, and honestly I feel burnt out myself.")
	want := []Category{CategorySafeguarding, CategorySuicidalIdeation, CategoryTherapistDistress}
	if len(det.Categories) != len(want) {
		t.Fatalf("expected %d categories, got %v", len(want), det.Categories)
	}
	for i, c := range want {
		if det.Categories[i] != c {
			t.Fatalf("expected category %d to be %q, got %q", i, c, det.Categories[i])
		}
	}
}

func TestDetectConcatenatesInstructions(t *testing.T) {
	d := NewDetector()
	det := d.Detect("A vulnerable adult client has suicidal thoughts.")
	if len(det.Categories) != 2 {
		t.Fatalf("expected 2 categories, got %v", det.Categories)
	}
	blocks := strings.Split(det.AdditionalInstructions, "\n\n")
	if len(blocks) != 2 {
		t.Fatalf("expected 2 instruction blocks separated by blank line, got %d", len(blocks))
	}
	if !strings.Contains(blocks[0], "safeguarding") {
		t.Fatalf("expected safeguarding instructions first, got %q", blocks[0])
	}
}

func TestDetectCollectsAutoSearchQueries(t *testing.T) {
	d := NewDetector()
	det := d.Detect("I think I'm burnt out.")
	if len(det.AutoSearchQueries) != 1 {
		t.Fatalf("expected 1 auto-search query, got %d", len(det.AutoSearchQueries))
	}
	q := det.AutoSearchQueries[0]
	if q.Tool != "search_clinical_practice" {
		t.Fatalf("expected clinical practice tool, got %q", q.Tool)
	}
	if q.Query == "" {
		t.Fatal("expected non-empty auto-search query")
	}
}

func TestDetectionCategoryStrings(t *testing.T) {
	det := Detection{Categories: []Category{CategorySafeguarding, CategoryTherapistDistress}}
	got := det.CategoryStrings()
	if len(got) != 2 || got[0] != "safeguarding" || got[1] != "therapist_distress" {
		t.Fatalf("unexpected category strings: %v", got)
	}
}

func TestCategoryLabels(t *testing.T) {
	if CategorySuicidalIdeation.Label() != "suicidal ideation" {
		t.Fatalf("unexpected label %q", CategorySuicidalIdeation.Label())
	}
	if CategoryTherapistDistress.Label() != "therapist distress" {
		t.Fatalf("unexpected label %q", CategoryTherapistDistress.Label())
	}
}
