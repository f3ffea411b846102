package words

import "testing"

func TestPickFiltersByDifficulty(t *testing.T) {
	c := NewCatalog(map[string][]Song{
		"es": {
			{Title: "A", Difficulty: "easy"},
			{Title: "B", Difficulty: "hard"},
		},
	}, 1)

	for i := 0; i < 10; i++ {
		song, err := c.Pick("es", "easy")
		if err != nil {
			t.Fatalf("Pick() error: %v", err)
		}
		if song.Title != "A" {
			t.Fatalf("Pick() = %q, want only easy songs", song.Title)
		}
	}
}

func TestPickFallsBackToLanguagePool(t *testing.T) {
	c := NewCatalog(map[string][]Song{
		"es": {{Title: "A", Difficulty: "easy"}},
	}, 1)

	song, err := c.Pick("es", "impossible")
	if err != nil {
		t.Fatalf("Pick() error: %v", err)
	}
	if song.Title != "A" {
		t.Fatalf("Pick() = %q, want fallback to pool", song.Title)
	}
}

func TestPickUnknownLanguage(t *testing.T) {
	c := Default(1)
	if _, err := c.Pick("xx", "easy"); err == nil {
		t.Fatal("Pick() with unknown language should fail")
	}
}

func TestDefaultCatalogLanguages(t *testing.T) {
	c := Default(42)
	for _, lang := range []string{"es", "en"} {
		if _, err := c.Pick(lang, "normal"); err != nil {
			t.Fatalf("Pick(%q) error: %v", lang, err)
		}
	}
}
