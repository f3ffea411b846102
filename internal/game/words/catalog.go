package words

import (
	"fmt"
	"math/rand"
	"sync"
)

// Song is a secret answer plus the hints shown to guessers.
type Song struct {
	Title      string
	Artist     string
	Genre      string
	Difficulty string
}

// Catalog selects a random song for a round, filtered by configured
// language and difficulty. Songs whose difficulty has no match fall back to
// the whole language pool rather than failing the round.
type Catalog struct {
	mu    sync.Mutex
	rnd   *rand.Rand
	pools map[string][]Song
}

// NewCatalog builds a catalog over the given language pools.
func NewCatalog(pools map[string][]Song, seed int64) *Catalog {
	return &Catalog{
		rnd:   rand.New(rand.NewSource(seed)),
		pools: pools,
	}
}

// Pick returns a random song for the language and difficulty. An unknown
// language is an error; an unknown difficulty falls back to any song of the
// language.
func (c *Catalog) Pick(language, difficulty string) (Song, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pool, ok := c.pools[language]
	if !ok || len(pool) == 0 {
		return Song{}, fmt.Errorf("no songs for language %q", language)
	}

	var filtered []Song
	for _, s := range pool {
		if s.Difficulty == difficulty {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) == 0 {
		filtered = pool
	}
	return filtered[c.rnd.Intn(len(filtered))], nil
}

// Default returns the built-in catalog.
func Default(seed int64) *Catalog {
	return NewCatalog(builtin, seed)
}

var builtin = map[string][]Song{
	"es": {
		{Title: "Gasolina", Artist: "Daddy Yankee", Genre: "Reggaeton", Difficulty: "easy"},
		{Title: "Despacito", Artist: "Luis Fonsi", Genre: "Reggaeton", Difficulty: "easy"},
		{Title: "La Bamba", Artist: "Ritchie Valens", Genre: "Rock and Roll", Difficulty: "easy"},
		{Title: "Vivir Mi Vida", Artist: "Marc Anthony", Genre: "Salsa", Difficulty: "normal"},
		{Title: "La Camisa Negra", Artist: "Juanes", Genre: "Pop Rock", Difficulty: "normal"},
		{Title: "Bailando", Artist: "Enrique Iglesias", Genre: "Pop Latino", Difficulty: "normal"},
		{Title: "Rayando el Sol", Artist: "Mana", Genre: "Rock Latino", Difficulty: "normal"},
		{Title: "Amor Eterno", Artist: "Juan Gabriel", Genre: "Balada", Difficulty: "hard"},
		{Title: "Pedro Navaja", Artist: "Ruben Blades", Genre: "Salsa", Difficulty: "hard"},
		{Title: "Lamento Boliviano", Artist: "Enanitos Verdes", Genre: "Rock Latino", Difficulty: "hard"},
	},
	"en": {
		{Title: "Yellow Submarine", Artist: "The Beatles", Genre: "Rock", Difficulty: "easy"},
		{Title: "Thriller", Artist: "Michael Jackson", Genre: "Pop", Difficulty: "easy"},
		{Title: "Firework", Artist: "Katy Perry", Genre: "Pop", Difficulty: "easy"},
		{Title: "Hotel California", Artist: "Eagles", Genre: "Rock", Difficulty: "normal"},
		{Title: "Purple Rain", Artist: "Prince", Genre: "Pop Rock", Difficulty: "normal"},
		{Title: "Rolling in the Deep", Artist: "Adele", Genre: "Soul", Difficulty: "normal"},
		{Title: "Bohemian Rhapsody", Artist: "Queen", Genre: "Rock", Difficulty: "hard"},
		{Title: "Stairway to Heaven", Artist: "Led Zeppelin", Genre: "Rock", Difficulty: "hard"},
		{Title: "Smells Like Teen Spirit", Artist: "Nirvana", Genre: "Grunge", Difficulty: "hard"},
	},
}
