package coordinator

import (
	"time"

	"github.com/gamevault/gamevault/internal/types"
)

// SampleInput builds the fixed demo payload behind POST /api/games/sample.
// It is a Windows-only record, so a full round-trip exercises the slave_a
// partition path.
func SampleInput() *types.CreateGameInput {
	name := "Sample Game"
	release := time.Now().UTC().Format(time.RFC3339)
	age := 0
	price := 9.99
	about := "This is a sample game for testing."
	win, mac, linux := true, false, false
	return &types.CreateGameInput{
		Name:        &name,
		ReleaseDate: &release,
		RequiredAge: &age,
		Price:       &price,
		AboutGame:   &about,
		Windows:     &win,
		Mac:         &mac,
		Linux:       &linux,
		Developers:  []string{"Sample Developer"},
		Publishers:  []string{"Sample Publisher"},
		Categories:  []string{"Single-player"},
		Genres:      []string{"Action"},
		Tags:        map[string]int{"Action": 10, "Adventure": 5},
	}
}
