package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() *CreateGameInput {
	name := "Alpha"
	release := "2024-01-15T00:00:00"
	age := 0
	price := 9.99
	about := "x"
	win, mac, linux := true, false, false
	return &CreateGameInput{
		Name:        &name,
		ReleaseDate: &release,
		RequiredAge: &age,
		Price:       &price,
		AboutGame:   &about,
		Windows:     &win,
		Mac:         &mac,
		Linux:       &linux,
		Developers:  []string{"Sample Developer"},
		Genres:      []string{"Action"},
		Tags:        map[string]int{"Action": 10},
	}
}

func TestValidateAccepts(t *testing.T) {
	require.NoError(t, validInput().Validate())
}

func TestValidateMissingFields(t *testing.T) {
	in := validInput()
	in.ReleaseDate = nil
	err := in.Validate()
	require.Error(t, err)

	verr, ok := err.(*ValidationError)
	require.True(t, ok, "expected *ValidationError, got %T", err)
	assert.Contains(t, strings.Join(verr.Details, "\n"), "release_date")
}

func TestValidateAllPlatformsFalse(t *testing.T) {
	in := validInput()
	f := false
	in.Windows, in.Mac, in.Linux = &f, &f, &f
	err := in.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one platform")
}

func TestValidateBadReleaseDate(t *testing.T) {
	in := validInput()
	bad := "not-a-date"
	in.ReleaseDate = &bad
	require.Error(t, in.Validate())
}

func TestGameMaterialization(t *testing.T) {
	in := validInput()
	g, err := in.Game()
	require.NoError(t, err)

	assert.Equal(t, "Alpha", g.Name)
	assert.Equal(t, 2024, g.ReleaseDate.Year())
	assert.True(t, g.Windows)
	assert.False(t, g.Mac)
	assert.Equal(t, TargetSlaveA, g.RouteTarget())
	assert.False(t, g.CreatedAt.IsZero())
	assert.False(t, g.UpdatedAt.IsZero())
}

func TestParseReleaseDateFormats(t *testing.T) {
	for _, s := range []string{
		"2024-01-15T00:00:00Z",
		"2024-01-15T00:00:00",
		"2024-01-15",
	} {
		ts, err := ParseReleaseDate(s)
		require.NoError(t, err, "layout %q", s)
		assert.Equal(t, 2024, ts.Year())
	}
}
