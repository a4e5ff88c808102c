package types

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError reports every missing or malformed field in a create
// request. It is non-retryable and maps to HTTP 400.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Details, "; ")
}

// CreateGameInput is the validated boundary record for game creation.
//
// Required fields are pointers so that "absent" and "zero" are
// distinguishable after JSON decoding; everything past Validate works with
// the materialized Game instead.
type CreateGameInput struct {
	Name        *string  `json:"name"`
	ReleaseDate *string  `json:"release_date"`
	RequiredAge *int     `json:"required_age"`
	Price       *float64 `json:"price"`
	AboutGame   *string  `json:"about_game"`
	Windows     *bool    `json:"windows"`
	Mac         *bool    `json:"mac"`
	Linux       *bool    `json:"linux"`

	DetailedDescription string `json:"detailed_description"`
	ShortDescription    string `json:"short_description"`
	Reviews             string `json:"reviews"`
	Website             string `json:"website"`
	SupportURL          string `json:"support_url"`
	SupportEmail        string `json:"support_email"`
	HeaderImage         string `json:"header_image"`

	MetacriticScore int    `json:"metacritic_score"`
	MetacriticURL   string `json:"metacritic_url"`
	Achievements    int    `json:"achievements"`
	Recommendations int    `json:"recommendations"`
	Notes           string `json:"notes"`

	SupportedLanguages []string `json:"supported_languages"`
	FullAudioLanguages []string `json:"full_audio_languages"`
	Developers         []string `json:"developers"`
	Publishers         []string `json:"publishers"`
	Categories         []string `json:"categories"`
	Genres             []string `json:"genres"`
	Screenshots        []string `json:"screenshots"`
	Movies             []string `json:"movies"`

	UserScore          float64 `json:"user_score"`
	ScoreRank          string  `json:"score_rank"`
	PositiveReviews    int     `json:"positive"`
	NegativeReviews    int     `json:"negative"`
	EstimatedOwnersMin int     `json:"estimated_owners_min"`
	EstimatedOwnersMax int     `json:"estimated_owners_max"`

	AvgPlaytimeForever     int `json:"average_playtime_forever"`
	AvgPlaytimeTwoWeeks    int `json:"average_playtime_2weeks"`
	MedianPlaytimeForever  int `json:"median_playtime_forever"`
	MedianPlaytimeTwoWeeks int `json:"median_playtime_2weeks"`
	PeakCCU                int `json:"peak_ccu"`

	Tags map[string]int `json:"tags"`
}

// releaseDateFormats are accepted ISO-8601 layouts, tried in order.
var releaseDateFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseReleaseDate parses an ISO-8601 release timestamp.
func ParseReleaseDate(s string) (time.Time, error) {
	for _, layout := range releaseDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid release_date %q: not an ISO-8601 timestamp", s)
}

// Validate checks the admission rules: required fields present, at least
// one platform flag set, release date parseable. It returns a
// *ValidationError listing every violation, or nil.
func (in *CreateGameInput) Validate() error {
	var details []string

	if in.Name == nil || *in.Name == "" {
		details = append(details, "missing required field: name")
	}
	if in.ReleaseDate == nil {
		details = append(details, "missing required field: release_date")
	} else if _, err := ParseReleaseDate(*in.ReleaseDate); err != nil {
		details = append(details, err.Error())
	}
	if in.RequiredAge == nil {
		details = append(details, "missing required field: required_age")
	}
	if in.Price == nil {
		details = append(details, "missing required field: price")
	}
	if in.AboutGame == nil {
		details = append(details, "missing required field: about_game")
	}
	if in.Windows == nil {
		details = append(details, "missing required field: windows")
	}
	if in.Mac == nil {
		details = append(details, "missing required field: mac")
	}
	if in.Linux == nil {
		details = append(details, "missing required field: linux")
	}

	if in.Windows != nil && in.Mac != nil && in.Linux != nil {
		if !*in.Windows && !*in.Mac && !*in.Linux {
			details = append(details, "at least one platform must be selected")
		}
	}

	if len(details) > 0 {
		return &ValidationError{Details: details}
	}
	return nil
}

// Game materializes the canonical record from validated input. Nullable
// fields default to their zero values; the release timestamp is parsed
// from its ISO-8601 form. Validate must have succeeded first.
func (in *CreateGameInput) Game() (*Game, error) {
	release, err := ParseReleaseDate(*in.ReleaseDate)
	if err != nil {
		return nil, err
	}

	g := &Game{
		Name:        *in.Name,
		ReleaseDate: release,
		RequiredAge: *in.RequiredAge,
		Price:       *in.Price,
		AboutGame:   *in.AboutGame,
		Windows:     *in.Windows,
		Mac:         *in.Mac,
		Linux:       *in.Linux,

		DetailedDescription: in.DetailedDescription,
		ShortDescription:    in.ShortDescription,
		Reviews:             in.Reviews,
		Website:             in.Website,
		SupportURL:          in.SupportURL,
		SupportEmail:        in.SupportEmail,
		HeaderImage:         in.HeaderImage,

		MetacriticScore: in.MetacriticScore,
		MetacriticURL:   in.MetacriticURL,
		Achievements:    in.Achievements,
		Recommendations: in.Recommendations,
		Notes:           in.Notes,

		SupportedLanguages: in.SupportedLanguages,
		FullAudioLanguages: in.FullAudioLanguages,
		Developers:         in.Developers,
		Publishers:         in.Publishers,
		Categories:         in.Categories,
		Genres:             in.Genres,
		Screenshots:        in.Screenshots,
		Movies:             in.Movies,

		UserScore:          in.UserScore,
		ScoreRank:          in.ScoreRank,
		PositiveReviews:    in.PositiveReviews,
		NegativeReviews:    in.NegativeReviews,
		EstimatedOwnersMin: in.EstimatedOwnersMin,
		EstimatedOwnersMax: in.EstimatedOwnersMax,

		AvgPlaytimeForever:     in.AvgPlaytimeForever,
		AvgPlaytimeTwoWeeks:    in.AvgPlaytimeTwoWeeks,
		MedianPlaytimeForever:  in.MedianPlaytimeForever,
		MedianPlaytimeTwoWeeks: in.MedianPlaytimeTwoWeeks,
		PeakCCU:                in.PeakCCU,

		Tags: in.Tags,
	}
	g.Normalize()
	return g, nil
}
