package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gamevault/gamevault/internal/types"
)

// gameColumns is the canonical column list of the games table, in insert
// and scan order.
const gameColumns = "app_id, name, release_date, required_age, price, " +
	"detailed_description, about_game, short_description, reviews, website, " +
	"support_url, support_email, header_image, windows, mac, linux, " +
	"metacritic_score, metacritic_url, achievements, recommendations, notes, " +
	"supported_languages, full_audio_languages, developers, publishers, " +
	"categories, genres, screenshots, movies, user_score, score_rank, " +
	"positive_reviews, negative_reviews, estimated_owners_min, estimated_owners_max, " +
	"avg_playtime_forever, avg_playtime_2weeks, median_playtime_forever, " +
	"median_playtime_2weeks, peak_ccu, tags, created_at, updated_at"

const gamePlaceholders = "?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, " +
	"?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?"

// gameArgs flattens a record into insert arguments, serializing the
// list-typed and tag columns.
func gameArgs(g *types.Game) ([]any, error) {
	tags, err := types.EncodeTags(g.Tags)
	if err != nil {
		return nil, err
	}
	var release any
	if !g.ReleaseDate.IsZero() {
		release = g.ReleaseDate
	}
	return []any{
		g.AppID, g.Name, release, g.RequiredAge, g.Price,
		g.DetailedDescription, g.AboutGame, g.ShortDescription, g.Reviews, g.Website,
		g.SupportURL, g.SupportEmail, g.HeaderImage, g.Windows, g.Mac, g.Linux,
		g.MetacriticScore, g.MetacriticURL, g.Achievements, g.Recommendations, g.Notes,
		types.JoinList(g.SupportedLanguages), types.JoinList(g.FullAudioLanguages),
		types.JoinList(g.Developers), types.JoinList(g.Publishers),
		types.JoinList(g.Categories), types.JoinList(g.Genres),
		types.JoinList(g.Screenshots), types.JoinList(g.Movies),
		g.UserScore, g.ScoreRank,
		g.PositiveReviews, g.NegativeReviews, g.EstimatedOwnersMin, g.EstimatedOwnersMax,
		g.AvgPlaytimeForever, g.AvgPlaytimeTwoWeeks, g.MedianPlaytimeForever,
		g.MedianPlaytimeTwoWeeks, g.PeakCCU, tags, g.CreatedAt, g.UpdatedAt,
	}, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanGame reads one row in gameColumns order back into a record,
// splitting the list columns and decoding the tag blob.
func scanGame(row rowScanner) (*types.Game, error) {
	var (
		g          types.Game
		release    sql.NullTime
		langs      string
		audioLangs string
		devs       string
		pubs       string
		cats       string
		genres     string
		shots      string
		movies     string
		tags       string
	)
	err := row.Scan(
		&g.AppID, &g.Name, &release, &g.RequiredAge, &g.Price,
		&g.DetailedDescription, &g.AboutGame, &g.ShortDescription, &g.Reviews, &g.Website,
		&g.SupportURL, &g.SupportEmail, &g.HeaderImage, &g.Windows, &g.Mac, &g.Linux,
		&g.MetacriticScore, &g.MetacriticURL, &g.Achievements, &g.Recommendations, &g.Notes,
		&langs, &audioLangs, &devs, &pubs, &cats, &genres, &shots, &movies,
		&g.UserScore, &g.ScoreRank,
		&g.PositiveReviews, &g.NegativeReviews, &g.EstimatedOwnersMin, &g.EstimatedOwnersMax,
		&g.AvgPlaytimeForever, &g.AvgPlaytimeTwoWeeks, &g.MedianPlaytimeForever,
		&g.MedianPlaytimeTwoWeeks, &g.PeakCCU, &tags, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if release.Valid {
		g.ReleaseDate = release.Time.UTC()
	}
	g.SupportedLanguages = types.SplitList(langs)
	g.FullAudioLanguages = types.SplitList(audioLangs)
	g.Developers = types.SplitList(devs)
	g.Publishers = types.SplitList(pubs)
	g.Categories = types.SplitList(cats)
	g.Genres = types.SplitList(genres)
	g.Screenshots = types.SplitList(shots)
	g.Movies = types.SplitList(movies)
	g.Tags, err = types.DecodeTags(tags)
	if err != nil {
		return nil, err
	}
	g.CreatedAt = g.CreatedAt.UTC()
	g.UpdatedAt = g.UpdatedAt.UTC()
	return &g, nil
}

// InsertGame writes a record to the games table on the given node handle.
// The caller is responsible for Normalize and id assignment.
func InsertGame(ctx context.Context, db DBTX, g *types.Game) error {
	args, err := gameArgs(g)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		"INSERT INTO games ("+gameColumns+") VALUES ("+gamePlaceholders+")", args...)
	if err != nil {
		return fmt.Errorf("failed to insert game %d: %w", g.AppID, err)
	}
	return nil
}

// GetGame fetches a record by id. Returns ErrNotFound when absent.
func GetGame(ctx context.Context, db DBTX, appID int64) (*types.Game, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+gameColumns+" FROM games WHERE app_id = ?", appID)
	g, err := scanGame(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("game %d: %w", appID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game %d: %w", appID, err)
	}
	return g, nil
}

// GameExists reports whether a record with the id is readable.
func GameExists(ctx context.Context, db DBTX, appID int64) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx,
		"SELECT 1 FROM games WHERE app_id = ?", appID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check game %d: %w", appID, err)
	}
	return true, nil
}

// MaxAppID returns the highest assigned id, or 0 on an empty table.
func MaxAppID(ctx context.Context, db DBTX) (int64, error) {
	var max sql.NullInt64
	err := db.QueryRowContext(ctx, "SELECT MAX(app_id) FROM games").Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to read max app_id: %w", err)
	}
	return max.Int64, nil
}

// CountGames returns the number of rows in the games table.
func CountGames(ctx context.Context, db DBTX) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM games").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count games: %w", err)
	}
	return n, nil
}

// UpdateGame rewrites every mutable column of an existing record and
// refreshes updated_at. Returns ErrNotFound when no row matched.
func UpdateGame(ctx context.Context, db DBTX, g *types.Game) error {
	g.Touch()
	tags, err := types.EncodeTags(g.Tags)
	if err != nil {
		return err
	}
	var release any
	if !g.ReleaseDate.IsZero() {
		release = g.ReleaseDate
	}
	res, err := db.ExecContext(ctx, `UPDATE games SET
		name = ?, release_date = ?, required_age = ?, price = ?,
		detailed_description = ?, about_game = ?, short_description = ?, reviews = ?,
		website = ?, support_url = ?, support_email = ?, header_image = ?,
		windows = ?, mac = ?, linux = ?,
		metacritic_score = ?, metacritic_url = ?, achievements = ?, recommendations = ?, notes = ?,
		supported_languages = ?, full_audio_languages = ?, developers = ?, publishers = ?,
		categories = ?, genres = ?, screenshots = ?, movies = ?,
		user_score = ?, score_rank = ?, positive_reviews = ?, negative_reviews = ?,
		estimated_owners_min = ?, estimated_owners_max = ?,
		avg_playtime_forever = ?, avg_playtime_2weeks = ?,
		median_playtime_forever = ?, median_playtime_2weeks = ?, peak_ccu = ?,
		tags = ?, updated_at = ?
		WHERE app_id = ?`,
		g.Name, release, g.RequiredAge, g.Price,
		g.DetailedDescription, g.AboutGame, g.ShortDescription, g.Reviews,
		g.Website, g.SupportURL, g.SupportEmail, g.HeaderImage,
		g.Windows, g.Mac, g.Linux,
		g.MetacriticScore, g.MetacriticURL, g.Achievements, g.Recommendations, g.Notes,
		types.JoinList(g.SupportedLanguages), types.JoinList(g.FullAudioLanguages),
		types.JoinList(g.Developers), types.JoinList(g.Publishers),
		types.JoinList(g.Categories), types.JoinList(g.Genres),
		types.JoinList(g.Screenshots), types.JoinList(g.Movies),
		g.UserScore, g.ScoreRank, g.PositiveReviews, g.NegativeReviews,
		g.EstimatedOwnersMin, g.EstimatedOwnersMax,
		g.AvgPlaytimeForever, g.AvgPlaytimeTwoWeeks,
		g.MedianPlaytimeForever, g.MedianPlaytimeTwoWeeks, g.PeakCCU,
		tags, g.UpdatedAt, g.AppID)
	if err != nil {
		return fmt.Errorf("failed to update game %d: %w", g.AppID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("game %d: %w", g.AppID, ErrNotFound)
	}
	return nil
}

// DeleteGame removes a record by id. Returns ErrNotFound when no row matched.
func DeleteGame(ctx context.Context, db DBTX, appID int64) error {
	res, err := db.ExecContext(ctx, "DELETE FROM games WHERE app_id = ?", appID)
	if err != nil {
		return fmt.Errorf("failed to delete game %d: %w", appID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("game %d: %w", appID, ErrNotFound)
	}
	return nil
}
