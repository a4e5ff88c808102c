package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gamevault/gamevault/internal/types"
)

// Queue identifies one of the two pending tables on the master.
type Queue struct {
	Table string
	// Slave is the node this queue replicates to.
	Slave string
}

var (
	// QueueWindows holds Windows-only records awaiting slave A.
	QueueWindows = Queue{Table: "pending_windows_games", Slave: types.NodeSlaveA}
	// QueueMultiOS holds multi-platform records awaiting slave B.
	QueueMultiOS = Queue{Table: "pending_multi_os_games", Slave: types.NodeSlaveB}
)

// Queues lists both pending queues in sync order.
var Queues = []Queue{QueueWindows, QueueMultiOS}

// QueueForTarget returns the queue matching a routing target, or false for
// master-only targets.
func QueueForTarget(t types.Target) (Queue, bool) {
	switch t {
	case types.TargetSlaveA:
		return QueueWindows, true
	case types.TargetSlaveB:
		return QueueMultiOS, true
	}
	return Queue{}, false
}

// pendingColumns appends the sync bookkeeping to the canonical column set.
const pendingColumns = gameColumns +
	", sync_status, enqueued_at, last_sync_attempt, sync_retries, error_message"

// Enqueue inserts a pending row for the record, or — when the id is
// already queued — resets its bookkeeping to PENDING with cleared error
// and zeroed retries. Stored only on the master.
func (q Queue) Enqueue(ctx context.Context, db DBTX, g *types.Game) error {
	var one int
	err := db.QueryRowContext(ctx,
		"SELECT 1 FROM "+q.Table+" WHERE app_id = ?", g.AppID).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		args, aerr := gameArgs(g)
		if aerr != nil {
			return aerr
		}
		args = append(args, string(types.SyncPending), time.Now().UTC(), nil, 0, "")
		_, err = db.ExecContext(ctx,
			"INSERT INTO "+q.Table+" ("+pendingColumns+") VALUES ("+gamePlaceholders+", ?, ?, ?, ?, ?)",
			args...)
		if err != nil {
			return fmt.Errorf("failed to enqueue game %d in %s: %w", g.AppID, q.Table, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to check %s for game %d: %w", q.Table, g.AppID, err)
	default:
		_, err = db.ExecContext(ctx,
			"UPDATE "+q.Table+" SET sync_status = ?, last_sync_attempt = NULL, sync_retries = 0, error_message = '' WHERE app_id = ?",
			string(types.SyncPending), g.AppID)
		if err != nil {
			return fmt.Errorf("failed to re-enqueue game %d in %s: %w", g.AppID, q.Table, err)
		}
		return nil
	}
}

// ListUnsynced returns every PENDING or FAILED row in enqueue order.
func (q Queue) ListUnsynced(ctx context.Context, db DBTX) ([]*types.PendingGame, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+pendingColumns+" FROM "+q.Table+
			" WHERE sync_status IN (?, ?) ORDER BY enqueued_at ASC",
		string(types.SyncPending), string(types.SyncFailed))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", q.Table, err)
	}
	defer rows.Close()

	var out []*types.PendingGame
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", q.Table, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPending(rows *sql.Rows) (*types.PendingGame, error) {
	var (
		p          types.PendingGame
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
		status     string
		attempt    sql.NullTime
		errMsg     sql.NullString
	)
	err := rows.Scan(
		&p.AppID, &p.Name, &release, &p.RequiredAge, &p.Price,
		&p.DetailedDescription, &p.AboutGame, &p.ShortDescription, &p.Reviews, &p.Website,
		&p.SupportURL, &p.SupportEmail, &p.HeaderImage, &p.Windows, &p.Mac, &p.Linux,
		&p.MetacriticScore, &p.MetacriticURL, &p.Achievements, &p.Recommendations, &p.Notes,
		&langs, &audioLangs, &devs, &pubs, &cats, &genres, &shots, &movies,
		&p.UserScore, &p.ScoreRank,
		&p.PositiveReviews, &p.NegativeReviews, &p.EstimatedOwnersMin, &p.EstimatedOwnersMax,
		&p.AvgPlaytimeForever, &p.AvgPlaytimeTwoWeeks, &p.MedianPlaytimeForever,
		&p.MedianPlaytimeTwoWeeks, &p.PeakCCU, &tags, &p.CreatedAt, &p.UpdatedAt,
		&status, &p.EnqueuedAt, &attempt, &p.SyncRetries, &errMsg,
	)
	if err != nil {
		return nil, err
	}
	if release.Valid {
		p.ReleaseDate = release.Time.UTC()
	}
	p.SupportedLanguages = types.SplitList(langs)
	p.FullAudioLanguages = types.SplitList(audioLangs)
	p.Developers = types.SplitList(devs)
	p.Publishers = types.SplitList(pubs)
	p.Categories = types.SplitList(cats)
	p.Genres = types.SplitList(genres)
	p.Screenshots = types.SplitList(shots)
	p.Movies = types.SplitList(movies)
	p.Tags, err = types.DecodeTags(tags)
	if err != nil {
		return nil, err
	}
	p.SyncStatus = types.SyncStatus(status)
	p.EnqueuedAt = p.EnqueuedAt.UTC()
	if attempt.Valid {
		t := attempt.Time.UTC()
		p.LastSyncAttempt = &t
	}
	p.ErrorMessage = errMsg.String
	return &p, nil
}

// MarkSynced flips a row to SYNCED and stamps the attempt time. Re-marking
// an already-synced row is harmless.
func (q Queue) MarkSynced(ctx context.Context, db DBTX, appID int64) error {
	_, err := db.ExecContext(ctx,
		"UPDATE "+q.Table+" SET sync_status = ?, last_sync_attempt = ?, error_message = '' WHERE app_id = ?",
		string(types.SyncSynced), time.Now().UTC(), appID)
	if err != nil {
		return fmt.Errorf("failed to mark game %d synced in %s: %w", appID, q.Table, err)
	}
	return nil
}

// MarkFailed flips a row to FAILED, bumps the retry counter, stamps the
// attempt time and records the error. One UPDATE covers all the failure
// bookkeeping; re-enqueueing resets the counter.
func (q Queue) MarkFailed(ctx context.Context, db DBTX, appID int64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := db.ExecContext(ctx,
		"UPDATE "+q.Table+" SET sync_status = ?, sync_retries = sync_retries + 1, last_sync_attempt = ?, error_message = ? WHERE app_id = ?",
		string(types.SyncFailed), time.Now().UTC(), msg, appID)
	if err != nil {
		return fmt.Errorf("failed to mark game %d failed in %s: %w", appID, q.Table, err)
	}
	return nil
}

// CountUnsynced returns the number of PENDING or FAILED rows.
func (q Queue) CountUnsynced(ctx context.Context, db DBTX) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+q.Table+" WHERE sync_status IN (?, ?)",
		string(types.SyncPending), string(types.SyncFailed)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", q.Table, err)
	}
	return n, nil
}
