// Package postgres stores continuous motion samples for historical queries.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/motion/internal/domain"
)

// Repository records and queries motion samples for one device.
type Repository struct {
	pool     *pgxpool.Pool
	deviceID string
}

// NewRepository constructs a Repository scoped to deviceID.
func NewRepository(pool *pgxpool.Pool, deviceID string) *Repository {
	return &Repository{pool: pool, deviceID: deviceID}
}

// Record inserts a sample.
func (r *Repository) Record(ctx context.Context, sample domain.MotionSample) error {
	const stmt = `INSERT INTO motion_samples (device_id, started_at, walking, running, automotive, stationary, cycling, unknown, confidence)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	start := time.Now()
	_, err := r.pool.Exec(ctx, stmt,
		r.deviceID, sample.StartDate.UTC(),
		sample.Walking, sample.Running, sample.Automotive, sample.Stationary, sample.Cycling, sample.Unknown,
		sample.Confidence,
	)
	observeQuery("record", start, err)
	if err != nil {
		return fmt.Errorf("insert motion sample: %w", err)
	}
	return nil
}

// QueryActivities returns the samples whose start lies in [start, end], oldest first.
func (r *Repository) QueryActivities(ctx context.Context, start, end time.Time) ([]domain.HistoricalActivity, error) {
	const query = `SELECT started_at, walking, running, automotive, stationary, cycling, unknown, confidence
        FROM motion_samples
        WHERE device_id=$1 AND started_at >= $2 AND started_at <= $3
        ORDER BY started_at ASC, sample_id ASC`

	begin := time.Now()
	rows, err := r.pool.Query(ctx, query, r.deviceID, start.UTC(), end.UTC())
	if err != nil {
		observeQuery("query", begin, err)
		return nil, fmt.Errorf("query motion samples: %w", err)
	}
	defer rows.Close()

	out := make([]domain.HistoricalActivity, 0)
	for rows.Next() {
		var (
			sample     domain.MotionSample
			confidence int16
		)
		if err := rows.Scan(&sample.StartDate, &sample.Walking, &sample.Running, &sample.Automotive,
			&sample.Stationary, &sample.Cycling, &sample.Unknown, &confidence); err != nil {
			observeQuery("query", begin, err)
			return nil, fmt.Errorf("scan motion sample: %w", err)
		}
		sample.Confidence = int(confidence)
		out = append(out, sample.Historical())
	}
	err = rows.Err()
	observeQuery("query", begin, err)
	if err != nil {
		return nil, fmt.Errorf("iterate motion samples: %w", err)
	}
	return out, nil
}
