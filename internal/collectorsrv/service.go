package collectorsrv

import (
	"context"
	"time"

	"geoflow/internal/db"

	"github.com/google/uuid"
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// Push stores one sample and returns it with its assigned id.
func (s *Service) Push(ctx context.Context, input Record) (Record, error) {
	input.ID = uuid.NewString()
	if input.Timestamp.IsZero() {
		input.Timestamp = time.Now()
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO samples (id, user_id, latitude, longitude, accuracy, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, input.ID, input.UserID, input.Latitude, input.Longitude, input.Accuracy, input.Timestamp)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return Record{}, err
	}
	return input, nil
}

// History returns all records for an identity, oldest first. An empty
// slice means the identity has never pushed and is available.
func (s *Service) History(ctx context.Context, userID string) ([]Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, latitude, longitude, accuracy, recorded_at, created_at
		FROM samples WHERE user_id=$1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.UserID, &r.Latitude, &r.Longitude, &r.Accuracy, &r.Timestamp, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}
