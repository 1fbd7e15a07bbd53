package adapter

import (
	"context"
	"database/sql"
	"errors"

	repository "matchchat/internal/repository/port"
)

// SQLConnectionRepository reads accepted connection requests through database/sql.
type SQLConnectionRepository struct {
	db *sql.DB
}

func NewSQLConnectionRepository(db *sql.DB) *SQLConnectionRepository {
	return &SQLConnectionRepository{db: db}
}

var _ repository.ConnectionRepository = (*SQLConnectionRepository)(nil)

const areConnectedQuery = `
	SELECT EXISTS (
		SELECT 1 FROM connection_requests
		WHERE status = 'accepted'
		  AND ((requester_id = $1 AND recipient_id = $2)
		    OR (requester_id = $2 AND recipient_id = $1))
	)
`

func (r *SQLConnectionRepository) AreConnected(ctx context.Context, userA, userB string) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("SQLConnectionRepository: nil db")
	}
	if userA == "" || userB == "" || userA == userB {
		return false, nil
	}
	var ok bool
	if err := r.db.QueryRowContext(ctx, areConnectedQuery, userA, userB).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}
