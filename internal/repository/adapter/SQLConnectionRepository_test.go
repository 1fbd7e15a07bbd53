package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAreConnected(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewSQLConnectionRepository(db)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("alice", "bob").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("alice", "mallory").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := repo.AreConnected(context.Background(), "alice", "bob")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AreConnected(context.Background(), "alice", "mallory")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAreConnectedShortCircuitsInvalidPairs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewSQLConnectionRepository(db)

	ok, err := repo.AreConnected(context.Background(), "alice", "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAreConnectedPropagatesErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewSQLConnectionRepository(db)

	mock.ExpectQuery("SELECT EXISTS").WillReturnError(errors.New("conn reset"))

	_, err = repo.AreConnected(context.Background(), "alice", "bob")
	assert.ErrorContains(t, err, "conn reset")
}
