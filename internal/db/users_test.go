package db_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifyd/internal/db"
	"notifyd/internal/dbtest"
)

func TestCreateAndLookupUser(t *testing.T) {
	dbtest.Setup(t)

	created, err := db.CreateUser("ama@example.com", "hash", "user")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	byID, err := db.GetUserByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "ama@example.com", byID.Email)

	byEmail, err := db.GetUserByEmail("ama@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
}

func TestLookupMissingUser(t *testing.T) {
	dbtest.Setup(t)

	_, err := db.GetUserByID(999)
	assert.ErrorIs(t, err, db.ErrNotFound)

	_, err = db.GetUserByEmail("nobody@example.com")
	assert.ErrorIs(t, err, db.ErrNotFound)
}
