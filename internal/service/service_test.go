package service

import (
	"context"
	"testing"

	"newsdesk/internal/dbtest"
	"newsdesk/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func ptr[T any](v T) *T { return &v }

func newUser(t *testing.T, db *gorm.DB, username, password string) *models.User {
	t.Helper()
	u, err := NewUserService(db).CreateUser(context.Background(), username, password)
	require.NoError(t, err)
	return u
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	return dbtest.Open(t)
}
