package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_GenerateAndVerify(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)

	token, err := m.Generate("alice", "Alice", RoleAdmin)
	require.NoError(t, err)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UserID)
	assert.Equal(t, "Alice", claims.Name)
	assert.True(t, claims.IsAdmin())
}

func TestJWTManager_Rejections(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)

	other, err := NewJWTManager("other-secret", time.Hour).Generate("alice", "", RolePlayer)
	require.NoError(t, err)
	_, err = m.Verify(other)
	assert.Error(t, err)

	expired, err := NewJWTManager("secret", -time.Minute).Generate("alice", "", RolePlayer)
	require.NoError(t, err)
	_, err = m.Verify(expired)
	assert.ErrorIs(t, err, ErrExpiredToken)

	noUser, err := m.Generate("", "", RolePlayer)
	require.NoError(t, err)
	_, err = m.Verify(noUser)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Verify("garbage")
	assert.Error(t, err)
}
