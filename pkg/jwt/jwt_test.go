package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	m := NewManager("secret", "retail", time.Hour)
	tenantID, userID := uuid.New(), uuid.New()

	token, err := m.GenerateToken(tenantID, userID, "Ana", "OPERATOR")
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, tenantID, claims.TenantID)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "OPERATOR", claims.Role)
}

func TestValidateToken_Rejects(t *testing.T) {
	m := NewManager("secret", "retail", time.Hour)
	token, err := m.GenerateToken(uuid.New(), uuid.New(), "Ana", "OPERATOR")
	require.NoError(t, err)

	_, err = NewManager("other", "retail", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewManager("secret", "someone-else", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_RequiresTenant(t *testing.T) {
	m := NewManager("secret", "retail", time.Hour)
	token, err := m.GenerateToken(uuid.Nil, uuid.New(), "Ana", "OPERATOR")
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
