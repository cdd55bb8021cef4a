package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampTier(t *testing.T) {
	assert.Equal(t, 0, ClampTier(-4, 20))
	assert.Equal(t, 12, ClampTier(12, 20))
	assert.Equal(t, 20, ClampTier(24, 20))
	assert.Equal(t, 20, ClampTier(40, 0))
	assert.Equal(t, 10, ClampTier(16, 10))
}

func TestValidTenantID(t *testing.T) {
	assert.True(t, ValidTenantID("gym-1"))
	assert.False(t, ValidTenantID(""))
	assert.False(t, ValidTenantID(" gym"))
	assert.False(t, ValidTenantID("gym|plan"))
	assert.False(t, ValidTenantID("a/b"))
}
