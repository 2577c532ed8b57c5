package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, ValidateUsername("alice"))
	assert.Error(t, ValidateUsername(""))
	assert.Error(t, ValidateUsername("   "))
	assert.Error(t, ValidateUsername(strings.Repeat("a", 65)))
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("pw1"))
	assert.Error(t, ValidatePassword(""))
	assert.Error(t, ValidatePassword("  \t "))
}

func TestValidateMessageContent(t *testing.T) {
	assert.NoError(t, ValidateMessageContent("hi"))
	assert.Error(t, ValidateMessageContent(""))
	assert.Error(t, ValidateMessageContent(strings.Repeat("x", 4001)))
}

func TestValidatePageSize(t *testing.T) {
	assert.NoError(t, ValidatePageSize(1))
	assert.NoError(t, ValidatePageSize(500))
	assert.Error(t, ValidatePageSize(0))
	assert.Error(t, ValidatePageSize(501))
}
