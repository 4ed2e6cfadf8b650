package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckSlug(t *testing.T) {

	for _, valid := range []string{"a", "model", "my-project", "snake_case", "x1", "  Trimmed  "} {
		_, err := CheckSlug(valid)
		assert.NoError(t, err, valid)
	}

	for _, invalid := range []string{"", "-leading-dash", "_leading", "has space", "ümlaut", "UPPER CASE!"} {
		_, err := CheckSlug(invalid)
		assert.Error(t, err, invalid)
	}

	slug, err := CheckSlug(" ACME ")
	assert.NoError(t, err)
	assert.Equal(t, "acme", slug)
}

func TestCheckSlugOrEmail(t *testing.T) {

	name, err := CheckSlugOrEmail("Alice@Example.Org")
	assert.NoError(t, err)
	assert.Equal(t, "alice@example.org", name)

	_, err = CheckSlugOrEmail("has space")
	assert.Error(t, err)
}

func TestParseRole(t *testing.T) {

	role, ok := ParseRole("write")
	assert.True(t, ok)
	assert.Equal(t, Write, role)

	// empty means "remove the role"
	role, ok = ParseRole("")
	assert.True(t, ok)
	assert.Equal(t, NoRole, role)

	_, ok = ParseRole("superuser")
	assert.False(t, ok)

	assert.Equal(t, "admin", Admin.String())
	assert.True(t, Admin > Write && Write > Read)
}
