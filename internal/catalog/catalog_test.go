package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	names := c.Names()
	require.Len(t, names, 8)
	assert.Equal(t, "Cleaning", names[0])
	assert.Equal(t, "Pet Care", names[7])

	got, ok := c.Canonical("  furniture assembly ")
	assert.True(t, ok)
	assert.Equal(t, "Furniture Assembly", got)

	_, ok = c.Canonical("Plumbing")
	assert.False(t, ok)
}

func TestNamesReturnsCopy(t *testing.T) {
	c := Default()
	names := c.Names()
	names[0] = "Mutated"
	assert.Equal(t, "Cleaning", c.Names()[0])
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte("categories:\n  - Plumbing\n  - plumbing\n  - ' '\n  - Tutoring\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Plumbing", "Tutoring"}, c.Names())

	_, err = Parse([]byte("categories: []\n"))
	assert.ErrorIs(t, err, ErrEmptyCatalog)

	_, err = Parse([]byte("categories: [unclosed"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Len(t, c.Names(), 8)

	path := filepath.Join(t.TempDir(), "categories.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories:\n  - Tutoring\n"), 0o600))

	c, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Tutoring"}, c.Names())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
