package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirExists(t *testing.T) {
	t.Run("exists", func(t *testing.T) {
		result, err := New().DirExists(t.TempDir())
		assert.NoError(t, err)
		assert.True(t, result)
	})

	t.Run("does not exist", func(t *testing.T) {
		result, err := New().DirExists(filepath.Join(t.TempDir(), "foo"))
		assert.NoError(t, err)
		assert.False(t, result)
	})

	t.Run("is a file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "schema.graphql")
		require.NoError(t, os.WriteFile(file, []byte("type Query { a: Int }"), 0644))
		result, err := New().DirExists(file)
		assert.NoError(t, err)
		assert.False(t, result)
	})
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "schema.graphql")
	require.NoError(t, os.WriteFile(file, []byte("type Query { a: Int }"), 0644))

	result, err := New().FileExists(file)
	assert.NoError(t, err)
	assert.True(t, result)

	result, err = New().FileExists(dir)
	assert.NoError(t, err)
	assert.False(t, result)

	result, err = New().FileExists(filepath.Join(dir, "missing.graphql"))
	assert.NoError(t, err)
	assert.False(t, result)
}

func TestReadWriteRemove(t *testing.T) {
	fs := New()
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	require.NoError(t, fs.MkdirAll(dir))

	file := filepath.Join(dir, "info.json")
	require.NoError(t, fs.WriteFile(file, []byte(`{"a":"b"}`)))

	contents, err := fs.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"b"}`, string(contents))

	require.NoError(t, fs.Remove(file))
	_, err = fs.ReadFile(file)
	assert.Error(t, err)
}

func TestFindUp(t *testing.T) {
	root := t.TempDir()
	project := filepath.Join(root, "project")
	nested := filepath.Join(project, "src", "components")
	require.NoError(t, os.MkdirAll(nested, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(project, ".graphqlrc.yml"), []byte("schema: schema.graphql"), 0644))

	t.Run("found in ancestor", func(t *testing.T) {
		dir, ok, err := New().FindUp(nested, ".graphqlrc", ".graphqlrc.yml")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, project, dir)
	})

	t.Run("found in starting directory", func(t *testing.T) {
		dir, ok, err := New().FindUp(project, ".graphqlrc.yml")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, project, dir)
	})

	t.Run("not found", func(t *testing.T) {
		_, ok, err := New().FindUp(nested, "no-such-marker-file-for-tests")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
