package guide

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindArticles(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		filepath.Join(dir, "shell", "wall_thickness.md"),
		filepath.Join(dir, "infill", "infill_density.md"),
		filepath.Join(dir, "index.html"),
		filepath.Join(dir, "images", "infill_density.gif"),
	}
	for _, f := range files {
		require.NoError(t, os.MkdirAll(filepath.Dir(f), 0755))
		require.NoError(t, os.WriteFile(f, []byte("text"), 0644))
	}

	paths, err := FindArticles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "index.html"),
		filepath.Join(dir, "infill", "infill_density.md"),
		filepath.Join(dir, "shell", "wall_thickness.md"),
	}, paths)
}

func TestFindArticlesEmpty(t *testing.T) {
	_, err := FindArticles(t.TempDir())
	assert.Error(t, err)
}

func TestReadArticle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "infill", "infill_density.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(article), 0644))

	a, err := ReadArticle(dir, path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("infill", "infill_density.md"), a.Name)

	n := 0
	for inst, err := range a.Instructions() {
		if err == nil {
			assert.Equal(t, a.Name, inst.Location.Source)
		}
		n++
	}
	assert.Equal(t, 3, n)
}
