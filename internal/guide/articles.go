package guide

import (
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var articleExtensions = []string{".md", ".html", ".htm"}

// Article is one documentation page whose screenshots can be refreshed.
type Article struct {
	Name string // path relative to the articles folder, used in messages
	Text string
}

// Instructions is Find over the article's own text.
func (a Article) Instructions() iter.Seq2[ScreenshotInstruction, error] {
	return Find(a.Name, a.Text)
}

// FindArticles lists the article files under dir, sorted by path.
func FindArticles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if isArticle(d.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read articles directory: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no articles found in %s", dir)
	}

	sort.Strings(paths)
	return paths, nil
}

// ReadArticle loads an article; its Name is relative to base when possible.
func ReadArticle(base, path string) (Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Article{}, err
	}
	name := path
	if base != "" {
		if rel, err := filepath.Rel(base, path); err == nil && filepath.IsLocal(rel) {
			name = rel
		}
	}
	return Article{Name: name, Text: string(data)}, nil
}

func isArticle(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range articleExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
