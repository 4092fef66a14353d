package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestOpenCorpusRejectsBadRoot(t *testing.T) {
	_, err := OpenCorpus(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidCorpus)

	file := filepath.Join(t.TempDir(), "file.json")
	writeFile(t, file, "{}")
	_, err = OpenCorpus(file)
	assert.ErrorIs(t, err, apperrors.ErrInvalidCorpus)
}

func TestCorpusWalkOrderAndSkips(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b", "2.json"), `{"url":"http://b.com/2","content":"<p>two</p>"}`)
	writeFile(t, filepath.Join(root, "a", "1.json"), `{"url":"http://a.com/1","content":"<title>One</title>"}`)
	writeFile(t, filepath.Join(root, "a", "broken.json"), `{not json`)
	writeFile(t, filepath.Join(root, "a", "nourl.json"), `{"content":"<p>x</p>"}`)
	writeFile(t, filepath.Join(root, "notes.txt"), `ignored`)

	c, err := OpenCorpus(root)
	require.NoError(t, err)

	var docs []Document
	require.NoError(t, c.Walk(context.Background(), func(d Document) error {
		docs = append(docs, d)
		return nil
	}))
	require.Len(t, docs, 2)
	assert.Equal(t, "a/1.json", docs[0].SourceName)
	assert.Equal(t, "http://a.com/1", docs[0].URL)
	assert.Equal(t, "One", docs[0].Runs[0].Text)
	assert.Equal(t, "b/2.json", docs[1].SourceName)
}

func TestCorpusWalkStopsOnCancel(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "1.json"), `{"url":"http://a.com","content":""}`)
	c, err := OpenCorpus(root)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = c.Walk(ctx, func(Document) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
