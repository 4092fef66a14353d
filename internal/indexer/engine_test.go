package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/field"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/extract"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/merger"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, mode config.FlushMode, docs int, bytes int64) config.IndexerConfig {
	t.Helper()
	return config.IndexerConfig{
		IndexDir:       t.TempDir(),
		FlushMode:      mode,
		FlushDocuments: docs,
		FlushBytes:     bytes,
		MergeWorkers:   3,
	}
}

func mustRuns(t *testing.T, html string) []extract.Run {
	t.Helper()
	runs, err := extract.FromString(html)
	require.NoError(t, err)
	return runs
}

func sampleCorpus(t *testing.T) source.Documents {
	t.Helper()
	pages := []struct{ url, html string }{
		{"http://zoo.com/cats", `<title>Cats</title><h1>All about cats</h1><p>cats purr and cats sleep. <b>Cats</b> hunt mice.</p>`},
		{"http://zoo.com/dogs", `<title>Dogs</title><p>dogs bark, dogs run, dogs dig 42 holes</p><h2>Dogs and cats</h2>`},
		{"http://zoo.com/cats#care", `<p>duplicate submission that must not be indexed</p>`},
		{"http://zoo.com/birds/", `<h3>Birds</h3><p>birds fly over <strong>dogs</strong> and <em>cats</em></p><i>ávila 2024</i>`},
		{"http://zoo.com/mice", `<p>mice mice mice fear cats</p><title>Mice</title>`},
	}
	docs := make(source.Documents, 0, len(pages))
	for i, p := range pages {
		docs = append(docs, source.Document{
			SourceName: fmt.Sprintf("page%d.json", i),
			URL:        p.url,
			Runs:       mustRuns(t, p.html),
		})
	}
	return docs
}

// readTree returns every shard file's content keyed by its path relative to
// the index root.
func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	layout := shard.NewLayout(root)
	for _, k := range field.All {
		files, err := layout.ShardFiles(k)
		require.NoError(t, err)
		for _, f := range files {
			data, err := os.ReadFile(f)
			require.NoError(t, err)
			rel, err := filepath.Rel(root, f)
			require.NoError(t, err)
			out[rel] = string(data)
		}
	}
	return out
}

func build(t *testing.T, cfg config.IndexerConfig, docs source.Documents) *BuildReport {
	t.Helper()
	e, err := NewEngine(cfg, nil, nil)
	require.NoError(t, err)
	report, err := e.Build(context.Background(), docs)
	require.NoError(t, err)
	return report
}

func TestBuildIsIndependentOfFlushBoundaries(t *testing.T) {
	docs := sampleCorpus(t)

	single := testConfig(t, config.FlushByDocuments, 1<<30, 0)
	perDoc := testConfig(t, config.FlushByDocuments, 1, 0)
	tiny := testConfig(t, config.FlushByBytes, 0, 120)

	r1 := build(t, single, docs)
	r2 := build(t, perDoc, docs)
	r3 := build(t, tiny, docs)

	assert.Equal(t, 1, r1.Flushes)
	assert.Greater(t, r2.Flushes, r1.Flushes)
	assert.Greater(t, r3.Flushes, r2.Flushes, "byte mode must split documents across flushes")

	want := readTree(t, single.IndexDir)
	require.NotEmpty(t, want)
	assert.Equal(t, want, readTree(t, perDoc.IndexDir))
	assert.Equal(t, want, readTree(t, tiny.IndexDir))
}

func TestBuildSkipsDuplicates(t *testing.T) {
	cfg := testConfig(t, config.FlushByDocuments, 2, 0)
	report := build(t, cfg, sampleCorpus(t))

	assert.Equal(t, 4, report.Documents)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 4, report.Manifest.TotalDocs)

	tree := readTree(t, cfg.IndexDir)
	assert.NotContains(t, tree[filepath.Join(field.FrequencyDir, "d.txt")], "term = duplic")

	dump, err := registry.OpenDump(cfg.IndexDir)
	require.NoError(t, err)
	defer dump.Close()
	url, ok, err := dump.ResolveURL(3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "http://zoo.com/mice", url)

	m, err := merger.ReadManifest(cfg.IndexDir)
	require.NoError(t, err)
	assert.Positive(t, m.TermsPerField["title"])
}

func TestBuildRoutesNonLetterTermsToOtherShard(t *testing.T) {
	cfg := testConfig(t, config.FlushByDocuments, 10, 0)
	build(t, cfg, sampleCorpus(t))
	tree := readTree(t, cfg.IndexDir)
	other := tree[filepath.Join(field.FrequencyDir, shard.OtherShard+shard.FileExt)]
	assert.Contains(t, other, "term = 2024\n")
	assert.Contains(t, other, "term = 42\n")
	assert.Contains(t, other, "term = á")
}

func TestBuildDropsOversizedTokens(t *testing.T) {
	long := strings.Repeat("x", 2<<20)
	docs := source.Documents{{
		SourceName: "huge.json",
		URL:        "http://zoo.com/huge",
		Runs:       mustRuns(t, "<h1>"+long+"</h1><p>cats "+long+" purr</p>"),
	}}
	cfg := testConfig(t, config.FlushByDocuments, 10, 0)
	report := build(t, cfg, docs)

	assert.Equal(t, 1, report.Manifest.TotalDocs)
	assert.FileExists(t, shard.NewLayout(cfg.IndexDir).ManifestPath())
	tree := readTree(t, cfg.IndexDir)
	assert.Contains(t, tree[filepath.Join(field.FrequencyDir, "c.txt")], "term = cat\n")
	assert.NotContains(t, tree[filepath.Join(field.FrequencyDir, "x.txt")], "term = x")
}

func TestBuildResetsPreviousIndex(t *testing.T) {
	cfg := testConfig(t, config.FlushByDocuments, 10, 0)
	build(t, cfg, sampleCorpus(t))
	report := build(t, cfg, sampleCorpus(t)[:1])
	assert.Equal(t, 1, report.Documents)
	tree := readTree(t, cfg.IndexDir)
	assert.NotContains(t, tree[filepath.Join(field.FrequencyDir, "d.txt")], "term = dog")
}

func TestMergeRerunIsIdempotent(t *testing.T) {
	cfg := testConfig(t, config.FlushByDocuments, 10, 0)
	build(t, cfg, sampleCorpus(t))
	before := readTree(t, cfg.IndexDir)

	e, err := NewEngine(cfg, nil, nil)
	require.NoError(t, err)
	m, err := e.Merge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, m.TotalDocs)
	assert.Equal(t, before, readTree(t, cfg.IndexDir))
}

func TestBuilderRejectsNonImportanceTags(t *testing.T) {
	layout := shard.NewLayout(t.TempDir())
	require.NoError(t, layout.Ensure())
	b := NewBuilder(layout, testConfig(t, config.FlushByDocuments, 1, 0), nil)

	require.NoError(t, b.AddImportancePosting("cat", 0, field.Strong))
	err := b.AddImportancePosting("cat", 0, field.Frequency)
	assert.ErrorIs(t, err, apperrors.ErrUnknownTag)
	err = b.AddImportancePosting("cat", 0, field.Kind(42))
	assert.ErrorIs(t, err, apperrors.ErrUnknownTag)
}

func TestBuilderFinalizeFlushesBelowThreshold(t *testing.T) {
	layout := shard.NewLayout(t.TempDir())
	require.NoError(t, layout.Ensure())
	b := NewBuilder(layout, testConfig(t, config.FlushByDocuments, 100, 0), nil)

	b.AddPosting("cat", 0)
	b.AddPosting("cat", 0)
	require.NoError(t, b.MaybeFlush())
	assert.NoFileExists(t, layout.Path(field.Frequency, "cat"))

	require.NoError(t, b.Finalize())
	data, err := os.ReadFile(layout.Path(field.Frequency, "cat"))
	require.NoError(t, err)
	assert.Equal(t, "term = cat\n(0,2)\n\n", string(data))
	assert.Equal(t, 1, b.Flushes())

	require.NoError(t, b.Finalize())
	assert.Equal(t, 1, b.Flushes(), "empty window must not flush")
}

func TestBuildStopsOnCancel(t *testing.T) {
	cfg := testConfig(t, config.FlushByDocuments, 10, 0)
	e, err := NewEngine(cfg, nil, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Build(ctx, sampleCorpus(t))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, shard.NewLayout(cfg.IndexDir).ManifestPath())
}

func BenchmarkIndexDocument(b *testing.B) {
	cfg := config.IndexerConfig{
		IndexDir:       b.TempDir(),
		FlushMode:      config.FlushByDocuments,
		FlushDocuments: 1000,
		MergeWorkers:   1,
	}
	e, err := NewEngine(cfg, nil, nil)
	if err != nil {
		b.Fatal(err)
	}
	if err := shard.NewLayout(cfg.IndexDir).Ensure(); err != nil {
		b.Fatal(err)
	}
	runs, err := extract.FromString(`<title>Benchmark page</title><h1>Indexing speed</h1>
<p>The quick brown fox jumps over the lazy dog while <b>tokenizers</b> and stemmers work hard.</p>`)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		doc := source.Document{
			SourceName: "bench.json",
			URL:        fmt.Sprintf("http://bench.com/%d", i),
			Runs:       runs,
		}
		if _, _, err := e.IndexDocument(ctx, doc); err != nil {
			b.Fatal(err)
		}
	}
}
