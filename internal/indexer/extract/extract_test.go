package extract

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/internal/field"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunsTagsEnclosingElements(t *testing.T) {
	runs, err := FromString(`<html><head><title>Cats</title><style>p{}</style></head>
<body><h1>Big <b>news</b></h1><p>cats <strong><em>dogs</em></strong></p>
<script>var x = 1;</script><!-- hidden --></body></html>`)
	require.NoError(t, err)

	got := runs
	require.Len(t, got, 5)
	assert.Equal(t, Run{Text: "Cats", Tags: []field.Kind{field.Title}}, got[0])
	assert.Equal(t, Run{Text: "Big ", Tags: []field.Kind{field.H1}}, got[1])
	assert.Equal(t, Run{Text: "news", Tags: []field.Kind{field.H1, field.B}}, got[2])
	assert.Equal(t, "cats ", got[3].Text)
	assert.Empty(t, got[3].Tags)
	assert.Equal(t, Run{Text: "dogs", Tags: []field.Kind{field.Strong, field.Em}}, got[4])
}

func TestRunsFragment(t *testing.T) {
	runs, err := FromString(`<title>Cats</title> <p>cats cats dogs</p>`)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, []field.Kind{field.Title}, runs[0].Tags)
	assert.Equal(t, "cats cats dogs", runs[1].Text)
}

func TestRunsNestedSameTagCountsOnce(t *testing.T) {
	runs, err := FromString(`<i><i>twice</i></i>`)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, []field.Kind{field.I}, runs[0].Tags)
}
