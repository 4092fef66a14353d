package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/tagweight-search/pkg/kafka"
)

type fakeReloader struct {
	calls int
	err   error
}

func (f *fakeReloader) Reload() error {
	f.calls++
	return f.err
}

type fakeInvalidator struct{ calls int }

func (f *fakeInvalidator) Invalidate(context.Context) (int64, error) {
	f.calls++
	return 3, nil
}

func event(t *testing.T, dir string) []byte {
	t.Helper()
	raw, err := json.Marshal(kafka.IndexCompleteEvent{IndexDir: dir, TotalDocs: 7, BuiltAt: time.Now()})
	require.NoError(t, err)
	return raw
}

func TestHandleIndexCompleteReloadsThenInvalidates(t *testing.T) {
	r, inv := &fakeReloader{}, &fakeInvalidator{}
	h := HandleIndexComplete(r, inv, "/data/index/")

	require.NoError(t, h(context.Background(), nil, event(t, "/data/index")))
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, 1, inv.calls)
}

func TestHandleIndexCompleteIgnoresOtherIndex(t *testing.T) {
	r, inv := &fakeReloader{}, &fakeInvalidator{}
	h := HandleIndexComplete(r, inv, "/data/index")

	require.NoError(t, h(context.Background(), nil, event(t, "/elsewhere")))
	assert.Zero(t, r.calls)
	assert.Zero(t, inv.calls)
}

func TestHandleIndexCompleteReloadFailureKeepsCache(t *testing.T) {
	r, inv := &fakeReloader{err: errors.New("manifest missing")}, &fakeInvalidator{}
	h := HandleIndexComplete(r, inv, "/data/index")

	assert.Error(t, h(context.Background(), nil, event(t, "")))
	assert.Zero(t, inv.calls)
}

func TestHandleIndexCompleteSkipsUndecodable(t *testing.T) {
	r := &fakeReloader{}
	h := HandleIndexComplete(r, nil, "/data/index")
	assert.NoError(t, h(context.Background(), nil, []byte("not json")))
	assert.Zero(t, r.calls)
}
