package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(t *testing.T, fields map[string]any) []byte {
	t.Helper()
	data, err := json.Marshal(fields)
	require.NoError(t, err)
	return data
}

func TestMemory_CreateAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemory()

	data := doc(t, map[string]any{"code": "ABC123", "status": "waiting"})
	id, err := store.Create(ctx, "rooms", data)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err := store.Get(ctx, "rooms", id)
	require.NoError(t, err)
	if diff := cmp.Diff(string(data), string(got)); diff != "" {
		t.Errorf("document mismatch (-want +got):\n%s", diff)
	}

	_, err = store.Get(ctx, "rooms", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, "other", id)
	assert.ErrorIs(t, err, ErrNotFound, "collections are disjoint")
}

func TestMemory_Update(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemory()

	id, err := store.Create(ctx, "rooms", doc(t, map[string]any{"n": 1}))
	require.NoError(t, err)

	next, err := store.Update(ctx, "rooms", id, func(current []byte) ([]byte, error) {
		var fields map[string]any
		require.NoError(t, json.Unmarshal(current, &fields))
		fields["n"] = fields["n"].(float64) + 1
		return json.Marshal(fields)
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":2}`, string(next))

	got, err := store.Get(ctx, "rooms", id)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":2}`, string(got))

	_, err = store.Update(ctx, "rooms", "missing", func(b []byte) ([]byte, error) { return b, nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_Update_TransformErrorAborts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemory()

	id, err := store.Create(ctx, "rooms", doc(t, map[string]any{"n": 1}))
	require.NoError(t, err)

	boom := errors.New("guard failed")
	_, err = store.Update(ctx, "rooms", id, func([]byte) ([]byte, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom, "transform errors keep their identity")

	got, err := store.Get(ctx, "rooms", id)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(got), "aborted update leaves the document unchanged")
}

func TestMemory_Delete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemory()

	id, err := store.Create(ctx, "rooms", doc(t, map[string]any{"x": "y"}))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "rooms", id))
	_, err = store.Get(ctx, "rooms", id)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.Delete(ctx, "rooms", id), ErrNotFound)
}

func TestMemory_Watch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemory()

	id, err := store.Create(ctx, "rooms", doc(t, map[string]any{"v": "a"}))
	require.NoError(t, err)

	snaps, stop, err := store.Watch(ctx, "rooms", id)
	require.NoError(t, err)
	defer stop()

	initial := <-snaps
	assert.True(t, initial.Exists, "initial snapshot delivered immediately")
	assert.JSONEq(t, `{"v":"a"}`, string(initial.Data))

	_, err = store.Update(ctx, "rooms", id, func([]byte) ([]byte, error) {
		return []byte(`{"v":"b"}`), nil
	})
	require.NoError(t, err)

	updated := <-snaps
	assert.True(t, updated.Exists)
	assert.JSONEq(t, `{"v":"b"}`, string(updated.Data))

	require.NoError(t, store.Delete(ctx, "rooms", id))

	deleted := <-snaps
	assert.False(t, deleted.Exists, "deletion delivers a final exists=false snapshot")
}

func TestMemory_Watch_MissingDocument(t *testing.T) {
	t.Parallel()
	store := NewMemory()

	snaps, stop, err := store.Watch(context.Background(), "rooms", "nothing-here")
	require.NoError(t, err)
	defer stop()

	initial := <-snaps
	assert.False(t, initial.Exists)
}

func TestMemory_Watch_StopReleases(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemory()

	id, err := store.Create(ctx, "rooms", doc(t, map[string]any{"v": 1}))
	require.NoError(t, err)

	snaps, stop, err := store.Watch(ctx, "rooms", id)
	require.NoError(t, err)
	<-snaps

	stop()

	select {
	case _, open := <-snaps:
		assert.False(t, open, "stop closes the channel")
	case <-time.After(time.Second):
		t.Fatal("channel never closed")
	}
}

func TestMemory_Query(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemory()

	id1, err := store.Create(ctx, "rooms", doc(t, map[string]any{"code": "AAAAAA", "status": "waiting"}))
	require.NoError(t, err)
	_, err = store.Create(ctx, "rooms", doc(t, map[string]any{"code": "BBBBBB", "status": "waiting"}))
	require.NoError(t, err)

	docs, err := store.Query(ctx, "rooms", "code", "AAAAAA")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, id1, docs[0].ID)

	docs, err = store.Query(ctx, "rooms", "code", "CCCCCC")
	require.NoError(t, err)
	assert.Empty(t, docs)

	docs, err = store.Query(ctx, "rooms", "status", "waiting")
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}
