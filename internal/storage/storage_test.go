package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_NoDriver(t *testing.T) {
	s, err := Open("", "")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestOpen_UnknownDriver(t *testing.T) {
	s, err := Open("mongo", "mongodb://localhost")
	assert.Error(t, err)
	assert.Nil(t, s)
}

func TestOpen_SQLite(t *testing.T) {
	s, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.SaveScene(ctx, "a", "A", []byte(`{"version":1,"id":"a","entities":[]}`)))
	require.NoError(t, s.SetActiveScene(ctx, "a"))
	id, err := s.ActiveScene(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", id)

	ids, err := s.SceneIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)

	require.NoError(t, s.Append(time.Now(), "info", "scene.saved", "", map[string]interface{}{"scene_id": "a"}))
	got, err := s.RecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "scene.saved", got[0].Name)
}

func TestOpen_SQLiteNeedsPath(t *testing.T) {
	s, err := Open("sqlite", "")
	assert.Error(t, err)
	assert.Nil(t, s)
}
