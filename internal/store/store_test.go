package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/MeKo-Tech/gridmap/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "buildings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_PutGetRoundtrip(t *testing.T) {
	s := openTestStore(t)

	in := []types.Building{
		{Latitude: 3.14, Longitude: 101.69, BuildingType: "residential", SurfaceAreaM2: 120, FloorsCount: 2},
		{Latitude: 3.15, Longitude: 101.70, BuildingType: "commercial", OSMID: 42},
	}
	require.NoError(t, s.Put("kuala_lumpur", in))

	out, ok, err := s.Get("kuala_lumpur", 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in, out)
}

func TestStore_MissingZone(t *testing.T) {
	s := openTestStore(t)

	_, ok, err := s.Get("george_town", 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_MaxAgeExpiry(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put("ipoh", []types.Building{{Latitude: 4.6, Longitude: 101.1}}))

	// A fresh entry within a generous window is served.
	_, ok, err := s.Get("ipoh", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	// Backdate the entry past the window.
	_, err = s.db.Exec(`UPDATE zone_buildings SET fetched_at = ? WHERE zone_id = ?`,
		time.Now().Add(-2*time.Hour).Unix(), "ipoh")
	require.NoError(t, err)

	_, ok, err = s.Get("ipoh", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_PutReplaces(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put("ipoh", []types.Building{{Latitude: 1, Longitude: 1}}))
	require.NoError(t, s.Put("ipoh", []types.Building{{Latitude: 2, Longitude: 2}, {Latitude: 3, Longitude: 3}}))

	out, ok, err := s.Get("ipoh", 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, out, 2)
}

func TestStore_Delete(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put("ipoh", []types.Building{{Latitude: 1, Longitude: 1}}))
	require.NoError(t, s.Delete("ipoh"))

	_, ok, err := s.Get("ipoh", 0)
	require.NoError(t, err)
	assert.False(t, ok)
}
