package georef

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseWorldFile(t *testing.T) {
	wf := "0.5\n0.0\n0.0\n-0.5\n100.25\n199.75\n"

	a, err := ParseWorldFile(strings.NewReader(wf))
	require.NoError(t, err)
	require.InDelta(t, 100.0, a.C, 1e-9)
	require.InDelta(t, 200.0, a.F, 1e-9)
	require.Equal(t, 0.5, a.A)
	require.Equal(t, -0.5, a.E)

	_, err = ParseWorldFile(strings.NewReader("1\n2\n3\n"))
	require.Error(t, err)
	_, err = ParseWorldFile(strings.NewReader("1\n0\n0\nx\n0\n0\n"))
	require.Error(t, err)
}

func TestLoadWorldFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.tfw")
	require.NoError(t, os.WriteFile(path, []byte("2\n0\n0\n-2\n11\n29\n"), 0644))

	a, err := LoadWorldFile(path)
	require.NoError(t, err)
	x, y := a.Apply(0, 0)
	require.InDelta(t, 10.0, x, 1e-9)
	require.InDelta(t, 30.0, y, 1e-9)

	_, err = LoadWorldFile(filepath.Join(t.TempDir(), "missing.tfw"))
	require.Error(t, err)
}

func TestWorldFilePath(t *testing.T) {
	require.Equal(t, "scene.tfw", WorldFilePath("scene.tif"))
	require.Equal(t, "dir/ortho.pgw", WorldFilePath("dir/ortho.png"))
	require.Equal(t, "dir.v2/raw.wld", WorldFilePath("dir.v2/raw"))
}

func TestFindWorldFile(t *testing.T) {
	dir := t.TempDir()

	_, ok, err := FindWorldFile(dir, "scene")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "scene.pgw"), []byte("1\n0\n0\n-1\n0.5\n-0.5\n"), 0644))
	a, ok, err := FindWorldFile(dir, "scene")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, FromOrigin(0, 0, 1, 1), a)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.wld"), []byte("1\n"), 0644))
	_, ok, err = FindWorldFile(dir, "broken")
	require.Error(t, err)
	require.False(t, ok)
}
