package assets

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postproc/types.wgsl", "postproc::types"},
		{"gbuffer.wgsl", "gbuffer"},
		{"common/deep/view.wgsl", "common::deep::view"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ModuleName(tt.in))
	}
}

func TestLoadShaderDir(t *testing.T) {
	fsys := fstest.MapFS{
		"shaders/gbuffer.wgsl":        {Data: []byte("gbuffer")},
		"shaders/postproc/types.wgsl": {Data: []byte("types")},
		"shaders/postproc/README.md":  {Data: []byte("skip")},
		"other/ignored.wgsl":          {Data: []byte("outside")},
	}

	sources, err := LoadShaderDir(fsys, "shaders")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"gbuffer":         "gbuffer",
		"postproc::types": "types",
	}, sources)
}

func TestLoadShaderDirMissing(t *testing.T) {
	_, err := LoadShaderDir(fstest.MapFS{}, "nope")
	assert.Error(t, err)
}

func TestShaderWatcherReportsWrites(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "postproc"), 0o755))

	var mu sync.Mutex
	changes := map[string]string{}
	w, err := NewShaderWatcher(dir, func(name, source string) {
		mu.Lock()
		defer mu.Unlock()
		changes[name] = source
	}, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "postproc", "tonemap.wgsl"), []byte("// v2"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return changes["postproc::tonemap"] == "// v2"
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, w.Close())
	mu.Lock()
	defer mu.Unlock()
	assert.NotContains(t, changes, "notes")
}
