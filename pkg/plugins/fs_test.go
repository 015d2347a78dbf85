package plugins

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFiles creates each name (slash separated) under dir with the given content
func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func TestLocalFS(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"plugin.json":     `{}`,
		"img/logo.svg":    "<svg/>",
		"README.md":       "# readme",
		"nested/child.md": "child",
	})

	lfs := NewLocalFS(dir)
	assert.Equal(t, dir, lfs.Base())
	assert.Equal(t, []string{"README.md", "img/logo.svg", "nested/child.md", "plugin.json"}, lfs.Files())

	assert.True(t, lfs.Exists("plugin.json"))
	assert.True(t, lfs.Exists("/img/logo.svg"))
	assert.False(t, lfs.Exists("img"), "directories are not files")
	assert.False(t, lfs.Exists("missing"))

	data, err := lfs.Read("nested/child.md")
	require.NoError(t, err)
	assert.Equal(t, "child", string(data))

	f, err := lfs.Open("README.md")
	require.NoError(t, err)
	content, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "# readme", string(content))

	full, ok := lfs.FullPath("img/logo.svg")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "img", "logo.svg"), full)

	full, ok = lfs.FullPath("nope")
	assert.False(t, ok)
	assert.Equal(t, filepath.Join(dir, "nope"), full)
}

func TestLocalFS_NoTraversal(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"secret.txt":         "secret",
		"plugin/plugin.json": `{}`,
	})

	lfs := NewLocalFS(filepath.Join(root, "plugin"))

	assert.False(t, lfs.Exists("../secret.txt"))
	_, err := lfs.Read("../secret.txt")
	assert.Error(t, err)
	_, err = lfs.Open("../../secret.txt")
	assert.Error(t, err)

	full, _ := lfs.FullPath("../../secret.txt")
	assert.Equal(t, filepath.Join(root, "plugin", "secret.txt"), full)
}

func TestLocalFS_SymlinkEscape(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"secret.txt":          "secret",
		"plugin/plugin.json":  `{}`,
		"plugin/docs/real.md": "inside",
	})
	base := filepath.Join(root, "plugin")

	if err := os.Symlink(filepath.Join(root, "secret.txt"), filepath.Join(base, "escape.md")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	require.NoError(t, os.Symlink(root, filepath.Join(base, "up")))
	require.NoError(t, os.Symlink(filepath.Join(base, "docs", "real.md"), filepath.Join(base, "alias.md")))

	lfs := NewLocalFS(base)

	for _, name := range []string{"escape.md", "up/secret.txt"} {
		assert.False(t, lfs.Exists(name), name)

		_, err := lfs.Read(name)
		assert.True(t, errors.Is(err, fs.ErrPermission), "%s: %v", name, err)

		_, err = lfs.Open(name)
		assert.True(t, errors.Is(err, fs.ErrPermission), "%s: %v", name, err)
	}

	assert.True(t, lfs.Exists("alias.md"), "links that stay inside the root are followed")
	data, err := lfs.Read("alias.md")
	require.NoError(t, err)
	assert.Equal(t, "inside", string(data))

	p := &Plugin{JSONData: JSONData{ID: "linked"}, Files: lfs}
	assert.Empty(t, p.Markdown("escape"))
	_, _, err = p.File("escape.md")
	assert.Error(t, err)
}

func TestLocalFS_EmptyName(t *testing.T) {
	lfs := NewLocalFS(t.TempDir())

	_, err := lfs.Open("")
	assert.Error(t, err)
	_, err = lfs.Read("/")
	assert.Error(t, err)
}

func TestLocalFS_MissingBase(t *testing.T) {
	lfs := NewLocalFS(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Empty(t, lfs.Files())
}
