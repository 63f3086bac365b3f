package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFileSystem(t *testing.T) {
	m := NewMemoryFileSystem()

	w, err := CreateAll(m, "out/plots/posterior.png")
	require.NoError(t, err)
	_, err = w.Write([]byte("png"))
	require.NoError(t, err)

	// Contents appear on close.
	data, err := m.ReadFile("out/plots/posterior.png")
	require.NoError(t, err)
	assert.Empty(t, data)
	require.NoError(t, w.Close())

	data, err = m.ReadFile("out/plots/posterior.png")
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	assert.True(t, m.Exists("out"))
	assert.True(t, m.Exists("out/plots"))
	assert.False(t, m.Exists("elsewhere"))

	_, err = m.ReadFile("missing.csv")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestWriteWith(t *testing.T) {
	m := NewMemoryFileSystem()
	require.NoError(t, WriteWith(m, "a/b.csv", func(w io.Writer) error {
		_, err := io.WriteString(w, "point,GaR0_p\n")
		return err
	}))
	require.NoError(t, WriteWith(m, "c.csv", func(w io.Writer) error { return nil }))

	assert.Equal(t, []string{"a/b.csv", "c.csv"}, m.Files(""))
	assert.Equal(t, []string{"a/b.csv"}, m.Files("a/"))

	boom := errors.New("boom")
	err := WriteWith(m, "d.csv", func(io.Writer) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestOSFileSystem(t *testing.T) {
	var fsys FileSystem = OSFileSystem{}
	path := filepath.Join(t.TempDir(), "nested", "chart.html")

	require.NoError(t, WriteWith(fsys, path, func(w io.Writer) error {
		_, err := io.WriteString(w, "<html></html>")
		return err
	}))
	assert.True(t, fsys.Exists(path))
	data, err := fsys.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(data))
}
