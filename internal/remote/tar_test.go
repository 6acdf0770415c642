package remote

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	name string
	body string
	dir  bool
	link string
}

func archive(t *testing.T, entries ...entry) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0o644, Size: int64(len(e.body)), Typeflag: tar.TypeReg}
		switch {
		case e.dir:
			hdr = &tar.Header{Name: e.name, Mode: 0o755, Typeflag: tar.TypeDir}
		case e.link != "":
			hdr = &tar.Header{Name: e.name, Linkname: e.link, Typeflag: tar.TypeSymlink}
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if !e.dir && e.link == "" {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	return &buf
}

func TestExtractTar(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "results", "lr-0.1")

	err := ExtractTar(archive(t,
		entry{name: "./", dir: true},
		entry{name: "./stdout.log", body: "epoch 1\n"},
		entry{name: "./.finished"},
		entry{name: "./ckpt/", dir: true},
		entry{name: "./ckpt/model.pt", body: "weights"},
		entry{name: "./latest", link: "ckpt/model.pt"},
	), dest)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dest, "stdout.log"))
	require.NoError(t, err)
	assert.Equal(t, "epoch 1\n", string(data))

	data, err = os.ReadFile(filepath.Join(dest, "ckpt", "model.pt"))
	require.NoError(t, err)
	assert.Equal(t, "weights", string(data))

	assert.FileExists(t, filepath.Join(dest, ".finished"))
	assert.NoFileExists(t, filepath.Join(dest, "latest"))
}

func TestExtractTarRejectsEscapes(t *testing.T) {
	dest := t.TempDir()
	err := ExtractTar(archive(t, entry{name: "../../evil", body: "x"}), dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes")
}
