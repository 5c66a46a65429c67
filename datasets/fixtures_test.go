package datasets

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

// Fixture images are small grayscale drawings, like the real dataset.
const (
	fixtureWidth  = 4
	fixtureHeight = 5
)

func fixturePNG(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, fixtureWidth, fixtureHeight))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.SetGray(1, 1, color.Gray{Y: shade})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// writePNG writes a fixture image to path, creating parent directories.
func writePNG(t *testing.T, path string, shade uint8) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, fixturePNG(t, shade), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// zipArchive builds an in-memory zip holding the given entries.
func zipArchive(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("failed to add %s to zip: %v", name, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("failed to write %s to zip: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return buf.Bytes()
}

// omniglotArchive is an archive with one alphabet holding one character with
// three drawings, under the given top-level folder.
func omniglotArchive(t *testing.T, top, alphabet string) []byte {
	t.Helper()
	prefix := top + "/" + alphabet + "/character01/"
	return zipArchive(t, map[string][]byte{
		prefix + "0001_01.png": fixturePNG(t, 10),
		prefix + "0001_02.png": fixturePNG(t, 20),
		prefix + "0001_03.png": fixturePNG(t, 30),
	})
}

// archiveServer serves the two Omniglot archives and counts requests.
type archiveServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newArchiveServer(t *testing.T) *archiveServer {
	t.Helper()
	files := map[string][]byte{
		"/images_background.zip": omniglotArchive(t, "images_background", "Latin"),
		"/images_evaluation.zip": omniglotArchive(t, "images_evaluation", "Greek"),
	}
	s := &archiveServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		data, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *archiveServer) config(root string) OmniglotConfig {
	cfg := DefaultOmniglotConfig(root)
	cfg.URLs = []string{
		s.URL + "/images_background.zip",
		s.URL + "/images_evaluation.zip",
	}
	return cfg
}
