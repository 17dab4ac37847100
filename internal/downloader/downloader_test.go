package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/law-makers/shelf/pkg/models"
)

func TestDownload_Success(t *testing.T) {
	content := "test file content"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(content))
	}))
	defer server.Close()

	tempDir := t.TempDir()
	dl := NewDownloader(nil, 10*time.Second, "Test/1.0")

	result, err := dl.Download(context.Background(), server.URL+"/test.txt", DownloadOptions{
		OutputDir: tempDir,
	})
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	if filepath.Base(result.FilePath) != "test.txt" {
		t.Errorf("unexpected file name %q", result.FilePath)
	}

	data, err := os.ReadFile(result.FilePath)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}

	if string(data) != content {
		t.Errorf("Content mismatch: got %q, want %q", string(data), content)
	}
	if result.Size != int64(len(content)) {
		t.Errorf("Size = %d, want %d", result.Size, len(content))
	}
}

func TestDownload_BadStatusLeavesNoFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	tempDir := t.TempDir()
	dl := NewDownloader(nil, 10*time.Second, "Test/1.0")

	if _, err := dl.Download(context.Background(), server.URL+"/missing.jpg", DownloadOptions{OutputDir: tempDir}); err == nil {
		t.Fatal("expected error for 404")
	}

	entries, _ := os.ReadDir(tempDir)
	if len(entries) != 0 {
		t.Errorf("expected empty dir, found %d entries", len(entries))
	}
}

func TestDownload_NamedFileKeepsExtension(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("jpeg"))
	}))
	defer server.Close()

	dl := NewDownloader(nil, 10*time.Second, "Test/1.0")
	result, err := dl.Download(context.Background(), server.URL+"/upload/590779.JPG", DownloadOptions{
		OutputDir: t.TempDir(),
		Filename:  "9786161841966",
	})
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if filepath.Base(result.FilePath) != "9786161841966.jpg" {
		t.Errorf("unexpected file name %q", result.FilePath)
	}
}

func TestSanitizeFilename_Security(t *testing.T) {
	dangerous := []string{
		"../../etc/passwd",
		"/etc/shadow",
		"file:with:colons",
	}

	for _, input := range dangerous {
		t.Run(input, func(t *testing.T) {
			result := sanitizeFilename(input)
			if strings.Contains(result, "/") || strings.Contains(result, "\\") {
				t.Errorf("Sanitized filename contains path separator: %q", result)
			}
			if strings.Contains(result, "..") {
				t.Errorf("Sanitized filename contains '..': %q", result)
			}
		})
	}
}

func TestSanitizeFilename_QueryHash(t *testing.T) {
	a := sanitizeFilename("https://example.com/img/cover.jpg?w=100")
	b := sanitizeFilename("https://example.com/img/cover.jpg?w=200")
	if a == b {
		t.Errorf("expected distinct names, both %q", a)
	}
	if !strings.HasSuffix(a, ".jpg") {
		t.Errorf("extension lost: %q", a)
	}
}

func TestDownloadCovers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "broken") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		time.Sleep(5 * time.Millisecond)
		w.Write([]byte("img"))
	}))
	defer server.Close()

	books := []models.Book{
		{ISBN: "111", CoverURL: server.URL + "/1.jpg"},
		{ISBN: models.Unknown, CoverURL: server.URL + "/2.jpg"},
		{ISBN: "333", CoverURL: server.URL + "/1.jpg"},
		{ISBN: "444", CoverURL: models.Unknown},
		{ISBN: "555", CoverURL: server.URL + "/broken.jpg"},
	}

	dir := t.TempDir()
	dl := NewDownloader(nil, 10*time.Second, "Test/1.0")
	rs, err := dl.DownloadCovers(context.Background(), books, dir, 2, zerolog.Nop())
	if err != nil {
		t.Fatalf("DownloadCovers: %v", err)
	}

	if rs.Len() != 3 {
		t.Fatalf("expected 3 results (distinct known covers), got %d", rs.Len())
	}
	if rs.Successes() != 2 || rs.Failures() != 1 {
		t.Errorf("successes=%d failures=%d", rs.Successes(), rs.Failures())
	}

	for _, name := range []string{"111.jpg", "2_" + hashString(server.URL+"/2.jpg") + ".jpg"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
}

func TestCoverKeys_SameBaseNameDoNotCollide(t *testing.T) {
	books := []models.Book{
		{ISBN: models.Unknown, CoverURL: "https://cdn.example.com/a/cover.jpg"},
		{ISBN: "", CoverURL: "https://cdn.example.com/b/cover.jpg"},
		{ISBN: "978", CoverURL: "https://cdn.example.com/c/one.jpg"},
		{ISBN: "978", CoverURL: "https://cdn.example.com/c/two.jpg"},
	}

	keys, names := CoverKeys(books)
	if len(keys) != 4 {
		t.Fatalf("expected 4 covers, got %d", len(keys))
	}

	seen := make(map[string]string)
	for _, k := range keys {
		if other, dup := seen[names[k]]; dup {
			t.Fatalf("%s and %s share file name %q", other, k, names[k])
		}
		seen[names[k]] = k
	}
	if names["https://cdn.example.com/c/one.jpg"] != "978" {
		t.Errorf("expected ISBN name, got %q", names["https://cdn.example.com/c/one.jpg"])
	}
	if !strings.HasPrefix(names["https://cdn.example.com/a/cover.jpg"], "cover_") {
		t.Errorf("expected base name plus hash, got %q", names["https://cdn.example.com/a/cover.jpg"])
	}
}

func BenchmarkSanitizeFilename(b *testing.B) {
	input := "https://example.com/path/to/file.mp4?query=param"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sanitizeFilename(input)
	}
}
