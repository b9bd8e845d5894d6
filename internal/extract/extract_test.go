package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copilot/internal/models"
)

func TestSupported(t *testing.T) {
	cases := []struct {
		filename string
		want     bool
	}{
		{"notes.md", true},
		{"NOTES.MD", true},
		{"report.pdf", true},
		{"readme.txt", true},
		{"image.png", false},
		{"archive.tar.gz", false},
		{"noextension", false},
	}

	for _, tc := range cases {
		t.Run(tc.filename, func(t *testing.T) {
			assert.Equal(t, tc.want, Supported(tc.filename))
		})
	}
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/markdown", ContentType("a.md"))
	assert.Equal(t, "text/plain", ContentType("a.txt"))
	assert.Equal(t, "application/pdf", ContentType("a.PDF"))
	assert.Equal(t, "", ContentType("a.docx"))
}

func TestTextPassthrough(t *testing.T) {
	got, err := Text("doc.md", []byte("# Title\n\nBody."))
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\nBody.", got)

	got, err = Text("doc.txt", []byte("plain words"))
	require.NoError(t, err)
	assert.Equal(t, "plain words", got)
}

func TestTextUnsupportedExtension(t *testing.T) {
	_, err := Text("slides.pptx", []byte("x"))
	assert.ErrorIs(t, err, models.ErrUnsupportedFileType)
}

func TestTextMalformedPDF(t *testing.T) {
	_, err := Text("broken.pdf", []byte("this is not a pdf at all"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrUnsupportedFileType)
}

func TestDiscoverSupportedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.png"), []byte("b"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "c.txt"), []byte("c"), 0644))

	files, err := DiscoverSupportedFiles(context.Background(), dir)
	require.NoError(t, err)

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"a.md", "c.txt"}, names)
}
