package pdfwork

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTextToPDF_ProducesAValidLookingPDFHeader(t *testing.T) {
	dir := t.TempDir()
	txtPath := filepath.Join(dir, "in.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("hello\nworld\n"), 0o644))

	outPath := filepath.Join(dir, "out.pdf")
	require.NoError(t, textToPDF(txtPath, outPath))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "%PDF-1.4"))
	require.Contains(t, string(data), "%%EOF")
	require.Contains(t, string(data), "hello")
	require.Contains(t, string(data), "world")
}

func TestTextToPDF_PaginatesLongInput(t *testing.T) {
	dir := t.TempDir()
	txtPath := filepath.Join(dir, "in.txt")

	var lines []string
	for i := 0; i < 120; i++ {
		lines = append(lines, "line")
	}
	require.NoError(t, os.WriteFile(txtPath, []byte(strings.Join(lines, "\n")), 0o644))

	outPath := filepath.Join(dir, "out.pdf")
	require.NoError(t, textToPDF(txtPath, outPath))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	// three pages of 54 lines each cover 120 lines; the page tree must
	// reflect more than one /Type /Page object.
	require.GreaterOrEqual(t, strings.Count(string(data), "/Type /Page "), 2)
}
