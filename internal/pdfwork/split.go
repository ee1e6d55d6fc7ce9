package pdfwork

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/svcops/intake-pipeline/internal/model"
)

// Splitter splits a consolidated PDF into per-page PDFs with stable
// ordering and per-page hashes.
type Splitter struct{}

func NewSplitter() *Splitter { return &Splitter{} }

// SplitPage is one page's local artifact plus the metadata Stage C
// needs to commit into pages_metadata.
type SplitPage struct {
	PageNumber  int
	LocalPath   string
	ContentType string
	SizeBytes   int64
	SHA256      string
}

// Split writes one PDF per page of inPath into outDir using pdfcpu's
// page-span-of-1 split, then stat/hashes each output so the caller can
// upload them and record {page_number, content_type, size_bytes,
// sha256} for each page.
func (s *Splitter) Split(inPath, outDir string) ([]SplitPage, error) {
	if err := api.SplitFile(inPath, outDir, 1, nil); err != nil {
		return nil, fmt.Errorf("pdfwork split: %w", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("pdfwork split: read output dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	pages := make([]SplitPage, 0, len(names))
	for i, name := range names {
		path := filepath.Join(outDir, name)
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("pdfwork split: stat %s: %w", path, err)
		}
		sum, err := sha256File(path)
		if err != nil {
			return nil, fmt.Errorf("pdfwork split: hash %s: %w", path, err)
		}
		pages = append(pages, SplitPage{
			PageNumber:  i + 1,
			LocalPath:   path,
			ContentType: "application/pdf",
			SizeBytes:   info.Size(),
			SHA256:      sum,
		})
	}
	return pages, nil
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ToPageMeta converts split output plus uploaded blob paths into the
// pages_metadata shape persisted by CommitSplit.
func ToPageMeta(pages []SplitPage, blobPathFor func(pageNumber int) string) model.PagesMetadata {
	out := model.PagesMetadata{Version: 1, Pages: make([]model.PageMeta, 0, len(pages))}
	for _, p := range pages {
		out.Pages = append(out.Pages, model.PageMeta{
			PageNumber:  p.PageNumber,
			BlobPath:    blobPathFor(p.PageNumber),
			ContentType: p.ContentType,
			SizeBytes:   p.SizeBytes,
			SHA256:      p.SHA256,
		})
	}
	return out
}
