// Package pdfwork implements the PDF Merger and Splitter external
// collaborators on top of pdfcpu (see DESIGN.md for why it was chosen
// over a hand-rolled PDF writer).
package pdfwork

import (
	"fmt"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Input is one document to fold into the consolidated PDF, in the
// order it should appear: payload order, the same order the Document
// Processor downloaded and deduplicated them in.
type Input struct {
	Path        string
	ContentType string
}

// Merger concatenates heterogeneous inputs into one consolidated PDF.
type Merger struct{}

func NewMerger() *Merger { return &Merger{} }

// Merge deduplicates nothing itself (dedupe by
// source_absolute_url happens before download; see internal/processor)
// — it assumes inputs is already the unique, ordered list. Non-PDF
// inputs are converted via textToPDF first (MIME matching is
// case-insensitive).
func (m *Merger) Merge(inputs []Input, outPath string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("pdfwork merge: no inputs")
	}

	var pdfPaths []string
	var cleanup []string
	defer func() {
		for _, p := range cleanup {
			os.Remove(p)
		}
	}()

	for _, in := range inputs {
		if isPDF(in.ContentType, in.Path) {
			pdfPaths = append(pdfPaths, in.Path)
			continue
		}
		converted := in.Path + ".converted.pdf"
		if err := textToPDF(in.Path, converted); err != nil {
			return fmt.Errorf("pdfwork merge: convert %s to pdf: %w", in.Path, err)
		}
		cleanup = append(cleanup, converted)
		pdfPaths = append(pdfPaths, converted)
	}

	if len(pdfPaths) == 1 {
		return copyFile(pdfPaths[0], outPath)
	}

	if err := api.MergeCreateFile(pdfPaths, outPath, false, nil); err != nil {
		return fmt.Errorf("pdfwork merge: %w", err)
	}
	return nil
}

func isPDF(contentType, path string) bool {
	if strings.EqualFold(contentType, "application/pdf") {
		return true
	}
	if contentType == "" {
		return strings.HasSuffix(strings.ToLower(path), ".pdf")
	}
	return false
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
