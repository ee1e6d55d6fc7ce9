package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/svcops/intake-pipeline/internal/channel"
	"github.com/svcops/intake-pipeline/internal/model"
	"github.com/svcops/intake-pipeline/internal/pathbuilder"
	"github.com/svcops/intake-pipeline/internal/pdfwork"
)

// runFromSplit is the entry point the Resume Planner selects when
// merge already committed (consolidated_blob_path set) but split has
// not: re-download the consolidated PDF before splitting. anchor is
// the same frozen date merge used to build that path, so the
// re-download lands on the key it actually wrote to.
func (p *Processor) runFromSplit(ctx context.Context, strategy channel.Strategy, caseRow model.Case, doc model.Document, payload *model.ParsedPayload, anchor time.Time) error {
	if doc.ConsolidatedBlobPath == nil {
		return fmt.Errorf("stage c: resume requires a consolidated_blob_path but document %d has none", doc.DocumentID)
	}

	jobDir, err := p.newJobTempDir(caseRow.CaseID)
	if err != nil {
		return err
	}
	defer os.RemoveAll(jobDir)

	localPath, err := p.blob.DownloadToTemp(ctx, *doc.ConsolidatedBlobPath)
	if err != nil {
		return fmt.Errorf("stage c: re-download consolidated pdf: %w", err)
	}
	defer os.Remove(localPath)

	return p.splitFromLocal(ctx, strategy, caseRow, doc, payload, jobDir, localPath, anchor)
}

// splitFromLocal performs Stage C against an already-local consolidated
// PDF (either freshly merged in this invocation or re-downloaded on
// resume), then falls through into Stage D. anchor must be the same
// date the consolidated PDF's path was built from, so per-page paths
// land under the same processing root.
func (p *Processor) splitFromLocal(ctx context.Context, strategy channel.Strategy, caseRow model.Case, doc model.Document, payload *model.ParsedPayload, jobDir, localMergedPath string, anchor time.Time) error {
	outDir := filepath.Join(jobDir, "pages")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("stage c: create split output dir: %w", err)
	}

	splitPages, err := p.split.Split(localMergedPath, outDir)
	if err != nil {
		return fmt.Errorf("stage c: split: %w", err)
	}

	year, month, day := anchor.Date()
	blobPathFor := func(pageNumber int) string {
		return pathbuilder.PagePath(caseRow.DecisionTrackingID, caseRow.CaseID, year, int(month), day, pageNumber)
	}

	for _, page := range splitPages {
		if _, err := p.blob.UploadFromTemp(ctx, blobPathFor(page.PageNumber), page.LocalPath); err != nil {
			return fmt.Errorf("stage c: upload page %d: %w", page.PageNumber, err)
		}
	}

	meta := pdfwork.ToPageMeta(splitPages, blobPathFor)
	if err := p.cases.CommitSplit(ctx, doc.DocumentID, len(splitPages), meta); err != nil {
		return fmt.Errorf("stage c: commit split: %w", err)
	}
	doc.PagesMetadata = &meta
	doc.PageCount = len(splitPages)
	doc.SplitStatus = model.StageDone

	return p.runExtraction(ctx, strategy, caseRow, doc, payload)
}
