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

// runFromMerge executes Stage B through D in sequence, the entry point
// the Resume Planner selects when no merge progress has been committed
// yet. anchor dates every blob path this job produces; it never
// changes across retries of the same message, so a crash-and-resume
// run lands on the exact same keys a clean run would have.
func (p *Processor) runFromMerge(ctx context.Context, strategy channel.Strategy, caseRow model.Case, doc model.Document, payload *model.ParsedPayload, anchor time.Time) error {
	jobDir, err := p.newJobTempDir(caseRow.CaseID)
	if err != nil {
		return err
	}
	defer os.RemoveAll(jobDir)

	localMerged, _, err := p.mergeStage(ctx, jobDir, caseRow, doc, payload, anchor)
	if err != nil {
		return fmt.Errorf("stage b: %w", err)
	}

	return p.splitFromLocal(ctx, strategy, caseRow, doc, payload, jobDir, localMerged, anchor)
}

func (p *Processor) mergeStage(ctx context.Context, jobDir string, caseRow model.Case, doc model.Document, payload *model.ParsedPayload, anchor time.Time) (string, int64, error) {
	log := p.jobLog(caseRow.CaseID)

	seen := make(map[string]bool, len(payload.Documents))
	var inputs []pdfwork.Input
	var localPaths []string
	for _, d := range payload.Documents {
		if d.SourceAbsoluteURL == "" {
			continue
		}
		if seen[d.SourceAbsoluteURL] {
			log.WithField("url", d.SourceAbsoluteURL).Info("duplicate document in payload, skipping")
			continue
		}
		seen[d.SourceAbsoluteURL] = true

		localPath, err := p.blob.DownloadToTemp(ctx, d.SourceAbsoluteURL)
		if err != nil {
			return "", 0, fmt.Errorf("download %s: %w", d.SourceAbsoluteURL, err)
		}
		localPaths = append(localPaths, localPath)
		inputs = append(inputs, pdfwork.Input{Path: localPath, ContentType: d.ContentType})
	}
	defer func() {
		for _, lp := range localPaths {
			os.Remove(lp)
		}
	}()

	if len(inputs) == 0 {
		return "", 0, fmt.Errorf("stage b: payload named documents but none had a usable source_absolute_url")
	}

	mergedPath := filepath.Join(jobDir, "consolidated.pdf")
	if err := p.merger.Merge(inputs, mergedPath); err != nil {
		return "", 0, fmt.Errorf("merge: %w", err)
	}

	year, month, day := anchor.Date()
	blobPath := pathbuilder.ConsolidatedPDF(caseRow.DecisionTrackingID, caseRow.CaseID, year, int(month), day)
	fileSize, err := p.blob.UploadFromTemp(ctx, blobPath, mergedPath)
	if err != nil {
		return "", 0, fmt.Errorf("upload consolidated pdf: %w", err)
	}

	processingPath := pathbuilder.ProcessingRoot(caseRow.DecisionTrackingID, year, int(month), day)
	fileName := fmt.Sprintf("packet_%d.pdf", caseRow.CaseID)
	if err := p.cases.CommitMerge(ctx, doc.DocumentID, blobPath, fileName, processingPath, fileSize); err != nil {
		return "", 0, fmt.Errorf("commit merge: %w", err)
	}

	return mergedPath, fileSize, nil
}
