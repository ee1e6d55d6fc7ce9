package processor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/svcops/intake-pipeline/internal/channel"
	"github.com/svcops/intake-pipeline/internal/fields"
	"github.com/svcops/intake-pipeline/internal/metrics"
	"github.com/svcops/intake-pipeline/internal/model"
)

// runExtraction dispatches Stage D by the channel strategy's runs_ocr
// property.
func (p *Processor) runExtraction(ctx context.Context, strategy channel.Strategy, caseRow model.Case, doc model.Document, payload *model.ParsedPayload) error {
	started := time.Now()
	var err error
	if strategy.RunsOCR() {
		err = p.runOCRExtraction(ctx, strategy, caseRow, doc)
	} else {
		err = p.runPayloadExtraction(ctx, strategy, caseRow, doc, payload)
	}
	metrics.StageDuration.WithLabelValues("ocr").Observe(time.Since(started).Seconds())
	return err
}

// runPayloadExtraction is the Portal path: call the
// strategy's extract_fields_from_payload, synthesize ocr_metadata
// source="payload", sync Case columns, commit.
func (p *Processor) runPayloadExtraction(ctx context.Context, strategy channel.Strategy, caseRow model.Case, doc model.Document, payload *model.ParsedPayload) error {
	normalized, err := strategy.ExtractFieldsFromPayload(payload)
	if err != nil {
		return fmt.Errorf("stage d: %w", err)
	}

	var coversheetType string
	if payload.OCR != nil {
		coversheetType = payload.OCR.CoversheetType
	}
	partType := strategy.ClassifyPartType(payload, coversheetType, normalized)

	baseline := model.ExtractedFields{Fields: normalized, Source: model.FieldSourcePayloadInitial}
	updated := baseline.Clone()

	if err := p.syncCasePlaceholders(ctx, caseRow.CaseID, updated.Fields); err != nil {
		return fmt.Errorf("stage d: %w", err)
	}

	ocrMeta := model.OCRMetadata{Version: 1, PartType: partType, Source: model.MetadataSourcePayload}
	if err := p.cases.CommitExtraction(ctx, doc.DocumentID, ocrMeta, baseline, *updated, nil, partType, false); err != nil {
		return fmt.Errorf("stage d: commit extraction: %w", err)
	}
	return nil
}

// runOCRExtraction is the ESMD/Fax path: process pages
// sequentially under a pacing delay and a total-attempts budget,
// early-accepting a strong coversheet or else picking the best
// candidate among successes, falling back to an empty baseline
// flagged for manual review when nothing succeeds.
func (p *Processor) runOCRExtraction(ctx context.Context, strategy channel.Strategy, caseRow model.Case, doc model.Document) error {
	if doc.PagesMetadata == nil || len(doc.PagesMetadata.Pages) == 0 {
		return fmt.Errorf("stage d: document %d has no pages_metadata to run ocr over", doc.DocumentID)
	}

	pages := doc.PagesMetadata.Pages
	maxPages := p.ocrCfg.MaxPagesPerDoc
	if maxPages <= 0 || maxPages > len(pages) {
		maxPages = len(pages)
	}
	inScope := pages[:maxPages]

	budget := p.ocrCfg.TotalAttemptsBudget
	if budget <= 0 {
		budget = 3
	}

	type outcome struct {
		result         model.OCRPageResult
		coversheetType string
	}
	var outcomes []outcome
	attemptsUsed := 0
	earlyAccepted := -1

	for i, page := range inScope {
		if attemptsUsed >= budget {
			for j := i; j < len(inScope); j++ {
				outcomes = append(outcomes, outcome{result: model.OCRPageResult{
					PageNumber: inScope[j].PageNumber,
					Status:     model.OCRPageStatusSkipped,
					SkipReason: "attempts-budget-exhausted",
				}})
			}
			break
		}
		attemptsUsed++

		result, coversheetType, err := p.ocrOnePage(ctx, page)
		if err != nil {
			p.jobLog(caseRow.CaseID).WithError(err).WithField("page", page.PageNumber).Warn("ocr page failed")
			outcomes = append(outcomes, outcome{result: model.OCRPageResult{
				PageNumber: page.PageNumber,
				Status:     model.OCRPageStatusError,
			}})
		} else {
			outcomes = append(outcomes, outcome{result: result, coversheetType: coversheetType})

			strong := result.Confidence >= p.ocrCfg.CoversheetConfidenceThresh && len(result.Fields) >= p.ocrCfg.MinCoversheetFields
			if p.ocrCfg.StopAfterCoversheet && strong {
				earlyAccepted = len(outcomes) - 1
				for j := i + 1; j < len(inScope); j++ {
					outcomes = append(outcomes, outcome{result: model.OCRPageResult{
						PageNumber: inScope[j].PageNumber,
						Status:     model.OCRPageStatusSkipped,
						SkipReason: "early-stop",
					}})
				}
				break
			}
		}

		if p.ocrCfg.DelayBetweenRequests > 0 && i < len(inScope)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.ocrCfg.DelayBetweenRequests):
			}
		}
	}

	chosen := earlyAccepted
	if chosen == -1 {
		for idx, o := range outcomes {
			if o.result.Status != model.OCRPageStatusProcessed {
				continue
			}
			if chosen == -1 || o.result.Confidence > outcomes[chosen].result.Confidence {
				chosen = idx
			}
		}
	}

	var baseline model.ExtractedFields
	var coversheetPage *int
	partType := model.PartUnknown
	manualReview := false

	if chosen == -1 {
		baseline = *model.EmptyOCRFields()
		manualReview = true
		metrics.ManualReviewFlagged.Inc()
	} else {
		pn := outcomes[chosen].result.PageNumber
		coversheetPage = &pn
		baseline = model.ExtractedFields{Fields: outcomes[chosen].result.Fields, Source: model.FieldSourceOCRInitial}
		partType = strategy.ClassifyPartType(nil, outcomes[chosen].coversheetType, outcomes[chosen].result.Fields)
	}

	updated := baseline.Clone()
	autoFix(updated.Fields)

	if err := p.syncCasePlaceholders(ctx, caseRow.CaseID, updated.Fields); err != nil {
		return fmt.Errorf("stage d: %w", err)
	}

	ocrMeta := model.OCRMetadata{
		Version:              1,
		Pages:                make([]model.OCRPageResult, len(outcomes)),
		CoversheetPageNumber: coversheetPage,
		PartType:             partType,
		Source:               "ocr",
	}
	for i, o := range outcomes {
		ocrMeta.Pages[i] = o.result
	}

	if err := p.cases.CommitExtraction(ctx, doc.DocumentID, ocrMeta, baseline, *updated, coversheetPage, partType, manualReview); err != nil {
		return fmt.Errorf("stage d: commit extraction: %w", err)
	}

	if manualReview {
		p.jobLog(caseRow.CaseID).Warn("ocr extraction gracefully failed; flagged for manual review")
	}
	return nil
}

func (p *Processor) ocrOnePage(ctx context.Context, page model.PageMeta) (model.OCRPageResult, string, error) {
	localPath, err := p.blob.DownloadToTemp(ctx, page.BlobPath)
	if err != nil {
		return model.OCRPageResult{}, "", fmt.Errorf("download page %d: %w", page.PageNumber, err)
	}
	defer os.Remove(localPath)

	pdfBytes, err := os.ReadFile(localPath)
	if err != nil {
		return model.OCRPageResult{}, "", fmt.Errorf("read page %d: %w", page.PageNumber, err)
	}

	pageName := fmt.Sprintf("page-%04d.pdf", page.PageNumber)
	ocrResult, err := p.ocrc.SubmitPage(ctx, pageName, pdfBytes)
	if err != nil {
		return model.OCRPageResult{}, "", fmt.Errorf("submit page %d: %w", page.PageNumber, err)
	}

	raw := make(map[string]model.FieldValue, len(ocrResult.Fields))
	for name, f := range ocrResult.Fields {
		raw[name] = model.FieldValue{Value: f.Value, Confidence: f.Confidence, FieldType: f.FieldType}
	}
	normalized := fields.Normalize(raw)

	return model.OCRPageResult{
		PageNumber: page.PageNumber,
		Fields:     normalized,
		Confidence: ocrResult.OverallDocumentConfidence,
		DurationMS: ocrResult.DurationMS,
		Status:     model.OCRPageStatusProcessed,
	}, ocrResult.CoversheetType, nil
}

// syncCasePlaceholders applies the Field Normalizer's sync rule
// against a document's working field copy.
func (p *Processor) syncCasePlaceholders(ctx context.Context, caseID int64, workingFields map[string]model.FieldValue) error {
	in := fields.BuildSyncInputs(workingFields)
	return p.cases.SyncPlaceholderFields(ctx, caseID, in.BeneficiaryName, in.BeneficiaryMBI, in.ProviderName, in.ProviderNPI, in.SubmissionType)
}

// autoFix is the silent auto-fix pass applied to the
// working field copy after normalization: trims incidental whitespace
// off string values so downstream prefix-matching (submission type,
// NPI) isn't defeated by OCR noise.
func autoFix(workingFields map[string]model.FieldValue) {
	for name, fv := range workingFields {
		if s, ok := fv.Value.(string); ok {
			trimmed := strings.TrimSpace(s)
			if trimmed != s {
				fv.Value = trimmed
				workingFields[name] = fv
			}
		}
	}
}
