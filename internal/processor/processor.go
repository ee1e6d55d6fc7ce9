// Package processor implements the Document Processor: the
// four-stage pipeline that turns one claimed inbox job into a
// persisted Case/Document aggregate, a consolidated PDF, per-page
// splits, and extracted fields, committing a checkpoint after every
// stage so a crash anywhere leaves a resumable state.
package processor

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/svcops/intake-pipeline/internal/blobstore"
	"github.com/svcops/intake-pipeline/internal/casestore"
	"github.com/svcops/intake-pipeline/internal/channel"
	"github.com/svcops/intake-pipeline/internal/clock"
	"github.com/svcops/intake-pipeline/internal/model"
	"github.com/svcops/intake-pipeline/internal/ocr"
	"github.com/svcops/intake-pipeline/internal/pdfwork"
	"github.com/svcops/intake-pipeline/internal/resume"
)

// Merger is the narrow slice of pdfwork.Merger the processor needs;
// tests substitute a fake to avoid exercising pdfcpu.
type Merger interface {
	Merge(inputs []pdfwork.Input, outPath string) error
}

// Splitter is the narrow slice of pdfwork.Splitter the processor needs.
type Splitter interface {
	Split(inPath, outDir string) ([]pdfwork.SplitPage, error)
}

// OCRClient is the narrow slice of ocr.Client the processor needs.
type OCRClient interface {
	SubmitPage(ctx context.Context, pageName string, pdfBytes []byte) (*ocr.Result, error)
}

// OCRConfig mirrors the config.OCR knobs the Stage D OCR path consumes.
type OCRConfig struct {
	MaxPagesPerDoc             int
	TotalAttemptsBudget        int
	StopAfterCoversheet        bool
	CoversheetConfidenceThresh float64
	MinCoversheetFields        int
	DelayBetweenRequests       time.Duration
}

// Processor wires every external collaborator the stage pipeline
// needs. It holds no per-job state; Process is safe to call
// concurrently from multiple workers as long as each call uses its
// own temp directory (handled internally).
type Processor struct {
	cases  *casestore.Store
	blob   blobstore.Client
	merger Merger
	split  Splitter
	ocrc   OCRClient
	clock  clock.Clock
	log    *logrus.Entry
	ocrCfg OCRConfig
	tempDir string
}

func New(cases *casestore.Store, blob blobstore.Client, merger Merger, splitter Splitter, ocrc OCRClient, clk clock.Clock, log *logrus.Entry, ocrCfg OCRConfig, tempDir string) *Processor {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Processor{cases: cases, blob: blob, merger: merger, split: splitter, ocrc: ocrc, clock: clk, log: log, ocrCfg: ocrCfg, tempDir: tempDir}
}

// Process runs one inbox job end-to-end through whatever entry point
// the Resume Planner selects, committing once per stage.
func (p *Processor) Process(ctx context.Context, msg model.SourceMessage) error {
	payload, err := model.ParsePayload(msg.Payload)
	if err != nil {
		return err
	}

	ch := msg.ChannelType()
	strategy := channel.For(ch)
	received := submissionTime(ch, payload, msg.CreatedAt)

	beneficiaryName, beneficiaryMBI, providerName, providerNPI := model.NewCasePlaceholders()
	channelTypeID := int(ch)
	seed := model.Case{
		ChannelSpecificID: model.ChannelSpecificIDFor(ch, payload),
		ReceivedDate:      received,
		DueDate:           model.ComputeDueDate(received, nil),
		ChannelTypeID:     &channelTypeID,
		DetailedStatus:    "Pending - New",
		BeneficiaryName:   &beneficiaryName,
		BeneficiaryMBI:    &beneficiaryMBI,
		ProviderName:      &providerName,
		ProviderNPI:       &providerNPI,
	}

	caseRow, err := p.cases.UpsertCase(ctx, msg.DecisionTrackingID, seed)
	if err != nil {
		return fmt.Errorf("stage a: upsert case: %w", err)
	}

	fileName := fmt.Sprintf("packet_%d.pdf", caseRow.CaseID)
	doc, err := p.cases.UpsertDocument(ctx, caseRow.CaseID, fileName)
	if err != nil {
		return fmt.Errorf("stage a: upsert document: %w", err)
	}

	if !payload.HasDocuments() {
		if ch == model.ChannelPortal && payload.HasOCRFields() {
			return p.runExtraction(ctx, strategy, caseRow, doc, payload)
		}
		if err := p.cases.MarkMissingDocuments(ctx, doc.DocumentID); err != nil {
			return fmt.Errorf("stage a: mark missing documents: %w", err)
		}
		return nil
	}

	// Anchored to the immutable source row's created_at rather than
	// wall-clock time, so a stage that resumes on a later calendar day
	// still derives the same dated blob paths a same-day run would have:
	// msg.CreatedAt never changes across retries of the same message.
	anchor := msg.CreatedAt

	point := resume.Plan(true, doc)
	switch point {
	case resume.PointAlreadyDone:
		return nil
	case resume.PointMerge:
		return p.runFromMerge(ctx, strategy, caseRow, doc, payload, anchor)
	case resume.PointSplit:
		return p.runFromSplit(ctx, strategy, caseRow, doc, payload, anchor)
	case resume.PointOCR:
		return p.runExtraction(ctx, strategy, caseRow, doc, payload)
	default:
		return p.runFromMerge(ctx, strategy, caseRow, doc, payload, anchor)
	}
}

func (p *Processor) newJobTempDir(caseID int64) (string, error) {
	dir, err := os.MkdirTemp(p.tempDir, fmt.Sprintf("intake-job-%d-*", caseID))
	if err != nil {
		return "", fmt.Errorf("create job temp dir: %w", err)
	}
	return dir, nil
}

func (p *Processor) jobLog(caseID int64) *logrus.Entry {
	return p.log.WithField("case_id", caseID)
}
