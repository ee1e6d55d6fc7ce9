package processor_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/svcops/intake-pipeline/internal/blobstore"
	"github.com/svcops/intake-pipeline/internal/casestore"
	"github.com/svcops/intake-pipeline/internal/clock"
	"github.com/svcops/intake-pipeline/internal/inboxstore"
	"github.com/svcops/intake-pipeline/internal/model"
	"github.com/svcops/intake-pipeline/internal/ocr"
	"github.com/svcops/intake-pipeline/internal/pdfwork"
	"github.com/svcops/intake-pipeline/internal/processor"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	const schema = `
	CREATE TABLE "case" (
		case_id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id TEXT NOT NULL UNIQUE,
		decision_tracking_id TEXT NOT NULL UNIQUE,
		channel_specific_id TEXT,
		received_date TIMESTAMP NOT NULL,
		due_date TIMESTAMP NOT NULL,
		submission_type TEXT,
		channel_type_id INTEGER,
		detailed_status TEXT NOT NULL,
		beneficiary_name TEXT,
		beneficiary_mbi TEXT,
		provider_name TEXT,
		provider_npi TEXT
	);
	CREATE TABLE document (
		document_id INTEGER PRIMARY KEY AUTOINCREMENT,
		case_id INTEGER NOT NULL UNIQUE,
		external_id TEXT NOT NULL,
		file_name TEXT,
		consolidated_blob_path TEXT,
		file_size_bytes INTEGER NOT NULL DEFAULT 0,
		processing_path TEXT,
		page_count INTEGER NOT NULL DEFAULT 0,
		pages_metadata TEXT,
		ocr_metadata TEXT,
		extracted_fields TEXT,
		updated_extracted_fields TEXT,
		split_status TEXT NOT NULL,
		ocr_status TEXT NOT NULL,
		coversheet_page_number INTEGER,
		part_type TEXT NOT NULL,
		manual_review_required BOOLEAN NOT NULL DEFAULT 0
	);
	`
	_, err = db.Exec(schema)
	require.NoError(t, err)
	return db
}

type fakeMerger struct{ called int }

func (f *fakeMerger) Merge(inputs []pdfwork.Input, outPath string) error {
	f.called++
	return os.WriteFile(outPath, []byte("%PDF-1.4 fake merged"), 0o644)
}

type fakeSplitter struct{ pageCount int }

func (f *fakeSplitter) Split(inPath, outDir string) ([]pdfwork.SplitPage, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	var pages []pdfwork.SplitPage
	for i := 1; i <= f.pageCount; i++ {
		path := outDir + "/page" + string(rune('0'+i)) + ".pdf"
		if err := os.WriteFile(path, []byte("%PDF-1.4 page"), 0o644); err != nil {
			return nil, err
		}
		pages = append(pages, pdfwork.SplitPage{
			PageNumber:  i,
			LocalPath:   path,
			ContentType: "application/pdf",
			SizeBytes:   20,
			SHA256:      "deadbeef",
		})
	}
	return pages, nil
}

type fakeOCR struct {
	result *ocr.Result
	err    error
	calls  int
}

func (f *fakeOCR) SubmitPage(ctx context.Context, pageName string, pdfBytes []byte) (*ocr.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newProcessor(t *testing.T, blob blobstore.Client, merger processor.Merger, splitter processor.Splitter, ocrc processor.OCRClient) (*processor.Processor, *casestore.Store) {
	t.Helper()
	db := openTestDB(t)
	log := logrus.New().WithField("test", true)
	store := casestore.New(db, inboxstore.SQLite{}, clock.RealClock{}, log)

	cfg := processor.OCRConfig{
		MaxPagesPerDoc:             10,
		TotalAttemptsBudget:        3,
		StopAfterCoversheet:        true,
		CoversheetConfidenceThresh: 0.7,
		MinCoversheetFields:        1,
	}
	p := processor.New(store, blob, merger, splitter, ocrc, clock.RealClock{}, log, cfg, t.TempDir())
	return p, store
}

func esmdPayload(t *testing.T) []byte {
	payload := map[string]interface{}{
		"documents": []map[string]interface{}{
			{"source_absolute_url": "source/doc1.pdf", "content_type": "application/pdf"},
		},
	}
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return b
}

func TestProcess_ESMDFullRunEndToEnd(t *testing.T) {
	blob := blobstore.NewFakeClient()
	blob.Objects["source/doc1.pdf"] = []byte("%PDF-1.4 source doc")

	merger := &fakeMerger{}
	splitter := &fakeSplitter{pageCount: 1}
	ocrc := &fakeOCR{result: &ocr.Result{
		Fields: map[string]ocr.Field{
			"Beneficiary Name": {Value: "Jane Doe", Confidence: 0.9, FieldType: "STRING"},
		},
		OverallDocumentConfidence: 0.9,
		CoversheetType:            "medicare part a",
	}}

	p, store := newProcessor(t, blob, merger, splitter, ocrc)

	msg := model.SourceMessage{
		MessageID:          1,
		DecisionTrackingID: "dtid-1",
		Payload:            esmdPayload(t),
		CreatedAt:          time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
	}

	err := p.Process(context.Background(), msg)
	require.NoError(t, err)
	require.Equal(t, 1, merger.called)
	require.Equal(t, 1, ocrc.calls)

	caseRow, found, err := store.LookupCaseByID(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "Jane Doe", *caseRow.BeneficiaryName)

	doc, found, err := store.LookupDocumentByCaseID(context.Background(), caseRow.CaseID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, model.StageDone, doc.OCRStatus)
	require.Equal(t, model.StageDone, doc.SplitStatus)
	require.Equal(t, model.PartA, doc.PartType)
}

func TestProcess_PortalPayloadPathSkipsOCR(t *testing.T) {
	blob := blobstore.NewFakeClient()
	merger := &fakeMerger{}
	splitter := &fakeSplitter{}
	ocrc := &fakeOCR{}

	p, store := newProcessor(t, blob, merger, splitter, ocrc)

	payload := map[string]interface{}{
		"documents": []map[string]interface{}{
			{"source_absolute_url": "source/portal-doc.pdf", "content_type": "application/pdf"},
		},
		"ocr": map[string]interface{}{
			"fields": map[string]interface{}{
				"Beneficiary Name": map[string]interface{}{"value": "John Roe", "confidence": 0.99, "field_type": "DocumentFieldType.STRING"},
			},
			"part_type": "PART_B",
		},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	blob.Objects["source/portal-doc.pdf"] = []byte("%PDF-1.4 portal doc")

	channelTypeID := 1
	msg := model.SourceMessage{
		MessageID:          2,
		DecisionTrackingID: "dtid-2",
		Payload:            raw,
		ChannelTypeID:      &channelTypeID,
		CreatedAt:          time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
	}

	err = p.Process(context.Background(), msg)
	require.NoError(t, err)
	require.Equal(t, 0, ocrc.calls)

	caseRow, found, err := store.LookupCaseByID(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "John Roe", *caseRow.BeneficiaryName)

	doc, found, err := store.LookupDocumentByCaseID(context.Background(), caseRow.CaseID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, model.PartB, doc.PartType)
}

func TestProcess_ZeroDocumentsMarksMissing(t *testing.T) {
	blob := blobstore.NewFakeClient()
	p, store := newProcessor(t, blob, &fakeMerger{}, &fakeSplitter{}, &fakeOCR{})

	msg := model.SourceMessage{
		MessageID:          3,
		DecisionTrackingID: "dtid-3",
		Payload:            []byte(`{}`),
		CreatedAt:          time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
	}

	err := p.Process(context.Background(), msg)
	require.NoError(t, err)

	caseRow, found, err := store.LookupCaseByID(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, found)

	doc, found, err := store.LookupDocumentByCaseID(context.Background(), caseRow.CaseID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, model.StageSkipped, doc.SplitStatus)
	require.Equal(t, model.StageSkipped, doc.OCRStatus)
}

func TestProcess_GracefulOCRFailureFlagsManualReview(t *testing.T) {
	blob := blobstore.NewFakeClient()
	blob.Objects["source/doc1.pdf"] = []byte("%PDF-1.4 source doc")

	ocrc := &fakeOCR{err: context.DeadlineExceeded}
	p, store := newProcessor(t, blob, &fakeMerger{}, &fakeSplitter{pageCount: 1}, ocrc)

	msg := model.SourceMessage{
		MessageID:          4,
		DecisionTrackingID: "dtid-4",
		Payload:            esmdPayload(t),
		CreatedAt:          time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
	}

	err := p.Process(context.Background(), msg)
	require.NoError(t, err)

	caseRow, _, err := store.LookupCaseByID(context.Background(), 1)
	require.NoError(t, err)
	doc, found, err := store.LookupDocumentByCaseID(context.Background(), caseRow.CaseID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, model.StageDone, doc.OCRStatus)
	require.NotNil(t, doc.ExtractedFields)
	require.Empty(t, doc.ExtractedFields.Fields)
}
