package casestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/svcops/intake-pipeline/internal/model"
)

// UpsertDocument creates the Document row for caseID if none exists
// yet, or returns the existing one. The row is keyed by case_id
// (enforced one-per-case); on rebuild it resets split_status and
// ocr_status to NOT_STARTED.
func (s *Store) UpsertDocument(ctx context.Context, caseID int64, fileName string) (model.Document, error) {
	existing, found, err := s.lookupDocumentByCaseID(ctx, caseID)
	if err != nil {
		return model.Document{}, err
	}
	if found {
		if _, err := s.db.ExecContext(ctx, `
			UPDATE document SET split_status = `+s.dialect.Placeholder(1)+`, ocr_status = `+s.dialect.Placeholder(2)+`
			WHERE document_id = `+s.dialect.Placeholder(3),
			string(model.StageNotStarted), string(model.StageNotStarted), existing.DocumentID); err != nil {
			return model.Document{}, fmt.Errorf("reset document stages: %w", err)
		}
		existing.SplitStatus = model.StageNotStarted
		existing.OCRStatus = model.StageNotStarted
		return existing, nil
	}

	doc := model.Document{
		CaseID:      caseID,
		ExternalID:  model.ExternalIDFor(caseID),
		FileName:    fileName,
		SplitStatus: model.StageNotStarted,
		OCRStatus:   model.StageNotStarted,
		PartType:    model.PartUnknown,
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO document (case_id, external_id, file_name, split_status, ocr_status, part_type, page_count)
		VALUES (`+s.dialect.Placeholder(1)+`, `+s.dialect.Placeholder(2)+`, `+s.dialect.Placeholder(3)+`, `+s.dialect.Placeholder(4)+`, `+s.dialect.Placeholder(5)+`, `+s.dialect.Placeholder(6)+`, 0)`,
		doc.CaseID, doc.ExternalID, doc.FileName, string(doc.SplitStatus), string(doc.OCRStatus), string(doc.PartType))
	if err != nil {
		if isUniqueViolation(err) {
			// another worker inserted concurrently; return its row.
			if existing, found, lookupErr := s.lookupDocumentByCaseID(ctx, caseID); lookupErr != nil {
				return model.Document{}, lookupErr
			} else if found {
				return existing, nil
			}
		}
		return model.Document{}, fmt.Errorf("insert document: %w", err)
	}
	if id, idErr := res.LastInsertId(); idErr == nil {
		doc.DocumentID = id
	}
	return doc, nil
}

// MarkMissingDocuments applies Stage A's zero-documents special case:
// SKIPPED/SKIPPED with the MISSING_DOCUMENTS sentinel
// extracted_fields bundle.
func (s *Store) MarkMissingDocuments(ctx context.Context, documentID int64) error {
	fields, err := json.Marshal(model.MissingDocumentsFields())
	if err != nil {
		return fmt.Errorf("marshal missing-documents fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE document SET split_status = `+s.dialect.Placeholder(1)+`, ocr_status = `+s.dialect.Placeholder(2)+`, extracted_fields = `+s.dialect.Placeholder(3)+`
		WHERE document_id = `+s.dialect.Placeholder(4),
		string(model.StageSkipped), string(model.StageSkipped), fields, documentID)
	if err != nil {
		return fmt.Errorf("mark missing documents: %w", err)
	}
	return nil
}

// CommitMerge persists Stage B's outputs in one statement:
// consolidated_blob_path, file_name, file_size, processing_path.
func (s *Store) CommitMerge(ctx context.Context, documentID int64, blobPath, fileName, processingPath string, fileSizeBytes int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE document SET consolidated_blob_path = `+s.dialect.Placeholder(1)+`, file_name = `+s.dialect.Placeholder(2)+`,
		                     file_size_bytes = `+s.dialect.Placeholder(3)+`, processing_path = `+s.dialect.Placeholder(4)+`
		WHERE document_id = `+s.dialect.Placeholder(5),
		blobPath, fileName, fileSizeBytes, processingPath, documentID)
	if err != nil {
		return fmt.Errorf("commit merge: %w", err)
	}
	return nil
}

// CommitSplit persists Stage C's outputs in one statement:
// page_count, pages_metadata, split_status=DONE.
func (s *Store) CommitSplit(ctx context.Context, documentID int64, pageCount int, pages model.PagesMetadata) error {
	encoded, err := json.Marshal(pages)
	if err != nil {
		return fmt.Errorf("marshal pages metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE document SET page_count = `+s.dialect.Placeholder(1)+`, pages_metadata = `+s.dialect.Placeholder(2)+`, split_status = `+s.dialect.Placeholder(3)+`
		WHERE document_id = `+s.dialect.Placeholder(4),
		pageCount, encoded, string(model.StageDone), documentID)
	if err != nil {
		return fmt.Errorf("commit split: %w", err)
	}
	return nil
}

// CommitExtraction persists Stage D's outputs:
// ocr_metadata, extracted_fields, updated_extracted_fields,
// coversheet_page_number, part_type, ocr_status=DONE. manualReview sets
// the supplemental manual_review_required column, the graceful
// failure path taken when no in-scope page's OCR call succeeded.
func (s *Store) CommitExtraction(ctx context.Context, documentID int64, ocrMeta model.OCRMetadata, baseline, updated model.ExtractedFields, coversheetPage *int, partType model.PartType, manualReview bool) error {
	ocrMetaEnc, err := json.Marshal(ocrMeta)
	if err != nil {
		return fmt.Errorf("marshal ocr metadata: %w", err)
	}
	baselineEnc, err := json.Marshal(baseline)
	if err != nil {
		return fmt.Errorf("marshal extracted fields: %w", err)
	}
	updatedEnc, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("marshal updated extracted fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE document SET ocr_metadata = `+s.dialect.Placeholder(1)+`, extracted_fields = `+s.dialect.Placeholder(2)+`,
		                     updated_extracted_fields = `+s.dialect.Placeholder(3)+`, coversheet_page_number = `+s.dialect.Placeholder(4)+`,
		                     part_type = `+s.dialect.Placeholder(5)+`, ocr_status = `+s.dialect.Placeholder(6)+`,
		                     manual_review_required = `+s.dialect.Placeholder(7)+`
		WHERE document_id = `+s.dialect.Placeholder(8),
		ocrMetaEnc, baselineEnc, updatedEnc, coversheetPage, string(partType), string(model.StageDone), manualReview, documentID)
	if err != nil {
		return fmt.Errorf("commit extraction: %w", err)
	}
	return nil
}

func (s *Store) lookupDocumentByCaseID(ctx context.Context, caseID int64) (model.Document, bool, error) {
	var d model.Document
	var consolidatedBlobPath, processingPath sql.NullString
	var pagesMetadataRaw, ocrMetadataRaw, extractedFieldsRaw, updatedExtractedFieldsRaw []byte
	var splitStatus, ocrStatus, partType string
	var coversheetPage sql.NullInt64
	var manualReview sql.NullBool

	row := s.db.QueryRowContext(ctx, `
		SELECT document_id, case_id, external_id, file_name, consolidated_blob_path, file_size_bytes,
		       processing_path, page_count, pages_metadata, ocr_metadata, extracted_fields,
		       updated_extracted_fields, split_status, ocr_status, coversheet_page_number, part_type,
		       manual_review_required
		FROM document WHERE case_id = `+s.dialect.Placeholder(1), caseID)
	err := row.Scan(&d.DocumentID, &d.CaseID, &d.ExternalID, &d.FileName, &consolidatedBlobPath, &d.FileSizeBytes,
		&processingPath, &d.PageCount, &pagesMetadataRaw, &ocrMetadataRaw, &extractedFieldsRaw,
		&updatedExtractedFieldsRaw, &splitStatus, &ocrStatus, &coversheetPage, &partType, &manualReview)
	if err == sql.ErrNoRows {
		return model.Document{}, false, nil
	}
	if err != nil {
		return model.Document{}, false, fmt.Errorf("lookup document: %w", err)
	}

	if consolidatedBlobPath.Valid {
		d.ConsolidatedBlobPath = &consolidatedBlobPath.String
	}
	if processingPath.Valid {
		d.ProcessingPath = processingPath.String
	}
	d.SplitStatus = model.StageStatus(splitStatus)
	d.OCRStatus = model.StageStatus(ocrStatus)
	d.PartType = model.PartType(partType)
	if coversheetPage.Valid {
		v := int(coversheetPage.Int64)
		d.CoversheetPageNumber = &v
	}
	d.ManualReviewRequired = manualReview.Valid && manualReview.Bool
	if len(pagesMetadataRaw) > 0 {
		var pm model.PagesMetadata
		if err := json.Unmarshal(pagesMetadataRaw, &pm); err == nil {
			d.PagesMetadata = &pm
		}
	}
	if len(ocrMetadataRaw) > 0 {
		var om model.OCRMetadata
		if err := json.Unmarshal(ocrMetadataRaw, &om); err == nil {
			d.OCRMetadata = &om
		}
	}
	if len(extractedFieldsRaw) > 0 {
		var ef model.ExtractedFields
		if err := json.Unmarshal(extractedFieldsRaw, &ef); err == nil {
			d.ExtractedFields = &ef
		}
	}
	if len(updatedExtractedFieldsRaw) > 0 {
		var ef model.ExtractedFields
		if err := json.Unmarshal(updatedExtractedFieldsRaw, &ef); err == nil {
			d.UpdatedExtractedFields = &ef
		}
	}
	return d, true, nil
}

// LookupDocumentByCaseID exposes the Document lookup for the resume
// planner, which needs the current row to decide an entry point.
func (s *Store) LookupDocumentByCaseID(ctx context.Context, caseID int64) (model.Document, bool, error) {
	return s.lookupDocumentByCaseID(ctx, caseID)
}
