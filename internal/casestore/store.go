package casestore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/svcops/intake-pipeline/internal/clock"
	"github.com/svcops/intake-pipeline/internal/inboxstore"
	"github.com/svcops/intake-pipeline/internal/model"
)

// Store implements the Case/Document upsert protocol over
// a shared *sql.DB. It reuses inboxstore.Dialect rather than defining
// a second placeholder abstraction, since both stores speak to the
// same database under the same two engines.
type Store struct {
	db      *sql.DB
	dialect inboxstore.Dialect
	clock   clock.Clock
	log     *logrus.Entry
}

func New(db *sql.DB, dialect inboxstore.Dialect, clk clock.Clock, log *logrus.Entry) *Store {
	return &Store{db: db, dialect: dialect, clock: clk, log: log}
}

// DB exposes the underlying pool for callers needing the same
// connection (test fixtures, migrations).
func (s *Store) DB() *sql.DB { return s.db }

// UpsertCase implements a four-step protocol: look up by
// decision_tracking_id; if absent, generate a candidate external_id
// (widening its digit count across up to 100 attempts) and insert; on
// a unique-index conflict (another worker won the race), roll back and
// re-select.
func (s *Store) UpsertCase(ctx context.Context, decisionTrackingID string, seed model.Case) (model.Case, error) {
	if existing, found, err := s.lookupByDecisionTrackingID(ctx, decisionTrackingID); err != nil {
		return model.Case{}, err
	} else if found {
		return existing, nil
	}

	ids := newIDSource(s.clock.Now())
	year := s.clock.Now().UTC().Year()

	for attempt := 0; attempt < maxExternalIDRetries; attempt++ {
		seed.ExternalID = ids.candidate(year, attempt)
		seed.DecisionTrackingID = decisionTrackingID

		created, err := s.tryInsertCase(ctx, seed)
		if err == nil {
			return created, nil
		}
		if !isUniqueViolation(err) {
			return model.Case{}, fmt.Errorf("insert case: %w", err)
		}

		// Either the external_id collided (retry with a wider suffix) or
		// decision_tracking_id collided (another worker won; re-select).
		if existing, found, lookupErr := s.lookupByDecisionTrackingID(ctx, decisionTrackingID); lookupErr != nil {
			return model.Case{}, lookupErr
		} else if found {
			return existing, nil
		}
		s.log.WithField("attempt", attempt).Debug("external_id collision, widening suffix and retrying")
	}
	return model.Case{}, fmt.Errorf("case upsert: exhausted %d external_id retries for %s", maxExternalIDRetries, decisionTrackingID)
}

func (s *Store) lookupByDecisionTrackingID(ctx context.Context, decisionTrackingID string) (model.Case, bool, error) {
	var c model.Case
	var channelSpecificID, beneficiaryName, beneficiaryMBI, providerName, providerNPI sql.NullString
	var submissionType sql.NullString
	var channelTypeID sql.NullInt64

	row := s.db.QueryRowContext(ctx, `
		SELECT case_id, external_id, decision_tracking_id, channel_specific_id, received_date, due_date,
		       submission_type, channel_type_id, detailed_status,
		       beneficiary_name, beneficiary_mbi, provider_name, provider_npi
		FROM "case" WHERE decision_tracking_id = `+s.dialect.Placeholder(1), decisionTrackingID)

	err := row.Scan(&c.CaseID, &c.ExternalID, &c.DecisionTrackingID, &channelSpecificID, &c.ReceivedDate, &c.DueDate,
		&submissionType, &channelTypeID, &c.DetailedStatus,
		&beneficiaryName, &beneficiaryMBI, &providerName, &providerNPI)
	if err == sql.ErrNoRows {
		return model.Case{}, false, nil
	}
	if err != nil {
		return model.Case{}, false, fmt.Errorf("lookup case: %w", err)
	}

	if channelSpecificID.Valid {
		c.ChannelSpecificID = &channelSpecificID.String
	}
	if beneficiaryName.Valid {
		c.BeneficiaryName = &beneficiaryName.String
	}
	if beneficiaryMBI.Valid {
		c.BeneficiaryMBI = &beneficiaryMBI.String
	}
	if providerName.Valid {
		c.ProviderName = &providerName.String
	}
	if providerNPI.Valid {
		c.ProviderNPI = &providerNPI.String
	}
	if submissionType.Valid {
		st := model.SubmissionType(submissionType.String)
		c.SubmissionType = &st
	}
	if channelTypeID.Valid {
		v := int(channelTypeID.Int64)
		c.ChannelTypeID = &v
	}
	return c, true, nil
}

func (s *Store) tryInsertCase(ctx context.Context, c model.Case) (model.Case, error) {
	var submissionType *string
	if c.SubmissionType != nil {
		v := string(*c.SubmissionType)
		submissionType = &v
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO "case" (external_id, decision_tracking_id, channel_specific_id, received_date, due_date,
		                     submission_type, channel_type_id, detailed_status,
		                     beneficiary_name, beneficiary_mbi, provider_name, provider_npi)
		VALUES (`+s.dialect.Placeholder(1)+`, `+s.dialect.Placeholder(2)+`, `+s.dialect.Placeholder(3)+`, `+s.dialect.Placeholder(4)+`, `+s.dialect.Placeholder(5)+`,
		        `+s.dialect.Placeholder(6)+`, `+s.dialect.Placeholder(7)+`, `+s.dialect.Placeholder(8)+`,
		        `+s.dialect.Placeholder(9)+`, `+s.dialect.Placeholder(10)+`, `+s.dialect.Placeholder(11)+`, `+s.dialect.Placeholder(12)+`)`,
		c.ExternalID, c.DecisionTrackingID, c.ChannelSpecificID, c.ReceivedDate, c.DueDate,
		submissionType, c.ChannelTypeID, c.DetailedStatus,
		c.BeneficiaryName, c.BeneficiaryMBI, c.ProviderName, c.ProviderNPI)
	if err != nil {
		return model.Case{}, err
	}
	id, idErr := res.LastInsertId()
	if idErr == nil {
		c.CaseID = id
	}
	return c, nil
}

// SyncPlaceholderFields applies Stage D's "only overwrite a TBD
// sentinel" rule for the four extraction-derived columns, and
// recomputes due_date if submission type changed.
func (s *Store) SyncPlaceholderFields(ctx context.Context, caseID int64, beneficiaryName, beneficiaryMBI, providerName, providerNPI *string, submissionType *model.SubmissionType) error {
	current, found, err := s.lookupByCaseID(ctx, caseID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("sync placeholder fields: case %d not found", caseID)
	}

	next := current
	dueDateChanged := false

	if isTBD(current.BeneficiaryName) && beneficiaryName != nil {
		next.BeneficiaryName = beneficiaryName
	}
	if isTBD(current.BeneficiaryMBI) && beneficiaryMBI != nil {
		next.BeneficiaryMBI = beneficiaryMBI
	}
	if isTBD(current.ProviderName) && providerName != nil {
		next.ProviderName = providerName
	}
	if isTBD(current.ProviderNPI) && providerNPI != nil {
		next.ProviderNPI = providerNPI
	}
	if submissionType != nil && (current.SubmissionType == nil || *current.SubmissionType != *submissionType) {
		next.SubmissionType = submissionType
		dueDateChanged = true
	}
	if dueDateChanged {
		next.DueDate = model.ComputeDueDate(next.ReceivedDate, next.SubmissionType)
	}

	var nextSubmissionType *string
	if next.SubmissionType != nil {
		v := string(*next.SubmissionType)
		nextSubmissionType = &v
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE "case" SET beneficiary_name = `+s.dialect.Placeholder(1)+`, beneficiary_mbi = `+s.dialect.Placeholder(2)+`,
		                  provider_name = `+s.dialect.Placeholder(3)+`, provider_npi = `+s.dialect.Placeholder(4)+`,
		                  submission_type = `+s.dialect.Placeholder(5)+`, due_date = `+s.dialect.Placeholder(6)+`
		WHERE case_id = `+s.dialect.Placeholder(7),
		next.BeneficiaryName, next.BeneficiaryMBI, next.ProviderName, next.ProviderNPI, nextSubmissionType, next.DueDate, caseID)
	if err != nil {
		return fmt.Errorf("sync placeholder fields: %w", err)
	}
	return nil
}

func (s *Store) lookupByCaseID(ctx context.Context, caseID int64) (model.Case, bool, error) {
	var c model.Case
	var channelSpecificID, beneficiaryName, beneficiaryMBI, providerName, providerNPI sql.NullString
	var submissionType sql.NullString
	var channelTypeID sql.NullInt64

	row := s.db.QueryRowContext(ctx, `
		SELECT case_id, external_id, decision_tracking_id, channel_specific_id, received_date, due_date,
		       submission_type, channel_type_id, detailed_status,
		       beneficiary_name, beneficiary_mbi, provider_name, provider_npi
		FROM "case" WHERE case_id = `+s.dialect.Placeholder(1), caseID)
	err := row.Scan(&c.CaseID, &c.ExternalID, &c.DecisionTrackingID, &channelSpecificID, &c.ReceivedDate, &c.DueDate,
		&submissionType, &channelTypeID, &c.DetailedStatus,
		&beneficiaryName, &beneficiaryMBI, &providerName, &providerNPI)
	if err == sql.ErrNoRows {
		return model.Case{}, false, nil
	}
	if err != nil {
		return model.Case{}, false, fmt.Errorf("lookup case by id: %w", err)
	}
	if channelSpecificID.Valid {
		c.ChannelSpecificID = &channelSpecificID.String
	}
	if beneficiaryName.Valid {
		c.BeneficiaryName = &beneficiaryName.String
	}
	if beneficiaryMBI.Valid {
		c.BeneficiaryMBI = &beneficiaryMBI.String
	}
	if providerName.Valid {
		c.ProviderName = &providerName.String
	}
	if providerNPI.Valid {
		c.ProviderNPI = &providerNPI.String
	}
	if submissionType.Valid {
		st := model.SubmissionType(submissionType.String)
		c.SubmissionType = &st
	}
	if channelTypeID.Valid {
		v := int(channelTypeID.Int64)
		c.ChannelTypeID = &v
	}
	return c, true, nil
}

// LookupCaseByID exposes the Case lookup for callers (Resume Planner,
// Document Processor) that already have a case_id in hand.
func (s *Store) LookupCaseByID(ctx context.Context, caseID int64) (model.Case, bool, error) {
	return s.lookupByCaseID(ctx, caseID)
}

func isTBD(v *string) bool {
	return v != nil && *v == model.TBDSentinel
}
