// Package repository implements the result store on PostgreSQL via pgx.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/pgx-risk-server/internal/domain"
)

// PostgresStore handles analysis result persistence
type PostgresStore struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPostgresStore creates a new Postgres-backed result store
func NewPostgresStore(db *pgxpool.Pool, logger *logrus.Logger) *PostgresStore {
	return &PostgresStore{
		db:  db,
		log: logger,
	}
}

// CreatePatient inserts a new patient
func (r *PostgresStore) CreatePatient(ctx context.Context, patient *domain.Patient) error {
	if patient.CreatedAt.IsZero() {
		patient.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO patients (id, patient_code, created_at)
		VALUES ($1, $2, $3)`

	_, err := r.db.Exec(ctx, query, patient.ID, patient.PatientCode, patient.CreatedAt)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"patient_code": patient.PatientCode,
			"error":        err,
		}).Error("Failed to create patient")
		return fmt.Errorf("creating patient: %w", err)
	}

	return nil
}

// GetPatientByCode retrieves a patient by external code; nil when absent
func (r *PostgresStore) GetPatientByCode(ctx context.Context, code string) (*domain.Patient, error) {
	query := `
		SELECT id, patient_code, created_at
		FROM patients
		WHERE patient_code = $1`

	var patient domain.Patient
	err := r.db.QueryRow(ctx, query, code).Scan(&patient.ID, &patient.PatientCode, &patient.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying patient: %w", err)
	}

	return &patient, nil
}

// CreateUpload inserts a new VCF upload record
func (r *PostgresStore) CreateUpload(ctx context.Context, upload *domain.VCFUpload) error {
	if upload.CreatedAt.IsZero() {
		upload.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO vcf_uploads (
			id, patient_id, filename, parsing_status, parsing_error,
			format_version, total_variants, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		upload.ID, upload.PatientID, upload.Filename,
		upload.ParsingStatus, upload.ParsingError,
		upload.FormatVersion, upload.TotalVariants, upload.CreatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"upload_id": upload.ID,
			"filename":  upload.Filename,
			"error":     err,
		}).Error("Failed to create upload")
		return fmt.Errorf("creating upload: %w", err)
	}

	return nil
}

// GetUpload retrieves an upload by ID; nil when absent
func (r *PostgresStore) GetUpload(ctx context.Context, id uuid.UUID) (*domain.VCFUpload, error) {
	query := `
		SELECT id, patient_id, filename, parsing_status, parsing_error,
			   format_version, total_variants, created_at
		FROM vcf_uploads
		WHERE id = $1`

	var upload domain.VCFUpload
	err := r.db.QueryRow(ctx, query, id).Scan(
		&upload.ID, &upload.PatientID, &upload.Filename,
		&upload.ParsingStatus, &upload.ParsingError,
		&upload.FormatVersion, &upload.TotalVariants, &upload.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying upload: %w", err)
	}

	return &upload, nil
}

// SaveVariants bulk-inserts variant records preserving their file order
func (r *PostgresStore) SaveVariants(ctx context.Context, uploadID, patientID uuid.UUID, variants []domain.VariantRecord) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO detected_variants (
			upload_id, patient_id, ord, rsid, gene, chromosome, position,
			ref_allele, alt_allele, genotype, star_allele, quality_score, filter_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	for i, v := range variants {
		if _, err := tx.Exec(ctx, query,
			uploadID, patientID, i,
			v.RSID, v.Gene, v.Chromosome, v.Position,
			v.RefAllele, v.AltAllele, v.Genotype, v.StarAllele,
			v.QualityScore, v.FilterStatus,
		); err != nil {
			return fmt.Errorf("inserting variant %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing variants: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"upload_id": uploadID,
		"count":     len(variants),
	}).Info("Variants saved")

	return nil
}

// ListVariants returns the upload's variants in file order
func (r *PostgresStore) ListVariants(ctx context.Context, uploadID uuid.UUID) ([]domain.VariantRecord, error) {
	query := `
		SELECT rsid, gene, chromosome, position, ref_allele, alt_allele,
			   genotype, star_allele, quality_score, filter_status
		FROM detected_variants
		WHERE upload_id = $1
		ORDER BY ord`

	rows, err := r.db.Query(ctx, query, uploadID)
	if err != nil {
		return nil, fmt.Errorf("querying variants: %w", err)
	}
	defer rows.Close()

	var variants []domain.VariantRecord
	for rows.Next() {
		var v domain.VariantRecord
		if err := rows.Scan(
			&v.RSID, &v.Gene, &v.Chromosome, &v.Position,
			&v.RefAllele, &v.AltAllele, &v.Genotype, &v.StarAllele,
			&v.QualityScore, &v.FilterStatus,
		); err != nil {
			return nil, fmt.Errorf("scanning variant: %w", err)
		}
		variants = append(variants, v)
	}

	return variants, rows.Err()
}

// SaveGeneCalls stores the per-gene genotyping results
func (r *PostgresStore) SaveGeneCalls(ctx context.Context, calls []*domain.GeneCall) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO gene_calls (
			id, upload_id, patient_id, gene, diplotype, phenotype,
			genetic_activity_score, copy_number, has_structural_variant,
			calling_method, raw_caller_output, error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	for _, call := range calls {
		if _, err := tx.Exec(ctx, query,
			call.ID, call.UploadID, call.PatientID,
			call.Gene, call.Diplotype, string(call.Phenotype),
			call.GeneticActivityScore, call.CopyNumber, call.HasStructuralVariant,
			call.CallingMethod, call.RawCallerOutput, call.Error, call.CreatedAt,
		); err != nil {
			return fmt.Errorf("inserting gene call for %s: %w", call.Gene, err)
		}
	}

	return tx.Commit(ctx)
}

// CreateRun inserts a new analysis run
func (r *PostgresStore) CreateRun(ctx context.Context, run *domain.AnalysisRun) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO analysis_runs (
			id, patient_id, upload_id, requested_drugs, co_medications,
			status, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		run.ID, run.PatientID, run.UploadID,
		run.RequestedDrugs, run.CoMedications,
		string(run.Status), run.ErrorMessage, run.CreatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"run_id": run.ID,
			"error":  err,
		}).Error("Failed to create analysis run")
		return fmt.Errorf("creating run: %w", err)
	}

	return nil
}

// UpdateRunStatus moves a run through its lifecycle; terminal states also
// set completed_at
func (r *PostgresStore) UpdateRunStatus(ctx context.Context, id uuid.UUID, status domain.RunStatus, errMsg string) error {
	var completedAt *time.Time
	if status == domain.RUN_COMPLETE || status == domain.RUN_FAILED {
		now := time.Now().UTC()
		completedAt = &now
	}

	query := `
		UPDATE analysis_runs
		SET status = $2, error_message = $3, completed_at = $4
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, string(status), errMsg, completedAt)
	if err != nil {
		return fmt.Errorf("updating run status: %w", err)
	}

	return nil
}

// SaveRiskRecord appends one risk record; records are never updated
func (r *PostgresStore) SaveRiskRecord(ctx context.Context, record *domain.RiskRecord) error {
	query := `
		INSERT INTO risk_records (
			id, run_id, patient_id, upload_id, drug_name, primary_gene, diplotype,
			genetic_phenotype, clinical_phenotype, active_inhibitor, inhibition_factor,
			genetic_activity_score, clinical_activity_score, phenoconversion_occurred,
			risk_label, severity, confidence_score, dosing_recommendation,
			alternative_drugs, guideline_version, evidence_level, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22
		)`

	_, err := r.db.Exec(ctx, query,
		record.ID, record.RunID, record.PatientID, record.UploadID,
		record.DrugName, record.PrimaryGene, record.Diplotype,
		string(record.GeneticPhenotype), string(record.ClinicalPhenotype),
		record.ActiveInhibitor, record.InhibitionFactor,
		record.GeneticActivityScore, record.ClinicalActivityScore, record.PhenoconversionOccurred,
		string(record.RiskLabel), string(record.Severity), record.ConfidenceScore,
		record.DosingRecommendation, record.AlternativeDrugs,
		record.GuidelineVersion, record.EvidenceLevel, record.CreatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"run_id": record.RunID,
			"drug":   record.DrugName,
			"error":  err,
		}).Error("Failed to save risk record")
		return fmt.Errorf("saving risk record: %w", err)
	}

	return nil
}

// ListRiskRecords returns a run's records in creation order
func (r *PostgresStore) ListRiskRecords(ctx context.Context, runID uuid.UUID) ([]*domain.RiskRecord, error) {
	return r.queryRiskRecords(ctx, "run_id", runID)
}

// ListRiskRecordsByPatient returns every record for a patient, newest last
func (r *PostgresStore) ListRiskRecordsByPatient(ctx context.Context, patientID uuid.UUID) ([]*domain.RiskRecord, error) {
	return r.queryRiskRecords(ctx, "patient_id", patientID)
}

func (r *PostgresStore) queryRiskRecords(ctx context.Context, column string, id uuid.UUID) ([]*domain.RiskRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, run_id, patient_id, upload_id, drug_name, primary_gene, diplotype,
			   genetic_phenotype, clinical_phenotype, active_inhibitor, inhibition_factor,
			   genetic_activity_score, clinical_activity_score, phenoconversion_occurred,
			   risk_label, severity, confidence_score, dosing_recommendation,
			   alternative_drugs, guideline_version, evidence_level, created_at
		FROM risk_records
		WHERE %s = $1
		ORDER BY created_at, drug_name`, column)

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("querying risk records: %w", err)
	}
	defer rows.Close()

	var records []*domain.RiskRecord
	for rows.Next() {
		var (
			rec                 domain.RiskRecord
			genetic, clinical   string
			riskLabel, severity string
		)
		if err := rows.Scan(
			&rec.ID, &rec.RunID, &rec.PatientID, &rec.UploadID,
			&rec.DrugName, &rec.PrimaryGene, &rec.Diplotype,
			&genetic, &clinical, &rec.ActiveInhibitor, &rec.InhibitionFactor,
			&rec.GeneticActivityScore, &rec.ClinicalActivityScore, &rec.PhenoconversionOccurred,
			&riskLabel, &severity, &rec.ConfidenceScore, &rec.DosingRecommendation,
			&rec.AlternativeDrugs, &rec.GuidelineVersion, &rec.EvidenceLevel, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning risk record: %w", err)
		}
		rec.GeneticPhenotype = domain.Phenotype(genetic)
		rec.ClinicalPhenotype = domain.Phenotype(clinical)
		rec.RiskLabel = domain.RiskLabel(riskLabel)
		rec.Severity = domain.Severity(severity)
		records = append(records, &rec)
	}

	return records, rows.Err()
}

// SaveExplanation appends an explanation record
func (r *PostgresStore) SaveExplanation(ctx context.Context, rec *domain.ExplanationRecord) error {
	query := `
		INSERT INTO explanations (
			id, risk_record_id, summary, mechanism_explanation,
			guideline_quote, phenoconversion_note, generator_used, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		rec.ID, rec.RiskRecordID, rec.Summary, rec.MechanismExplanation,
		rec.GuidelineQuote, rec.PhenoconversionNote, rec.GeneratorUsed, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving explanation: %w", err)
	}

	return nil
}

// Close releases the underlying pool
func (r *PostgresStore) Close() error {
	r.db.Close()
	return nil
}
