// Package localstore provides a single-file SQLite implementation of the
// result store for deployments without Postgres.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/pgx-risk-server/internal/domain"
)

// SQLiteStore implements domain.ResultStore on a local SQLite database
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (and if needed creates) the database file and schema
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS patients (
		id TEXT PRIMARY KEY,
		patient_code TEXT NOT NULL UNIQUE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS vcf_uploads (
		id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		parsing_status TEXT NOT NULL DEFAULT 'pending',
		parsing_error TEXT DEFAULT '',
		format_version TEXT DEFAULT '',
		total_variants INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS detected_variants (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		upload_id TEXT NOT NULL,
		patient_id TEXT NOT NULL,
		ord INTEGER NOT NULL,
		rsid TEXT DEFAULT '',
		gene TEXT DEFAULT '',
		chromosome TEXT DEFAULT '',
		position INTEGER,
		ref_allele TEXT DEFAULT '',
		alt_allele TEXT DEFAULT '',
		genotype TEXT DEFAULT '',
		star_allele TEXT DEFAULT '',
		quality_score REAL,
		filter_status TEXT DEFAULT '.'
	);

	CREATE TABLE IF NOT EXISTS gene_calls (
		id TEXT PRIMARY KEY,
		upload_id TEXT NOT NULL,
		patient_id TEXT NOT NULL,
		gene TEXT NOT NULL,
		diplotype TEXT DEFAULT 'Unknown',
		phenotype TEXT DEFAULT 'Unknown',
		genetic_activity_score REAL,
		copy_number INTEGER,
		has_structural_variant INTEGER NOT NULL DEFAULT 0,
		calling_method TEXT DEFAULT 'Unknown',
		raw_caller_output TEXT DEFAULT '{}',
		error TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS analysis_runs (
		id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL,
		upload_id TEXT NOT NULL,
		requested_drugs TEXT NOT NULL DEFAULT '[]',
		co_medications TEXT NOT NULL DEFAULT '[]',
		status TEXT NOT NULL DEFAULT 'queued',
		error_message TEXT DEFAULT '',
		completed_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS risk_records (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		patient_id TEXT NOT NULL,
		upload_id TEXT NOT NULL,
		drug_name TEXT NOT NULL,
		primary_gene TEXT DEFAULT '',
		diplotype TEXT DEFAULT 'Unknown',
		genetic_phenotype TEXT DEFAULT 'Unknown',
		clinical_phenotype TEXT DEFAULT 'Unknown',
		active_inhibitor TEXT DEFAULT '',
		inhibition_factor REAL NOT NULL DEFAULT 1.0,
		genetic_activity_score REAL NOT NULL DEFAULT 0,
		clinical_activity_score REAL NOT NULL DEFAULT 0,
		phenoconversion_occurred INTEGER NOT NULL DEFAULT 0,
		risk_label TEXT DEFAULT 'Unknown',
		severity TEXT DEFAULT 'none',
		confidence_score REAL NOT NULL DEFAULT 0,
		dosing_recommendation TEXT DEFAULT '',
		alternative_drugs TEXT NOT NULL DEFAULT '[]',
		guideline_version TEXT DEFAULT '',
		evidence_level TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS explanations (
		id TEXT PRIMARY KEY,
		risk_record_id TEXT NOT NULL,
		summary TEXT DEFAULT '',
		mechanism_explanation TEXT DEFAULT '',
		guideline_quote TEXT DEFAULT '',
		phenoconversion_note TEXT DEFAULT '',
		generator_used TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_variants_upload ON detected_variants(upload_id, ord);
	CREATE INDEX IF NOT EXISTS idx_gene_calls_upload ON gene_calls(upload_id);
	CREATE INDEX IF NOT EXISTS idx_risk_records_run ON risk_records(run_id);
	CREATE INDEX IF NOT EXISTS idx_risk_records_patient ON risk_records(patient_id, created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// CreatePatient inserts a patient row
func (s *SQLiteStore) CreatePatient(ctx context.Context, patient *domain.Patient) error {
	if patient.CreatedAt.IsZero() {
		patient.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO patients (id, patient_code, created_at) VALUES (?, ?, ?)",
		patient.ID.String(), patient.PatientCode, patient.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting patient: %w", err)
	}
	return nil
}

// GetPatientByCode looks up a patient by external code; nil when absent
func (s *SQLiteStore) GetPatientByCode(ctx context.Context, code string) (*domain.Patient, error) {
	var (
		p  domain.Patient
		id string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, patient_code, created_at FROM patients WHERE patient_code = ?",
		code,
	).Scan(&id, &p.PatientCode, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying patient: %w", err)
	}
	p.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parsing patient id: %w", err)
	}
	return &p, nil
}

// CreateUpload inserts an upload row
func (s *SQLiteStore) CreateUpload(ctx context.Context, upload *domain.VCFUpload) error {
	if upload.CreatedAt.IsZero() {
		upload.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vcf_uploads (id, patient_id, filename, parsing_status, parsing_error, format_version, total_variants, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		upload.ID.String(), upload.PatientID.String(), upload.Filename,
		upload.ParsingStatus, upload.ParsingError, upload.FormatVersion,
		upload.TotalVariants, upload.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting upload: %w", err)
	}
	return nil
}

// GetUpload fetches an upload by id; nil when absent
func (s *SQLiteStore) GetUpload(ctx context.Context, id uuid.UUID) (*domain.VCFUpload, error) {
	var (
		u        domain.VCFUpload
		uid, pid string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, patient_id, filename, parsing_status, parsing_error, format_version, total_variants, created_at
		FROM vcf_uploads WHERE id = ?`, id.String(),
	).Scan(&uid, &pid, &u.Filename, &u.ParsingStatus, &u.ParsingError, &u.FormatVersion, &u.TotalVariants, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying upload: %w", err)
	}
	if u.ID, err = uuid.Parse(uid); err != nil {
		return nil, fmt.Errorf("parsing upload id: %w", err)
	}
	if u.PatientID, err = uuid.Parse(pid); err != nil {
		return nil, fmt.Errorf("parsing patient id: %w", err)
	}
	return &u, nil
}

// SaveVariants stores variant records preserving their file order
func (s *SQLiteStore) SaveVariants(ctx context.Context, uploadID, patientID uuid.UUID, variants []domain.VariantRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO detected_variants (upload_id, patient_id, ord, rsid, gene, chromosome, position, ref_allele, alt_allele, genotype, star_allele, quality_score, filter_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing variant insert: %w", err)
	}
	defer stmt.Close()

	for i, v := range variants {
		if _, err := stmt.ExecContext(ctx,
			uploadID.String(), patientID.String(), i,
			v.RSID, v.Gene, v.Chromosome, nullableInt64(v.Position),
			v.RefAllele, v.AltAllele, v.Genotype, v.StarAllele,
			nullableFloat(v.QualityScore), v.FilterStatus,
		); err != nil {
			return fmt.Errorf("inserting variant %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// ListVariants returns the upload's variants in file order
func (s *SQLiteStore) ListVariants(ctx context.Context, uploadID uuid.UUID) ([]domain.VariantRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rsid, gene, chromosome, position, ref_allele, alt_allele, genotype, star_allele, quality_score, filter_status
		FROM detected_variants WHERE upload_id = ? ORDER BY ord`, uploadID.String())
	if err != nil {
		return nil, fmt.Errorf("querying variants: %w", err)
	}
	defer rows.Close()

	var variants []domain.VariantRecord
	for rows.Next() {
		var (
			v   domain.VariantRecord
			pos sql.NullInt64
			q   sql.NullFloat64
		)
		if err := rows.Scan(&v.RSID, &v.Gene, &v.Chromosome, &pos, &v.RefAllele, &v.AltAllele, &v.Genotype, &v.StarAllele, &q, &v.FilterStatus); err != nil {
			return nil, fmt.Errorf("scanning variant: %w", err)
		}
		if pos.Valid {
			p := pos.Int64
			v.Position = &p
		}
		if q.Valid {
			f := q.Float64
			v.QualityScore = &f
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

// SaveGeneCalls stores the per-gene genotyping results
func (s *SQLiteStore) SaveGeneCalls(ctx context.Context, calls []*domain.GeneCall) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, call := range calls {
		raw, err := json.Marshal(call.RawCallerOutput)
		if err != nil {
			raw = []byte("{}")
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO gene_calls (id, upload_id, patient_id, gene, diplotype, phenotype, genetic_activity_score, copy_number, has_structural_variant, calling_method, raw_caller_output, error, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			call.ID.String(), call.UploadID.String(), call.PatientID.String(),
			call.Gene, call.Diplotype, string(call.Phenotype),
			nullableFloat(call.GeneticActivityScore), nullableInt(call.CopyNumber),
			call.HasStructuralVariant, call.CallingMethod, string(raw), call.Error, call.CreatedAt,
		); err != nil {
			return fmt.Errorf("inserting gene call for %s: %w", call.Gene, err)
		}
	}

	return tx.Commit()
}

// CreateRun inserts an analysis run row
func (s *SQLiteStore) CreateRun(ctx context.Context, run *domain.AnalysisRun) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	drugs, err := json.Marshal(run.RequestedDrugs)
	if err != nil {
		return fmt.Errorf("encoding requested drugs: %w", err)
	}
	meds, err := json.Marshal(run.CoMedications)
	if err != nil {
		return fmt.Errorf("encoding co-medications: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analysis_runs (id, patient_id, upload_id, requested_drugs, co_medications, status, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.PatientID.String(), run.UploadID.String(),
		string(drugs), string(meds), string(run.Status), run.ErrorMessage, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// UpdateRunStatus moves a run through its lifecycle; terminal states also
// set completed_at
func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, id uuid.UUID, status domain.RunStatus, errMsg string) error {
	var completedAt interface{}
	if status == domain.RUN_COMPLETE || status == domain.RUN_FAILED {
		completedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE analysis_runs SET status = ?, error_message = ?, completed_at = ? WHERE id = ?",
		string(status), errMsg, completedAt, id.String(),
	)
	if err != nil {
		return fmt.Errorf("updating run status: %w", err)
	}
	return nil
}

// SaveRiskRecord appends one risk record; records are never updated
func (s *SQLiteStore) SaveRiskRecord(ctx context.Context, record *domain.RiskRecord) error {
	alternatives, err := json.Marshal(record.AlternativeDrugs)
	if err != nil {
		return fmt.Errorf("encoding alternatives: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO risk_records (
			id, run_id, patient_id, upload_id, drug_name, primary_gene, diplotype,
			genetic_phenotype, clinical_phenotype, active_inhibitor, inhibition_factor,
			genetic_activity_score, clinical_activity_score, phenoconversion_occurred,
			risk_label, severity, confidence_score, dosing_recommendation,
			alternative_drugs, guideline_version, evidence_level, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID.String(), record.RunID.String(), record.PatientID.String(), record.UploadID.String(),
		record.DrugName, record.PrimaryGene, record.Diplotype,
		string(record.GeneticPhenotype), string(record.ClinicalPhenotype),
		record.ActiveInhibitor, record.InhibitionFactor,
		record.GeneticActivityScore, record.ClinicalActivityScore, record.PhenoconversionOccurred,
		string(record.RiskLabel), string(record.Severity), record.ConfidenceScore,
		record.DosingRecommendation, string(alternatives),
		record.GuidelineVersion, record.EvidenceLevel, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting risk record: %w", err)
	}
	return nil
}

// ListRiskRecords returns a run's records in creation order
func (s *SQLiteStore) ListRiskRecords(ctx context.Context, runID uuid.UUID) ([]*domain.RiskRecord, error) {
	return s.queryRiskRecords(ctx, "run_id", runID)
}

// ListRiskRecordsByPatient returns every record for a patient, newest last
func (s *SQLiteStore) ListRiskRecordsByPatient(ctx context.Context, patientID uuid.UUID) ([]*domain.RiskRecord, error) {
	return s.queryRiskRecords(ctx, "patient_id", patientID)
}

func (s *SQLiteStore) queryRiskRecords(ctx context.Context, column string, id uuid.UUID) ([]*domain.RiskRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, run_id, patient_id, upload_id, drug_name, primary_gene, diplotype,
			genetic_phenotype, clinical_phenotype, active_inhibitor, inhibition_factor,
			genetic_activity_score, clinical_activity_score, phenoconversion_occurred,
			risk_label, severity, confidence_score, dosing_recommendation,
			alternative_drugs, guideline_version, evidence_level, created_at
		FROM risk_records WHERE %s = ? ORDER BY created_at, drug_name`, column)

	rows, err := s.db.QueryContext(ctx, query, id.String())
	if err != nil {
		return nil, fmt.Errorf("querying risk records: %w", err)
	}
	defer rows.Close()

	var records []*domain.RiskRecord
	for rows.Next() {
		record, err := scanRiskRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanRiskRecord(rows *sql.Rows) (*domain.RiskRecord, error) {
	var (
		r                          domain.RiskRecord
		id, runID, patientID, upID string
		genetic, clinical          string
		riskLabel, severity        string
		alternatives               string
	)
	err := rows.Scan(
		&id, &runID, &patientID, &upID, &r.DrugName, &r.PrimaryGene, &r.Diplotype,
		&genetic, &clinical, &r.ActiveInhibitor, &r.InhibitionFactor,
		&r.GeneticActivityScore, &r.ClinicalActivityScore, &r.PhenoconversionOccurred,
		&riskLabel, &severity, &r.ConfidenceScore, &r.DosingRecommendation,
		&alternatives, &r.GuidelineVersion, &r.EvidenceLevel, &r.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning risk record: %w", err)
	}

	r.GeneticPhenotype = domain.Phenotype(genetic)
	r.ClinicalPhenotype = domain.Phenotype(clinical)
	r.RiskLabel = domain.RiskLabel(riskLabel)
	r.Severity = domain.Severity(severity)

	if err := json.Unmarshal([]byte(alternatives), &r.AlternativeDrugs); err != nil {
		r.AlternativeDrugs = []string{}
	}

	for _, pair := range []struct {
		dst *uuid.UUID
		src string
	}{{&r.ID, id}, {&r.RunID, runID}, {&r.PatientID, patientID}, {&r.UploadID, upID}} {
		parsed, err := uuid.Parse(pair.src)
		if err != nil {
			return nil, fmt.Errorf("parsing record id: %w", err)
		}
		*pair.dst = parsed
	}

	return &r, nil
}

// SaveExplanation appends an explanation record
func (s *SQLiteStore) SaveExplanation(ctx context.Context, rec *domain.ExplanationRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO explanations (id, risk_record_id, summary, mechanism_explanation, guideline_quote, phenoconversion_note, generator_used, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.RiskRecordID.String(), rec.Summary,
		rec.MechanismExplanation, rec.GuidelineQuote, rec.PhenoconversionNote,
		rec.GeneratorUsed, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting explanation: %w", err)
	}
	return nil
}

// Close closes the store and releases resources
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullableInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
