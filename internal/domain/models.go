package domain

import (
	"time"

	"github.com/google/uuid"
)

// Core Enums and Types

// Phenotype represents a metabolizer phenotype label. Most pharmacogenes use
// the PM/IM/NM/RM/UM scale; SLCO1B1 uses transporter-function labels.
type Phenotype string

const (
	PM      Phenotype = "PM"
	IM      Phenotype = "IM"
	NM      Phenotype = "NM"
	RM      Phenotype = "RM"
	UM      Phenotype = "UM"
	UNKNOWN Phenotype = "Unknown"

	POOR_FUNCTION      Phenotype = "Poor Function"
	DECREASED_FUNCTION Phenotype = "Decreased Function"
	NORMAL_FUNCTION    Phenotype = "Normal Function"
)

// String returns the phenotype label
func (p Phenotype) String() string {
	return string(p)
}

// RiskLabel represents the drug-risk classification categories
type RiskLabel string

const (
	RISK_SAFE        RiskLabel = "Safe"
	RISK_ADJUST      RiskLabel = "Adjust Dosage"
	RISK_INEFFECTIVE RiskLabel = "Ineffective"
	RISK_TOXIC       RiskLabel = "Toxic"
	RISK_UNKNOWN     RiskLabel = "Unknown"
)

// String returns the risk label text
func (r RiskLabel) String() string {
	return string(r)
}

// Severity represents the clinical severity tier of a risk finding
type Severity string

const (
	SEVERITY_NONE     Severity = "none"
	SEVERITY_LOW      Severity = "low"
	SEVERITY_MODERATE Severity = "moderate"
	SEVERITY_HIGH     Severity = "high"
	SEVERITY_CRITICAL Severity = "critical"
)

// InteractionType represents the direction of a drug-gene interaction
type InteractionType string

const (
	INHIBITOR InteractionType = "inhibitor"
	INDUCER   InteractionType = "inducer"
)

// RunStatus represents the lifecycle state of an analysis run
type RunStatus string

const (
	RUN_QUEUED     RunStatus = "queued"
	RUN_PROCESSING RunStatus = "processing"
	RUN_COMPLETE   RunStatus = "complete"
	RUN_FAILED     RunStatus = "failed"
)

// Core Data Models

// VariantRecord represents one genomic call parsed from a VCF data row.
// Records are immutable once parsed and keep their file order.
type VariantRecord struct {
	RSID         string   `json:"rsid,omitempty"`
	Gene         string   `json:"gene,omitempty"`
	Chromosome   string   `json:"chromosome"`
	Position     *int64   `json:"position"`
	RefAllele    string   `json:"ref_allele"`
	AltAllele    string   `json:"alt_allele"`
	Genotype     string   `json:"genotype,omitempty"`
	StarAllele   string   `json:"star_allele,omitempty"`
	QualityScore *float64 `json:"quality_score"`
	FilterStatus string   `json:"filter_status"`
}

// ParseResult represents the outcome of parsing one VCF upload
type ParseResult struct {
	Success       bool            `json:"success"`
	Variants      []VariantRecord `json:"variants,omitempty"`
	FormatVersion string          `json:"format_version,omitempty"`
	TotalVariants int             `json:"total_variants"`
	Error         string          `json:"error,omitempty"`
}

// GeneCall represents the per-gene, per-sample genotyping result: the
// diplotype and phenotype from the external caller plus the derived genetic
// activity score. Read-only after creation.
type GeneCall struct {
	ID                   uuid.UUID              `json:"id"`
	UploadID             uuid.UUID              `json:"upload_id"`
	PatientID            uuid.UUID              `json:"patient_id"`
	Gene                 string                 `json:"gene"`
	Diplotype            string                 `json:"diplotype"`
	Phenotype            Phenotype              `json:"phenotype"`
	GeneticActivityScore *float64               `json:"genetic_activity_score"`
	CopyNumber           *int                   `json:"copy_number"`
	HasStructuralVariant bool                   `json:"has_structural_variant"`
	CallingMethod        string                 `json:"calling_method"`
	RawCallerOutput      map[string]interface{} `json:"raw_caller_output,omitempty"`
	Error                string                 `json:"error,omitempty"`
	CreatedAt            time.Time              `json:"created_at"`
}

// InteractionEntry represents one drug-gene interaction from the
// inhibitor/inducer registry. A factor of 1.0 denotes no effect. Static
// reference data, never created by the pipeline.
type InteractionEntry struct {
	DrugName string          `json:"drug_name"`
	Gene     string          `json:"gene"`
	Type     InteractionType `json:"interaction_type"`
	Strength string          `json:"strength"`
	Factor   float64         `json:"factor"`
	Source   string          `json:"source,omitempty"`
}

// PhenoconversionResult represents the clinical (effective) phenotype after
// accounting for co-administered inhibitors/inducers
type PhenoconversionResult struct {
	ClinicalActivityScore float64   `json:"clinical_activity_score"`
	ClinicalPhenotype     Phenotype `json:"clinical_phenotype"`
	Occurred              bool      `json:"phenoconversion_occurred"`
	ActiveAgent           string    `json:"active_agent,omitempty"`
	Factor                float64   `json:"factor_applied"`
}

// CPICDecision represents one entry of the drug x phenotype decision table
type CPICDecision struct {
	RiskLabel        RiskLabel `json:"risk_label"`
	Severity         Severity  `json:"severity"`
	Dosing           string    `json:"dosing"`
	AlternativeDrugs []string  `json:"alternative_drugs"`
	GuidelineVersion string    `json:"guideline_version,omitempty"`
	EvidenceLevel    string    `json:"evidence_level,omitempty"`
}

// RiskRecord is the pipeline's terminal artifact for one (patient, drug)
// pair. Created once per drug per analysis run and never mutated; a re-run
// produces a new record.
type RiskRecord struct {
	ID                      uuid.UUID `json:"id"`
	RunID                   uuid.UUID `json:"run_id"`
	PatientID               uuid.UUID `json:"patient_id"`
	UploadID                uuid.UUID `json:"upload_id"`
	DrugName                string    `json:"drug_name"`
	PrimaryGene             string    `json:"primary_gene"`
	Diplotype               string    `json:"diplotype"`
	GeneticPhenotype        Phenotype `json:"genetic_phenotype"`
	ClinicalPhenotype       Phenotype `json:"clinical_phenotype"`
	ActiveInhibitor         string    `json:"active_inhibitor,omitempty"`
	InhibitionFactor        float64   `json:"inhibition_factor"`
	GeneticActivityScore    float64   `json:"genetic_activity_score"`
	ClinicalActivityScore   float64   `json:"clinical_activity_score"`
	PhenoconversionOccurred bool      `json:"phenoconversion_occurred"`
	RiskLabel               RiskLabel `json:"risk_label"`
	Severity                Severity  `json:"severity"`
	ConfidenceScore         float64   `json:"confidence_score"`
	DosingRecommendation    string    `json:"dosing_recommendation"`
	AlternativeDrugs        []string  `json:"alternative_drugs"`
	GuidelineVersion        string    `json:"guideline_version,omitempty"`
	EvidenceLevel           string    `json:"evidence_level,omitempty"`
	CreatedAt               time.Time `json:"created_at"`
}

// AnalysisRun represents one pipeline execution for a patient/upload and a
// set of requested drugs. A run either completes with all per-drug records
// or is marked failed with a captured error message.
type AnalysisRun struct {
	ID             uuid.UUID  `json:"id"`
	PatientID      uuid.UUID  `json:"patient_id"`
	UploadID       uuid.UUID  `json:"upload_id"`
	RequestedDrugs []string   `json:"requested_drugs"`
	CoMedications  []string   `json:"co_medications"`
	Status         RunStatus  `json:"status"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ExplanationRecord is the explanation generator's own artifact. It holds a
// read-only reference to its RiskRecord by id and never writes back into it.
type ExplanationRecord struct {
	ID                   uuid.UUID `json:"id"`
	RiskRecordID         uuid.UUID `json:"risk_record_id"`
	Summary              string    `json:"summary"`
	MechanismExplanation string    `json:"mechanism_explanation"`
	GuidelineQuote       string    `json:"guideline_quote"`
	PhenoconversionNote  string    `json:"phenoconversion_note"`
	GeneratorUsed        string    `json:"generator_used,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// Upload Models

// VCFUpload represents one uploaded variant file and its parsing status
type VCFUpload struct {
	ID            uuid.UUID `json:"id"`
	PatientID     uuid.UUID `json:"patient_id"`
	Filename      string    `json:"filename"`
	ParsingStatus string    `json:"parsing_status"`
	ParsingError  string    `json:"parsing_error,omitempty"`
	FormatVersion string    `json:"format_version,omitempty"`
	TotalVariants int       `json:"total_variants"`
	CreatedAt     time.Time `json:"created_at"`
}

// Patient represents a patient identified by an external code
type Patient struct {
	ID          uuid.UUID `json:"id"`
	PatientCode string    `json:"patient_code"`
	CreatedAt   time.Time `json:"created_at"`
}

// External Caller Models

// GeneCallResult is the per-gene shape returned by the external genotype
// caller. Unavailability is represented by the Unknown/nil contract, with
// the error string retained only for diagnostics.
type GeneCallResult struct {
	Diplotype            string                 `json:"diplotype"`
	Phenotype            string                 `json:"phenotype"`
	CopyNumber           *int                   `json:"copy_number"`
	HasStructuralVariant bool                   `json:"has_structural_variant"`
	CallingMethod        string                 `json:"calling_method"`
	RawOutput            map[string]interface{} `json:"raw_output,omitempty"`
	Error                string                 `json:"error,omitempty"`
}
