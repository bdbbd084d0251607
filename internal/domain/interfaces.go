package domain

import (
	"context"

	"github.com/google/uuid"
)

// GenotypeCaller is the capability boundary to the external genotyping
// engine. Implementations must never return an error for per-gene failures:
// a gene that cannot be called is reported with the Unknown/nil contract in
// its GeneCallResult, keeping the pipeline alive.
type GenotypeCaller interface {
	// CallGenes genotypes the supported pharmacogenes for one sample.
	// The returned map has one entry per requested gene.
	CallGenes(ctx context.Context, sampleRef string, genes []string) map[string]GeneCallResult
}

// InteractionRegistry provides read-only access to the drug-gene
// inhibitor/inducer reference data. Lookup is case-insensitive on drug
// names and must preserve a deterministic entry order.
type InteractionRegistry interface {
	// FindInteractions returns every registry entry matching the gene and
	// any of the given co-medication names.
	FindInteractions(gene string, medications []string) []InteractionEntry
}

// ResultStore persists analysis runs and their artifacts. Risk and
// explanation records are append-only: a re-run creates new rows.
type ResultStore interface {
	CreatePatient(ctx context.Context, patient *Patient) error
	GetPatientByCode(ctx context.Context, code string) (*Patient, error)

	CreateUpload(ctx context.Context, upload *VCFUpload) error
	GetUpload(ctx context.Context, id uuid.UUID) (*VCFUpload, error)
	SaveVariants(ctx context.Context, uploadID, patientID uuid.UUID, variants []VariantRecord) error
	ListVariants(ctx context.Context, uploadID uuid.UUID) ([]VariantRecord, error)

	SaveGeneCalls(ctx context.Context, calls []*GeneCall) error

	CreateRun(ctx context.Context, run *AnalysisRun) error
	UpdateRunStatus(ctx context.Context, id uuid.UUID, status RunStatus, errMsg string) error

	SaveRiskRecord(ctx context.Context, record *RiskRecord) error
	ListRiskRecords(ctx context.Context, runID uuid.UUID) ([]*RiskRecord, error)
	ListRiskRecordsByPatient(ctx context.Context, patientID uuid.UUID) ([]*RiskRecord, error)

	SaveExplanation(ctx context.Context, rec *ExplanationRecord) error

	Close() error
}

// Explainer consumes a finished RiskRecord read-only and produces its own
// explanation record. It must never alter any field of the RiskRecord.
type Explainer interface {
	Explain(ctx context.Context, record *RiskRecord) (*ExplanationRecord, error)
}

// ConfigManager handles application configuration
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetDatabaseConfig() *DatabaseConfig
	Validate() error
	Reload() error
}
