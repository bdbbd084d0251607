package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgx-risk-server/internal/domain"
	"github.com/pgx-risk-server/internal/registry"
	"github.com/pgx-risk-server/pkg/caller"
)

// memoryStore is a minimal in-memory ResultStore for pipeline tests
type memoryStore struct {
	geneCalls   []*domain.GeneCall
	riskRecords []*domain.RiskRecord
	statuses    []domain.RunStatus
	lastError   string
}

func (m *memoryStore) CreatePatient(context.Context, *domain.Patient) error { return nil }
func (m *memoryStore) GetPatientByCode(context.Context, string) (*domain.Patient, error) {
	return nil, nil
}
func (m *memoryStore) CreateUpload(context.Context, *domain.VCFUpload) error { return nil }
func (m *memoryStore) GetUpload(context.Context, uuid.UUID) (*domain.VCFUpload, error) {
	return nil, nil
}
func (m *memoryStore) SaveVariants(context.Context, uuid.UUID, uuid.UUID, []domain.VariantRecord) error {
	return nil
}
func (m *memoryStore) ListVariants(context.Context, uuid.UUID) ([]domain.VariantRecord, error) {
	return nil, nil
}
func (m *memoryStore) SaveGeneCalls(_ context.Context, calls []*domain.GeneCall) error {
	m.geneCalls = append(m.geneCalls, calls...)
	return nil
}
func (m *memoryStore) CreateRun(context.Context, *domain.AnalysisRun) error { return nil }
func (m *memoryStore) UpdateRunStatus(_ context.Context, _ uuid.UUID, status domain.RunStatus, errMsg string) error {
	m.statuses = append(m.statuses, status)
	m.lastError = errMsg
	return nil
}
func (m *memoryStore) SaveRiskRecord(_ context.Context, record *domain.RiskRecord) error {
	m.riskRecords = append(m.riskRecords, record)
	return nil
}
func (m *memoryStore) ListRiskRecords(context.Context, uuid.UUID) ([]*domain.RiskRecord, error) {
	return m.riskRecords, nil
}
func (m *memoryStore) ListRiskRecordsByPatient(context.Context, uuid.UUID) ([]*domain.RiskRecord, error) {
	return m.riskRecords, nil
}
func (m *memoryStore) SaveExplanation(context.Context, *domain.ExplanationRecord) error { return nil }
func (m *memoryStore) Close() error                                                     { return nil }

func newTestRun(drugs, coMeds []string) *domain.AnalysisRun {
	return &domain.AnalysisRun{
		ID:             uuid.New(),
		PatientID:      uuid.New(),
		UploadID:       uuid.New(),
		RequestedDrugs: drugs,
		CoMedications:  coMeds,
		Status:         domain.RUN_QUEUED,
		CreatedAt:      time.Now().UTC(),
	}
}

func staticCaller(results map[string]domain.GeneCallResult) *caller.StaticCaller {
	return &caller.StaticCaller{Results: results}
}

func TestPipelineSingleDrug(t *testing.T) {
	store := &memoryStore{}
	genotypes := staticCaller(map[string]domain.GeneCallResult{
		"CYP2D6": {Diplotype: "*4/*4", CallingMethod: "astrolabe"},
	})
	pipeline := NewPipeline(newTestLogger(), genotypes, store, registry.NewInMemoryRegistry())

	run := newTestRun([]string{"CODEINE"}, nil)
	results, err := pipeline.Run(context.Background(), run, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	result := results[0]
	assert.Equal(t, "CODEINE", result.Drug)
	assert.Equal(t, domain.RISK_INEFFECTIVE, result.RiskAssessment.RiskLabel)
	assert.Equal(t, domain.SEVERITY_HIGH, result.RiskAssessment.Severity)
	assert.Equal(t, "CYP2D6", result.Profile.PrimaryGene)
	assert.Equal(t, "*4/*4", result.Profile.Diplotype)
	assert.Equal(t, domain.PM, result.Profile.Phenotype)

	require.Len(t, store.riskRecords, 1)
	record := store.riskRecords[0]
	assert.Equal(t, run.ID, record.RunID)
	assert.Equal(t, 0.0, record.GeneticActivityScore)
	assert.Equal(t, domain.PM, record.GeneticPhenotype)
	assert.False(t, record.PhenoconversionOccurred)

	assert.Equal(t, []domain.RunStatus{domain.RUN_PROCESSING, domain.RUN_COMPLETE}, store.statuses)
}

func TestPipelinePhenoconversion(t *testing.T) {
	store := &memoryStore{}
	genotypes := staticCaller(map[string]domain.GeneCallResult{
		"CYP2D6": {Diplotype: "*1/*1", CallingMethod: "astrolabe"},
	})
	pipeline := NewPipeline(newTestLogger(), genotypes, store, registry.NewInMemoryRegistry())

	run := newTestRun([]string{"CODEINE"}, []string{"paroxetine"})
	results, err := pipeline.Run(context.Background(), run, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	record := store.riskRecords[0]
	assert.Equal(t, domain.NM, record.GeneticPhenotype)
	assert.Equal(t, domain.PM, record.ClinicalPhenotype)
	assert.True(t, record.PhenoconversionOccurred)
	assert.Equal(t, "PAROXETINE", record.ActiveInhibitor)
	assert.Equal(t, 0.0, record.ClinicalActivityScore)

	// the decision follows the clinical phenotype, not the genetic one
	assert.Equal(t, domain.RISK_INEFFECTIVE, record.RiskLabel)
	assert.Contains(t, results[0].Recommendation.PhenoconversionNote, "genotypically NM but phenotypically PM")
}

func TestPipelineAzathioprineWorstOfTwoGenes(t *testing.T) {
	t.Run("NUDT15 more severe", func(t *testing.T) {
		store := &memoryStore{}
		genotypes := staticCaller(map[string]domain.GeneCallResult{
			"TPMT":   {Diplotype: "*1/*3A", CallingMethod: "astrolabe"}, // IM
			"NUDT15": {Diplotype: "*3/*3", CallingMethod: "astrolabe"},  // PM
		})
		pipeline := NewPipeline(newTestLogger(), genotypes, store, registry.NewInMemoryRegistry())

		run := newTestRun([]string{"AZATHIOPRINE"}, nil)
		_, err := pipeline.Run(context.Background(), run, nil)
		require.NoError(t, err)

		record := store.riskRecords[0]
		assert.Equal(t, "TPMT+NUDT15", record.PrimaryGene)
		assert.Equal(t, "*3/*3", record.Diplotype, "the worse gene's call is kept")
		assert.Equal(t, domain.RISK_TOXIC, record.RiskLabel)
		assert.Equal(t, domain.SEVERITY_CRITICAL, record.Severity)
	})

	t.Run("equal severity keeps TPMT", func(t *testing.T) {
		store := &memoryStore{}
		genotypes := staticCaller(map[string]domain.GeneCallResult{
			"TPMT":   {Diplotype: "*1/*3A", CallingMethod: "astrolabe"}, // IM
			"NUDT15": {Diplotype: "*1/*2", CallingMethod: "astrolabe"},  // IM
		})
		pipeline := NewPipeline(newTestLogger(), genotypes, store, registry.NewInMemoryRegistry())

		run := newTestRun([]string{"AZATHIOPRINE"}, nil)
		_, err := pipeline.Run(context.Background(), run, nil)
		require.NoError(t, err)

		record := store.riskRecords[0]
		assert.Equal(t, "TPMT+NUDT15", record.PrimaryGene)
		assert.Equal(t, "*1/*3A", record.Diplotype)
	})
}

func TestPipelineWarfarinVKORC1Note(t *testing.T) {
	variants := []domain.VariantRecord{
		{RSID: "rs9923231", Gene: "VKORC1", Genotype: "1/1", FilterStatus: "PASS"},
		{RSID: "rs1057910", Gene: "CYP2C9", Genotype: "0/1", FilterStatus: "PASS"},
	}

	store := &memoryStore{}
	genotypes := staticCaller(map[string]domain.GeneCallResult{
		"CYP2C9": {Diplotype: "*1/*3", CallingMethod: "astrolabe"},
	})
	pipeline := NewPipeline(newTestLogger(), genotypes, store, registry.NewInMemoryRegistry())

	run := newTestRun([]string{"WARFARIN"}, nil)
	results, err := pipeline.Run(context.Background(), run, variants)
	require.NoError(t, err)

	record := store.riskRecords[0]
	assert.Contains(t, record.DosingRecommendation, "VKORC1 rs9923231: AA genotype (High Sensitivity)")
	// the note supplements the CPIC text, never replaces it
	assert.True(t, strings.HasPrefix(record.DosingRecommendation, "Consider 10-25% dose reduction"))

	assert.Equal(t, domain.IM, results[0].Profile.Phenotype)
}

func TestPipelineDegradedCaller(t *testing.T) {
	store := &memoryStore{}
	pipeline := NewPipeline(newTestLogger(), caller.NewStubCaller(), store, registry.NewInMemoryRegistry())

	run := newTestRun([]string{"CODEINE", "SIMVASTATIN"}, nil)
	results, err := pipeline.Run(context.Background(), run, nil)
	require.NoError(t, err, "caller unavailability must not fail the run")
	require.Len(t, results, 2)

	for _, record := range store.riskRecords {
		assert.Equal(t, "Unknown", record.Diplotype)
		assert.Equal(t, domain.RISK_UNKNOWN, record.RiskLabel)
		assert.LessOrEqual(t, record.ConfidenceScore, 0.5, "degraded calls must be penalized")
	}

	assert.Equal(t, []domain.RunStatus{domain.RUN_PROCESSING, domain.RUN_COMPLETE}, store.statuses)
}

func TestPipelineGeneCallsPersisted(t *testing.T) {
	store := &memoryStore{}
	genotypes := staticCaller(map[string]domain.GeneCallResult{
		"CYP2D6": {Diplotype: "*1/*4", CallingMethod: "astrolabe"},
	})
	pipeline := NewPipeline(newTestLogger(), genotypes, store, registry.NewInMemoryRegistry())

	run := newTestRun([]string{"CODEINE"}, nil)
	_, err := pipeline.Run(context.Background(), run, nil)
	require.NoError(t, err)

	require.Len(t, store.geneCalls, len(SupportedGenes))

	byGene := make(map[string]*domain.GeneCall)
	for _, call := range store.geneCalls {
		byGene[call.Gene] = call
	}

	cyp2d6 := byGene["CYP2D6"]
	require.NotNil(t, cyp2d6)
	assert.Equal(t, "*1/*4", cyp2d6.Diplotype)
	require.NotNil(t, cyp2d6.GeneticActivityScore)
	assert.Equal(t, 1.0, *cyp2d6.GeneticActivityScore)
	assert.Equal(t, domain.IM, cyp2d6.Phenotype, "phenotype is derived when the caller omits it")

	// uncalled genes persist as Unknown rather than being dropped
	tpmt := byGene["TPMT"]
	require.NotNil(t, tpmt)
	assert.Equal(t, "Unknown", tpmt.Diplotype)
	assert.Equal(t, domain.UNKNOWN, tpmt.Phenotype)
}

func TestPipelineRerunIsDeterministic(t *testing.T) {
	genotypes := staticCaller(map[string]domain.GeneCallResult{
		"CYP2C19": {Diplotype: "*2/*2", CallingMethod: "astrolabe"},
	})

	var labels []domain.RiskLabel
	for i := 0; i < 2; i++ {
		store := &memoryStore{}
		pipeline := NewPipeline(newTestLogger(), genotypes, store, registry.NewInMemoryRegistry())
		run := newTestRun([]string{"CLOPIDOGREL"}, nil)

		_, err := pipeline.Run(context.Background(), run, nil)
		require.NoError(t, err)
		labels = append(labels, store.riskRecords[0].RiskLabel)
	}

	assert.Equal(t, labels[0], labels[1])
	assert.Equal(t, domain.RISK_INEFFECTIVE, labels[0])
}
