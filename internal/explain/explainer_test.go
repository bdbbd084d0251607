package explain

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgx-risk-server/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func sampleRecord() *domain.RiskRecord {
	return &domain.RiskRecord{
		ID:                    uuid.New(),
		DrugName:              "CODEINE",
		PrimaryGene:           "CYP2D6",
		Diplotype:             "*4/*4",
		GeneticPhenotype:      domain.PM,
		ClinicalPhenotype:     domain.PM,
		InhibitionFactor:      1.0,
		GeneticActivityScore:  0.0,
		ClinicalActivityScore: 0.0,
		RiskLabel:             domain.RISK_INEFFECTIVE,
		Severity:              domain.SEVERITY_HIGH,
		ConfidenceScore:       0.9,
		DosingRecommendation:  "Avoid codeine. Use non-opioid analgesic.",
		AlternativeDrugs:      []string{"MORPHINE"},
		GuidelineVersion:      "2022",
		EvidenceLevel:         "A",
	}
}

func TestExplainBasicRecord(t *testing.T) {
	explainer := NewTemplateExplainer(testLogger())

	record := sampleRecord()
	explanation, err := explainer.Explain(context.Background(), record)
	require.NoError(t, err)

	assert.Equal(t, record.ID, explanation.RiskRecordID)
	assert.Equal(t, "template", explanation.GeneratorUsed)
	assert.Contains(t, explanation.Summary, "Codeine")
	assert.Contains(t, explanation.Summary, "CYP2D6")
	assert.Contains(t, explanation.Summary, "*4/*4")
	assert.Contains(t, explanation.MechanismExplanation, "PM")
	assert.Contains(t, explanation.MechanismExplanation, "MORPHINE")
	assert.Equal(t, record.DosingRecommendation, explanation.GuidelineQuote)
	assert.Empty(t, explanation.PhenoconversionNote)
}

func TestExplainPhenoconvertedRecord(t *testing.T) {
	explainer := NewTemplateExplainer(testLogger())

	record := sampleRecord()
	record.GeneticPhenotype = domain.NM
	record.ClinicalPhenotype = domain.PM
	record.PhenoconversionOccurred = true
	record.ActiveInhibitor = "PAROXETINE"
	record.InhibitionFactor = 0.0

	explanation, err := explainer.Explain(context.Background(), record)
	require.NoError(t, err)

	assert.Equal(t, "Patient is genotypically NM but phenotypically PM due to PAROXETINE.", explanation.PhenoconversionNote)
	assert.Contains(t, explanation.MechanismExplanation, "Paroxetine")
}

func TestExplainLowConfidenceNote(t *testing.T) {
	explainer := NewTemplateExplainer(testLogger())

	record := sampleRecord()
	record.ConfidenceScore = 0.3

	explanation, err := explainer.Explain(context.Background(), record)
	require.NoError(t, err)
	assert.Contains(t, explanation.Summary, "confirmatory genotyping is advised")
}

func TestExplainNeverMutatesRecord(t *testing.T) {
	explainer := NewTemplateExplainer(testLogger())

	record := sampleRecord()
	before := *record

	_, err := explainer.Explain(context.Background(), record)
	require.NoError(t, err)

	assert.Equal(t, before.RiskLabel, record.RiskLabel)
	assert.Equal(t, before.ConfidenceScore, record.ConfidenceScore)
	assert.Equal(t, before.DosingRecommendation, record.DosingRecommendation)
	assert.Equal(t, before.ClinicalPhenotype, record.ClinicalPhenotype)
}

func TestExplainNilRecord(t *testing.T) {
	explainer := NewTemplateExplainer(testLogger())

	_, err := explainer.Explain(context.Background(), nil)
	assert.Error(t, err)
}
