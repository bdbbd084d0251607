// Package explain renders clinician-readable explanations for finished
// risk records. The generator is deterministic: the same record always
// produces the same text, and the record itself is never modified.
package explain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pgx-risk-server/internal/domain"
)

// TemplateExplainer builds explanations from fixed templates
type TemplateExplainer struct {
	logger *logrus.Logger
}

// NewTemplateExplainer creates a new template-based explainer
func NewTemplateExplainer(logger *logrus.Logger) *TemplateExplainer {
	return &TemplateExplainer{logger: logger}
}

// Explain produces an explanation record for the given risk record
func (e *TemplateExplainer) Explain(ctx context.Context, record *domain.RiskRecord) (*domain.ExplanationRecord, error) {
	if record == nil {
		return nil, fmt.Errorf("risk record is required")
	}

	out := &domain.ExplanationRecord{
		ID:                   uuid.New(),
		RiskRecordID:         record.ID,
		Summary:              e.summary(record),
		MechanismExplanation: e.mechanism(record),
		GuidelineQuote:       record.DosingRecommendation,
		PhenoconversionNote:  e.phenoconversionNote(record),
		GeneratorUsed:        "template",
		CreatedAt:            time.Now().UTC(),
	}

	e.logger.WithFields(logrus.Fields{
		"risk_record_id": record.ID,
		"drug":           record.DrugName,
		"risk":           record.RiskLabel,
	}).Debug("Explanation generated")

	return out, nil
}

func (e *TemplateExplainer) summary(record *domain.RiskRecord) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s for %s carries a %q assessment (%s severity) based on the %s %s diplotype.",
		titleCase(record.DrugName), record.PrimaryGene, record.RiskLabel,
		record.Severity, record.PrimaryGene, record.Diplotype)

	if record.ConfidenceScore < 0.5 {
		fmt.Fprintf(&sb, " Confidence in this assessment is low (%.2f); confirmatory genotyping is advised.",
			record.ConfidenceScore)
	}

	return sb.String()
}

func (e *TemplateExplainer) mechanism(record *domain.RiskRecord) string {
	var sb strings.Builder

	fmt.Fprintf(&sb,
		"The %s diplotype %s corresponds to an activity score of %g, classifying the patient as a %s.",
		record.PrimaryGene, record.Diplotype, record.GeneticActivityScore, record.GeneticPhenotype)

	if record.PhenoconversionOccurred {
		fmt.Fprintf(&sb,
			" Co-medication with %s shifts the clinically effective activity score to %g, so the patient currently behaves as a %s.",
			titleCase(record.ActiveInhibitor), record.ClinicalActivityScore, record.ClinicalPhenotype)
	}

	if len(record.AlternativeDrugs) > 0 {
		fmt.Fprintf(&sb, " Guideline-suggested alternatives: %s.",
			strings.Join(record.AlternativeDrugs, ", "))
	}

	return sb.String()
}

func (e *TemplateExplainer) phenoconversionNote(record *domain.RiskRecord) string {
	if !record.PhenoconversionOccurred {
		return ""
	}
	return fmt.Sprintf("Patient is genotypically %s but phenotypically %s due to %s.",
		record.GeneticPhenotype, record.ClinicalPhenotype, record.ActiveInhibitor)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
