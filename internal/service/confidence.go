package service

import (
	"github.com/pgx-risk-server/internal/domain"
)

// ConfidenceScorer combines data-quality signals into a single [0,1] score.
// The score is purely deterministic and never set by the explanation layer.
type ConfidenceScorer struct{}

// NewConfidenceScorer creates a new scorer
func NewConfidenceScorer() *ConfidenceScorer {
	return &ConfidenceScorer{}
}

// Score starts at 1.0 and applies independent, additive deductions:
//
//	-0.40 calling method empty/Unknown, or an error was recorded
//	-0.30 resolved phenotype is Unknown
//	-0.10 structural variant / copy-number anomaly flagged
//	-0.10 any associated variant failed its quality filter
//	-0.20 decision-table risk label is Unknown
//	-0.05 phenoconversion occurred
//
// Multiple deductions can fire in the same call. The result is clamped to
// [0,1] and rounded to 2 decimals.
func (s *ConfidenceScorer) Score(call *domain.GeneCall, variants []domain.VariantRecord, decision domain.CPICDecision, phenoconversionOccurred bool) float64 {
	score := 1.0

	callingMethod := ""
	phenotype := domain.Phenotype("")
	hasSV := false
	callError := ""
	if call != nil {
		callingMethod = call.CallingMethod
		phenotype = call.Phenotype
		hasSV = call.HasStructuralVariant
		callError = call.Error
	}

	if callingMethod == "" || callingMethod == "Unknown" || callError != "" {
		score -= 0.4
	}

	if phenotype == domain.UNKNOWN {
		score -= 0.3
	}

	if hasSV {
		score -= 0.1
	}

	if anyFilterFailed(variants) {
		score -= 0.1
	}

	if decision.RiskLabel == domain.RISK_UNKNOWN {
		score -= 0.2
	}

	if phenoconversionOccurred {
		score -= 0.05
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return round2(score)
}

// anyFilterFailed reports whether any variant has a filter status that is
// neither the pass token nor missing
func anyFilterFailed(variants []domain.VariantRecord) bool {
	for _, v := range variants {
		switch v.FilterStatus {
		case "PASS", ".", "":
		default:
			return true
		}
	}
	return false
}
