package service

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/pgx-risk-server/internal/domain"
)

// PhenoconversionEngine adjusts a genetic activity score for the effect of
// co-administered inhibitors/inducers, yielding the clinically effective
// phenotype.
type PhenoconversionEngine struct {
	logger   *logrus.Logger
	registry domain.InteractionRegistry
	scorer   *ActivityScoreCalculator
}

// NewPhenoconversionEngine creates a new engine backed by the given
// interaction registry
func NewPhenoconversionEngine(logger *logrus.Logger, registry domain.InteractionRegistry) *PhenoconversionEngine {
	return &PhenoconversionEngine{
		logger:   logger,
		registry: registry,
		scorer:   NewActivityScoreCalculator(),
	}
}

// Apply computes the clinical activity score and phenotype for a gene given
// the patient's co-medications. With no co-medications or no matching
// registry entries the result is the identity (factor 1.0). Among multiple
// matches the entry whose factor deviates most from 1.0 wins; on exact
// deviation ties the first entry in registry order is kept.
//
// Occurred is true only when the phenotype label actually changes; a factor
// can be applied without crossing a boundary, in which case the active
// agent stays empty.
func (e *PhenoconversionEngine) Apply(gene string, geneticScore float64, medications []string) domain.PhenoconversionResult {
	if len(medications) == 0 {
		return e.identity(gene, geneticScore)
	}

	entries := e.registry.FindInteractions(gene, medications)
	if len(entries) == 0 {
		return e.identity(gene, geneticScore)
	}

	selected := entries[0]
	bestDeviation := math.Abs(selected.Factor - 1.0)
	for _, entry := range entries[1:] {
		if deviation := math.Abs(entry.Factor - 1.0); deviation > bestDeviation {
			bestDeviation = deviation
			selected = entry
		}
	}

	clinicalScore := round4(geneticScore * selected.Factor)
	clinicalPhenotype := e.scorer.Phenotype(gene, clinicalScore)
	geneticPhenotype := e.scorer.Phenotype(gene, geneticScore)
	occurred := clinicalPhenotype != geneticPhenotype

	activeAgent := ""
	if occurred {
		activeAgent = selected.DrugName
	}

	e.logger.WithFields(logrus.Fields{
		"gene":               gene,
		"genetic_score":      geneticScore,
		"clinical_score":     clinicalScore,
		"factor":             selected.Factor,
		"interacting_drug":   selected.DrugName,
		"phenotype_changed":  occurred,
		"clinical_phenotype": clinicalPhenotype,
	}).Debug("Phenoconversion applied")

	return domain.PhenoconversionResult{
		ClinicalActivityScore: clinicalScore,
		ClinicalPhenotype:     clinicalPhenotype,
		Occurred:              occurred,
		ActiveAgent:           activeAgent,
		Factor:                selected.Factor,
	}
}

// identity returns the no-change result (factor 1.0)
func (e *PhenoconversionEngine) identity(gene string, score float64) domain.PhenoconversionResult {
	return domain.PhenoconversionResult{
		ClinicalActivityScore: score,
		ClinicalPhenotype:     e.scorer.Phenotype(gene, score),
		Occurred:              false,
		Factor:                1.0,
	}
}
