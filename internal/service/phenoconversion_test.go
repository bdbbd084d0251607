package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pgx-risk-server/internal/domain"
	"github.com/pgx-risk-server/internal/registry"
)

func TestPhenoconversionIdentity(t *testing.T) {
	engine := NewPhenoconversionEngine(newTestLogger(), registry.NewInMemoryRegistry())

	t.Run("no co-medications", func(t *testing.T) {
		result := engine.Apply("CYP2D6", 2.0, nil)

		assert.Equal(t, 2.0, result.ClinicalActivityScore)
		assert.Equal(t, domain.NM, result.ClinicalPhenotype)
		assert.False(t, result.Occurred)
		assert.Empty(t, result.ActiveAgent)
		assert.Equal(t, 1.0, result.Factor)
	})

	t.Run("no matching interactions", func(t *testing.T) {
		result := engine.Apply("CYP2D6", 2.0, []string{"aspirin", "metformin"})

		assert.Equal(t, 2.0, result.ClinicalActivityScore)
		assert.False(t, result.Occurred)
		assert.Equal(t, 1.0, result.Factor)
	})
}

func TestPhenoconversionStrongInhibitor(t *testing.T) {
	engine := NewPhenoconversionEngine(newTestLogger(), registry.NewInMemoryRegistry())

	// paroxetine is a strong CYP2D6 inhibitor (factor 0.0)
	result := engine.Apply("CYP2D6", 2.0, []string{"paroxetine"})

	assert.Equal(t, 0.0, result.ClinicalActivityScore)
	assert.Equal(t, domain.PM, result.ClinicalPhenotype)
	assert.True(t, result.Occurred)
	assert.Equal(t, "PAROXETINE", result.ActiveAgent)
	assert.Equal(t, 0.0, result.Factor)
}

func TestPhenoconversionInducer(t *testing.T) {
	engine := NewPhenoconversionEngine(newTestLogger(), registry.NewInMemoryRegistry())

	// rifampin induces CYP2C19 (factor 2.0): IM-range 1.0 shifts to NM 2.0
	result := engine.Apply("CYP2C19", 1.0, []string{"rifampin"})

	assert.Equal(t, 2.0, result.ClinicalActivityScore)
	assert.Equal(t, domain.NM, result.ClinicalPhenotype)
	assert.True(t, result.Occurred)
	assert.Equal(t, "RIFAMPIN", result.ActiveAgent)
}

func TestPhenoconversionLargestDeviationWins(t *testing.T) {
	entries := []domain.InteractionEntry{
		{DrugName: "MODERATEDRUG", Gene: "CYP2D6", Type: domain.INHIBITOR, Strength: "moderate", Factor: 0.5},
		{DrugName: "STRONGDRUG", Gene: "CYP2D6", Type: domain.INHIBITOR, Strength: "strong", Factor: 0.0},
	}
	engine := NewPhenoconversionEngine(newTestLogger(), registry.NewInMemoryRegistryWithEntries(entries))

	result := engine.Apply("CYP2D6", 2.0, []string{"moderatedrug", "strongdrug"})

	// |0.0-1.0| = 1.0 beats |0.5-1.0| = 0.5
	assert.Equal(t, "STRONGDRUG", result.ActiveAgent)
	assert.Equal(t, 0.0, result.ClinicalActivityScore)
}

func TestPhenoconversionTieKeepsFirstEntry(t *testing.T) {
	entries := []domain.InteractionEntry{
		{DrugName: "FIRSTDRUG", Gene: "CYP2D6", Type: domain.INHIBITOR, Strength: "moderate", Factor: 0.5},
		{DrugName: "SECONDDRUG", Gene: "CYP2D6", Type: domain.INDUCER, Strength: "moderate", Factor: 1.5},
	}
	engine := NewPhenoconversionEngine(newTestLogger(), registry.NewInMemoryRegistryWithEntries(entries))

	// both deviate by exactly 0.5; registry order decides
	result := engine.Apply("CYP2D6", 2.0, []string{"firstdrug", "seconddrug"})

	assert.Equal(t, 0.5, result.Factor)
	assert.Equal(t, 1.0, result.ClinicalActivityScore)
}

func TestPhenoconversionFactorWithoutBoundaryCrossing(t *testing.T) {
	entries := []domain.InteractionEntry{
		{DrugName: "MILDDRUG", Gene: "CYP2D6", Type: domain.INHIBITOR, Strength: "weak", Factor: 0.9},
	}
	engine := NewPhenoconversionEngine(newTestLogger(), registry.NewInMemoryRegistryWithEntries(entries))

	// 2.0 * 0.9 = 1.8 stays NM, so no phenoconversion despite the factor
	result := engine.Apply("CYP2D6", 2.0, []string{"milddrug"})

	assert.Equal(t, 1.8, result.ClinicalActivityScore)
	assert.Equal(t, domain.NM, result.ClinicalPhenotype)
	assert.False(t, result.Occurred)
	assert.Empty(t, result.ActiveAgent)
	assert.Equal(t, 0.9, result.Factor)
}
