package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgx-risk-server/internal/domain"
)

func TestActivityScore(t *testing.T) {
	calc := NewActivityScoreCalculator()

	tests := []struct {
		name      string
		gene      string
		diplotype string
		want      float64
	}{
		{name: "two normal function alleles", gene: "CYP2D6", diplotype: "*1/*1", want: 2.0},
		{name: "normal plus null", gene: "CYP2D6", diplotype: "*1/*4", want: 1.0},
		{name: "two null alleles", gene: "CYP2D6", diplotype: "*4/*4", want: 0.0},
		{name: "decreased function allele", gene: "CYP2D6", diplotype: "*1/*41", want: 1.5},
		{name: "reduced homozygote", gene: "CYP2D6", diplotype: "*10/*10", want: 0.5},
		{name: "duplication multiplies allele value", gene: "CYP2D6", diplotype: "*1x3/*4", want: 3.0},
		{name: "duplication of decreased allele", gene: "CYP2D6", diplotype: "*41x2/*1", want: 2.0},
		{name: "increased function CYP2C19", gene: "CYP2C19", diplotype: "*1/*17", want: 2.5},
		{name: "CYP2C19 loss of function", gene: "CYP2C19", diplotype: "*2/*2", want: 0.0},
		{name: "CYP2C9 intermediate", gene: "CYP2C9", diplotype: "*1/*3", want: 1.0},
		{name: "TPMT heterozygote", gene: "TPMT", diplotype: "*1/*3A", want: 1.0},
		{name: "NUDT15 null homozygote", gene: "NUDT15", diplotype: "*3/*3", want: 0.0},
		{name: "DPYD partial function", gene: "DPYD", diplotype: "*1/HapB3", want: 1.5},
		{name: "SLCO1B1 decreased", gene: "SLCO1B1", diplotype: "*1/*5", want: 1.0},
		{name: "unrecognized allele scores zero", gene: "CYP2D6", diplotype: "*1/*99", want: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := calc.Score(tt.gene, tt.diplotype)
			require.NotNil(t, score)
			assert.Equal(t, tt.want, *score)
		})
	}
}

func TestActivityScoreUnresolvable(t *testing.T) {
	calc := NewActivityScoreCalculator()

	tests := []struct {
		name      string
		gene      string
		diplotype string
	}{
		{name: "unknown diplotype", gene: "CYP2D6", diplotype: "Unknown"},
		{name: "empty diplotype", gene: "CYP2D6", diplotype: ""},
		{name: "unsupported gene", gene: "CYP3A4", diplotype: "*1/*1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, calc.Score(tt.gene, tt.diplotype))
		})
	}
}

func TestPhenotypeClassification(t *testing.T) {
	calc := NewActivityScoreCalculator()

	tests := []struct {
		name  string
		gene  string
		score float64
		want  domain.Phenotype
	}{
		{name: "CYP2D6 zero is PM", gene: "CYP2D6", score: 0, want: domain.PM},
		{name: "CYP2D6 just above zero is IM", gene: "CYP2D6", score: 0.25, want: domain.IM},
		{name: "CYP2D6 one is IM", gene: "CYP2D6", score: 1.0, want: domain.IM},
		{name: "CYP2D6 lower NM boundary", gene: "CYP2D6", score: 1.25, want: domain.NM},
		{name: "CYP2D6 upper NM boundary inclusive", gene: "CYP2D6", score: 2.25, want: domain.NM},
		{name: "CYP2D6 above NM is UM", gene: "CYP2D6", score: 2.5, want: domain.UM},
		{name: "CYP2C19 upper NM boundary inclusive", gene: "CYP2C19", score: 2.0, want: domain.NM},
		{name: "CYP2C19 increased is UM", gene: "CYP2C19", score: 2.5, want: domain.UM},
		{name: "CYP2C9 below 1.5 is IM", gene: "CYP2C9", score: 1.0, want: domain.IM},
		{name: "CYP2C9 at 1.5 is NM", gene: "CYP2C9", score: 1.5, want: domain.NM},
		{name: "TPMT heterozygote is IM", gene: "TPMT", score: 1.0, want: domain.IM},
		{name: "TPMT full function is NM", gene: "TPMT", score: 2.0, want: domain.NM},
		{name: "NUDT15 zero is PM", gene: "NUDT15", score: 0, want: domain.PM},
		{name: "DPYD at one is NM", gene: "DPYD", score: 1.0, want: domain.NM},
		{name: "DPYD partial is IM", gene: "DPYD", score: 0.5, want: domain.IM},
		{name: "SLCO1B1 zero is poor function", gene: "SLCO1B1", score: 0, want: domain.POOR_FUNCTION},
		{name: "SLCO1B1 half is decreased", gene: "SLCO1B1", score: 0.5, want: domain.DECREASED_FUNCTION},
		{name: "SLCO1B1 at one is normal function", gene: "SLCO1B1", score: 1.0, want: domain.NORMAL_FUNCTION},
		{name: "SLCO1B1 full is normal function", gene: "SLCO1B1", score: 2.0, want: domain.NORMAL_FUNCTION},
		{name: "unsupported gene is unknown", gene: "CYP3A4", score: 2.0, want: domain.UNKNOWN},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, calc.Phenotype(tt.gene, tt.score))
		})
	}
}

func TestScoreThenClassifyRoundTrip(t *testing.T) {
	calc := NewActivityScoreCalculator()

	score := calc.Score("CYP2D6", "*4/*4")
	require.NotNil(t, score)
	assert.Equal(t, domain.PM, calc.Phenotype("CYP2D6", *score))

	score = calc.Score("CYP2D6", "*1x3/*1")
	require.NotNil(t, score)
	assert.Equal(t, 4.0, *score)
	assert.Equal(t, domain.UM, calc.Phenotype("CYP2D6", *score))
}
