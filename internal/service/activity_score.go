package service

import (
	"math"
	"strconv"
	"strings"

	"github.com/pgx-risk-server/internal/domain"
)

// SupportedGenes lists the pharmacogenes the pipeline can score.
var SupportedGenes = []string{
	"CYP2D6",
	"CYP2C19",
	"CYP2C9",
	"SLCO1B1",
	"TPMT",
	"NUDT15",
	"DPYD",
}

// Per-gene star allele -> activity value tables. All values follow CPIC
// allele-function assignments; unknown alleles contribute 0.
var cyp2d6AlleleValues = map[string]float64{
	"*1": 1.0, "*2": 1.0, "*3": 0.0, "*4": 0.0, "*5": 0.0,
	"*6": 0.0, "*9": 0.5, "*10": 0.25, "*17": 0.5, "*29": 0.5, "*41": 0.5,
}

var cyp2c19AlleleValues = map[string]float64{
	"*1": 1.0, "*2": 0.0, "*3": 0.0, "*17": 1.5,
}

var cyp2c9AlleleValues = map[string]float64{
	"*1": 1.0, "*2": 0.5, "*3": 0.0,
}

// TPMT / NUDT15: non-functional = 0, functional = 1
var tpmtAlleleValues = map[string]float64{
	"*1": 1.0, "*2": 0.0, "*3A": 0.0, "*3C": 0.0,
}

var nudt15AlleleValues = map[string]float64{
	"*1": 1.0, "*2": 0.0, "*3": 0.0,
}

var dpydAlleleValues = map[string]float64{
	"*1": 1.0, "*2A": 0.0, "HapB3": 0.5,
}

var slco1b1AlleleValues = map[string]float64{
	"*1": 1.0, "*5": 0.0, // *5 = c.521T>C decreased function
}

var geneAlleleTables = map[string]map[string]float64{
	"CYP2D6":  cyp2d6AlleleValues,
	"CYP2C19": cyp2c19AlleleValues,
	"CYP2C9":  cyp2c9AlleleValues,
	"TPMT":    tpmtAlleleValues,
	"NUDT15":  nudt15AlleleValues,
	"DPYD":    dpydAlleleValues,
	"SLCO1B1": slco1b1AlleleValues,
}

// ActivityScoreCalculator converts diplotypes to numeric activity scores and
// activity scores to phenotype labels using fixed per-gene tables.
type ActivityScoreCalculator struct{}

// NewActivityScoreCalculator creates a new calculator
func NewActivityScoreCalculator() *ActivityScoreCalculator {
	return &ActivityScoreCalculator{}
}

// Score splits a diplotype on "/" and sums the per-allele activity values
// for the gene. CYP2D6 duplication notation (*1x3) multiplies the base
// allele value by the copy count. Returns nil for an Unknown/empty
// diplotype or an unrecognized gene; unknown allele tokens contribute 0.
func (c *ActivityScoreCalculator) Score(gene, diplotype string) *float64 {
	if diplotype == "" || diplotype == "Unknown" {
		return nil
	}

	alleleTable, ok := geneAlleleTables[gene]
	if !ok {
		return nil
	}

	total := 0.0
	for _, allele := range strings.Split(diplotype, "/") {
		allele = strings.TrimSpace(allele)

		copyMult := 1
		if gene == "CYP2D6" && strings.ContainsAny(allele, "xX") {
			base, count, found := cutDuplication(allele)
			if found {
				allele = base
				copyMult = count
			}
		}

		total += alleleTable[allele] * float64(copyMult)
	}

	rounded := round4(total)
	return &rounded
}

// Phenotype maps a numeric activity score to the gene's phenotype label.
// Boundary inclusivity differs per gene and is clinically meaningful.
func (c *ActivityScoreCalculator) Phenotype(gene string, score float64) domain.Phenotype {
	switch gene {
	case "CYP2D6":
		switch {
		case score == 0:
			return domain.PM
		case score < 1.25:
			return domain.IM
		case score <= 2.25:
			return domain.NM
		default:
			return domain.UM
		}

	case "CYP2C19":
		switch {
		case score == 0:
			return domain.PM
		case score < 1.25:
			return domain.IM
		case score <= 2.0:
			return domain.NM
		default:
			return domain.UM
		}

	case "CYP2C9":
		switch {
		case score == 0:
			return domain.PM
		case score < 1.5:
			return domain.IM
		default:
			return domain.NM
		}

	case "TPMT", "NUDT15":
		switch {
		case score == 0:
			return domain.PM
		case score < 2.0:
			return domain.IM
		default:
			return domain.NM
		}

	case "DPYD":
		switch {
		case score == 0:
			return domain.PM
		case score < 1.0:
			return domain.IM
		default:
			return domain.NM
		}

	case "SLCO1B1":
		switch {
		case score <= 0.0:
			return domain.POOR_FUNCTION
		case score < 1.0:
			return domain.DECREASED_FUNCTION
		default:
			return domain.NORMAL_FUNCTION
		}
	}

	return domain.UNKNOWN
}

// cutDuplication splits duplication notation like "*1x3" into the base
// allele and copy count. A malformed count falls back to a single copy.
func cutDuplication(allele string) (string, int, bool) {
	idx := strings.IndexAny(allele, "xX")
	if idx < 0 {
		return allele, 1, false
	}

	base := allele[:idx]
	if !strings.HasPrefix(base, "*") {
		base = "*" + strings.TrimPrefix(base, "*")
	}

	count, err := strconv.Atoi(allele[idx+1:])
	if err != nil || count < 1 {
		count = 1
	}
	return base, count, true
}

// round4 rounds to 4 decimal places
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// round2 rounds to 2 decimal places
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
