package service

import (
	"strings"

	"github.com/pgx-risk-server/internal/domain"
)

// DrugToGene maps each supported drug to its primary pharmacogene.
// AZATHIOPRINE additionally checks NUDT15 in the orchestrator.
var DrugToGene = map[string]string{
	"CODEINE":      "CYP2D6",
	"WARFARIN":     "CYP2C9",
	"CLOPIDOGREL":  "CYP2C19",
	"SIMVASTATIN":  "SLCO1B1",
	"AZATHIOPRINE": "TPMT",
	"FLUOROURACIL": "DPYD",
}

// SupportedDrugs lists the drugs covered by the decision table, in the
// order they are documented.
var SupportedDrugs = []string{
	"CODEINE",
	"WARFARIN",
	"CLOPIDOGREL",
	"SIMVASTATIN",
	"AZATHIOPRINE",
	"FLUOROURACIL",
}

type cpicKey struct {
	Drug      string
	Phenotype domain.Phenotype
}

// cpicTable is the authoritative drug x phenotype decision table (CPIC 2022
// guidelines). It is static reference data: no component, including the
// explanation generator, may mutate it.
var cpicTable = map[cpicKey]domain.CPICDecision{
	// CODEINE (primary gene: CYP2D6)
	{"CODEINE", domain.PM}: {
		RiskLabel:        domain.RISK_INEFFECTIVE,
		Severity:         domain.SEVERITY_HIGH,
		Dosing:           "Avoid codeine. Use non-opioid analgesic or morphine with dose titration.",
		AlternativeDrugs: []string{"MORPHINE", "ACETAMINOPHEN"},
		GuidelineVersion: "2022",
		EvidenceLevel:    "A",
	},
	{"CODEINE", domain.IM}: {
		RiskLabel:        domain.RISK_ADJUST,
		Severity:         domain.SEVERITY_MODERATE,
		Dosing:           "Use lowest effective dose. Monitor closely for reduced efficacy.",
		AlternativeDrugs: []string{},
		GuidelineVersion: "2022",
		EvidenceLevel:    "A",
	},
	{"CODEINE", domain.NM}: {
		RiskLabel:        domain.RISK_SAFE,
		Severity:         domain.SEVERITY_NONE,
		Dosing:           "Initiate standard dosing per label.",
		AlternativeDrugs: []string{},
		GuidelineVersion: "2022",
		EvidenceLevel:    "A",
	},
	{"CODEINE", domain.UM}: {
		RiskLabel:        domain.RISK_TOXIC,
		Severity:         domain.SEVERITY_CRITICAL,
		Dosing:           "Avoid codeine. Risk of life-threatening morphine toxicity.",
		AlternativeDrugs: []string{"MORPHINE"},
		GuidelineVersion: "2022",
		EvidenceLevel:    "A",
	},

	// WARFARIN (primary gene: CYP2C9; VKORC1 note appended by the pipeline)
	{"WARFARIN", domain.PM}: {
		RiskLabel:        domain.RISK_ADJUST,
		Severity:         domain.SEVERITY_HIGH,
		Dosing:           "Reduce warfarin dose by 25-50%. Target INR 2.0-3.0. Monitor INR frequently.",
		AlternativeDrugs: []string{},
		GuidelineVersion: "2022",
		EvidenceLevel:    "A",
	},
	{"WARFARIN", domain.IM}: {
		RiskLabel:        domain.RISK_ADJUST,
		Severity:         domain.SEVERITY_MODERATE,
		Dosing:           "Consider 10-25% dose reduction. Monitor INR closely.",
		AlternativeDrugs: []string{},
		GuidelineVersion: "2022",
		EvidenceLevel:    "A",
	},
	{"WARFARIN", domain.NM}: {
		RiskLabel:        domain.RISK_SAFE,
		Severity:         domain.SEVERITY_NONE,
		Dosing:           "Initiate standard dosing. Monitor INR per protocol.",
		AlternativeDrugs: []string{},
		GuidelineVersion: "2022",
		EvidenceLevel:    "A",
	},

	// CLOPIDOGREL (primary gene: CYP2C19)
	{"CLOPIDOGREL", domain.PM}: {
		RiskLabel:        domain.RISK_INEFFECTIVE,
		Severity:         domain.SEVERITY_CRITICAL,
		Dosing:           "Avoid clopidogrel. Use prasugrel or ticagrelor.",
		AlternativeDrugs: []string{"PRASUGREL", "TICAGRELOR"},
		GuidelineVersion: "2022",
		EvidenceLevel:    "A",
	},
	{"CLOPIDOGREL", domain.IM}: {
		RiskLabel:        domain.RISK_ADJUST,
		Severity:         domain.SEVERITY_MODERATE,
		Dosing:           "Use with caution. Consider alternative antiplatelet agent.",
		AlternativeDrugs: []string{"TICAGRELOR"},
		GuidelineVersion: "2022",
		EvidenceLevel:    "A",
	},
	{"CLOPIDOGREL", domain.NM}: {
		RiskLabel:        domain.RISK_SAFE,
		Severity:         domain.SEVERITY_NONE,
		Dosing:           "Initiate standard dose.",
		AlternativeDrugs: []string{},
		GuidelineVersion: "2022",
		EvidenceLevel:    "A",
	},
	{"CLOPIDOGREL", domain.UM}: {
		RiskLabel:        domain.RISK_SAFE,
		Severity:         domain.SEVERITY_LOW,
		Dosing:           "Standard dosing. May have enhanced response.",
		AlternativeDrugs: []string{},
		GuidelineVersion: "2022",
		EvidenceLevel:    "B",
	},

	// SIMVASTATIN (primary gene: SLCO1B1)
	{"SIMVASTATIN", domain.NORMAL_FUNCTION}: {
		RiskLabel:        domain.RISK_SAFE,
		Severity:         domain.SEVERITY_NONE,
		Dosing:           "Standard dosing.",
		AlternativeDrugs: []string{},
		GuidelineVersion: "2022",
		EvidenceLevel:    "A",
	},
	{"SIMVASTATIN", domain.DECREASED_FUNCTION}: {
		RiskLabel:        domain.RISK_ADJUST,
		Severity:         domain.SEVERITY_MODERATE,
		Dosing:           "Limit simvastatin dose to 20mg/day or switch to rosuvastatin/pravastatin.",
		AlternativeDrugs: []string{"ROSUVASTATIN", "PRAVASTATIN"},
		GuidelineVersion: "2022",
		EvidenceLevel:    "A",
	},
	{"SIMVASTATIN", domain.POOR_FUNCTION}: {
		RiskLabel:        domain.RISK_TOXIC,
		Severity:         domain.SEVERITY_HIGH,
		Dosing:           "Avoid simvastatin. High risk of myopathy/rhabdomyolysis. Use rosuvastatin or pravastatin.",
		AlternativeDrugs: []string{"ROSUVASTATIN", "PRAVASTATIN"},
		GuidelineVersion: "2022",
		EvidenceLevel:    "A",
	},

	// AZATHIOPRINE (primary genes: TPMT + NUDT15, worst phenotype wins)
	{"AZATHIOPRINE", domain.PM}: {
		RiskLabel:        domain.RISK_TOXIC,
		Severity:         domain.SEVERITY_CRITICAL,
		Dosing:           "Reduce dose by 90% or avoid. Fatal myelosuppression risk.",
		AlternativeDrugs: []string{},
		GuidelineVersion: "2022",
		EvidenceLevel:    "A",
	},
	{"AZATHIOPRINE", domain.IM}: {
		RiskLabel:        domain.RISK_ADJUST,
		Severity:         domain.SEVERITY_HIGH,
		Dosing:           "Reduce dose by 30-70%. Monitor CBC weekly.",
		AlternativeDrugs: []string{},
		GuidelineVersion: "2022",
		EvidenceLevel:    "A",
	},
	{"AZATHIOPRINE", domain.NM}: {
		RiskLabel:        domain.RISK_SAFE,
		Severity:         domain.SEVERITY_NONE,
		Dosing:           "Standard dosing. Monitor CBC per protocol.",
		AlternativeDrugs: []string{},
		GuidelineVersion: "2022",
		EvidenceLevel:    "A",
	},

	// FLUOROURACIL / 5-FU (primary gene: DPYD)
	{"FLUOROURACIL", domain.PM}: {
		RiskLabel:        domain.RISK_TOXIC,
		Severity:         domain.SEVERITY_CRITICAL,
		Dosing:           "Avoid 5-FU/capecitabine. Life-threatening toxicity risk.",
		AlternativeDrugs: []string{},
		GuidelineVersion: "2022",
		EvidenceLevel:    "A",
	},
	{"FLUOROURACIL", domain.IM}: {
		RiskLabel:        domain.RISK_ADJUST,
		Severity:         domain.SEVERITY_HIGH,
		Dosing:           "Reduce starting dose by 50%. Titrate based on toxicity and response.",
		AlternativeDrugs: []string{},
		GuidelineVersion: "2022",
		EvidenceLevel:    "A",
	},
	{"FLUOROURACIL", domain.NM}: {
		RiskLabel:        domain.RISK_SAFE,
		Severity:         domain.SEVERITY_NONE,
		Dosing:           "Standard dosing per oncology protocol.",
		AlternativeDrugs: []string{},
		GuidelineVersion: "2022",
		EvidenceLevel:    "A",
	},
}

// CPICLookup resolves (drug, clinical phenotype) pairs against the static
// decision table.
type CPICLookup struct{}

// NewCPICLookup creates a new lookup
func NewCPICLookup() *CPICLookup {
	return &CPICLookup{}
}

// Lookup returns the decision for a (drug, phenotype) pair. The drug name
// is uppercased; the phenotype match is case-exact. A missing key yields
// the defined fallback record.
func (l *CPICLookup) Lookup(drug string, phenotype domain.Phenotype) domain.CPICDecision {
	if decision, ok := cpicTable[cpicKey{strings.ToUpper(drug), phenotype}]; ok {
		return decision
	}
	return domain.CPICDecision{
		RiskLabel:        domain.RISK_UNKNOWN,
		Severity:         domain.SEVERITY_NONE,
		Dosing:           "Insufficient data for this drug-gene combination.",
		AlternativeDrugs: []string{},
	}
}

// IsSupportedDrug reports whether the drug has decision-table coverage
func IsSupportedDrug(drug string) bool {
	_, ok := DrugToGene[strings.ToUpper(drug)]
	return ok
}
