package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pgx-risk-server/internal/domain"
)

// vkorc1RSID is the reference SNP consulted for the warfarin dosing note
const vkorc1RSID = "rs9923231"

// phenotypeRank orders phenotypes by severity; lower = more severe.
// AZATHIOPRINE worst-of-two selection uses this ordering.
var phenotypeRank = map[domain.Phenotype]int{
	domain.PM:      0,
	domain.IM:      1,
	domain.NM:      2,
	domain.RM:      3,
	domain.UM:      4,
	domain.UNKNOWN: 5,
}

// Pipeline sequences the deterministic risk assessment per requested drug:
// gene resolution, activity scoring, phenoconversion, decision lookup,
// drug-specific special cases, confidence, and record assembly.
type Pipeline struct {
	logger     *logrus.Logger
	caller     domain.GenotypeCaller
	store      domain.ResultStore
	scorer     *ActivityScoreCalculator
	pheno      *PhenoconversionEngine
	cpic       *CPICLookup
	confidence *ConfidenceScorer
}

// NewPipeline creates a new risk pipeline
func NewPipeline(
	logger *logrus.Logger,
	caller domain.GenotypeCaller,
	store domain.ResultStore,
	registry domain.InteractionRegistry,
) *Pipeline {
	return &Pipeline{
		logger:     logger,
		caller:     caller,
		store:      store,
		scorer:     NewActivityScoreCalculator(),
		pheno:      NewPhenoconversionEngine(logger, registry),
		cpic:       NewCPICLookup(),
		confidence: NewConfidenceScorer(),
	}
}

// Run executes the full pipeline for one analysis run. Data gaps degrade to
// Unknown/penalized-confidence records; only unexpected failures mark the
// run failed, with the message captured on the run.
func (p *Pipeline) Run(ctx context.Context, run *domain.AnalysisRun, variants []domain.VariantRecord) ([]*DrugResult, error) {
	start := time.Now()

	p.logger.WithFields(logrus.Fields{
		"run_id":   run.ID,
		"drugs":    run.RequestedDrugs,
		"co_meds":  run.CoMedications,
		"variants": len(variants),
	}).Info("Starting risk analysis run")

	if err := p.store.UpdateRunStatus(ctx, run.ID, domain.RUN_PROCESSING, ""); err != nil {
		return nil, fmt.Errorf("updating run status: %w", err)
	}

	results, err := p.execute(ctx, run, variants)
	if err != nil {
		p.logger.WithError(err).WithField("run_id", run.ID).Error("Risk analysis run failed")
		if updateErr := p.store.UpdateRunStatus(ctx, run.ID, domain.RUN_FAILED, err.Error()); updateErr != nil {
			p.logger.WithError(updateErr).Warn("Could not record run failure")
		}
		return nil, err
	}

	if err := p.store.UpdateRunStatus(ctx, run.ID, domain.RUN_COMPLETE, ""); err != nil {
		return nil, fmt.Errorf("completing run: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"run_id":   run.ID,
		"records":  len(results),
		"duration": time.Since(start),
	}).Info("Risk analysis run completed")

	return results, nil
}

func (p *Pipeline) execute(ctx context.Context, run *domain.AnalysisRun, variants []domain.VariantRecord) ([]*DrugResult, error) {
	geneCalls := p.buildGeneCalls(ctx, run)
	if err := p.saveGeneCalls(ctx, geneCalls); err != nil {
		return nil, err
	}

	results := make([]*DrugResult, 0, len(run.RequestedDrugs))
	for _, drug := range run.RequestedDrugs {
		drug = strings.ToUpper(drug)

		record := p.analyzeDrug(drug, run, geneCalls, variants)
		if err := p.store.SaveRiskRecord(ctx, record); err != nil {
			return nil, fmt.Errorf("saving risk record for %s: %w", drug, err)
		}

		results = append(results, p.buildDrugResult(drug, record, geneCalls, variants))
	}

	return results, nil
}

// buildGeneCalls invokes the external genotype caller for every supported
// gene and derives activity scores and, where the caller could not resolve
// one, phenotypes. Caller unavailability yields Unknown calls, never an
// error.
func (p *Pipeline) buildGeneCalls(ctx context.Context, run *domain.AnalysisRun) map[string]*domain.GeneCall {
	callResults := p.caller.CallGenes(ctx, run.UploadID.String(), SupportedGenes)

	calls := make(map[string]*domain.GeneCall, len(SupportedGenes))
	now := time.Now().UTC()

	for _, gene := range SupportedGenes {
		result, ok := callResults[gene]
		if !ok {
			result = domain.GeneCallResult{
				Diplotype:     "Unknown",
				Phenotype:     "Unknown",
				CallingMethod: "Unknown",
				Error:         "no result returned for gene",
			}
		}

		diplotype := result.Diplotype
		if diplotype == "" {
			diplotype = "Unknown"
		}

		score := p.scorer.Score(gene, diplotype)

		phenotype := domain.Phenotype(result.Phenotype)
		if phenotype == "" {
			phenotype = domain.UNKNOWN
		}
		if phenotype == domain.UNKNOWN && score != nil {
			phenotype = p.scorer.Phenotype(gene, *score)
		}

		callingMethod := result.CallingMethod
		if callingMethod == "" {
			callingMethod = "Unknown"
		}

		calls[gene] = &domain.GeneCall{
			ID:                   uuid.New(),
			UploadID:             run.UploadID,
			PatientID:            run.PatientID,
			Gene:                 gene,
			Diplotype:            diplotype,
			Phenotype:            phenotype,
			GeneticActivityScore: score,
			CopyNumber:           result.CopyNumber,
			HasStructuralVariant: result.HasStructuralVariant,
			CallingMethod:        callingMethod,
			RawCallerOutput:      result.RawOutput,
			Error:                result.Error,
			CreatedAt:            now,
		}
	}

	return calls
}

func (p *Pipeline) saveGeneCalls(ctx context.Context, calls map[string]*domain.GeneCall) error {
	ordered := make([]*domain.GeneCall, 0, len(calls))
	for _, gene := range SupportedGenes {
		if call, ok := calls[gene]; ok {
			ordered = append(ordered, call)
		}
	}
	if err := p.store.SaveGeneCalls(ctx, ordered); err != nil {
		return fmt.Errorf("saving gene calls: %w", err)
	}
	return nil
}

// analyzeDrug runs steps 1-7 of the per-drug assessment. Each drug is
// independent of every other drug in the run.
func (p *Pipeline) analyzeDrug(drug string, run *domain.AnalysisRun, geneCalls map[string]*domain.GeneCall, variants []domain.VariantRecord) *domain.RiskRecord {
	primaryGene, geneCall := p.resolveGene(drug, geneCalls)
	baseGene := strings.SplitN(primaryGene, "+", 2)[0]

	diplotype := "Unknown"
	var geneticScore *float64
	if geneCall != nil {
		if geneCall.Diplotype != "" {
			diplotype = geneCall.Diplotype
		}
		geneticScore = geneCall.GeneticActivityScore
	}

	// Recompute from the diplotype when the call carries no score; an
	// unresolved diplotype scores 0.0 as a last resort so the decision
	// lookup always has a number.
	if geneticScore == nil {
		geneticScore = p.scorer.Score(baseGene, diplotype)
	}
	score := 0.0
	if geneticScore != nil {
		score = *geneticScore
	}

	phenoResult := p.pheno.Apply(baseGene, score, run.CoMedications)
	geneticPhenotype := p.scorer.Phenotype(baseGene, score)

	decision := p.cpic.Lookup(drug, phenoResult.ClinicalPhenotype)

	dosing := decision.Dosing
	if drug == "WARFARIN" {
		if note := vkorc1Note(variants); note != "" {
			dosing += note
		}
	}

	geneVariants := variantsForGene(variants, baseGene)
	confidence := p.confidence.Score(geneCall, geneVariants, decision, phenoResult.Occurred)

	record := &domain.RiskRecord{
		ID:                      uuid.New(),
		RunID:                   run.ID,
		PatientID:               run.PatientID,
		UploadID:                run.UploadID,
		DrugName:                drug,
		PrimaryGene:             primaryGene,
		Diplotype:               diplotype,
		GeneticPhenotype:        geneticPhenotype,
		ClinicalPhenotype:       phenoResult.ClinicalPhenotype,
		ActiveInhibitor:         phenoResult.ActiveAgent,
		InhibitionFactor:        phenoResult.Factor,
		GeneticActivityScore:    score,
		ClinicalActivityScore:   phenoResult.ClinicalActivityScore,
		PhenoconversionOccurred: phenoResult.Occurred,
		RiskLabel:               decision.RiskLabel,
		Severity:                decision.Severity,
		ConfidenceScore:         confidence,
		DosingRecommendation:    dosing,
		AlternativeDrugs:        decision.AlternativeDrugs,
		GuidelineVersion:        decision.GuidelineVersion,
		EvidenceLevel:           decision.EvidenceLevel,
		CreatedAt:               time.Now().UTC(),
	}

	p.logger.WithFields(logrus.Fields{
		"run_id":             run.ID,
		"drug":               drug,
		"primary_gene":       primaryGene,
		"diplotype":          diplotype,
		"genetic_phenotype":  geneticPhenotype,
		"clinical_phenotype": phenoResult.ClinicalPhenotype,
		"risk_label":         record.RiskLabel,
		"confidence":         confidence,
	}).Info("Drug risk assessed")

	return record
}

// resolveGene maps the drug to its gene call. AZATHIOPRINE evaluates both
// TPMT and NUDT15 and keeps the more severe phenotype; exact rank ties go
// to TPMT, and the combined primary gene is labeled "TPMT+NUDT15".
func (p *Pipeline) resolveGene(drug string, geneCalls map[string]*domain.GeneCall) (string, *domain.GeneCall) {
	if drug == "AZATHIOPRINE" {
		tpmt := geneCalls["TPMT"]
		nudt := geneCalls["NUDT15"]

		selected := tpmt
		if worsePhenotype(callPhenotype(nudt), callPhenotype(tpmt)) {
			selected = nudt
		}
		return "TPMT+NUDT15", selected
	}

	gene, ok := DrugToGene[drug]
	if !ok {
		return "Unknown", nil
	}
	return gene, geneCalls[gene]
}

func callPhenotype(call *domain.GeneCall) domain.Phenotype {
	if call == nil || call.Phenotype == "" {
		return domain.UNKNOWN
	}
	return call.Phenotype
}

// worsePhenotype reports whether a is strictly more severe than b
func worsePhenotype(a, b domain.Phenotype) bool {
	return rankOf(a) < rankOf(b)
}

func rankOf(p domain.Phenotype) int {
	if rank, ok := phenotypeRank[p]; ok {
		return rank
	}
	return phenotypeRank[domain.UNKNOWN]
}

// vkorc1Note returns the warfarin sensitivity note for the sample's
// rs9923231 genotype. The note is appended to the CPIC dosing text, never
// replacing it.
func vkorc1Note(variants []domain.VariantRecord) string {
	for _, v := range variants {
		if v.RSID != vkorc1RSID {
			continue
		}
		switch v.Genotype {
		case "1/1":
			return " VKORC1 rs9923231: AA genotype (High Sensitivity) - consider starting dose 0.5-2 mg/day."
		case "0/1":
			return " VKORC1 rs9923231: GA genotype (Intermediate Sensitivity)."
		case "0/0":
			return " VKORC1 rs9923231: GG genotype (Low Sensitivity) - standard or higher dose may be needed."
		}
		return ""
	}
	return ""
}

func variantsForGene(variants []domain.VariantRecord, gene string) []domain.VariantRecord {
	var out []domain.VariantRecord
	for _, v := range variants {
		if v.Gene == gene {
			out = append(out, v)
		}
	}
	return out
}

// buildDrugResult assembles the per-drug response document
func (p *Pipeline) buildDrugResult(drug string, record *domain.RiskRecord, geneCalls map[string]*domain.GeneCall, variants []domain.VariantRecord) *DrugResult {
	baseGene := strings.SplitN(record.PrimaryGene, "+", 2)[0]

	var calledOK, failed []string
	for _, gene := range SupportedGenes {
		if call, ok := geneCalls[gene]; ok && call.Phenotype != domain.UNKNOWN {
			calledOK = append(calledOK, gene)
		} else {
			failed = append(failed, gene)
		}
	}

	phenoNote := "No phenoconversion detected."
	if record.PhenoconversionOccurred {
		phenoNote = fmt.Sprintf(
			"Patient is genotypically %s but phenotypically %s due to %s.",
			record.GeneticPhenotype, record.ClinicalPhenotype, record.ActiveInhibitor,
		)
	}

	return &DrugResult{
		Drug:      drug,
		Timestamp: time.Now().UTC(),
		RiskAssessment: RiskAssessment{
			RiskLabel:       record.RiskLabel,
			Severity:        record.Severity,
			ConfidenceScore: record.ConfidenceScore,
		},
		Profile: PharmacogenomicProfile{
			PrimaryGene:      record.PrimaryGene,
			Diplotype:        record.Diplotype,
			Phenotype:        record.ClinicalPhenotype,
			DetectedVariants: variantsForGene(variants, baseGene),
		},
		Recommendation: ClinicalRecommendation{
			Action:              record.DosingRecommendation,
			AlternativeDrugs:    record.AlternativeDrugs,
			GuidelineVersion:    record.GuidelineVersion,
			EvidenceLevel:       record.EvidenceLevel,
			PhenoconversionNote: phenoNote,
		},
		QualityMetrics: QualityMetrics{
			VariantsDetected:        len(variants),
			GenesCalledSuccessfully: calledOK,
			GenesFailed:             failed,
			ConfidenceScore:         record.ConfidenceScore,
			PhenoconversionDetected: record.PhenoconversionOccurred,
		},
		RecordID: record.ID,
	}
}

// Response documents

// DrugResult is the assembled per-drug analysis response
type DrugResult struct {
	Drug           string                 `json:"drug"`
	Timestamp      time.Time              `json:"timestamp"`
	RiskAssessment RiskAssessment         `json:"risk_assessment"`
	Profile        PharmacogenomicProfile `json:"pharmacogenomic_profile"`
	Recommendation ClinicalRecommendation `json:"clinical_recommendation"`
	QualityMetrics QualityMetrics         `json:"quality_metrics"`
	RecordID       uuid.UUID              `json:"record_id"`
}

// RiskAssessment summarizes the headline risk finding
type RiskAssessment struct {
	RiskLabel       domain.RiskLabel `json:"risk_label"`
	Severity        domain.Severity  `json:"severity"`
	ConfidenceScore float64          `json:"confidence_score"`
}

// PharmacogenomicProfile describes the genetic basis of the finding
type PharmacogenomicProfile struct {
	PrimaryGene      string                 `json:"primary_gene"`
	Diplotype        string                 `json:"diplotype"`
	Phenotype        domain.Phenotype       `json:"phenotype"`
	DetectedVariants []domain.VariantRecord `json:"detected_variants"`
}

// ClinicalRecommendation carries the dosing guidance
type ClinicalRecommendation struct {
	Action              string   `json:"action"`
	AlternativeDrugs    []string `json:"alternative_drugs"`
	GuidelineVersion    string   `json:"cpic_guideline_version,omitempty"`
	EvidenceLevel       string   `json:"evidence_level,omitempty"`
	PhenoconversionNote string   `json:"phenoconversion_note"`
}

// QualityMetrics reports data-quality signals for the run
type QualityMetrics struct {
	VariantsDetected        int      `json:"variants_detected"`
	GenesCalledSuccessfully []string `json:"genes_called_successfully"`
	GenesFailed             []string `json:"genes_failed"`
	ConfidenceScore         float64  `json:"confidence_score"`
	PhenoconversionDetected bool     `json:"phenoconversion_detected"`
}
