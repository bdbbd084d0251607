package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pgx-risk-server/internal/domain"
	"github.com/pgx-risk-server/internal/service"
)

// UploadRequest carries a VCF file body for parsing and storage
type UploadRequest struct {
	PatientCode string `json:"patient_code" binding:"required"`
	Filename    string `json:"filename" binding:"required"`
	VCFContent  string `json:"vcf_content" binding:"required"`
}

// AnalyzeRequest selects an upload and the drugs to assess
type AnalyzeRequest struct {
	UploadID      string   `json:"upload_id" binding:"required"`
	Drugs         []string `json:"drugs" binding:"required,min=1"`
	CoMedications []string `json:"co_medications"`
}

// handleUpload parses and stores a VCF file for a patient
func (s *Server) handleUpload(c *gin.Context) {
	var req UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, domain.ErrInvalidInput, err.Error())
		return
	}

	ctx := c.Request.Context()

	parseResult := s.parser.Parse(req.VCFContent)
	if !parseResult.Success {
		s.badRequest(c, domain.ErrParseError, parseResult.Error)
		return
	}

	patient, err := s.store.GetPatientByCode(ctx, req.PatientCode)
	if err != nil {
		s.internalError(c, domain.ErrDatabaseError, err)
		return
	}
	if patient == nil {
		patient = &domain.Patient{
			ID:          uuid.New(),
			PatientCode: req.PatientCode,
			CreatedAt:   time.Now().UTC(),
		}
		if err := s.store.CreatePatient(ctx, patient); err != nil {
			s.internalError(c, domain.ErrDatabaseError, err)
			return
		}
	}

	upload := &domain.VCFUpload{
		ID:            uuid.New(),
		PatientID:     patient.ID,
		Filename:      req.Filename,
		ParsingStatus: "success",
		FormatVersion: parseResult.FormatVersion,
		TotalVariants: parseResult.TotalVariants,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.CreateUpload(ctx, upload); err != nil {
		s.internalError(c, domain.ErrDatabaseError, err)
		return
	}

	if err := s.store.SaveVariants(ctx, upload.ID, patient.ID, parseResult.Variants); err != nil {
		s.internalError(c, domain.ErrDatabaseError, err)
		return
	}

	s.logger.WithFields(logrus.Fields{
		"upload_id":    upload.ID,
		"patient_code": req.PatientCode,
		"variants":     parseResult.TotalVariants,
	}).Info("VCF uploaded")

	c.JSON(http.StatusCreated, gin.H{
		"upload_id":      upload.ID,
		"patient_id":     patient.ID,
		"format_version": parseResult.FormatVersion,
		"total_variants": parseResult.TotalVariants,
	})
}

// handleAnalyze runs the risk pipeline for the requested drugs
func (s *Server) handleAnalyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, domain.ErrInvalidInput, err.Error())
		return
	}

	uploadID, err := uuid.Parse(req.UploadID)
	if err != nil {
		s.validationError(c, domain.NewValidationError("upload_id", "must be a valid UUID", req.UploadID))
		return
	}

	drugs := make([]string, 0, len(req.Drugs))
	for _, drug := range req.Drugs {
		drug = strings.ToUpper(strings.TrimSpace(drug))
		if !service.IsSupportedDrug(drug) {
			s.validationError(c, domain.NewValidationError("drugs", "unsupported drug", drug))
			return
		}
		drugs = append(drugs, drug)
	}

	ctx := c.Request.Context()

	upload, err := s.store.GetUpload(ctx, uploadID)
	if err != nil {
		s.internalError(c, domain.ErrDatabaseError, err)
		return
	}
	if upload == nil {
		s.notFound(c, "upload not found")
		return
	}

	variants, err := s.store.ListVariants(ctx, uploadID)
	if err != nil {
		s.internalError(c, domain.ErrDatabaseError, err)
		return
	}

	run := &domain.AnalysisRun{
		ID:             uuid.New(),
		PatientID:      upload.PatientID,
		UploadID:       upload.ID,
		RequestedDrugs: drugs,
		CoMedications:  normalizeMedications(req.CoMedications),
		Status:         domain.RUN_QUEUED,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		s.internalError(c, domain.ErrDatabaseError, err)
		return
	}

	results, err := s.pipeline.Run(ctx, run, variants)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  domain.NewPipelineError(domain.ErrPipelineError, err.Error(), "", requestID(c)),
			"run_id": run.ID,
		})
		return
	}

	explanations := s.generateExplanations(ctx, run.ID)

	c.JSON(http.StatusOK, gin.H{
		"run_id":       run.ID,
		"status":       domain.RUN_COMPLETE,
		"results":      results,
		"explanations": explanations,
	})
}

// generateExplanations produces and persists an explanation for each of the
// run's records. Explanation failures are logged and skipped; they never
// fail the run.
func (s *Server) generateExplanations(ctx context.Context, runID uuid.UUID) []*domain.ExplanationRecord {
	records, err := s.store.ListRiskRecords(ctx, runID)
	if err != nil {
		s.logger.WithError(err).WithField("run_id", runID).Warn("Could not load records for explanation")
		return nil
	}

	explanations := make([]*domain.ExplanationRecord, 0, len(records))
	for _, record := range records {
		explanation, err := s.explainer.Explain(ctx, record)
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"run_id": runID,
				"drug":   record.DrugName,
			}).Warn("Explanation generation failed")
			continue
		}
		if err := s.store.SaveExplanation(ctx, explanation); err != nil {
			s.logger.WithError(err).Warn("Could not persist explanation")
		}
		explanations = append(explanations, explanation)
	}

	return explanations
}

// handleResultsByPatient returns every stored risk record for a patient
func (s *Server) handleResultsByPatient(c *gin.Context) {
	code := c.Param("patient_code")
	ctx := c.Request.Context()

	patient, err := s.store.GetPatientByCode(ctx, code)
	if err != nil {
		s.internalError(c, domain.ErrDatabaseError, err)
		return
	}
	if patient == nil {
		s.notFound(c, "patient not found")
		return
	}

	records, err := s.store.ListRiskRecordsByPatient(ctx, patient.ID)
	if err != nil {
		s.internalError(c, domain.ErrDatabaseError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"patient_code": code,
		"records":      records,
	})
}

// handleAnalysisByID returns one run's stored risk records
func (s *Server) handleAnalysisByID(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		s.badRequest(c, domain.ErrInvalidInput, "analysis id must be a valid UUID")
		return
	}

	records, err := s.store.ListRiskRecords(c.Request.Context(), runID)
	if err != nil {
		s.internalError(c, domain.ErrDatabaseError, err)
		return
	}
	if len(records) == 0 {
		s.notFound(c, "analysis not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":  runID,
		"records": records,
	})
}

// handleListDrugs returns the supported drug panel
func (s *Server) handleListDrugs(c *gin.Context) {
	drugs := make([]gin.H, 0, len(service.SupportedDrugs))
	for _, drug := range service.SupportedDrugs {
		drugs = append(drugs, gin.H{
			"drug": drug,
			"gene": service.DrugToGene[drug],
		})
	}
	c.JSON(http.StatusOK, gin.H{"drugs": drugs})
}

// handleListGenes returns the supported pharmacogene panel
func (s *Server) handleListGenes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"genes": service.SupportedGenes})
}

// requestID reads the correlation id the middleware attached to the request
func requestID(c *gin.Context) string {
	return c.GetString("correlation_id")
}

func (s *Server) errorResponse(c *gin.Context, status int, code, message, details string) {
	c.JSON(status, gin.H{
		"error": domain.NewPipelineError(code, message, details, requestID(c)),
	})
}

func (s *Server) badRequest(c *gin.Context, code, message string) {
	s.errorResponse(c, http.StatusBadRequest, code, message, "")
}

func (s *Server) validationError(c *gin.Context, verr *domain.ValidationError) {
	s.errorResponse(c, http.StatusBadRequest, domain.ErrInvalidInput, verr.Error(), "")
}

func (s *Server) notFound(c *gin.Context, message string) {
	s.errorResponse(c, http.StatusNotFound, domain.ErrNotFound, message, "")
}

func (s *Server) internalError(c *gin.Context, code string, err error) {
	s.logger.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
	s.errorResponse(c, http.StatusInternalServerError, code, "internal server error", "")
}

func normalizeMedications(meds []string) []string {
	out := make([]string, 0, len(meds))
	for _, med := range meds {
		med = strings.TrimSpace(med)
		if med != "" {
			out = append(out, med)
		}
	}
	return out
}
