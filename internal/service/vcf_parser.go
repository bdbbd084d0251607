package service

import (
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pgx-risk-server/internal/domain"
)

// VCFParser parses VCF 4.x file content into structured variant records.
//
// Validation rules:
//   - content must declare ##fileformat=VCFv4.x
//   - at least one data row is required
//   - at least one row must carry a GENE= tag in INFO
//
// Malformed data rows (fewer than 8 tab-delimited fields) are skipped, not
// fatal. Row order is preserved and nothing is deduplicated.
type VCFParser struct {
	logger *logrus.Logger
}

// NewVCFParser creates a new parser
func NewVCFParser(logger *logrus.Logger) *VCFParser {
	return &VCFParser{logger: logger}
}

// Parse parses raw VCF content. All failure modes are recoverable: the
// result carries a structured error instead of the method returning one.
func (p *VCFParser) Parse(content string) *domain.ParseResult {
	var (
		formatVersion string
		headerCols    []string
		variants      []domain.VariantRecord
		geneTagSeen   bool
	)

	for _, rawLine := range strings.Split(content, "\n") {
		line := strings.TrimRight(rawLine, "\r")

		// meta lines
		if strings.HasPrefix(line, "##") {
			if strings.HasPrefix(line, "##fileformat=") {
				formatVersion = strings.TrimSpace(strings.SplitN(line, "=", 2)[1])
			}
			continue
		}

		// column header line
		if strings.HasPrefix(line, "#CHROM") {
			headerCols = strings.Split(strings.TrimLeft(line, "#"), "\t")
			continue
		}

		// data rows before any header are unusable
		if len(headerCols) == 0 || line == "" {
			continue
		}

		parts := strings.Split(line, "\t")
		if len(parts) < 8 {
			p.logger.WithField("fields", len(parts)).Debug("Skipping malformed VCF data row")
			continue
		}

		row := make(map[string]string, len(headerCols))
		for i, col := range headerCols {
			if i < len(parts) {
				row[col] = parts[i]
			}
		}

		info := parseInfoField(row["INFO"])
		gene := info["GENE"]
		if gene != "" {
			geneTagSeen = true
		}

		variants = append(variants, domain.VariantRecord{
			RSID:         normalizeID(row["ID"]),
			Chromosome:   strings.TrimPrefix(row["CHROM"], "chr"),
			Position:     parsePosition(row["POS"]),
			RefAllele:    row["REF"],
			AltAllele:    row["ALT"],
			Genotype:     extractGenotype(row, headerCols),
			StarAllele:   info["STAR"],
			Gene:         gene,
			QualityScore: parseQuality(row["QUAL"]),
			FilterStatus: defaultFilter(row["FILTER"]),
		})
	}

	if !strings.Contains(formatVersion, "VCFv4") {
		return &domain.ParseResult{
			Success: false,
			Error:   "invalid VCF: file must declare ##fileformat=VCFv4",
		}
	}
	if len(variants) == 0 {
		return &domain.ParseResult{
			Success: false,
			Error:   "invalid VCF: no variant data rows found",
		}
	}
	if !geneTagSeen {
		return &domain.ParseResult{
			Success: false,
			Error:   "invalid VCF: no GENE= tag found in INFO column, cannot determine pharmacogene",
		}
	}

	p.logger.WithFields(logrus.Fields{
		"format_version": formatVersion,
		"variants":       len(variants),
	}).Info("VCF parsed successfully")

	return &domain.ParseResult{
		Success:       true,
		Variants:      variants,
		FormatVersion: formatVersion,
		TotalVariants: len(variants),
	}
}

// parseInfoField parses the semicolon-delimited KEY=VALUE INFO block.
// Bare keys default to "true".
func parseInfoField(info string) map[string]string {
	result := make(map[string]string)
	for _, token := range strings.Split(info, ";") {
		if key, value, found := strings.Cut(token, "="); found {
			result[strings.TrimSpace(key)] = strings.TrimSpace(value)
		} else if token = strings.TrimSpace(token); token != "" {
			result[token] = "true"
		}
	}
	return result
}

// extractGenotype pulls GT from the first sample column by zipping the
// FORMAT keys against the colon-delimited sample values.
func extractGenotype(row map[string]string, headerCols []string) string {
	if len(headerCols) <= 9 {
		return ""
	}

	sampleVal, ok := row[headerCols[9]]
	if !ok {
		return ""
	}

	formatKeys := strings.Split(row["FORMAT"], ":")
	sampleVals := strings.Split(sampleVal, ":")
	for i, key := range formatKeys {
		if key == "GT" && i < len(sampleVals) {
			return sampleVals[i]
		}
	}
	return ""
}

// parsePosition returns nil for non-numeric positions; the row is kept
func parsePosition(raw string) *int64 {
	pos, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &pos
}

// parseQuality treats "." and non-numeric values as missing
func parseQuality(raw string) *float64 {
	if raw == "." || raw == "" {
		return nil
	}
	q, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &q
}

func normalizeID(id string) string {
	id = strings.TrimSpace(id)
	if id == "." {
		return ""
	}
	return id
}

func defaultFilter(filter string) string {
	if filter == "" {
		return "."
	}
	return filter
}
