package caller

import (
	"context"

	"github.com/pgx-risk-server/internal/domain"
)

// StubCaller satisfies the GenotypeCaller contract without a backend:
// every gene resolves to Unknown. Used when no caller is configured and
// for deterministic testing; the pipeline degrades gracefully around it.
type StubCaller struct {
	Reason string
}

// NewStubCaller creates a stub caller
func NewStubCaller() *StubCaller {
	return &StubCaller{Reason: "genotype caller not configured"}
}

// CallGenes returns the Unknown contract for every gene
func (s *StubCaller) CallGenes(_ context.Context, _ string, genes []string) map[string]domain.GeneCallResult {
	results := make(map[string]domain.GeneCallResult, len(genes))
	for _, gene := range genes {
		results[gene] = unknownResult(s.Reason)
	}
	return results
}

// StaticCaller returns a fixed result set per gene. Intended for tests.
type StaticCaller struct {
	Results map[string]domain.GeneCallResult
}

// CallGenes returns the configured result for each gene, or Unknown for
// genes without one
func (s *StaticCaller) CallGenes(_ context.Context, _ string, genes []string) map[string]domain.GeneCallResult {
	results := make(map[string]domain.GeneCallResult, len(genes))
	for _, gene := range genes {
		if r, ok := s.Results[gene]; ok {
			results[gene] = r
		} else {
			results[gene] = unknownResult("no call available")
		}
	}
	return results
}
