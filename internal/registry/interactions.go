// Package registry holds the drug-gene inhibitor/inducer reference data
// consumed by the phenoconversion engine. The registry is seeded once and
// only ever read.
package registry

import (
	"strings"

	"github.com/pgx-risk-server/internal/domain"
)

// seedEntries is the fixed interaction reference set. Factor 0.0 means the
// gene's activity is fully suppressed, 0.5 halved, 2.0 doubled (inducer).
// Order matters: ties on deviation from 1.0 resolve to the earlier entry.
var seedEntries = []domain.InteractionEntry{
	{DrugName: "PAROXETINE", Gene: "CYP2D6", Type: domain.INHIBITOR, Strength: "strong", Factor: 0.0, Source: "FDA"},
	{DrugName: "FLUOXETINE", Gene: "CYP2D6", Type: domain.INHIBITOR, Strength: "strong", Factor: 0.0, Source: "FDA"},
	{DrugName: "BUPROPION", Gene: "CYP2D6", Type: domain.INHIBITOR, Strength: "strong", Factor: 0.0, Source: "FDA"},
	{DrugName: "DULOXETINE", Gene: "CYP2D6", Type: domain.INHIBITOR, Strength: "moderate", Factor: 0.5, Source: "CPIC"},
	{DrugName: "TERBINAFINE", Gene: "CYP2D6", Type: domain.INHIBITOR, Strength: "strong", Factor: 0.0, Source: "FDA"},
	{DrugName: "OMEPRAZOLE", Gene: "CYP2C19", Type: domain.INHIBITOR, Strength: "moderate", Factor: 0.5, Source: "CPIC"},
	{DrugName: "FLUVOXAMINE", Gene: "CYP2C19", Type: domain.INHIBITOR, Strength: "strong", Factor: 0.0, Source: "FDA"},
	{DrugName: "RIFAMPIN", Gene: "CYP2C19", Type: domain.INDUCER, Strength: "strong", Factor: 2.0, Source: "FDA"},
	{DrugName: "FLUCONAZOLE", Gene: "CYP2C9", Type: domain.INHIBITOR, Strength: "strong", Factor: 0.0, Source: "FDA"},
	{DrugName: "AMIODARONE", Gene: "CYP2C9", Type: domain.INHIBITOR, Strength: "moderate", Factor: 0.5, Source: "FDA"},
	{DrugName: "RIFAMPIN", Gene: "CYP2C9", Type: domain.INDUCER, Strength: "strong", Factor: 2.0, Source: "FDA"},
}

// InMemoryRegistry serves interaction lookups from the static seed set.
// Safe for concurrent use: entries are never mutated after construction.
type InMemoryRegistry struct {
	entries []domain.InteractionEntry
}

// NewInMemoryRegistry creates a registry holding the default seed data
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{entries: seedEntries}
}

// NewInMemoryRegistryWithEntries creates a registry from explicit entries,
// keeping their order. Intended for tests and alternate seed sets.
func NewInMemoryRegistryWithEntries(entries []domain.InteractionEntry) *InMemoryRegistry {
	return &InMemoryRegistry{entries: entries}
}

// FindInteractions returns every entry matching the gene and any of the
// medication names, case-insensitively, in registry order.
func (r *InMemoryRegistry) FindInteractions(gene string, medications []string) []domain.InteractionEntry {
	if len(medications) == 0 {
		return nil
	}

	wanted := make(map[string]struct{}, len(medications))
	for _, med := range medications {
		wanted[strings.ToUpper(strings.TrimSpace(med))] = struct{}{}
	}

	var matches []domain.InteractionEntry
	for _, entry := range r.entries {
		if entry.Gene != gene {
			continue
		}
		if _, ok := wanted[strings.ToUpper(entry.DrugName)]; ok {
			matches = append(matches, entry)
		}
	}
	return matches
}

// Entries returns the full reference set in seed order
func (r *InMemoryRegistry) Entries() []domain.InteractionEntry {
	out := make([]domain.InteractionEntry, len(r.entries))
	copy(out, r.entries)
	return out
}
