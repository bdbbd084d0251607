package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgx-risk-server/internal/domain"
)

func TestFindInteractions(t *testing.T) {
	reg := NewInMemoryRegistry()

	t.Run("case-insensitive match", func(t *testing.T) {
		matches := reg.FindInteractions("CYP2D6", []string{"Paroxetine"})
		require.Len(t, matches, 1)
		assert.Equal(t, "PAROXETINE", matches[0].DrugName)
		assert.Equal(t, domain.INHIBITOR, matches[0].Type)
		assert.Equal(t, 0.0, matches[0].Factor)
	})

	t.Run("gene filters matches", func(t *testing.T) {
		// rifampin induces both CYP2C19 and CYP2C9; only the asked gene returns
		matches := reg.FindInteractions("CYP2C19", []string{"rifampin"})
		require.Len(t, matches, 1)
		assert.Equal(t, "CYP2C19", matches[0].Gene)
		assert.Equal(t, domain.INDUCER, matches[0].Type)
		assert.Equal(t, 2.0, matches[0].Factor)
	})

	t.Run("multiple matches preserve seed order", func(t *testing.T) {
		matches := reg.FindInteractions("CYP2D6", []string{"duloxetine", "paroxetine", "terbinafine"})
		require.Len(t, matches, 3)
		assert.Equal(t, "PAROXETINE", matches[0].DrugName)
		assert.Equal(t, "DULOXETINE", matches[1].DrugName)
		assert.Equal(t, "TERBINAFINE", matches[2].DrugName)
	})

	t.Run("no medications", func(t *testing.T) {
		assert.Empty(t, reg.FindInteractions("CYP2D6", nil))
	})

	t.Run("no matching medications", func(t *testing.T) {
		assert.Empty(t, reg.FindInteractions("CYP2D6", []string{"aspirin"}))
	})

	t.Run("unknown gene", func(t *testing.T) {
		assert.Empty(t, reg.FindInteractions("CYP3A4", []string{"paroxetine"}))
	})
}

func TestEntriesReturnsCopy(t *testing.T) {
	reg := NewInMemoryRegistry()

	entries := reg.Entries()
	require.NotEmpty(t, entries)

	entries[0].DrugName = "MUTATED"
	assert.NotEqual(t, "MUTATED", reg.Entries()[0].DrugName)
}
