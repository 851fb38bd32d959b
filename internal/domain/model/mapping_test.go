package model_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradedesk/gradedesk/internal/domain/model"
)

func TestBuildMapping_FirstSeenOrder(t *testing.T) {
	roster := []model.RosterEntry{
		{Identity: "Charlie Nguyen", ExternalID: "301"},
		{Identity: "Alice Wong", ExternalID: "102"},
		{Identity: "Bob Doyle", ExternalID: "205"},
	}

	m, err := model.BuildMapping(roster)
	require.NoError(t, err)
	require.Equal(t, 3, m.Len())

	// Pseudonyms follow roster order, not alphabetical order.
	p, err := m.Pseudonym("Charlie Nguyen")
	require.NoError(t, err)
	assert.Equal(t, "Student_001", p)

	p, err = m.Pseudonym("Alice Wong")
	require.NoError(t, err)
	assert.Equal(t, "Student_002", p)

	p, err = m.Pseudonym("Bob Doyle")
	require.NoError(t, err)
	assert.Equal(t, "Student_003", p)
}

func TestBuildMapping_EmptyRoster(t *testing.T) {
	_, err := model.BuildMapping(nil)
	assert.ErrorIs(t, err, model.ErrEmptyRoster)

	_, err = model.BuildMapping([]model.RosterEntry{})
	assert.ErrorIs(t, err, model.ErrEmptyRoster)
}

func TestBuildMapping_BlankIdentity(t *testing.T) {
	_, err := model.BuildMapping([]model.RosterEntry{{Identity: ""}})
	assert.ErrorIs(t, err, model.ErrEmptyRoster)
}

func TestBuildMapping_DuplicatesCollapse(t *testing.T) {
	roster := []model.RosterEntry{
		{Identity: "Alice Wong", ExternalID: "102"},
		{Identity: "Alice Wong", ExternalID: "102"},
		{Identity: "Bob Doyle", ExternalID: "205"},
	}

	m, err := model.BuildMapping(roster)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())

	p, err := m.Pseudonym("Bob Doyle")
	require.NoError(t, err)
	assert.Equal(t, "Student_002", p)
}

func TestBuildMapping_ConflictingExternalID(t *testing.T) {
	roster := []model.RosterEntry{
		{Identity: "Alice Wong", ExternalID: "102"},
		{Identity: "Alice Wong", ExternalID: "999"},
	}

	_, err := model.BuildMapping(roster)
	assert.ErrorIs(t, err, model.ErrConflictingIdentity)
}

func TestBuildMapping_BackfillsEmptyExternalID(t *testing.T) {
	roster := []model.RosterEntry{
		{Identity: "Alice Wong"},
		{Identity: "Alice Wong", ExternalID: "102"},
	}

	m, err := model.BuildMapping(roster)
	require.NoError(t, err)
	require.Equal(t, 1, m.Len())

	entry, err := m.Resolve("Student_001")
	require.NoError(t, err)
	assert.Equal(t, "102", entry.ExternalID)
}

func TestMapping_RoundTrip(t *testing.T) {
	roster := []model.RosterEntry{
		{Identity: "Alice Wong", ExternalID: "102"},
		{Identity: "Bob Doyle", ExternalID: "205"},
		{Identity: "Charlie Nguyen", ExternalID: "301"},
	}

	m, err := model.BuildMapping(roster)
	require.NoError(t, err)

	for _, r := range roster {
		p, err := m.Pseudonym(r.Identity)
		require.NoError(t, err)

		entry, err := m.Resolve(p)
		require.NoError(t, err)
		assert.Equal(t, r.Identity, entry.RealIdentity)
		assert.Equal(t, r.ExternalID, entry.ExternalID)
	}
}

func TestMapping_UnknownLookups(t *testing.T) {
	m, err := model.BuildMapping([]model.RosterEntry{{Identity: "Alice Wong"}})
	require.NoError(t, err)

	_, err = m.Pseudonym("Nobody Here")
	assert.ErrorIs(t, err, model.ErrUnknownIdentity)

	_, err = m.Resolve("Student_099")
	assert.ErrorIs(t, err, model.ErrUnknownPseudonym)
}

func TestMapping_EntriesIsACopy(t *testing.T) {
	m, err := model.BuildMapping([]model.RosterEntry{
		{Identity: "Alice Wong"},
		{Identity: "Bob Doyle"},
	})
	require.NoError(t, err)

	entries := m.Entries()
	require.Len(t, entries, 2)
	entries[0].Pseudonym = "tampered"

	p, err := m.Pseudonym("Alice Wong")
	require.NoError(t, err)
	assert.Equal(t, "Student_001", p)
}

func TestMapping_WidthGrowsPast999(t *testing.T) {
	roster := make([]model.RosterEntry, 0, 1000)
	for i := 0; i < 1000; i++ {
		roster = append(roster, model.RosterEntry{Identity: fmt.Sprintf("Student Number %d", i)})
	}

	m, err := model.BuildMapping(roster)
	require.NoError(t, err)

	p, err := m.Pseudonym("Student Number 999")
	require.NoError(t, err)
	assert.Equal(t, "Student_1000", p)
}

func TestNewMappingFromEntries_Validates(t *testing.T) {
	t.Run("valid entries round-trip", func(t *testing.T) {
		orig, err := model.BuildMapping([]model.RosterEntry{
			{Identity: "Alice Wong", ExternalID: "102"},
			{Identity: "Bob Doyle", ExternalID: "205"},
		})
		require.NoError(t, err)

		restored, err := model.NewMappingFromEntries(orig.Entries())
		require.NoError(t, err)
		assert.Equal(t, orig.Entries(), restored.Entries())
	})

	t.Run("duplicate pseudonym rejected", func(t *testing.T) {
		_, err := model.NewMappingFromEntries([]model.MappingEntry{
			{RealIdentity: "Alice Wong", Pseudonym: "Student_001"},
			{RealIdentity: "Bob Doyle", Pseudonym: "Student_001"},
		})
		assert.ErrorIs(t, err, model.ErrCorruptMapping)
	})

	t.Run("duplicate identity rejected", func(t *testing.T) {
		_, err := model.NewMappingFromEntries([]model.MappingEntry{
			{RealIdentity: "Alice Wong", Pseudonym: "Student_001"},
			{RealIdentity: "Alice Wong", Pseudonym: "Student_002"},
		})
		assert.ErrorIs(t, err, model.ErrCorruptMapping)
	})

	t.Run("blank fields rejected", func(t *testing.T) {
		_, err := model.NewMappingFromEntries([]model.MappingEntry{
			{RealIdentity: "", Pseudonym: "Student_001"},
		})
		assert.ErrorIs(t, err, model.ErrCorruptMapping)

		_, err = model.NewMappingFromEntries(nil)
		assert.ErrorIs(t, err, model.ErrCorruptMapping)
	})
}

func TestMapping_Redact(t *testing.T) {
	m, err := model.BuildMapping([]model.RosterEntry{
		{Identity: "Mary Anne Lee", ExternalID: "11"},
		{Identity: "Mary Stone", ExternalID: "12"},
		{Identity: "Bo Li", ExternalID: "13"},
	})
	require.NoError(t, err)

	t.Run("full names replaced case-insensitively", func(t *testing.T) {
		got := m.Redact("Submitted by MARY STONE for review.")
		assert.Equal(t, "Submitted by Student_002 for review.", got)
	})

	t.Run("longest name wins", func(t *testing.T) {
		// "Mary Anne Lee" must be consumed whole, not as "Mary" + remainder.
		got := m.Redact("Author: Mary Anne Lee")
		assert.Equal(t, "Author: Student_001", got)
	})

	t.Run("bare first names replaced", func(t *testing.T) {
		got := m.Redact("Thanks, Mary!")
		// Both identities share the first name; the longer-named entry is
		// ordered first among equal-length candidates, but either pseudonym
		// proves the leak is closed.
		assert.NotContains(t, got, "Mary")
		assert.Contains(t, got, "Student_")
	})

	t.Run("two-letter first names left alone", func(t *testing.T) {
		got := m.Redact("Boxes of bolts")
		assert.Equal(t, "Boxes of bolts", got)

		got = m.Redact("Essay by Bo Li")
		assert.Equal(t, "Essay by Student_003", got)
	})

	t.Run("empty text passes through", func(t *testing.T) {
		assert.Equal(t, "", m.Redact(""))
	})
}
