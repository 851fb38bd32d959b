package model

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Mapper errors. These are domain invariant violations, not I/O failures.
var (
	// ErrEmptyRoster is returned by BuildMapping when called with no entries.
	ErrEmptyRoster = errors.New("roster is empty")

	// ErrConflictingIdentity is returned when the same real identity appears
	// twice with different external IDs.
	ErrConflictingIdentity = errors.New("conflicting roster entries for identity")

	// ErrUnknownIdentity is returned when a real identity was not part of the
	// mapping when it was built. The mapping never grows mid-batch.
	ErrUnknownIdentity = errors.New("identity not in mapping")

	// ErrUnknownPseudonym is returned on reverse lookup of a pseudonym the
	// mapping never assigned.
	ErrUnknownPseudonym = errors.New("pseudonym not in mapping")

	// ErrCorruptMapping is returned when a stored mapping is not a
	// well-formed bijection (duplicate pseudonyms or duplicate identities).
	ErrCorruptMapping = errors.New("corrupt identity mapping")
)

// RosterEntry is one author in a batch: the real identity plus an optional
// gradebook-assigned ID carried along for later correlation. The external ID
// is never an input to pseudonym generation.
type RosterEntry struct {
	Identity   string
	ExternalID string
}

// MappingEntry is one persisted identity-to-pseudonym record.
type MappingEntry struct {
	RealIdentity string `json:"real_identity"`
	Pseudonym    string `json:"pseudonym"`
	ExternalID   string `json:"external_id,omitempty"`
}

// Mapping is a frozen bijection between real identities and sequential
// pseudonyms for one batch. Pseudonyms are assigned in first-seen order at
// build time and never change afterwards, so that content anonymized during
// scoring can be re-identified during review and upload. All lookups are
// read-only; a Mapping is safe for concurrent use once built.
type Mapping struct {
	entries     []MappingEntry
	byIdentity  map[string]int
	byPseudonym map[string]int
}

// BuildMapping assigns pseudonyms Student_001, Student_002, ... to the given
// roster in first-seen order. Exact duplicate entries collapse into one;
// the same identity appearing with two different external IDs is rejected
// with ErrConflictingIdentity. An empty roster is rejected with
// ErrEmptyRoster.
func BuildMapping(roster []RosterEntry) (*Mapping, error) {
	if len(roster) == 0 {
		return nil, ErrEmptyRoster
	}

	m := &Mapping{
		byIdentity:  make(map[string]int, len(roster)),
		byPseudonym: make(map[string]int, len(roster)),
	}

	for _, r := range roster {
		if r.Identity == "" {
			return nil, fmt.Errorf("roster entry with empty identity: %w", ErrEmptyRoster)
		}

		if i, ok := m.byIdentity[r.Identity]; ok {
			prev := m.entries[i]
			if r.ExternalID != "" && prev.ExternalID != "" && r.ExternalID != prev.ExternalID {
				return nil, fmt.Errorf("identity %q has external IDs %q and %q: %w",
					r.Identity, prev.ExternalID, r.ExternalID, ErrConflictingIdentity)
			}
			if prev.ExternalID == "" && r.ExternalID != "" {
				m.entries[i].ExternalID = r.ExternalID
			}
			continue
		}

		entry := MappingEntry{
			RealIdentity: r.Identity,
			Pseudonym:    pseudonymFor(len(m.entries) + 1),
			ExternalID:   r.ExternalID,
		}
		m.byIdentity[entry.RealIdentity] = len(m.entries)
		m.byPseudonym[entry.Pseudonym] = len(m.entries)
		m.entries = append(m.entries, entry)
	}

	return m, nil
}

// NewMappingFromEntries reconstructs a Mapping from stored entries,
// re-validating that the stored form is a bijection. Duplicate pseudonyms,
// duplicate identities, or blank fields yield ErrCorruptMapping.
func NewMappingFromEntries(entries []MappingEntry) (*Mapping, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no entries: %w", ErrCorruptMapping)
	}

	m := &Mapping{
		entries:     make([]MappingEntry, 0, len(entries)),
		byIdentity:  make(map[string]int, len(entries)),
		byPseudonym: make(map[string]int, len(entries)),
	}

	for _, e := range entries {
		if e.RealIdentity == "" || e.Pseudonym == "" {
			return nil, fmt.Errorf("entry with blank identity or pseudonym: %w", ErrCorruptMapping)
		}
		if _, ok := m.byIdentity[e.RealIdentity]; ok {
			return nil, fmt.Errorf("identity %q appears twice: %w", e.RealIdentity, ErrCorruptMapping)
		}
		if _, ok := m.byPseudonym[e.Pseudonym]; ok {
			return nil, fmt.Errorf("pseudonym %q appears twice: %w", e.Pseudonym, ErrCorruptMapping)
		}
		m.byIdentity[e.RealIdentity] = len(m.entries)
		m.byPseudonym[e.Pseudonym] = len(m.entries)
		m.entries = append(m.entries, e)
	}

	return m, nil
}

// Pseudonym returns the pseudonym assigned to realIdentity at build time.
// Identities that joined after the mapping was built are rejected rather
// than silently added: once anonymized content has started flowing to the
// scorer, the batch roster is closed.
func (m *Mapping) Pseudonym(realIdentity string) (string, error) {
	i, ok := m.byIdentity[realIdentity]
	if !ok {
		return "", fmt.Errorf("%q: %w", realIdentity, ErrUnknownIdentity)
	}
	return m.entries[i].Pseudonym, nil
}

// Resolve is the inverse lookup: pseudonym back to the full roster record.
func (m *Mapping) Resolve(pseudonym string) (MappingEntry, error) {
	i, ok := m.byPseudonym[pseudonym]
	if !ok {
		return MappingEntry{}, fmt.Errorf("%q: %w", pseudonym, ErrUnknownPseudonym)
	}
	return m.entries[i], nil
}

// Entries returns a copy of all records in pseudonym assignment order.
func (m *Mapping) Entries() []MappingEntry {
	out := make([]MappingEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len returns the number of identities in the mapping.
func (m *Mapping) Len() int {
	return len(m.entries)
}

// Redact replaces occurrences of every known real identity in text with its
// pseudonym, case-insensitively. Longer names are replaced first so that
// "Mary Anne Lee" does not first collapse to a partial replacement of
// "Mary". First names are also replaced, since submission bodies commonly
// carry a bare first name in headers and signatures.
func (m *Mapping) Redact(text string) string {
	if text == "" || len(m.entries) == 0 {
		return text
	}

	type replacement struct {
		name      string
		pseudonym string
	}

	var repls []replacement
	for _, e := range m.entries {
		repls = append(repls, replacement{name: e.RealIdentity, pseudonym: e.Pseudonym})
		if first, _, ok := strings.Cut(e.RealIdentity, " "); ok && len(first) > 2 {
			repls = append(repls, replacement{name: first, pseudonym: e.Pseudonym})
		}
	}

	sort.SliceStable(repls, func(i, j int) bool {
		return len(repls[i].name) > len(repls[j].name)
	})

	for _, r := range repls {
		re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(r.name))
		if err != nil {
			continue
		}
		text = re.ReplaceAllString(text, r.pseudonym)
	}

	return text
}

// pseudonymFor formats the nth pseudonym. Width grows past three digits for
// rosters larger than 999.
func pseudonymFor(n int) string {
	return fmt.Sprintf("Student_%03d", n)
}
