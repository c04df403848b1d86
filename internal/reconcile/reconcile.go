// Package reconcile classifies externally sourced candidates against the
// existing persons. It only proposes merges; applying them is up to the caller.
package reconcile

import (
	"slices"
	"strings"
	"unicode"

	"github.com/tartampluch/go-birthday-reminders/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MatchRule records how a candidate was matched.
type MatchRule string

const (
	RuleNone     MatchRule = ""
	RuleOriginID MatchRule = "origin_id"
	RuleName     MatchRule = "name"
)

// Proposal is the merge suggested for one candidate.
type Proposal struct {
	Candidate model.Candidate
	// Existing is the matched person, zero for new candidates.
	Existing model.Person
	// Merged is the person as it would be stored if the proposal is accepted.
	// New candidates have no ID yet.
	Merged model.Person
	Rule   MatchRule
	// AutoMerge is true when the merge is safe to apply without asking.
	AutoMerge bool
	// NewIndex points into Result.New when Existing is a person introduced by
	// an earlier candidate of the same batch. It is -1 otherwise.
	NewIndex int
}

// Result groups proposals by classification, in candidate order.
type Result struct {
	New        []Proposal
	Duplicates []Proposal
	Conflicts  []Proposal
}

// known is a person candidates can match: stored, or accepted as new earlier
// in the batch.
type known struct {
	person model.Person
	name   string
	// newIndex is the position in Result.New, -1 for stored persons.
	newIndex int
}

// Reconcile matches every candidate first by origin id, then by normalized
// full name. It is deterministic and never mutates its inputs.
//
// An origin-id match whose birthday differs from a set birthday is a
// conflict. Anything else matched by origin id is an auto-merge duplicate.
// A name match is a duplicate that needs confirmation. When both sides carry
// distinct origin ids, names only match on equal birthdays with a known year.
//
// Candidates are also matched against the new persons of earlier candidates:
// an origin-id match folds into that new person, a name match is a duplicate
// of it.
func Reconcile(existing []model.Person, candidates []model.Candidate) Result {
	pool := make([]known, 0, len(existing)+len(candidates))
	byOrigin := make(map[string]int)
	register := func(p model.Person, newIndex int) {
		if p.ExternalID != "" {
			if _, dup := byOrigin[p.ExternalID]; !dup {
				byOrigin[p.ExternalID] = len(pool)
			}
		}
		pool = append(pool, known{person: p, name: NormalizeName(p.FullName()), newIndex: newIndex})
	}
	for _, p := range existing {
		register(p, -1)
	}

	var res Result
	for _, c := range candidates {
		if c.Birthday != nil && !c.Birthday.Valid() {
			c.Birthday = nil
		}

		if i, ok := byOrigin[c.OriginID]; ok && c.OriginID != "" {
			k := pool[i]
			if c.Birthday == nil || k.person.Birthday == nil || *c.Birthday == *k.person.Birthday {
				merged := fill(k.person, c)
				if k.newIndex >= 0 {
					res.New[k.newIndex].Merged = merged
					pool[i].person = merged
					pool[i].name = NormalizeName(merged.FullName())
					continue
				}
				res.Duplicates = append(res.Duplicates, Proposal{
					Candidate: c,
					Existing:  k.person.Clone(),
					Merged:    merged,
					Rule:      RuleOriginID,
					AutoMerge: true,
					NewIndex:  -1,
				})
				continue
			}
			res.Conflicts = append(res.Conflicts, Proposal{
				Candidate: c,
				Existing:  k.person.Clone(),
				Merged:    withBirthday(k.person, *c.Birthday),
				Rule:      RuleOriginID,
				NewIndex:  k.newIndex,
			})
			continue
		}

		if i := matchByName(pool, c); i >= 0 {
			k := pool[i]
			res.Duplicates = append(res.Duplicates, Proposal{
				Candidate: c,
				Existing:  k.person.Clone(),
				Merged:    fill(k.person, c),
				Rule:      RuleName,
				NewIndex:  k.newIndex,
			})
			continue
		}

		p := fromCandidate(c)
		register(p, len(res.New))
		res.New = append(res.New, Proposal{Candidate: c, Merged: p.Clone(), NewIndex: -1})
	}

	// Proposals against a batch person see its final shape.
	for i, d := range res.Duplicates {
		if d.NewIndex >= 0 {
			p := res.New[d.NewIndex].Merged
			res.Duplicates[i].Existing = p.Clone()
			res.Duplicates[i].Merged = fill(p, d.Candidate)
		}
	}
	for i, d := range res.Conflicts {
		if d.NewIndex >= 0 {
			p := res.New[d.NewIndex].Merged
			res.Conflicts[i].Existing = p.Clone()
			res.Conflicts[i].Merged = withBirthday(p, *d.Candidate.Birthday)
		}
	}
	return res
}

func matchByName(pool []known, c model.Candidate) int {
	name := NormalizeName(c.FullName())
	if name == "" {
		return -1
	}
	for i, k := range pool {
		if k.name != name {
			continue
		}
		p := k.person
		if p.ExternalID != "" && c.OriginID != "" {
			if p.Birthday == nil || c.Birthday == nil || *p.Birthday != *c.Birthday || !p.Birthday.YearKnown() {
				continue
			}
		}
		if p.Birthday != nil && c.Birthday != nil && !p.Birthday.Compatible(*c.Birthday) {
			continue
		}
		return i
	}
	return -1
}

func withBirthday(p model.Person, b model.Birthday) model.Person {
	out := p.Clone()
	out.Birthday = &b
	return out
}

// fill copies into a clone of p what c knows and p lacks. Set fields are never overwritten.
func fill(p model.Person, c model.Candidate) model.Person {
	out := p.Clone()
	if out.ExternalID == "" {
		out.ExternalID = c.OriginID
	}
	if out.Birthday == nil && c.Birthday != nil {
		b := *c.Birthday
		out.Birthday = &b
	} else if out.Birthday != nil && c.Birthday != nil && out.Birthday.Year == 0 && out.Birthday.Compatible(*c.Birthday) {
		out.Birthday.Year = c.Birthday.Year
	}
	if out.GivenName == "" {
		out.GivenName = c.GivenName
	}
	if out.FamilyName == "" {
		out.FamilyName = c.FamilyName
	}
	if out.DisplayName == "" {
		out.DisplayName = c.DisplayName
	}
	return out
}

func fromCandidate(c model.Candidate) model.Person {
	p := model.Person{
		GivenName:   c.GivenName,
		FamilyName:  c.FamilyName,
		DisplayName: c.DisplayName,
		ExternalID:  c.OriginID,
	}
	if c.Birthday != nil {
		b := *c.Birthday
		p.Birthday = &b
	}
	return p
}

// NormalizeName folds case and strips diacritics, then sorts the name's
// words so "Martin, Éloïse" and "eloise martin" compare equal.
func NormalizeName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}
	s = cases.Fold().String(s)

	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	slices.Sort(words)
	return strings.Join(words, " ")
}
