package model

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Fold canonicalizes a string for identity comparison: trimmed, inner
// whitespace collapsed, NFKC-normalized and case-folded.
func Fold(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	// Casers carry state and are not safe for concurrent use.
	return cases.Fold().String(norm.NFKC.String(s))
}

// NaturalKey returns the business identity used for deduplication. Name and
// address identify a lead when both are present; otherwise the provenance
// URL scopes the name.
func NaturalKey(name, address, sourceURL *string) string {
	n := Fold(Deref(name))
	if a := Fold(Deref(address)); a != "" && n != "" {
		return "na:" + n + "|" + a
	}
	return "su:" + strings.TrimSpace(Deref(sourceURL)) + "|" + n
}

// Key returns the lead's natural key.
func (l Lead) Key() string {
	return NaturalKey(l.Name, l.Address, l.SourceURL)
}
