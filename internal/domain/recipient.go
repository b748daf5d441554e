package domain

import "strings"

// RecipientID is an opaque notification recipient identifier (for the
// Discord transport, a user snowflake).
type RecipientID string

// NormalizeRecipient trims whitespace and rejects empty identifiers.
func NormalizeRecipient(id RecipientID) (RecipientID, error) {
	v := RecipientID(strings.TrimSpace(string(id)))
	if v == "" {
		return "", ErrInvalidRecipient
	}
	return v, nil
}

// RecipientSet is a set of unique recipient identifiers.
type RecipientSet map[RecipientID]struct{}

// NewRecipientSet builds a set from ids, dropping duplicates.
func NewRecipientSet(ids ...RecipientID) RecipientSet {
	s := make(RecipientSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether id is a member.
func (s RecipientSet) Contains(id RecipientID) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id and reports whether it was new.
func (s RecipientSet) Add(id RecipientID) bool {
	if s.Contains(id) {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Remove deletes ids from the set. Missing ids are ignored.
func (s RecipientSet) Remove(ids ...RecipientID) {
	for _, id := range ids {
		delete(s, id)
	}
}

// Slice returns the members in unspecified order.
func (s RecipientSet) Slice() []RecipientID {
	out := make([]RecipientID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}
