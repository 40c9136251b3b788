// Package access holds the authorization predicates for medical records.
// Everything here is pure: callers pass the asOf instant so one consistent
// snapshot is used for a whole query, and expiry stays a query-time filter
// rather than stored state.
package access

import (
	"time"

	"medvault/internal/model"
)

// GrantLive reports whether g authorizes anything at asOf.
// A grant with no expiry is permanent; an expired grant is inert but may
// still be stored (lazy expiry).
func GrantLive(g model.AccessGrant, asOf time.Time) bool {
	return g.ExpiresAt == nil || g.ExpiresAt.After(asOf)
}

// IsAuthorized reports whether principalID may read rec at asOf.
// The owner is always authorized, independent of the grants list. Grants are
// matched by principal id; the stored kind exists for directory validation,
// not for authorization.
func IsAuthorized(rec *model.MedicalRecord, principalID string, asOf time.Time) bool {
	if rec.OwnerID == principalID {
		return true
	}
	for _, g := range rec.Grants {
		if g.PrincipalID == principalID && GrantLive(g, asOf) {
			return true
		}
	}
	return false
}

// FilterVisible returns the records from recs that principalID may read at
// asOf, preserving input order. recs is a pre-filtered candidate set (owned
// or granted); this applies the expiry check the store cannot.
func FilterVisible(recs []model.MedicalRecord, principalID string, asOf time.Time) []model.MedicalRecord {
	out := make([]model.MedicalRecord, 0, len(recs))
	for _, rec := range recs {
		if IsAuthorized(&rec, principalID, asOf) {
			out = append(out, rec)
		}
	}
	return out
}

// HasGrant reports whether rec already carries a grant for the exact
// (principalID, kind) pair, live or expired. Duplicate pairs are rejected at
// grant time; changing an expiry requires revoke-then-grant.
func HasGrant(rec *model.MedicalRecord, principalID string, kind model.PrincipalKind) bool {
	for _, g := range rec.Grants {
		if g.PrincipalID == principalID && g.PrincipalKind == kind {
			return true
		}
	}
	return false
}
