package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"medvault/internal/model"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestGrantLive(t *testing.T) {
	now := ts("2026-08-30T12:00:00Z")
	past := ts("2026-08-29T12:00:00Z")
	future := ts("2026-08-31T12:00:00Z")

	tests := []struct {
		name  string
		grant model.AccessGrant
		want  bool
	}{
		{
			name:  "no expiry never expires",
			grant: model.AccessGrant{PrincipalID: "d1"},
			want:  true,
		},
		{
			name:  "future expiry is live",
			grant: model.AccessGrant{PrincipalID: "d1", ExpiresAt: &future},
			want:  true,
		},
		{
			name:  "past expiry is inert",
			grant: model.AccessGrant{PrincipalID: "d1", ExpiresAt: &past},
			want:  false,
		},
		{
			name:  "expiry exactly at asOf is inert",
			grant: model.AccessGrant{PrincipalID: "d1", ExpiresAt: &now},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GrantLive(tt.grant, now))
		})
	}
}

func TestIsAuthorized(t *testing.T) {
	now := ts("2026-08-30T12:00:00Z")
	past := ts("2026-08-29T12:00:00Z")
	future := ts("2026-08-31T12:00:00Z")

	rec := &model.MedicalRecord{
		ID:      "r1",
		OwnerID: "p1",
		Grants: []model.AccessGrant{
			{PrincipalID: "d1", PrincipalKind: model.KindDoctor, ExpiresAt: &future},
			{PrincipalID: "d2", PrincipalKind: model.KindDoctor, ExpiresAt: &past},
			{PrincipalID: "p2", PrincipalKind: model.KindPatient},
		},
	}

	t.Run("owner always authorized regardless of grants", func(t *testing.T) {
		assert.True(t, IsAuthorized(rec, "p1", now))
		assert.True(t, IsAuthorized(rec, "p1", now.Add(100*24*time.Hour)))
	})

	t.Run("live grant authorizes", func(t *testing.T) {
		assert.True(t, IsAuthorized(rec, "d1", now))
	})

	t.Run("expired grant does not authorize", func(t *testing.T) {
		assert.False(t, IsAuthorized(rec, "d2", now))
	})

	t.Run("permanent grant authorizes at any time", func(t *testing.T) {
		assert.True(t, IsAuthorized(rec, "p2", now.Add(365*24*time.Hour)))
	})

	t.Run("unknown principal is denied", func(t *testing.T) {
		assert.False(t, IsAuthorized(rec, "d9", now))
	})

	t.Run("grant expires when the clock passes its expiry", func(t *testing.T) {
		assert.True(t, IsAuthorized(rec, "d1", now))
		assert.False(t, IsAuthorized(rec, "d1", future.Add(time.Second)))
	})
}

func TestFilterVisible(t *testing.T) {
	now := ts("2026-08-30T12:00:00Z")
	past := ts("2026-08-29T12:00:00Z")
	future := ts("2026-08-31T12:00:00Z")

	recs := []model.MedicalRecord{
		{ID: "owned", OwnerID: "p1"},
		{ID: "granted-live", OwnerID: "p2", Grants: []model.AccessGrant{
			{PrincipalID: "p1", PrincipalKind: model.KindPatient, ExpiresAt: &future},
		}},
		{ID: "granted-expired", OwnerID: "p2", Grants: []model.AccessGrant{
			{PrincipalID: "p1", PrincipalKind: model.KindPatient, ExpiresAt: &past},
		}},
		{ID: "unrelated", OwnerID: "p3"},
	}

	got := FilterVisible(recs, "p1", now)

	ids := make([]string, 0, len(got))
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"owned", "granted-live"}, ids)
}

func TestHasGrant(t *testing.T) {
	past := ts("2026-08-29T12:00:00Z")
	rec := &model.MedicalRecord{
		OwnerID: "p1",
		Grants: []model.AccessGrant{
			{PrincipalID: "d1", PrincipalKind: model.KindDoctor, ExpiresAt: &past},
		},
	}

	// An expired grant still blocks a duplicate; revoke-then-grant is the
	// way to change an expiry.
	assert.True(t, HasGrant(rec, "d1", model.KindDoctor))
	assert.False(t, HasGrant(rec, "d1", model.KindPatient))
	assert.False(t, HasGrant(rec, "d2", model.KindDoctor))
}
