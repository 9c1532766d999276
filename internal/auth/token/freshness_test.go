package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pysugar/launcher-accounts/internal/db/models"
)

func TestClassify(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		expires time.Time
		refresh string
		access  string
		want    Freshness
	}{
		{name: "well before expiry", expires: now.Add(time.Hour), access: "tok", want: Fresh},
		{name: "just outside skew", expires: now.Add(DefaultSkew + time.Second), access: "tok", want: Fresh},
		{name: "inside skew with refresh token", expires: now.Add(DefaultSkew / 2), access: "tok", refresh: "ref", want: Refreshable},
		{name: "inside skew without refresh token", expires: now.Add(DefaultSkew / 2), access: "tok", want: Dead},
		{name: "expired with refresh token", expires: now.Add(-time.Hour), access: "tok", refresh: "ref", want: Refreshable},
		{name: "expired without refresh token", expires: now.Add(-time.Hour), access: "tok", want: Dead},
		{name: "missing access token", expires: now.Add(time.Hour), refresh: "ref", want: Refreshable},
		{name: "zero expiry", access: "tok", refresh: "ref", want: Refreshable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := models.Account{UUID: "u1", AccessToken: tt.access, RefreshToken: tt.refresh, ExpiresAt: tt.expires}
			got := Classify(acc, now, DefaultSkew)
			assert.Equal(t, tt.want, got)
			// Pure: same inputs, same answer.
			assert.Equal(t, got, Classify(acc, now, DefaultSkew))
		})
	}
}

func TestClassify_NeverBecomesFreshAgain(t *testing.T) {
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	for _, refresh := range []string{"", "ref"} {
		acc := models.Account{UUID: "u1", AccessToken: "tok", RefreshToken: refresh, ExpiresAt: start.Add(10 * time.Minute)}

		left := false
		for step := time.Duration(0); step <= 20*time.Minute; step += 15 * time.Second {
			got := Classify(acc, start.Add(step), DefaultSkew)
			if got != Fresh {
				left = true
				if refresh == "" {
					assert.Equal(t, Dead, got)
				} else {
					assert.Equal(t, Refreshable, got)
				}
			} else {
				assert.False(t, left, "token became fresh again at +%s", step)
			}
		}
		assert.True(t, left)
	}
}

func TestFreshnessString(t *testing.T) {
	assert.Equal(t, "fresh", Fresh.String())
	assert.Equal(t, "refreshable", Refreshable.String())
	assert.Equal(t, "dead", Dead.String())
	assert.Equal(t, "unknown", Freshness(42).String())
}
