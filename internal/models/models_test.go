package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sujalbistaa/allgood/internal/streak"
)

func TestParsePostType(t *testing.T) {
	cases := map[string]PostType{
		"donation":         PostDonation,
		" volunteering ":   PostVolunteering,
		"kindness":         PostKindness,
		"personalKindness": PostKindness,
	}
	for in, want := range cases {
		got, ok := ParsePostType(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "Donation", "all", "gift"} {
		_, ok := ParsePostType(bad)
		assert.False(t, ok, bad)
	}
}

func TestNewUserAndDisplayName(t *testing.T) {
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	u := NewUser("u1", now)

	assert.True(t, u.IsAnonymous)
	assert.Equal(t, streak.Sentinel, u.LastPost)
	assert.Equal(t, streak.Sentinel, u.LastOpen)
	assert.False(t, u.HasUsername())
	assert.Equal(t, AnonymousName, u.DisplayName())

	empty := ""
	u.Username = &empty
	assert.False(t, u.HasUsername())
	assert.Equal(t, AnonymousName, u.DisplayName())

	name := "helper"
	u.Username = &name
	assert.True(t, u.HasUsername())
	assert.Equal(t, "helper", u.DisplayName())
}
