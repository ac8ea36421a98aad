// Package streak computes posting and app-open streaks and daily post
// eligibility. All functions are pure; the calendar used for day
// boundaries is always passed in.
package streak

import "time"

// Window is the longest gap between two actions that keeps a streak alive.
// It lets a user skip one calendar day.
const Window = 48 * time.Hour

// Sentinel stands in for "never happened" on lastPost and lastOpen.
var Sentinel = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// PostState is the post streak slice of a user record.
type PostState struct {
	LastPost time.Time
	Streak   int
	Best     int
}

// ApplyPost returns the post streak after a successful post at now.
func ApplyPost(s PostState, now time.Time) PostState {
	next := 1
	if now.Sub(s.LastPost) <= Window {
		next = s.Streak + 1
	}
	return PostState{
		LastPost: latest(s.LastPost, now),
		Streak:   next,
		Best:     max(s.Best, next),
	}
}

// OpenState is the slice of a user record touched by an app open.
type OpenState struct {
	LastOpen   time.Time
	LastPost   time.Time
	StreakPost int
	StreakApp  int
	AppBest    int
}

// ApplyOpen returns the state after the app was opened at now. A post
// streak whose last post is older than Window drops to zero; the app
// streak holds on the same calendar day, grows within Window and
// restarts at one otherwise.
func ApplyOpen(s OpenState, now time.Time, loc *time.Location) OpenState {
	out := s

	if now.Sub(s.LastPost) > Window {
		out.StreakPost = 0
	}

	switch {
	case s.LastOpen.IsZero():
		out.StreakApp = 1
	case SameDay(s.LastOpen, now, loc):
		out.StreakApp = max(1, s.StreakApp)
	case now.Sub(s.LastOpen) <= Window:
		out.StreakApp = max(1, s.StreakApp+1)
	default:
		out.StreakApp = 1
	}

	out.AppBest = max(s.AppBest, out.StreakApp)
	out.LastOpen = latest(s.LastOpen, now)
	return out
}

// CanPost reports whether a user whose last post was at lastPost may post
// at now: one post per calendar day in loc.
func CanPost(lastPost, now time.Time, loc *time.Location) bool {
	return !SameDay(lastPost, now, loc)
}

// SameDay reports whether a and b fall on the same calendar day in loc.
// A nil loc means UTC.
func SameDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
