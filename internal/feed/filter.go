// Package feed filters the post collection shown on the map and in lists.
package feed

import (
	"strings"
	"time"

	"github.com/jinzhu/now"

	"github.com/sujalbistaa/allgood/internal/apperr"
	"github.com/sujalbistaa/allgood/internal/models"
)

// DateFilter selects posts newer than a calendar window.
type DateFilter string

const (
	DateAll       DateFilter = "all"
	DatePastDay   DateFilter = "pastDay"
	DatePastWeek  DateFilter = "pastWeek"
	DatePastMonth DateFilter = "pastMonth"
	DatePastYear  DateFilter = "pastYear"
)

// TypeFilter selects posts of one type, or every type.
type TypeFilter string

const TypeAll TypeFilter = "all"

// ParseDateFilter maps a query value to a DateFilter. Empty means all.
func ParseDateFilter(s string) (DateFilter, error) {
	switch d := DateFilter(strings.TrimSpace(s)); d {
	case "":
		return DateAll, nil
	case DateAll, DatePastDay, DatePastWeek, DatePastMonth, DatePastYear:
		return d, nil
	}
	return "", apperr.Validation("unknown date filter %q", s)
}

// ParseTypeFilter maps a query value to a TypeFilter. Empty means all.
func ParseTypeFilter(s string) (TypeFilter, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == string(TypeAll) {
		return TypeAll, nil
	}
	t, ok := models.ParsePostType(s)
	if !ok {
		return "", apperr.Validation("unknown post type %q", s)
	}
	return TypeFilter(t), nil
}

// Cutoff returns the earliest timestamp d keeps, computed by calendar
// arithmetic in loc. ok is false for DateAll.
func Cutoff(d DateFilter, at time.Time, loc *time.Location) (cutoff time.Time, ok bool) {
	if loc == nil {
		loc = time.UTC
	}
	at = at.In(loc)
	switch d {
	case DatePastDay:
		return at.AddDate(0, 0, -1), true
	case DatePastWeek:
		return at.AddDate(0, 0, -7), true
	case DatePastMonth:
		return subtractMonths(at, 1), true
	case DatePastYear:
		return subtractMonths(at, 12), true
	}
	return time.Time{}, false
}

// subtractMonths moves t back n months keeping the time of day and
// clamping the day to the last day of the target month.
func subtractMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month()-time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := now.With(first).EndOfMonth().Day()
	return time.Date(first.Year(), first.Month(), min(t.Day(), lastDay), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// Filter keeps the posts matching both filters, preserving input order.
func Filter(posts []models.Post, d DateFilter, tf TypeFilter, at time.Time, loc *time.Location) []models.Post {
	cutoff, byDate := Cutoff(d, at, loc)
	byType := tf != "" && tf != TypeAll

	out := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if byDate && p.Timestamp.Before(cutoff) {
			continue
		}
		if byType && p.Type != models.PostType(tf) {
			continue
		}
		out = append(out, p)
	}
	return out
}
