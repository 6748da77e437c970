// Package isoweek buckets timestamps into ISO-8601 weeks for the
// weekly leaderboard. The bucket is defined by the Thursday of the
// date's week: the week number is the ISO week containing that
// Thursday and the year is that Thursday's calendar year, so a late
// December date can land in week 1 of the next year and an early
// January date in week 52/53 of the previous one.
package isoweek

import "time"

// Of returns the ISO week number and ISO year for t.
func Of(t time.Time) (week int, year int) {
	year, week = t.ISOWeek()
	return week, year
}

// Key renders a stable composite bucket key, used for cache keys and
// the in-memory aggregate index.
func Key(dealerID string, week, year int) string {
	return dealerID + "-" + itoa(week) + "-" + itoa(year)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
