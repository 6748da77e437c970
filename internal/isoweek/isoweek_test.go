package isoweek

import (
	"testing"
	"time"
)

func TestOfYearBoundaries(t *testing.T) {
	cases := []struct {
		date string
		week int
		year int
	}{
		// Monday 2024-12-30 belongs to week 1 of 2025.
		{"2024-12-30", 1, 2025},
		// Sunday 2023-01-01 belongs to week 52 of 2022.
		{"2023-01-01", 52, 2022},
		// 2020 had 53 ISO weeks.
		{"2021-01-01", 53, 2020},
		{"2024-07-10", 28, 2024},
	}

	for _, tc := range cases {
		date, err := time.Parse("2006-01-02", tc.date)
		if err != nil {
			t.Fatalf("parse %s: %v", tc.date, err)
		}
		week, year := Of(date)
		if week != tc.week || year != tc.year {
			t.Errorf("Of(%s) = week %d year %d, want week %d year %d", tc.date, week, year, tc.week, tc.year)
		}
	}
}

func TestOfStableWithinOneWeek(t *testing.T) {
	monday := time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC)
	wantWeek, wantYear := Of(monday)

	for day := 0; day < 7; day++ {
		week, year := Of(monday.AddDate(0, 0, day))
		if week != wantWeek || year != wantYear {
			t.Fatalf("day offset %d changed bucket: got %d/%d, want %d/%d", day, week, year, wantWeek, wantYear)
		}
	}
}

func TestKey(t *testing.T) {
	if got := Key("dealer-a", 7, 2025); got != "dealer-a-7-2025" {
		t.Fatalf("unexpected key %q", got)
	}
}
