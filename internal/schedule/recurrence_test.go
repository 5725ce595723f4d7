package schedule

import (
	"testing"
	"time"
)

func mustTimeOfDay(t *testing.T, s string) TimeOfDay {
	t.Helper()
	tod, err := ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("ParseTimeOfDay(%q): %v", s, err)
	}
	return tod
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		input   string
		want    TimeOfDay
		wantErr bool
	}{
		{input: "09:00:00", want: TimeOfDay{9, 0, 0}},
		{input: "23:59:59", want: TimeOfDay{23, 59, 59}},
		{input: "14:30", want: TimeOfDay{14, 30, 0}},
		{input: "25:00:00", wantErr: true},
		{input: "garbage", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTimeOfDay(%q): expected error, got %+v", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTimeOfDay(%q) = %+v, want %+v", tt.input, got, tt.want)
		}
	}
}

func TestNextFireTimeDaily(t *testing.T) {
	tod := mustTimeOfDay(t, "09:00:00")

	// Before today's fire time: fires today.
	from := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	next, err := NextFireTime(PatternDaily, nil, tod, from)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}

	// At or after today's fire time: advances one day.
	from = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	next, err = NextFireTime(PatternDaily, nil, tod, from)
	if err != nil {
		t.Fatal(err)
	}
	want = time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestNextFireTimeWeekly(t *testing.T) {
	tod := mustTimeOfDay(t, "09:00:00")
	// Mon/Wed/Fri
	days := []int{1, 3, 5}

	// Monday 10:00 is past Monday's slot; next is Wednesday 09:00 same week.
	monday := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	if monday.Weekday() != time.Monday {
		t.Fatalf("fixture is not a Monday: %v", monday.Weekday())
	}
	next, err := NextFireTime(PatternWeekly, days, tod, monday)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v (Wednesday 09:00)", next, want)
	}

	// Monday 08:00 is before Monday's slot; fires the same day.
	earlyMonday := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	next, err = NextFireTime(PatternWeekly, days, tod, earlyMonday)
	if err != nil {
		t.Fatal(err)
	}
	want = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v (Monday 09:00)", next, want)
	}
}

func TestNextFireTimeWeeklyEmptyDaysMeansEveryDay(t *testing.T) {
	tod := mustTimeOfDay(t, "09:00:00")

	from := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	next, err := NextFireTime(PatternWeekly, nil, tod, from)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v (tomorrow 09:00)", next, want)
	}
}

func TestNextFireTimeMonthly(t *testing.T) {
	tod := mustTimeOfDay(t, "09:00:00")

	from := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	next, err := NextFireTime(PatternMonthly, nil, tod, from)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2025, 7, 15, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v (same day next month)", next, want)
	}

	from = time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	next, err = NextFireTime(PatternMonthly, nil, tod, from)
	if err != nil {
		t.Fatal(err)
	}
	want = time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v (later today)", next, want)
	}
}

func TestNextFireTimeUnknownPattern(t *testing.T) {
	_, err := NextFireTime("hourly", nil, TimeOfDay{}, time.Now())
	if err == nil {
		t.Error("expected error for unknown pattern")
	}
}

func TestValidPattern(t *testing.T) {
	for _, p := range []string{PatternDaily, PatternWeekly, PatternMonthly} {
		if !ValidPattern(p) {
			t.Errorf("ValidPattern(%q) = false", p)
		}
	}
	if ValidPattern("yearly") {
		t.Error("ValidPattern(\"yearly\") = true")
	}
}
