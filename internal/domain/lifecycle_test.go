package domain_test

import (
	"testing"
	"time"

	"github.com/gatherhq/registration-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustUTC(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		date      string
		endDate   string
		startTime string
		endTime   string
		tz        string
		now       string
		want      domain.EventStatus
	}{
		{
			name: "before start is upcoming",
			date: "2026-09-10", startTime: "18:00", endTime: "20:00", tz: "UTC",
			now:  "2026-09-10T17:59:00Z",
			want: domain.StatusUpcoming,
		},
		{
			name: "at start is ongoing",
			date: "2026-09-10", startTime: "18:00", endTime: "20:00", tz: "UTC",
			now:  "2026-09-10T18:00:00Z",
			want: domain.StatusOngoing,
		},
		{
			name: "at end is completed",
			date: "2026-09-10", startTime: "18:00", endTime: "20:00", tz: "UTC",
			now:  "2026-09-10T20:00:00Z",
			want: domain.StatusCompleted,
		},
		{
			name: "multi-day event uses end date",
			date: "2026-09-10", endDate: "2026-09-12", startTime: "09:00", endTime: "17:00", tz: "UTC",
			now:  "2026-09-11T23:00:00Z",
			want: domain.StatusOngoing,
		},
		{
			name: "empty end time runs to end of end date",
			date: "2026-09-10", startTime: "09:00", tz: "UTC",
			now:  "2026-09-10T23:30:00Z",
			want: domain.StatusOngoing,
		},
		{
			name: "empty end time completes at next midnight",
			date: "2026-09-10", startTime: "09:00", tz: "UTC",
			now:  "2026-09-11T00:00:00Z",
			want: domain.StatusCompleted,
		},
		{
			name: "zone shifts the boundary",
			date: "2026-09-10", startTime: "18:00", endTime: "20:00", tz: "America/New_York",
			// 18:00 New York is 22:00 UTC in September (EDT)
			now:  "2026-09-10T21:59:00Z",
			want: domain.StatusUpcoming,
		},
		{
			name: "end before start clamps to start",
			date: "2026-09-10", startTime: "18:00", endTime: "17:00", tz: "UTC",
			now:  "2026-09-10T18:30:00Z",
			want: domain.StatusCompleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := domain.Classify(tt.date, tt.endDate, tt.startTime, tt.endTime, tt.tz, mustUTC(t, tt.now))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_Errors(t *testing.T) {
	now := time.Now()

	_, err := domain.Classify("not-a-date", "", "18:00", "", "UTC", now)
	require.Error(t, err)

	_, err = domain.Classify("2026-09-10", "", "18:00", "", "Mars/Olympus", now)
	require.Error(t, err)

	_, err = domain.Classify("2026-09-10", "2026-13-40", "18:00", "", "UTC", now)
	require.Error(t, err)
}

func TestClassify_NeverReturnsCancelled(t *testing.T) {
	// sweep a day around the event in hourly steps
	for h := -24; h <= 48; h++ {
		now := mustUTC(t, "2026-09-10T18:00:00Z").Add(time.Duration(h) * time.Hour)
		got, err := domain.Classify("2026-09-10", "", "18:00", "20:00", "UTC", now)
		require.NoError(t, err)
		require.NotEqual(t, domain.StatusCancelled, got)
	}
}

func TestEvent_StartAt(t *testing.T) {
	ev := &domain.Event{Date: "2026-09-10", StartTime: "18:00", Timezone: "UTC"}
	at, err := ev.StartAt()
	require.NoError(t, err)
	assert.Equal(t, mustUTC(t, "2026-09-10T18:00:00Z"), at.UTC())

	ev.StartTime = ""
	at, err = ev.StartAt()
	require.NoError(t, err)
	assert.Equal(t, mustUTC(t, "2026-09-10T00:00:00Z"), at.UTC())
}
