package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/codexa/internal/domain"
)

func TestQuiz_Window(t *testing.T) {
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	q := &domain.Quiz{StartTime: start, EndTime: start.Add(time.Hour)}

	tests := map[string]struct {
		at   time.Time
		want domain.WindowStatus
	}{
		"before start":    {at: start.Add(-time.Second), want: domain.WindowNotStarted},
		"at start":        {at: start, want: domain.WindowOngoing},
		"in the middle":   {at: start.Add(30 * time.Minute), want: domain.WindowOngoing},
		"at end":          {at: start.Add(time.Hour), want: domain.WindowOngoing},
		"right after end": {at: start.Add(time.Hour + time.Nanosecond), want: domain.WindowEnded},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, q.Window(tt.at))
		})
	}
}

func TestParseLetter(t *testing.T) {
	l, ok := domain.ParseLetter(" b ")
	require.True(t, ok)
	assert.Equal(t, domain.LetterB, l)
	assert.Equal(t, 1, l.Index())

	_, ok = domain.ParseLetter("E")
	assert.False(t, ok)
	assert.Equal(t, -1, domain.Letter("E").Index())
}

func TestRank(t *testing.T) {
	got := domain.Rank([]domain.LeaderboardEntry{
		{UserID: 7, Score: 3},
		{UserID: 2, Score: 5},
		{UserID: 5, Score: 3},
		{UserID: 1, Score: 0},
	})

	want := []domain.LeaderboardEntry{
		{Rank: 1, UserID: 2, Score: 5},
		{Rank: 2, UserID: 5, Score: 3},
		{Rank: 3, UserID: 7, Score: 3},
		{Rank: 4, UserID: 1, Score: 0},
	}
	require.Equal(t, want, got)
}
