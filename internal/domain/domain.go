package domain

import (
	"sort"
	"strings"
	"time"
)

// Quiz represents a timed assessment authored by a teacher.
type Quiz struct {
	ID           int64
	Name         string
	Description  string
	Instructions string
	StartTime    time.Time
	EndTime      time.Time
	CreatedBy    int64
	IsPublished  bool
	CreateTime   time.Time

	// Questions is only populated when explicitly requested.
	Questions []Question
}

type WindowStatus string

const (
	WindowNotStarted WindowStatus = "NOT_STARTED"
	WindowOngoing    WindowStatus = "ONGOING"
	WindowEnded      WindowStatus = "ENDED"
)

// Window reports where t falls relative to the quiz's attempt window. Both bounds are inclusive.
func (q *Quiz) Window(t time.Time) WindowStatus {
	switch {
	case t.Before(q.StartTime):
		return WindowNotStarted
	case t.After(q.EndTime):
		return WindowEnded
	default:
		return WindowOngoing
	}
}

// Letter identifies one of the four option slots of a question.
type Letter string

const (
	LetterA Letter = "A"
	LetterB Letter = "B"
	LetterC Letter = "C"
	LetterD Letter = "D"
)

// Letters lists option letters in slot order.
var Letters = [4]Letter{LetterA, LetterB, LetterC, LetterD}

// ParseLetter normalizes s into a Letter. The second result is false if s names no option slot.
func ParseLetter(s string) (Letter, bool) {
	l := Letter(strings.ToUpper(strings.TrimSpace(s)))
	for _, x := range Letters {
		if l == x {
			return l, true
		}
	}
	return l, false
}

// Index returns the option slot of l, or -1.
func (l Letter) Index() int {
	for i, x := range Letters {
		if l == x {
			return i
		}
	}
	return -1
}

type Question struct {
	ID            int64
	QuizID        int64
	Text          string
	Options       [4]string
	CorrectAnswer Letter
	Marks         int
}

// Option returns the text of the option identified by l, empty if l is not a valid letter.
func (q *Question) Option(l Letter) string {
	i := l.Index()
	if i < 0 {
		return ""
	}
	return q.Options[i]
}

// Answer is a single selection within a submission.
type Answer struct {
	QuestionID     int64
	SelectedOption Letter
}

// Result represents the outcome of a user's latest submission for a quiz.
type Result struct {
	QuizID         int64
	UserID         int64
	Score          int
	Answered       int
	TotalQuestions int
	SubmitTime     time.Time
}

// Standing is a result joined with the user's display name.
type Standing struct {
	UserID         int64
	UserName       string
	Score          int
	Answered       int
	TotalQuestions int
}

// Leaderboard represents the ranked results of a quiz.
// Entries are sorted by score in descending order, ties broken by ascending user ID.
type Leaderboard struct {
	QuizID  int64
	Entries []LeaderboardEntry
}

type LeaderboardEntry struct {
	Rank     int
	UserID   int64
	UserName string
	Score    int
}

// Rank orders entries by score descending then user ID ascending, and assigns 1-based ranks.
func Rank(entries []LeaderboardEntry) []LeaderboardEntry {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].UserID < entries[j].UserID
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}

	return entries
}
