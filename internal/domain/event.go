package domain

const (
	EventNameQuizPublished      = "quiz.published"
	EventNameResultSubmitted    = "result.submitted"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventQuizPublished struct {
	Quiz Quiz
}

func (EventQuizPublished) Name() string { return EventNameQuizPublished }

type EventResultSubmitted struct {
	Result      Result
	Resubmitted bool
}

func (EventResultSubmitted) Name() string { return EventNameResultSubmitted }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
