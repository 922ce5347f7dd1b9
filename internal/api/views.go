package api

import (
	"time"

	"github.com/victornm/codexa/internal/domain"
)

type (
	Quiz struct {
		ID           int64      `json:"id"`
		Name         string     `json:"name"`
		Description  string     `json:"description"`
		Instructions string     `json:"instructions"`
		StartTime    time.Time  `json:"start_time"`
		EndTime      time.Time  `json:"end_time"`
		CreatedBy    int64      `json:"created_by"`
		IsPublished  bool       `json:"is_published"`
		CreatedAt    time.Time  `json:"created_at"`
		Questions    []Question `json:"questions,omitempty"`
	}

	// Question omits CorrectAnswer unless the caller authors quizzes.
	Question struct {
		ID            int64  `json:"id"`
		QuizID        int64  `json:"quiz_id"`
		QuestionText  string `json:"question_text"`
		OptionA       string `json:"option_a"`
		OptionB       string `json:"option_b"`
		OptionC       string `json:"option_c"`
		OptionD       string `json:"option_d"`
		Marks         int    `json:"marks"`
		CorrectAnswer string `json:"correct_answer,omitempty"`
	}

	Standing struct {
		UserID         int64  `json:"user_id"`
		UserName       string `json:"user_name"`
		Score          int    `json:"score"`
		Answered       int    `json:"answered"`
		TotalQuestions int    `json:"total_questions"`
	}

	Leaderboard struct {
		QuizID  int64              `json:"quiz_id"`
		Entries []LeaderboardEntry `json:"entries"`
	}

	// LeaderboardEntry has a UserName only when built from stored results (GET leaderboard, gRPC
	// GetLeaderboard). Live standings streamed over pub/sub and the WebSocket carry user ids only.
	LeaderboardEntry struct {
		Rank     int    `json:"rank"`
		UserID   int64  `json:"user_id"`
		UserName string `json:"user_name,omitempty"`
		Score    int    `json:"score"`
	}

	Answer struct {
		QuestionID     int64  `json:"question_id"`
		SelectedOption string `json:"selected_option"`
	}
)

func quizView(q *domain.Quiz, withKeys bool) Quiz {
	v := Quiz{
		ID:           q.ID,
		Name:         q.Name,
		Description:  q.Description,
		Instructions: q.Instructions,
		StartTime:    q.StartTime,
		EndTime:      q.EndTime,
		CreatedBy:    q.CreatedBy,
		IsPublished:  q.IsPublished,
		CreatedAt:    q.CreateTime,
	}

	if len(q.Questions) > 0 {
		v.Questions = questionViews(q.Questions, withKeys)
	}

	return v
}

func questionViews(qs []domain.Question, withKeys bool) []Question {
	views := make([]Question, 0, len(qs))
	for i := range qs {
		views = append(views, questionView(&qs[i], withKeys))
	}
	return views
}

func questionView(q *domain.Question, withKey bool) Question {
	v := Question{
		ID:           q.ID,
		QuizID:       q.QuizID,
		QuestionText: q.Text,
		OptionA:      q.Options[0],
		OptionB:      q.Options[1],
		OptionC:      q.Options[2],
		OptionD:      q.Options[3],
		Marks:        q.Marks,
	}

	if withKey {
		v.CorrectAnswer = string(q.CorrectAnswer)
	}

	return v
}

func leaderboardView(l *domain.Leaderboard) Leaderboard {
	v := Leaderboard{
		QuizID:  l.QuizID,
		Entries: make([]LeaderboardEntry, 0, len(l.Entries)),
	}

	for _, e := range l.Entries {
		v.Entries = append(v.Entries, LeaderboardEntry{
			Rank:     e.Rank,
			UserID:   e.UserID,
			UserName: e.UserName,
			Score:    e.Score,
		})
	}

	return v
}
