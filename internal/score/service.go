package score

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/victornm/codexa/internal/database"
	"github.com/victornm/codexa/internal/domain"
	"github.com/victornm/codexa/internal/errors"
	"github.com/victornm/codexa/internal/event"
	"github.com/victornm/codexa/internal/quiz"
	"github.com/victornm/codexa/internal/registration"
)

var submissions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "codexa_submissions_total",
	Help: "Number of accepted quiz submissions.",
}, []string{"kind"})

// Quizzes is the part of the question bank scoring reads answer keys from.
type Quizzes interface {
	GetQuiz(ctx context.Context, req quiz.GetQuizRequest) (*domain.Quiz, error)
}

type Config struct {
	EventBus *event.Bus
	DB       database.DB
	Quizzes  Quizzes
	// Now defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	eb      *event.Bus
	db      database.DB
	quizzes Quizzes
	now     func() time.Time
}

func NewService(c Config) *Service {
	now := c.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		eb:      c.EventBus,
		db:      c.DB,
		quizzes: c.Quizzes,
		now:     now,
	}
}

// Grade scores answers against the questions' answer keys. When a question is answered more than
// once the last answer counts; answers to unknown questions score nothing. Answered counts every
// submitted answer.
func Grade(questions []domain.Question, answers []domain.Answer) domain.Result {
	selected := make(map[int64]domain.Letter, len(answers))
	for _, a := range answers {
		selected[a.QuestionID] = a.SelectedOption
	}

	var score int
	for _, q := range questions {
		if l, ok := selected[q.ID]; ok && l == q.CorrectAnswer {
			score += q.Marks
		}
	}

	return domain.Result{
		Score:          score,
		Answered:       len(answers),
		TotalQuestions: len(questions),
	}
}

type SubmitQuizRequest struct {
	QuizID  int64
	UserID  int64
	Answers []domain.Answer
}

type SubmitQuizResponse struct {
	Result domain.Result
	// Resubmitted is set when the result replaced an earlier submission.
	Resubmitted bool
}

// SubmitQuiz grades a submission and stores it as the user's result, replacing any earlier one.
func (s *Service) SubmitQuiz(ctx context.Context, req SubmitQuizRequest) (*SubmitQuizResponse, error) {
	if len(req.Answers) == 0 {
		return nil, errors.InvalidArgument("answers must not be empty")
	}

	q, err := s.quizzes.GetQuiz(ctx, quiz.GetQuizRequest{
		QuizID:        req.QuizID,
		WithQuestions: true,
		PublishedOnly: true,
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := registration.CheckWindow(q, now); err != nil {
		return nil, err
	}

	r := Grade(q.Questions, req.Answers)
	r.QuizID = req.QuizID
	r.UserID = req.UserID
	r.SubmitTime = now

	resubmitted, err := s.upsertResult(ctx, r)
	if err != nil {
		return nil, err
	}

	kind := "first"
	if resubmitted {
		kind = "resubmission"
	}
	submissions.WithLabelValues(kind).Inc()

	s.eb.Publish(ctx, domain.EventResultSubmitted{
		Result:      r,
		Resubmitted: resubmitted,
	})

	return &SubmitQuizResponse{
		Result:      r,
		Resubmitted: resubmitted,
	}, nil
}

func (s *Service) upsertResult(ctx context.Context, r domain.Result) (bool, error) {
	// xmax is non-zero only on rows rewritten by DO UPDATE.
	const stmt = `
INSERT INTO quiz_results (quiz_id, user_id, score, answered, total_questions, submit_time)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (quiz_id, user_id) DO UPDATE SET
	score = EXCLUDED.score,
	answered = EXCLUDED.answered,
	total_questions = EXCLUDED.total_questions,
	submit_time = EXCLUDED.submit_time
RETURNING (xmax <> 0) AS resubmitted;`

	var resubmitted bool
	err := s.db.QueryRow(ctx, stmt, r.QuizID, r.UserID, r.Score, r.Answered, r.TotalQuestions, r.SubmitTime).Scan(&resubmitted)
	if database.PgErrorCode(err) == database.CodeForeignKeyViolation {
		return false, errors.New(errors.CodeNotFound,
			errors.WithMessagef("user not found: id=%d", r.UserID),
			errors.WithCause(err))
	}
	if err != nil {
		return false, fmt.Errorf("upsert result: %w", err)
	}

	return resubmitted, nil
}

// ListResults returns one standing per user who submitted to the quiz, ordered by user ID.
func (s *Service) ListResults(ctx context.Context, quizID int64) ([]domain.Standing, error) {
	const stmt = `
SELECT r.user_id, u.user_name, r.score, r.answered, r.total_questions
FROM quiz_results r
JOIN users u ON u.user_id = r.user_id
WHERE r.quiz_id = $1
ORDER BY r.user_id ASC;`

	rows, err := s.db.Query(ctx, stmt, quizID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	standings, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Standing, error) {
		var st domain.Standing
		err := r.Scan(&st.UserID, &st.UserName, &st.Score, &st.Answered, &st.TotalQuestions)
		return st, err
	})
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	return standings, nil
}
