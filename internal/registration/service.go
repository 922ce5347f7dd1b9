// Package registration gates access to a quiz's questions by attempt window and prior registration.
package registration

import (
	"context"
	"fmt"
	"time"

	"github.com/victornm/codexa/internal/database"
	"github.com/victornm/codexa/internal/domain"
	"github.com/victornm/codexa/internal/errors"
	"github.com/victornm/codexa/internal/quiz"
)

// Quizzes is the part of the question bank the gate reads from.
type Quizzes interface {
	GetQuiz(ctx context.Context, req quiz.GetQuizRequest) (*domain.Quiz, error)
}

type Config struct {
	DB      database.DB
	Quizzes Quizzes
	// Now defaults to time.Now.
	Now func() time.Time
}

type Service struct {
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
		db:      c.DB,
		quizzes: c.Quizzes,
		now:     now,
	}
}

// Metadata is the part of a quiz revealed before its window opens.
type Metadata struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Instructions string    `json:"instructions"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
}

func metadataOf(q *domain.Quiz) Metadata {
	return Metadata{
		ID:           q.ID,
		Name:         q.Name,
		Description:  q.Description,
		Instructions: q.Instructions,
		StartTime:    q.StartTime,
		EndTime:      q.EndTime,
	}
}

// CheckWindow rejects t outside the quiz's attempt window. A NotStarted error carries the quiz
// metadata as details.
func CheckWindow(q *domain.Quiz, t time.Time) error {
	switch q.Window(t) {
	case domain.WindowNotStarted:
		return errors.New(errors.CodeNotStarted, errors.WithDetails(metadataOf(q)))
	case domain.WindowEnded:
		return errors.New(errors.CodeEnded)
	default:
		return nil
	}
}

type RegisterResponse struct {
	// AlreadyRegistered is set when the user was registered before this call.
	AlreadyRegistered bool
}

// Register records the user as a participant of a published quiz that has not ended.
// Registering again succeeds without changing anything.
func (s *Service) Register(ctx context.Context, quizID, userID int64) (*RegisterResponse, error) {
	q, err := s.quizzes.GetQuiz(ctx, quiz.GetQuizRequest{QuizID: quizID, PublishedOnly: true})
	if err != nil {
		return nil, err
	}

	if q.Window(s.now()) == domain.WindowEnded {
		return nil, errors.New(errors.CodeEnded)
	}

	const stmt = `
INSERT INTO quiz_participants (quiz_id, user_id) VALUES ($1, $2)
ON CONFLICT (quiz_id, user_id) DO NOTHING;`

	tag, err := s.db.Exec(ctx, stmt, quizID, userID)
	if database.PgErrorCode(err) == database.CodeForeignKeyViolation {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("user not found: id=%d", userID),
			errors.WithCause(err))
	}
	if err != nil {
		return nil, fmt.Errorf("insert participant: %w", err)
	}

	return &RegisterResponse{AlreadyRegistered: tag.RowsAffected() == 0}, nil
}

func (s *Service) IsRegistered(ctx context.Context, quizID, userID int64) (bool, error) {
	const stmt = `SELECT EXISTS (SELECT 1 FROM quiz_participants WHERE quiz_id = $1 AND user_id = $2);`

	var ok bool
	if err := s.db.QueryRow(ctx, stmt, quizID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("check participant: %w", err)
	}

	return ok, nil
}

// Status reports the current window of a published quiz. Outside the window the status is
// returned together with the matching NotStarted or Ended error.
func (s *Service) Status(ctx context.Context, quizID int64) (domain.WindowStatus, error) {
	q, err := s.quizzes.GetQuiz(ctx, quiz.GetQuizRequest{QuizID: quizID, PublishedOnly: true})
	if err != nil {
		return "", err
	}

	now := s.now()
	return q.Window(now), CheckWindow(q, now)
}

type EligibilityRequest struct {
	QuizID int64
	// Preview lets authors read any quiz, published or not, regardless of its window.
	Preview bool
}

// CheckEligibility returns the quiz with its questions when they may be served right now.
func (s *Service) CheckEligibility(ctx context.Context, req EligibilityRequest) (*domain.Quiz, error) {
	q, err := s.quizzes.GetQuiz(ctx, quiz.GetQuizRequest{
		QuizID:        req.QuizID,
		WithQuestions: true,
		PublishedOnly: !req.Preview,
	})
	if err != nil {
		return nil, err
	}

	if req.Preview {
		return q, nil
	}

	if err := CheckWindow(q, s.now()); err != nil {
		return nil, err
	}

	return q, nil
}

// OpenAttempt serves the questions of an ongoing quiz to a registered participant.
func (s *Service) OpenAttempt(ctx context.Context, quizID, userID int64) (*domain.Quiz, error) {
	q, err := s.CheckEligibility(ctx, EligibilityRequest{QuizID: quizID})
	if err != nil {
		return nil, err
	}

	ok, err := s.IsRegistered(ctx, quizID, userID)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, errors.New(errors.CodePermissionDenied, errors.WithMessagef("NOT_REGISTERED"))
	}

	return q, nil
}
