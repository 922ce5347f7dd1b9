package quiz

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"

	"github.com/victornm/codexa/internal/database"
	"github.com/victornm/codexa/internal/domain"
	"github.com/victornm/codexa/internal/errors"
	"github.com/victornm/codexa/internal/event"
)

const quizColumns = `id, name, description, instructions, start_time, end_time, created_by, is_published, created_at`

const questionColumns = `id, quiz_id, question_text, option_a, option_b, option_c, option_d, correct_answer, marks`

type Config struct {
	DB       database.DB
	EventBus *event.Bus
}

// Service owns quiz and question persistence.
type Service struct {
	db       database.DB
	eb       *event.Bus
	validate *validator.Validate
}

func NewService(c Config) *Service {
	return &Service{
		db:       c.DB,
		eb:       c.EventBus,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// CreateQuizRequest represents a request to create a new, unpublished quiz.
type CreateQuizRequest struct {
	Name         string    `validate:"required,max=200"`
	Description  string    `validate:"max=5000"`
	Instructions string    `validate:"max=5000"`
	StartTime    time.Time `validate:"required"`
	EndTime      time.Time `validate:"required,gtfield=StartTime"`
	// CreatedBy is the user ID of the authoring teacher.
	CreatedBy int64 `validate:"required,gt=0"`
}

// CreateQuiz validates and stores a quiz. The quiz starts unpublished.
func (s *Service) CreateQuiz(ctx context.Context, req CreateQuizRequest) (*domain.Quiz, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}

	const stmt = `
INSERT INTO quizzes (name, description, instructions, start_time, end_time, created_by, is_published)
VALUES ($1, $2, $3, $4, $5, $6, FALSE)
RETURNING ` + quizColumns + `;`

	q, err := scanQuiz(s.db.QueryRow(ctx, stmt, req.Name, req.Description, req.Instructions, req.StartTime, req.EndTime, req.CreatedBy))
	if database.PgErrorCode(err) == database.CodeForeignKeyViolation {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("user not found: id=%d", req.CreatedBy),
			errors.WithCause(err))
	}
	if err != nil {
		return nil, fmt.Errorf("insert quiz: %w", err)
	}

	return &q, nil
}

// Option is a candidate answer as entered by the author.
type Option struct {
	Text      string `validate:"required,max=1000"`
	IsCorrect bool
}

type AddQuestionRequest struct {
	QuizID  int64    `validate:"required,gt=0"`
	Text    string   `validate:"required,max=2000"`
	Marks   int      `validate:"gt=0"`
	Options []Option `validate:"min=2,max=4,dive"`
}

// AddQuestion stores a question, deriving the answer key from the single option marked correct.
func (s *Service) AddQuestion(ctx context.Context, req AddQuestionRequest) (*domain.Question, error) {
	req.Text = strings.TrimSpace(req.Text)
	for i := range req.Options {
		req.Options[i].Text = strings.TrimSpace(req.Options[i].Text)
	}

	if err := s.validateStruct(req); err != nil {
		return nil, err
	}

	correct := -1
	for i, o := range req.Options {
		if !o.IsCorrect {
			continue
		}
		if correct >= 0 {
			return nil, errors.InvalidArgument("exactly one option must be correct")
		}
		correct = i
	}
	if correct < 0 {
		return nil, errors.InvalidArgument("exactly one option must be correct")
	}

	var opts [4]string
	for i, o := range req.Options {
		opts[i] = o.Text
	}

	const stmt = `
INSERT INTO quiz_questions (quiz_id, question_text, option_a, option_b, option_c, option_d, correct_answer, marks)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + questionColumns + `;`

	q, err := scanQuestion(s.db.QueryRow(ctx, stmt,
		req.QuizID, req.Text, opts[0], opts[1], opts[2], opts[3], string(domain.Letters[correct]), req.Marks))
	if database.PgErrorCode(err) == database.CodeForeignKeyViolation {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("quiz not found: id=%d", req.QuizID),
			errors.WithCause(err))
	}
	if err != nil {
		return nil, fmt.Errorf("insert question: %w", err)
	}

	return &q, nil
}

// PublishQuiz makes a quiz visible to students. Publishing twice is a no-op.
func (s *Service) PublishQuiz(ctx context.Context, quizID int64) (*domain.Quiz, error) {
	const stmt = `
WITH prev AS (
	SELECT id, is_published FROM quizzes WHERE id = $1 FOR UPDATE
)
UPDATE quizzes q SET is_published = TRUE
FROM prev
WHERE q.id = prev.id
RETURNING q.id, q.name, q.description, q.instructions, q.start_time, q.end_time, q.created_by, q.is_published, q.created_at, prev.is_published;`

	var (
		q            domain.Quiz
		wasPublished bool
	)

	err := s.db.QueryRow(ctx, stmt, quizID).
		Scan(&q.ID, &q.Name, &q.Description, &q.Instructions, &q.StartTime, &q.EndTime, &q.CreatedBy, &q.IsPublished, &q.CreateTime, &wasPublished)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("quiz not found: id=%d", quizID)
	}
	if err != nil {
		return nil, fmt.Errorf("publish quiz: %w", err)
	}

	if !wasPublished {
		s.eb.Publish(ctx, domain.EventQuizPublished{Quiz: q})
	}

	return &q, nil
}

// ListPublishedQuizzes returns published quizzes, earliest start first.
func (s *Service) ListPublishedQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	const stmt = `SELECT ` + quizColumns + ` FROM quizzes WHERE is_published = TRUE ORDER BY start_time ASC, id ASC;`

	rows, err := s.db.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}

	quizzes, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Quiz, error) {
		return scanQuiz(r)
	})
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}

	return quizzes, nil
}

type GetQuizRequest struct {
	QuizID int64
	// WithQuestions also loads the quiz's questions, in creation order.
	WithQuestions bool
	// PublishedOnly reports unpublished quizzes as not found.
	PublishedOnly bool
}

func (s *Service) GetQuiz(ctx context.Context, req GetQuizRequest) (*domain.Quiz, error) {
	const stmt = `SELECT ` + quizColumns + ` FROM quizzes WHERE id = $1;`

	q, err := scanQuiz(s.db.QueryRow(ctx, stmt, req.QuizID))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("quiz not found: id=%d", req.QuizID)
	}
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}

	if req.PublishedOnly && !q.IsPublished {
		return nil, errors.NotFound("quiz not found: id=%d", req.QuizID)
	}

	if req.WithQuestions {
		q.Questions, err = s.ListQuestions(ctx, q.ID)
		if err != nil {
			return nil, err
		}
	}

	return &q, nil
}

func (s *Service) ListQuestions(ctx context.Context, quizID int64) ([]domain.Question, error) {
	const stmt = `SELECT ` + questionColumns + ` FROM quiz_questions WHERE quiz_id = $1 ORDER BY id ASC;`

	rows, err := s.db.Query(ctx, stmt, quizID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	questions, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Question, error) {
		return scanQuestion(r)
	})
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	return questions, nil
}

func (s *Service) validateStruct(v any) error {
	err := s.validate.Struct(v)

	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid %s: failed %q", field, fe.Tag()),
			errors.WithCause(err))
	}

	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuiz(r scanner) (domain.Quiz, error) {
	var q domain.Quiz
	err := r.Scan(&q.ID, &q.Name, &q.Description, &q.Instructions, &q.StartTime, &q.EndTime, &q.CreatedBy, &q.IsPublished, &q.CreateTime)
	return q, err
}

func scanQuestion(r scanner) (domain.Question, error) {
	var (
		q       domain.Question
		correct string
	)

	err := r.Scan(&q.ID, &q.QuizID, &q.Text, &q.Options[0], &q.Options[1], &q.Options[2], &q.Options[3], &correct, &q.Marks)
	q.CorrectAnswer = domain.Letter(correct)
	return q, err
}
