package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/victornm/codexa/internal/api"
	"github.com/victornm/codexa/internal/auth"
	"github.com/victornm/codexa/internal/auth/authtest"
	"github.com/victornm/codexa/internal/domain"
	"github.com/victornm/codexa/internal/event"
	"github.com/victornm/codexa/internal/quiz"
	"github.com/victornm/codexa/internal/registration"
	"github.com/victornm/codexa/internal/score"
)

var (
	start = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	end   = start.Add(time.Hour)

	sampleQuiz = domain.Quiz{
		ID: 1, Name: "Go", Instructions: "no cheating",
		StartTime: start, EndTime: end, CreatedBy: 5, IsPublished: true,
		Questions: []domain.Question{
			{ID: 10, QuizID: 1, Text: "Q1", Options: [4]string{"a", "b"}, CorrectAnswer: domain.LetterA, Marks: 2},
			{ID: 11, QuizID: 1, Text: "Q2", Options: [4]string{"a", "b", "c"}, CorrectAnswer: domain.LetterB, Marks: 3},
		},
	}
)

const (
	studentID = 7
	teacherID = 5
	adminID   = 1
)

// fakes records what the handlers ask of the services. When err is set every call fails with it.
type fakes struct {
	err error

	alreadyRegistered bool
	registered        bool
	status            domain.WindowStatus
	standings         []domain.Standing
	leaderboard       *domain.Leaderboard

	created     quiz.CreateQuizRequest
	added       quiz.AddQuestionRequest
	eligibility registration.EligibilityRequest
	submitted   score.SubmitQuizRequest
	registerFor int64
}

func (f *fakes) CreateQuiz(_ context.Context, req quiz.CreateQuizRequest) (*domain.Quiz, error) {
	f.created = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Quiz{ID: 2, Name: req.Name, StartTime: req.StartTime, EndTime: req.EndTime, CreatedBy: req.CreatedBy}, nil
}

func (f *fakes) AddQuestion(_ context.Context, req quiz.AddQuestionRequest) (*domain.Question, error) {
	f.added = req
	if f.err != nil {
		return nil, f.err
	}
	q := sampleQuiz.Questions[0]
	return &q, nil
}

func (f *fakes) PublishQuiz(_ context.Context, quizID int64) (*domain.Quiz, error) {
	if f.err != nil {
		return nil, f.err
	}
	q := sampleQuiz
	q.ID = quizID
	return &q, nil
}

func (f *fakes) ListPublishedQuizzes(context.Context) ([]domain.Quiz, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Quiz{sampleQuiz}, nil
}

func (f *fakes) Register(_ context.Context, _, userID int64) (*registration.RegisterResponse, error) {
	f.registerFor = userID
	if f.err != nil {
		return nil, f.err
	}
	return &registration.RegisterResponse{AlreadyRegistered: f.alreadyRegistered}, nil
}

func (f *fakes) IsRegistered(_ context.Context, _, userID int64) (bool, error) {
	f.registerFor = userID
	return f.registered, f.err
}

func (f *fakes) Status(context.Context, int64) (domain.WindowStatus, error) {
	return f.status, f.err
}

func (f *fakes) CheckEligibility(_ context.Context, req registration.EligibilityRequest) (*domain.Quiz, error) {
	f.eligibility = req
	if f.err != nil {
		return nil, f.err
	}
	q := sampleQuiz
	return &q, nil
}

func (f *fakes) OpenAttempt(_ context.Context, _, userID int64) (*domain.Quiz, error) {
	f.registerFor = userID
	if f.err != nil {
		return nil, f.err
	}
	q := sampleQuiz
	return &q, nil
}

func (f *fakes) SubmitQuiz(_ context.Context, req score.SubmitQuizRequest) (*score.SubmitQuizResponse, error) {
	f.submitted = req
	if f.err != nil {
		return nil, f.err
	}
	r := score.Grade(sampleQuiz.Questions, req.Answers)
	return &score.SubmitQuizResponse{Result: r}, nil
}

func (f *fakes) ListResults(context.Context, int64) ([]domain.Standing, error) {
	return f.standings, f.err
}

func (f *fakes) GetLeaderboard(context.Context, int64) (*domain.Leaderboard, error) {
	return f.leaderboard, f.err
}

func (f *fakes) GetStandings(context.Context, int64) (*domain.Leaderboard, error) {
	return f.leaderboard, f.err
}

func makeAPI(t *testing.T, f *fakes, opts ...func(c *api.Config)) *api.API {
	t.Helper()

	c := api.Config{
		EventBus:     event.NewBus(),
		Quizzes:      f,
		Gate:         f,
		Score:        f,
		Leaderboard:  f,
		PubsubPrefix: "test",
	}

	for _, opt := range opts {
		opt(&c)
	}

	return api.New(c)
}

func makeHTTP(t *testing.T, f *fakes) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	e := gin.New()
	e.Use(auth.NewVerifier(auth.Config{Secret: authtest.Secret}).Middleware())
	makeAPI(t, f).RegisterRoutes(e)
	return e
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func requireJSON(t *testing.T, want string, w *httptest.ResponseRecorder) {
	t.Helper()
	require.JSONEq(t, want, w.Body.String())
}
