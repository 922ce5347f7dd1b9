package api

import (
	"context"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/victornm/codexa/internal/domain"
	"github.com/victornm/codexa/internal/event"
	"github.com/victornm/codexa/internal/quiz"
	"github.com/victornm/codexa/internal/registration"
	"github.com/victornm/codexa/internal/score"
)

type (
	QuestionBank interface {
		CreateQuiz(ctx context.Context, req quiz.CreateQuizRequest) (*domain.Quiz, error)
		AddQuestion(ctx context.Context, req quiz.AddQuestionRequest) (*domain.Question, error)
		PublishQuiz(ctx context.Context, quizID int64) (*domain.Quiz, error)
		ListPublishedQuizzes(ctx context.Context) ([]domain.Quiz, error)
	}

	Gate interface {
		Register(ctx context.Context, quizID, userID int64) (*registration.RegisterResponse, error)
		IsRegistered(ctx context.Context, quizID, userID int64) (bool, error)
		Status(ctx context.Context, quizID int64) (domain.WindowStatus, error)
		CheckEligibility(ctx context.Context, req registration.EligibilityRequest) (*domain.Quiz, error)
		OpenAttempt(ctx context.Context, quizID, userID int64) (*domain.Quiz, error)
	}

	Scorer interface {
		SubmitQuiz(ctx context.Context, req score.SubmitQuizRequest) (*score.SubmitQuizResponse, error)
		ListResults(ctx context.Context, quizID int64) ([]domain.Standing, error)
	}

	Ranker interface {
		GetLeaderboard(ctx context.Context, quizID int64) (*domain.Leaderboard, error)
		GetStandings(ctx context.Context, quizID int64) (*domain.Leaderboard, error)
	}

	Redis interface {
		Publish(ctx context.Context, channel string, message any) *redis.IntCmd
		Subscribe(ctx context.Context, channels ...string) *redis.PubSub
	}
)

type Config struct {
	// GRPC, when set, gets the QuizService registered.
	GRPC         *grpc.Server
	EventBus     *event.Bus
	Quizzes      QuestionBank
	Gate         Gate
	Score        Scorer
	Leaderboard  Ranker
	Redis        Redis
	PubsubPrefix string
	// AllowedOrigins limits which browser origins may open the live leaderboard socket.
	// Requests without an Origin header are always accepted.
	AllowedOrigins []string
}

type API struct {
	qb   QuestionBank
	gate Gate
	ss   Scorer
	ls   Ranker

	redis   Redis
	prefix  string
	origins map[string]bool
}

func New(c Config) *API {
	a := &API{
		qb:      c.Quizzes,
		gate:    c.Gate,
		ss:      c.Score,
		ls:      c.Leaderboard,
		redis:   c.Redis,
		prefix:  c.PubsubPrefix,
		origins: make(map[string]bool, len(c.AllowedOrigins)),
	}

	for _, o := range c.AllowedOrigins {
		a.origins[o] = true
	}

	// gRPC APIs
	if c.GRPC != nil {
		c.GRPC.RegisterService(&quizServiceDesc, a)
	}

	// Register event handlers
	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})

	c.EventBus.Subscribe(domain.EventNameQuizPublished, func(ctx context.Context, e event.Event) error {
		return a.PublishQuizPublished(ctx, e.(domain.EventQuizPublished))
	})

	return a
}
