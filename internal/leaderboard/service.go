package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/codexa/internal/domain"
	"github.com/victornm/codexa/internal/event"
)

const (
	defaultPublishInterval = 200 * time.Millisecond
	publishTimeout         = 5 * time.Second
)

// Results is the source of truth for a quiz's standings.
type Results interface {
	ListResults(ctx context.Context, quizID int64) ([]domain.Standing, error)
}

type Config struct {
	EventBus *event.Bus
	Results  Results
	Redis    redis.UniversalClient
	Prefix   string
	// PublishInterval is the minimum gap between two leaderboard.updated of a quiz. Defaults to 200ms.
	PublishInterval time.Duration
}

type Service struct {
	eb       *event.Bus
	results  Results
	redis    redis.UniversalClient
	prefix   string
	interval time.Duration
}

func NewService(c Config) *Service {
	interval := c.PublishInterval
	if interval <= 0 {
		interval = defaultPublishInterval
	}

	s := &Service{
		eb:       c.EventBus,
		results:  c.Results,
		redis:    c.Redis,
		prefix:   c.Prefix,
		interval: interval,
	}

	s.eb.Subscribe(domain.EventNameResultSubmitted, func(ctx context.Context, e event.Event) error {
		return s.UpdateStandings(ctx, e.(domain.EventResultSubmitted))
	})

	return s
}

// GetLeaderboard ranks the stored results of a quiz by score, ties broken by ascending user ID.
func (s *Service) GetLeaderboard(ctx context.Context, quizID int64) (*domain.Leaderboard, error) {
	standings, err := s.results.ListResults(ctx, quizID)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.LeaderboardEntry, 0, len(standings))
	for _, st := range standings {
		entries = append(entries, domain.LeaderboardEntry{
			UserID:   st.UserID,
			UserName: st.UserName,
			Score:    st.Score,
		})
	}

	return &domain.Leaderboard{
		QuizID:  quizID,
		Entries: domain.Rank(entries),
	}, nil
}

// GetStandings returns the live standings kept in Redis. Entries carry no user names.
func (s *Service) GetStandings(ctx context.Context, quizID int64) (*domain.Leaderboard, error) {
	res, err := s.redis.ZRevRangeWithScores(ctx, s.getStandingsKey(quizID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get standings: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, z := range res {
		userID, err := strconv.ParseInt(z.Member.(string), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("get standings: member %q: %w", z.Member, err)
		}

		entries = append(entries, domain.LeaderboardEntry{
			UserID: userID,
			Score:  int(z.Score),
		})
	}

	return &domain.Leaderboard{
		QuizID:  quizID,
		Entries: domain.Rank(entries),
	}, nil
}

// UpdateStandings overwrites the user's live score with the latest submission.
func (s *Service) UpdateStandings(ctx context.Context, e domain.EventResultSubmitted) error {
	r := e.Result

	if err := s.redis.ZAdd(ctx, s.getStandingsKey(r.QuizID), redis.Z{
		Score:  float64(r.Score),
		Member: strconv.FormatInt(r.UserID, 10),
	}).Err(); err != nil {
		return fmt.Errorf("update standings: %w", err)
	}

	return s.schedulePublishStandings(ctx, r)
}

// schedulePublishStandings publishes at most one leaderboard.updated per quiz and interval. Updates
// that fall inside an interval are covered by a single trailing publication once it ends.
// SetNX makes both limits hold across instances sharing the Redis.
func (s *Service) schedulePublishStandings(ctx context.Context, r domain.Result) error {
	ok, err := s.redis.SetNX(ctx, s.getPublishTimeKey(r.QuizID), r.SubmitTime.UnixMilli(), s.interval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if ok {
		return s.publishStandings(ctx, r.QuizID)
	}

	pending, err := s.redis.SetNX(ctx, s.getPendingKey(r.QuizID), r.SubmitTime.UnixMilli(), 2*s.interval).Result()
	if err != nil {
		return fmt.Errorf("setnx pending: %w", err)
	}

	if !pending {
		return nil
	}

	ctx = context.WithoutCancel(ctx)
	time.AfterFunc(s.interval, func() {
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()

		if err := s.redis.Del(ctx, s.getPendingKey(r.QuizID)).Err(); err != nil {
			slog.WarnContext(ctx, "leaderboard: clear pending publication", "quiz_id", r.QuizID, "error", err)
		}

		if err := s.publishStandings(ctx, r.QuizID); err != nil {
			slog.ErrorContext(ctx, "leaderboard: trailing publication failed", "quiz_id", r.QuizID, "error", err)
		}
	})

	return nil
}

func (s *Service) publishStandings(ctx context.Context, quizID int64) error {
	l, err := s.GetStandings(ctx, quizID)
	if err != nil {
		return fmt.Errorf("publish standings: quiz=%d: %w", quizID, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return nil
}

func (s *Service) getStandingsKey(quizID int64) string {
	return fmt.Sprintf("%s:quiz:%d:standings", s.prefix, quizID)
}

func (s *Service) getPublishTimeKey(quizID int64) string {
	return fmt.Sprintf("%s:quiz:%d:published_at", s.prefix, quizID)
}

func (s *Service) getPendingKey(quizID int64) string {
	return fmt.Sprintf("%s:quiz:%d:publish_pending", s.prefix, quizID)
}
