package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/codexa/internal/domain"
)

const maxConcurrent = 100

type Notification struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// PublishLeaderboardUpdated fans the standings out to the quiz channel and to every ranked user.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	data := leaderboardView(&e.Leaderboard)

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	eg.Go(func() error {
		return a.publishNotification(ctx, a.quizChannel(data.QuizID), e.Name(), data)
	})

	for _, entry := range data.Entries {
		eg.Go(func() error {
			return a.publishNotification(ctx, a.userChannel(entry.UserID), e.Name(), data)
		})
	}

	return eg.Wait()
}

// PublishQuizPublished announces a newly visible quiz on the quizzes channel.
func (a *API) PublishQuizPublished(ctx context.Context, e domain.EventQuizPublished) error {
	return a.publishNotification(ctx, a.quizzesChannel(), e.Name(), quizView(&e.Quiz, false))
}

func (a *API) publishNotification(ctx context.Context, channel, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, channel, b).Err()
}

func (a *API) quizChannel(quizID int64) string {
	return fmt.Sprintf("%s:quiz:%d", a.prefix, quizID)
}

func (a *API) userChannel(userID int64) string {
	return fmt.Sprintf("%s:user:%d", a.prefix, userID)
}

func (a *API) quizzesChannel() string {
	return fmt.Sprintf("%s:quizzes", a.prefix)
}
