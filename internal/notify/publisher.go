package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// BalancePublisher pushes balance-changed events to whoever renders the
// live wallet widget.
type BalancePublisher interface {
	PublishBalance(ctx context.Context, userID string, balance int) error
}

type redisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) BalancePublisher {
	return &redisPublisher{client: client}
}

func (p *redisPublisher) PublishBalance(ctx context.Context, userID string, balance int) error {
	payload, err := json.Marshal(map[string]int{"balance": balance})
	if err != nil {
		return err
	}
	channel := fmt.Sprintf("yak-balance:%s", userID)
	return p.client.Publish(ctx, channel, payload).Err()
}
