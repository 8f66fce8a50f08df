package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nhle/erp-sync/internal/model"
)

// DefaultChannel is the pub/sub channel pushes are relayed on.
const DefaultChannel = "erpsync:push"

// Relay feeds push payloads published on a Redis channel into an inbox.
// Each message is one JSON object in any shape Ingest accepts.
type Relay struct {
	client  *redis.Client
	channel string
	inbox   *Inbox
	logger  *log.Logger

	// OnIngest, when set, is called with every notification after it has
	// been added to the inbox.
	OnIngest func(model.Notification)
}

// NewRelay connects to redisURL.
func NewRelay(redisURL, channel string, inbox *Inbox, logger *log.Logger) (*Relay, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Relay{client: client, channel: channel, inbox: inbox, logger: logger}, nil
}

// Run subscribes and ingests messages until ctx ends.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *Relay) handle(raw string) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		r.logger.Printf("notify: skipping malformed push on %s: %v", r.channel, err)
		return
	}

	n := Ingest(payload)
	r.inbox.Add(n)
	if r.OnIngest != nil {
		r.OnIngest(n)
	}
}

// Publish sends p on the relay channel.
func (r *Relay) Publish(ctx context.Context, p Push) error {
	data, err := json.Marshal(p.Payload())
	if err != nil {
		return fmt.Errorf("marshal push: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("publish push: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (r *Relay) Close() error {
	return r.client.Close()
}
