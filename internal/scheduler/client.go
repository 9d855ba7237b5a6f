package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"leadfollowup_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// manualTriggerTimeout bounds how long an enqueued trigger may run in the worker.
const manualTriggerTimeout = 30 * time.Minute

// Client enqueues manual triggers for the scheduler worker.
type Client struct {
	client *asynq.Client
	queue  string
}

// Enqueuer is implemented by Client. A nil Enqueuer means triggers run inline.
type Enqueuer interface {
	EnqueueSweep(ctx context.Context) (string, error)
	EnqueueSweepClient(ctx context.Context, clientSlug string) (string, error)
	EnqueueMailboxPoll(ctx context.Context) (string, error)
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) EnqueueSweep(ctx context.Context) (string, error) {
	return c.enqueue(ctx, NewFollowupSweepTask())
}

func (c *Client) EnqueueSweepClient(ctx context.Context, clientSlug string) (string, error) {
	task, err := NewFollowupSweepClientTask(SweepClientPayload{ClientSlug: clientSlug})
	if err != nil {
		return "", err
	}
	return c.enqueue(ctx, task)
}

func (c *Client) EnqueueMailboxPoll(ctx context.Context) (string, error) {
	return c.enqueue(ctx, NewMailboxPollTask())
}

// enqueue submits task without retries: a failed cycle is simply picked up
// by the next periodic tick.
func (c *Client) enqueue(ctx context.Context, task *asynq.Task) (string, error) {
	if c == nil || c.client == nil {
		return "", fmt.Errorf("scheduler client not configured")
	}
	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.MaxRetry(0),
		asynq.Timeout(manualTriggerTimeout),
	)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	return info.ID, nil
}

func queueName(cfg config.SchedulerConfig) string {
	if queue := cfg.GetAsynqQueueName(); queue != "" {
		return queue
	}
	return "default"
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
