package redisfeed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/auditdbio/eventgate/internal/event"
	"github.com/auditdbio/eventgate/internal/metrics"
	"github.com/auditdbio/eventgate/internal/platform/retry"
)

// Publisher is the dispatcher-side sink the feed hands events to.
type Publisher interface {
	Publish(ev event.Event) error
}

const (
	subscribeAttempts = 10
	subscribeBackoff  = 500 * time.Millisecond
)

// Feed subscribes to a Redis Pub/Sub channel and forwards well-formed events
// to the dispatcher. It is an alternative ingestion path for producers that
// already speak Redis; malformed messages are counted and dropped, never
// fatal.
type Feed struct {
	rdb     *goredis.Client
	channel string
	sink    Publisher
}

// New creates a feed reading events from the given channel.
func New(rdb *goredis.Client, channel string, sink Publisher) *Feed {
	return &Feed{rdb: rdb, channel: channel, sink: sink}
}

// Run consumes the subscription until ctx is cancelled, resubscribing with
// backoff whenever the subscription drops.
func (f *Feed) Run(ctx context.Context) {
	for ctx.Err() == nil {
		sub, err := f.subscribe(ctx)
		if err != nil {
			var permanent *retry.PermanentError
			if !errors.As(err, &permanent) {
				slog.Error("Redis feed subscription failed", "channel", f.channel, "error", err)
			}
			return
		}

		metrics.FeedConnected.Set(1)
		slog.Info("Redis feed subscribed", "channel", f.channel)
		f.consume(ctx, sub)
		metrics.FeedConnected.Set(0)
		_ = sub.Close()

		if ctx.Err() == nil {
			metrics.FeedReconnectsTotal.Inc()
			slog.Warn("Redis feed subscription dropped, resubscribing", "channel", f.channel)
		}
	}
}

func (f *Feed) subscribe(ctx context.Context) (*goredis.PubSub, error) {
	var sub *goredis.PubSub

	policy := retry.Policy{
		MaxAttempts:    subscribeAttempts,
		InitialBackoff: subscribeBackoff,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Redis feed subscribe failed, retrying",
				"channel", f.channel,
				"attempt", attempt,
				"backoff", backoff,
				"error", err,
			)
		},
	}
	classify := func(err error) retry.Action {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return retry.Stop
		}
		return retry.Retry
	}

	err := retry.Do(ctx, policy, classify, func() error {
		s := f.rdb.Subscribe(ctx, f.channel)
		// Receive confirms the subscription is live before we trust it.
		if _, err := s.Receive(ctx); err != nil {
			_ = s.Close()
			return err
		}
		sub = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (f *Feed) consume(ctx context.Context, sub *goredis.PubSub) {
	msgCh := sub.Channel()
	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			f.handle(msg.Payload)
		case <-ctx.Done():
			return
		}
	}
}

func (f *Feed) handle(payload string) {
	var ev event.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		metrics.FeedMessagesTotal.WithLabelValues("malformed").Inc()
		slog.Warn("Dropping malformed feed message", "channel", f.channel, "error", err)
		return
	}

	if err := f.sink.Publish(ev); err != nil {
		metrics.FeedMessagesTotal.WithLabelValues("rejected").Inc()
		slog.Warn("Dropping rejected feed event", "channel", f.channel, "kind", ev.Kind, "error", err)
		return
	}
	metrics.FeedMessagesTotal.WithLabelValues("published").Inc()
}
