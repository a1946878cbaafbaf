package consumer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/subcat/internal/config"
	"github.com/aliskhannn/subcat/internal/jobfile"
)

// fetchBackoff is the pause after a fetch that failed all its retries.
const fetchBackoff = 500 * time.Millisecond

// jobHandler handles a single job message.
type jobHandler interface {
	Handle(ctx context.Context, msg kafka.Message) error
}

// Consumer reads job messages from Kafka and hands them to the job handler.
type Consumer struct {
	Client     *wbfkafka.Consumer
	jobHandler jobHandler
	cfg        *config.Kafka
	strategy   retry.Strategy
}

// New creates a new Consumer for cfg.Topic in group cfg.GroupID.
func New(cfg *config.Kafka, s retry.Strategy, h jobHandler) *Consumer {
	consumer := wbfkafka.NewConsumer(cfg.Brokers, cfg.Topic, cfg.GroupID)

	return &Consumer{
		Client:     consumer,
		jobHandler: h,
		cfg:        cfg,
		strategy:   s,
	}
}

// Consume fetches messages until ctx is canceled, handles them one at a
// time and commits each offset after handling.
func (c *Consumer) Consume(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	zlog.Logger.Info().
		Str("topic", c.cfg.Topic).
		Str("group_id", c.cfg.GroupID).
		Msg("starting consumer")

	for {
		// Exit if context is canceled (graceful shutdown).
		if ctx.Err() != nil {
			zlog.Logger.Info().Msg("shutdown signal received, stopping consumer")
			return
		}

		// Fetch a message from Kafka with retries.
		var msg kafka.Message
		err := retry.Do(func() error {
			var fetchErr error
			msg, fetchErr = c.Client.Fetch(ctx)
			return fetchErr
		}, c.strategy)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}

			zlog.Logger.Err(err).Msg("failed to fetch message")

			select {
			case <-ctx.Done():
			case <-time.After(fetchBackoff):
			}
			continue
		}

		// Run the job; undecodable messages are committed and dropped.
		if !c.handle(ctx, msg) {
			continue
		}

		// Commit the message with retries.
		err = retry.Do(func() error {
			return c.Client.Commit(ctx, msg)
		}, c.strategy)
		if err != nil {
			zlog.Logger.Err(err).Msg("failed to commit message after retries")
			continue
		}

		zlog.Logger.Debug().
			Int64("offset", msg.Offset).
			Msg("message committed")
	}
}

// handle passes msg to the job handler and reports whether its offset
// should be committed. Messages that can never decode are committed so
// they do not hold the partition's offset back.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) bool {
	err := c.jobHandler.Handle(ctx, msg)
	switch {
	case err == nil:
		return true
	case errors.Is(err, jobfile.ErrInvalidJob):
		zlog.Logger.Warn().
			Err(err).
			Int64("offset", msg.Offset).
			Str("message", string(msg.Value)).
			Msg("dropping undecodable job")
		return true
	default:
		zlog.Logger.Err(err).
			Int64("offset", msg.Offset).
			Str("message", string(msg.Value)).
			Msg("failed to handle job")
		return false
	}
}
