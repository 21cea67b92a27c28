package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/raphaelgruber/notegen/internal/queue"
)

const (
	receiveMax  = 1
	receiveWait = 10 * time.Second

	// receiveErrBackoff keeps a broken queue connection from hot-looping.
	receiveErrBackoff = time.Second
)

// TaskQueue is the message queue surface the consumer needs.
type TaskQueue interface {
	Receive(ctx context.Context, max int32, wait time.Duration) ([]queue.Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// TaskRunner processes one task identifier to a terminal state.
type TaskRunner interface {
	Process(ctx context.Context, taskID int64) error
}

// taskMessage is the body the submission side enqueues.
type taskMessage struct {
	TaskID int64 `json:"task_id"`
}

// Consumer long-polls the queue and runs one task at a time. The message is
// deleted after the attempt returns — success or failure — so a handled
// failure is never redelivered, while a crash mid-run leaves the message
// eligible for redelivery. Delivery is therefore at-least-once; the runner's
// stage side effects are idempotent overwrites.
type Consumer struct {
	queue  TaskQueue
	runner TaskRunner
	logger *slog.Logger
}

// NewConsumer creates a queue consumer.
func NewConsumer(q TaskQueue, runner TaskRunner, logger *slog.Logger) *Consumer {
	return &Consumer{queue: q, runner: runner, logger: logger}
}

// Run blocks, consuming messages until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("queue consumer started", "wait", receiveWait.String())

	for {
		if err := ctx.Err(); err != nil {
			c.logger.Info("queue consumer stopping")
			return err
		}

		msgs, err := c.queue.Receive(ctx, receiveMax, receiveWait)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logger.Error("receive failed", "error", err)
			select {
			case <-time.After(receiveErrBackoff):
			case <-ctx.Done():
			}
			continue
		}

		for _, msg := range msgs {
			c.handle(ctx, msg)
		}
	}
}

// handle runs one message attempt and always deletes the message afterwards.
func (c *Consumer) handle(ctx context.Context, msg queue.Message) {
	var body taskMessage
	if err := json.Unmarshal([]byte(msg.Body), &body); err != nil {
		c.logger.Error("dropping malformed message", "body", msg.Body, "error", err)
	} else if body.TaskID == 0 {
		c.logger.Error("dropping message without task id", "body", msg.Body)
	} else {
		if err := c.runner.Process(ctx, body.TaskID); err != nil {
			c.logger.Warn("task attempt finished with error", "task_id", body.TaskID, "error", err)
		}
	}

	if err := c.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		c.logger.Error("deleting message failed", "receipt", msg.ReceiptHandle, "error", err)
	}
}
