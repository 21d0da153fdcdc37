package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-orderflow-saga/internal/idempotency"
	"github.com/imrishuroy/go-orderflow-saga/internal/logging"
	"github.com/imrishuroy/go-orderflow-saga/internal/messages"
	"github.com/imrishuroy/go-orderflow-saga/internal/router"
)

// errInProgress is returned for a message another invocation still holds.
var errInProgress = errors.New("message is being processed elsewhere")

// Inbox records which messages were processed.
type Inbox interface {
	Begin(ctx context.Context, messageID, kind, orderID string) (bool, error)
	Get(ctx context.Context, messageID string) (*idempotency.Record, error)
	MarkDone(ctx context.Context, messageID string) error
	MarkFailed(ctx context.Context, messageID, note string) error
}

// Processor handles SQS batches: each envelope is claimed in the inbox,
// routed, then marked. Failed records are reported back as batch item
// failures so only they are redelivered.
type Processor struct {
	inbox       Inbox
	route       router.RouteFunc
	concurrency int
	log         *zap.Logger
}

// NewProcessor creates a worker processor.
func NewProcessor(inbox Inbox, route router.RouteFunc, concurrency int, log *zap.Logger) *Processor {
	return &Processor{inbox: inbox, route: route, concurrency: concurrency, log: log}
}

// Handle processes one SQS batch.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	log := logging.L(ctx, p.log)
	log.Debug("received batch", zap.Int("records", len(ev.Records)))

	var (
		resp     events.SQSEventResponse
		envs     []messages.Envelope
		sqsIDs   []string
		poisoned = map[string]bool{}
	)
	fail := func(sqsID string) {
		resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: sqsID})
	}

	for _, rec := range ev.Records {
		group := rec.Attributes["MessageGroupId"]
		env, err := messages.Parse([]byte(rec.Body))
		if err != nil {
			// left to the redrive policy, which moves it to the DLQ
			log.Error("invalid message body", zap.String("sqs_message_id", rec.MessageId), zap.Error(err))
			fail(rec.MessageId)
			if group != "" {
				poisoned[group] = true
			}
			continue
		}
		if group != "" && poisoned[group] {
			// keep the group's order behind the bad message
			fail(rec.MessageId)
			continue
		}
		envs = append(envs, env)
		sqsIDs = append(sqsIDs, rec.MessageId)
	}

	for i, err := range router.RouteBatch(ctx, envs, p.concurrency, p.process) {
		if err == nil {
			continue
		}
		if !errors.Is(err, router.ErrSkipped) {
			log.Warn("message failed",
				zap.String("message_id", envs[i].ID),
				zap.String("kind", string(envs[i].Kind)),
				zap.String("order_id", envs[i].OrderID),
				zap.Error(err),
			)
		}
		fail(sqsIDs[i])
	}
	return resp, nil
}

// process runs one envelope under the inbox.
func (p *Processor) process(ctx context.Context, env messages.Envelope) error {
	claimed, err := p.inbox.Begin(ctx, env.ID, string(env.Kind), env.OrderID)
	if err != nil {
		return fmt.Errorf("inbox begin: %w", err)
	}
	if !claimed {
		rec, err := p.inbox.Get(ctx, env.ID)
		if err != nil {
			return fmt.Errorf("inbox get: %w", err)
		}
		if rec != nil && rec.Status == idempotency.StatusDone {
			logging.L(ctx, p.log).Debug("duplicate delivery acknowledged", zap.String("message_id", env.ID))
			return nil
		}
		return errInProgress
	}

	if err := p.route(ctx, env); err != nil {
		if markErr := p.inbox.MarkFailed(ctx, env.ID, err.Error()); markErr != nil {
			logging.L(ctx, p.log).Error("inbox mark failed", zap.String("message_id", env.ID), zap.Error(markErr))
		}
		return err
	}
	if err := p.inbox.MarkDone(ctx, env.ID); err != nil {
		// routing succeeded; a redelivery is handled idempotently downstream
		logging.L(ctx, p.log).Error("inbox mark done", zap.String("message_id", env.ID), zap.Error(err))
	}
	return nil
}
