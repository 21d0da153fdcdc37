package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-orderflow-saga/internal/aws"
	"github.com/imrishuroy/go-orderflow-saga/internal/config"
	"github.com/imrishuroy/go-orderflow-saga/internal/deadline"
	"github.com/imrishuroy/go-orderflow-saga/internal/eventstore"
	"github.com/imrishuroy/go-orderflow-saga/internal/gateway"
	"github.com/imrishuroy/go-orderflow-saga/internal/idempotency"
	"github.com/imrishuroy/go-orderflow-saga/internal/logging"
	"github.com/imrishuroy/go-orderflow-saga/internal/metrics"
	"github.com/imrishuroy/go-orderflow-saga/internal/orders"
	"github.com/imrishuroy/go-orderflow-saga/internal/projection"
	"github.com/imrishuroy/go-orderflow-saga/internal/router"
	"github.com/imrishuroy/go-orderflow-saga/internal/saga"
)

// newProcessor wires the worker against AWS.
func newProcessor(cfg config.Config, clients *aws.AWSClients, logger *zap.Logger) *Processor {
	ordersQueue := aws.NewPublisher(clients.SQS, cfg.CommandsQueueURL)
	eventsQueue := aws.NewPublisher(clients.SQS, cfg.EventsQueueURL)
	productsQueue := aws.NewPublisher(clients.SQS, cfg.ProductsQueueURL)
	deadlinesQueue := aws.NewPublisher(clients.SQS, cfg.DeadlinesQueueURL)

	remote := gateway.NewHTTPClient(cfg.PaymentServiceURL, cfg.UserServiceURL, cfg.RemoteCallTimeout)
	commands := gateway.NewSQSGateway(ordersQueue, productsQueue, remote)
	scheduler := deadline.NewSQSScheduler(deadlinesQueue, clients.DynamoDB, cfg.DeadlinesTable)
	recorder := metrics.NewCloudWatch(clients.CloudWatch, cfg.MetricsNamespace, logger)

	svc := orders.NewService(eventstore.NewDynamoStore(clients.DynamoDB, cfg.EventsTable), eventsQueue, logger)
	sagas := saga.NewManager(
		saga.New(saga.Options{
			PaymentDeadline:          cfg.PaymentDeadline,
			PaymentProcessingEnabled: cfg.PaymentProcessingEnabled,
		}),
		saga.NewDynamoStateStore(clients.DynamoDB, cfg.SagaTable),
		func() saga.Deps {
			return saga.Deps{
				Commands:  commands,
				Queries:   remote,
				Deadlines: scheduler,
				Metrics:   recorder,
				Log:       logger,
			}
		},
		logger,
	)
	rt := router.New(svc,
		projection.NewProjector(projection.NewDynamoStore(clients.DynamoDB, cfg.OrdersTable), logger),
		sagas,
		logger,
		router.WithDeadlineFilter(scheduler.Cancelled),
	)

	inbox := idempotency.NewStore(clients.DynamoDB, cfg.InboxTable, cfg.InboxTTL)
	return NewProcessor(inbox, rt.Route, router.DefaultBatchConcurrency, logger)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := logging.New(logging.Config{ServiceName: "orders-worker", Env: cfg.AppEnv, Level: cfg.LogLevel})
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logging.Sync(logger)

	clients, err := aws.NewAWSClients(context.Background(), cfg.AWSRegion, cfg.AWSEndpoint)
	if err != nil {
		logger.Fatal("failed to init aws clients", zap.Error(err))
	}
	p := newProcessor(cfg, clients, logger)

	// If RUN_LOCAL=true, process a single envelope from LOCAL_SQS_BODY and exit.
	if cfg.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			logger.Fatal("LOCAL_SQS_BODY is required when RUN_LOCAL=true")
		}
		resp, err := p.Handle(context.Background(), events.SQSEvent{
			Records: []events.SQSMessage{{MessageId: "local-1", Body: body}},
		})
		if err != nil || len(resp.BatchItemFailures) > 0 {
			logger.Fatal("local handler failed", zap.Error(err), zap.Int("failures", len(resp.BatchItemFailures)))
		}
		return
	}

	lambda.Start(p.Handle)
}
