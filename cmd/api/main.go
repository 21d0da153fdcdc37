package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-orderflow-saga/internal/aws"
	"github.com/imrishuroy/go-orderflow-saga/internal/config"
	"github.com/imrishuroy/go-orderflow-saga/internal/eventstore"
	"github.com/imrishuroy/go-orderflow-saga/internal/flow"
	"github.com/imrishuroy/go-orderflow-saga/internal/handlers"
	"github.com/imrishuroy/go-orderflow-saga/internal/logging"
	"github.com/imrishuroy/go-orderflow-saga/internal/messages"
	"github.com/imrishuroy/go-orderflow-saga/internal/orders"
	"github.com/imrishuroy/go-orderflow-saga/internal/projection"
)

// demoUser is registered with the in-process users service in local mode.
var demoUser = messages.User{
	UserID:    "27b95829-4f3f-4ddf-8983-151ba010e35b",
	FirstName: "Demo",
	LastName:  "User",
	PaymentDetails: messages.PaymentDetails{
		Name:            "Demo User",
		CardNumber:      "4242424242424242",
		ValidUntilMonth: 12,
		ValidUntilYear:  2030,
		CVV:             "123",
	},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := logging.New(logging.Config{ServiceName: "orders-api", Env: cfg.AppEnv, Level: cfg.LogLevel})
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logging.Sync(logger)

	if cfg.RunLocal {
		if err := runLocal(cfg, logger); err != nil {
			logger.Fatal("local server failed", zap.Error(err))
		}
		return
	}

	clients, err := aws.NewAWSClients(context.Background(), cfg.AWSRegion, cfg.AWSEndpoint)
	if err != nil {
		logger.Fatal("failed to init aws clients", zap.Error(err))
	}

	r := handlers.NewRouter(handlers.HandlerConfig{
		Orders: orders.NewService(
			eventstore.NewDynamoStore(clients.DynamoDB, cfg.EventsTable),
			aws.NewPublisher(clients.SQS, cfg.EventsQueueURL),
			logger,
		),
		Views: projection.NewDynamoStore(clients.DynamoDB, cfg.OrdersTable),
		Log:   logger,
	})

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}

// runLocal serves the API with the whole workflow running in process.
func runLocal(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	local := flow.NewLocal(flow.Options{
		PaymentDeadline:          cfg.PaymentDeadline,
		PaymentProcessingEnabled: cfg.PaymentProcessingEnabled,
		ConfirmPayments:          true,
	}, logger)
	defer local.Deadlines.Stop()
	local.Users.Put(demoUser)
	go local.Bus.Run(ctx)

	r := handlers.NewRouter(handlers.HandlerConfig{Orders: local.Orders, Views: local.Views, Log: logger})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(r, "orders-api"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("running local server", zap.String("addr", cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
