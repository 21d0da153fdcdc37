package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-orderflow-saga/internal/logging"
	"github.com/imrishuroy/go-orderflow-saga/internal/messages"
	"github.com/imrishuroy/go-orderflow-saga/internal/orders"
	"github.com/imrishuroy/go-orderflow-saga/internal/projection"
	"github.com/imrishuroy/go-orderflow-saga/internal/validation"
)

// orderNamespace seeds order ids derived from an Idempotency-Key.
var orderNamespace = uuid.MustParse("6f1c2a52-8d3e-4b7a-9f0e-2c5d8a41b937")

// OrderCommands creates orders.
type OrderCommands interface {
	CreateOrder(ctx context.Context, cmd messages.CreateOrder) error
}

// OrderViews reads the order read model.
type OrderViews interface {
	Get(ctx context.Context, orderID string) (*projection.OrderView, error)
}

// HandlerConfig groups dependencies for the orders handler.
type HandlerConfig struct {
	Orders OrderCommands
	Views  OrderViews
	Log    *zap.Logger
}

// OrderID returns the order id for a request: derived from the idempotency
// key when one is given, random otherwise.
func OrderID(idempotencyKey string) string {
	if idempotencyKey == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(orderNamespace, []byte(idempotencyKey)).String()
}

// RegisterOrdersRoutes registers routes for order API.
func RegisterOrdersRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()

	r.POST("/orders", func(c *gin.Context) {
		ctx := c.Request.Context()
		log := logging.L(ctx, cfg.Log)

		var req validation.CreateOrderRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400
			return
		}

		orderID := OrderID(c.GetHeader("Idempotency-Key"))
		log = log.With(zap.String("order_id", orderID))

		err := cfg.Orders.CreateOrder(ctx, messages.CreateOrder{
			OrderID:   orderID,
			UserID:    req.UserID,
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
			AddressID: req.AddressID,
		})
		switch {
		case err == nil:
			log.Info("order created")
			c.Header("Location", fmt.Sprintf("/orders/%s", orderID))
			c.JSON(http.StatusCreated, gin.H{"order_id": orderID, "status": messages.StatusCreated})
		case errors.Is(err, orders.ErrDuplicateIdentifier):
			// a retry of a request that already created the order
			log.Info("order already exists")
			c.Header("Location", fmt.Sprintf("/orders/%s", orderID))
			c.JSON(http.StatusOK, gin.H{"order_id": orderID})
		case errors.Is(err, orders.ErrInvalidCommand):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_command", "msg": err.Error()})
		default:
			log.Error("create order failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create_failed"})
		}
	})

	r.GET("/orders/:id", func(c *gin.Context) {
		ctx := c.Request.Context()
		view, err := cfg.Views.Get(ctx, c.Param("id"))
		if errors.Is(err, projection.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
			return
		}
		if err != nil {
			logging.L(ctx, cfg.Log).Error("get order failed", zap.String("order_id", c.Param("id")), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "read_failed"})
			return
		}
		c.JSON(http.StatusOK, view)
	})
}
