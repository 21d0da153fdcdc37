package gateway

import (
	"context"
	"fmt"

	"github.com/imrishuroy/go-orderflow-saga/internal/aws"
	"github.com/imrishuroy/go-orderflow-saga/internal/messages"
)

// SQSGateway routes each command kind to the queue of the service that owns it.
type SQSGateway struct {
	routes map[messages.Kind]*aws.Publisher
	sync   CommandGateway
}

// NewSQSGateway sends the order's own commands to ordersQueue and the product
// commands to productsQueue. SendAndWait is delegated to sync.
func NewSQSGateway(ordersQueue, productsQueue *aws.Publisher, sync CommandGateway) *SQSGateway {
	return &SQSGateway{
		routes: map[messages.Kind]*aws.Publisher{
			messages.KindCreateOrder:              ordersQueue,
			messages.KindApproveOrder:             ordersQueue,
			messages.KindRejectOrder:              ordersQueue,
			messages.KindReserveProduct:           productsQueue,
			messages.KindCancelProductReservation: productsQueue,
		},
		sync: sync,
	}
}

func (g *SQSGateway) Send(ctx context.Context, cmd messages.Message) error {
	op := "send " + string(cmd.Kind())
	pub, ok := g.routes[cmd.Kind()]
	if !ok {
		return remoteErr(op, 0, fmt.Errorf("no queue for %s", cmd.Kind()))
	}
	env, err := messages.NewEnvelope(cmd)
	if err != nil {
		return remoteErr(op, 0, err)
	}
	if _, err := pub.SendEnvelope(ctx, env, 0); err != nil {
		return remoteErr(op, 0, err)
	}
	return nil
}

func (g *SQSGateway) SendAndWait(ctx context.Context, cmd messages.Message) (string, error) {
	return g.sync.SendAndWait(ctx, cmd)
}
