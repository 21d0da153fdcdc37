package orders

import (
	"encoding/json"
	"fmt"

	"github.com/imrishuroy/go-orderflow-saga/internal/eventstore"
	"github.com/imrishuroy/go-orderflow-saga/internal/messages"
)

func encodeEvents(events []messages.Message) ([]eventstore.Record, error) {
	out := make([]eventstore.Record, 0, len(events))
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", e.Kind(), err)
		}
		out = append(out, eventstore.Record{Type: string(e.Kind()), Data: data})
	}
	return out, nil
}

func decodeEvents(records []eventstore.Record) ([]messages.Message, error) {
	out := make([]messages.Message, 0, len(records))
	for _, r := range records {
		env := messages.Envelope{Kind: messages.Kind(r.Type), OrderID: r.AggregateID, Payload: r.Data}
		msg, err := env.Decode()
		if err != nil {
			return nil, fmt.Errorf("decode %s/%d: %w", r.AggregateID, r.Version, err)
		}
		out = append(out, msg)
	}
	return out, nil
}
