package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

var bufPool sync.Pool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

// StartRabbitMqPublisher forwards invoice events to a topic exchange so
// external consumers can react to settlements without polling the API.
func (svc *InvoicehubService) StartRabbitMqPublisher(ctx context.Context) error {
	conn, err := amqp.Dial(svc.Config.RabbitMQUri)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	err = ch.ExchangeDeclare(
		svc.Config.RabbitMQInvoiceExchange,
		// topic exchanges let consumers bind per event name
		"topic",
		// durable, non-auto-deleted
		true,
		false,
		false,
		// wait for the server to confirm the declare
		false,
		nil,
	)
	if err != nil {
		return err
	}

	svc.Logger.Infof("Starting rabbitmq publisher")

	events := make(chan Event, 16)
	subID := svc.InvoicePubSub.Subscribe(events)
	defer svc.InvoicePubSub.Unsubscribe(subID)
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context canceled")
		case ev := <-events:
			svc.publishEvent(ctx, ev, ch)
		}
	}
}

func (svc *InvoicehubService) publishEvent(ctx context.Context, ev Event, ch *amqp.Channel) {
	payload := bufPool.Get().(*bytes.Buffer)
	payload.Reset()
	defer bufPool.Put(payload)

	if err := json.NewEncoder(payload).Encode(ev); err != nil {
		svc.Logger.Error(err)
		return
	}

	err := ch.PublishWithContext(ctx,
		svc.Config.RabbitMQInvoiceExchange,
		ev.Name,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        payload.Bytes(),
		},
	)
	if err != nil {
		svc.Logger.Error(err)
		return
	}
	svc.Logger.Debugf("Published %s event to rabbitmq", ev.Name)
}
