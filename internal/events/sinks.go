package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Sink ships envelopes to downstream subsystems.
type Sink interface {
	Deliver(ctx context.Context, env Envelope) error
}

// SinkHandler forwards bus events straight to a sink (no outbox).
func SinkHandler(sink Sink) Handler {
	return HandlerFunc(func(ctx context.Context, env Envelope) error {
		return sink.Deliver(ctx, env)
	})
}

type sqsSendAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSSink publishes envelopes as JSON messages on an SQS queue.
type SQSSink struct {
	client   sqsSendAPI
	queueURL string
}

func NewSQSSink(client sqsSendAPI, queueURL string) *SQSSink {
	if client == nil {
		panic("events: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("events: SQS queueURL cannot be empty")
	}
	return &SQSSink{client: client, queueURL: queueURL}
}

func (s *SQSSink) Deliver(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("events: marshal envelope: %w", err)
	}
	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(env.EventType)},
			"event_id":   {DataType: aws.String("String"), StringValue: aws.String(env.EventID.String())},
		},
	})
	if err != nil {
		return fmt.Errorf("events: failed to send SQS message: %w", err)
	}
	return nil
}

type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink publishes envelopes as persistent messages on a RabbitMQ queue.
type AMQPSink struct {
	channel amqpPublisher
	queue   string
}

func NewAMQPSink(channel amqpPublisher, queue string) *AMQPSink {
	if channel == nil {
		panic("events: amqp channel cannot be nil")
	}
	return &AMQPSink{channel: channel, queue: queue}
}

func (s *AMQPSink) Deliver(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("events: marshal envelope: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:   "application/json",
		Body:          body,
		DeliveryMode:  amqp.Persistent,
		MessageId:     env.EventID.String(),
		Type:          env.EventType,
		CorrelationId: env.CorrelationID,
		Timestamp:     env.OccurredAt(),
	}
	if err := s.channel.PublishWithContext(ctx, "", s.queue, false, false, msg); err != nil {
		return fmt.Errorf("events: failed to publish amqp message: %w", err)
	}
	return nil
}

// DeclareAMQPQueue opens a channel on conn and declares a durable queue.
func DeclareAMQPQueue(conn *amqp.Connection, queue string) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("events: open amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("events: declare queue %s: %w", queue, err)
	}
	return ch, nil
}
