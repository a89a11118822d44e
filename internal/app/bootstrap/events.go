package bootstrap

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	amqp "github.com/rabbitmq/amqp091-go"

	appconfig "github.com/wolfman30/clinic-booking-engine/internal/config"
	"github.com/wolfman30/clinic-booking-engine/internal/events"
	"github.com/wolfman30/clinic-booking-engine/pkg/logging"
)

// BuildSink returns the downstream event sink named by EVENTS_SINK and a
// close func. "none" returns a nil sink.
func BuildSink(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (events.Sink, func(), error) {
	noop := func() {}
	switch cfg.EventsSink {
	case "", "none":
		return nil, noop, nil
	case "sqs":
		if awsCfg == nil || cfg.EventsQueueURL == "" {
			return nil, noop, fmt.Errorf("bootstrap: sqs sink requires aws config and EVENTS_QUEUE_URL")
		}
		logger.Info("events sink: sqs", "queue_url", cfg.EventsQueueURL)
		return events.NewSQSSink(sqs.NewFromConfig(*awsCfg), cfg.EventsQueueURL), noop, nil
	case "amqp":
		if cfg.AMQPURL == "" {
			return nil, noop, fmt.Errorf("bootstrap: amqp sink requires AMQP_URL")
		}
		conn, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			return nil, noop, fmt.Errorf("bootstrap: amqp dial: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, noop, fmt.Errorf("bootstrap: amqp channel: %w", err)
		}
		if _, err := ch.QueueDeclare(cfg.AMQPQueue, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, noop, fmt.Errorf("bootstrap: amqp declare %s: %w", cfg.AMQPQueue, err)
		}
		logger.Info("events sink: amqp", "queue", cfg.AMQPQueue)
		return events.NewAMQPSink(ch, cfg.AMQPQueue), func() {
			_ = ch.Close()
			_ = conn.Close()
		}, nil
	default:
		return nil, noop, fmt.Errorf("bootstrap: unknown events sink %q", cfg.EventsSink)
	}
}
