// Package queue_publisher publishes campaign delivery jobs to RabbitMQ.
// Errors are logged and returned so callers can decide whether a partial
// fan-out aborts the request.
package queue_publisher

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/lumenworks/newsletter-api/internal/queue"
)

// PublishCampaignJobs publishes one CampaignEmailJob per recipient to
// the campaign queue over a single connection. Messages are persistent
// so a broker restart does not lose a half-dispatched campaign. Returns
// the number of jobs actually published.
func PublishCampaignJobs(ctx context.Context, jobs []q.CampaignEmailJob) (int, error) {
	if len(jobs) == 0 {
		return 0, nil
	}

	conn, err := amqp.Dial(q.BrokerURL())
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return 0, err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return 0, err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		q.CampaignQueueName, // name
		true,                // durable
		false,               // autoDelete
		false,               // exclusive
		false,               // noWait
		nil,                 // args
	); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return 0, err
	}

	published := 0
	for _, job := range jobs {
		body, err := json.Marshal(job)
		if err != nil {
			log.Printf("rabbitmq: marshal job failed: %v", err)
			return published, err
		}
		pub := amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent, // store on disk
			Timestamp:    time.Now().UTC(),
			Body:         body,
		}
		if err := ch.PublishWithContext(ctx,
			"",                  // default exchange
			q.CampaignQueueName, // routing key = queue name
			false,               // mandatory
			false,               // immediate
			pub,
		); err != nil {
			log.Printf("rabbitmq: publish failed: %v", err)
			return published, err
		}
		published++
	}
	return published, nil
}
