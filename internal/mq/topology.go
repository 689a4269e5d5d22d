package mq

import (
	"fmt"

	"github.com/jrjgit/news/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// Имена обменников и очередей.
const (
	ExchangeJobs Exchange = "news.jobs"

	QueueJobsSync  Queue = "jobs.sync"
	QueueJobsAudio Queue = "jobs.audio"
)

// QueueFor возвращает очередь уведомлений для вида задачи.
func QueueFor(kind domain.Kind) Queue {
	if kind == domain.KindAudio {
		return QueueJobsAudio
	}
	return QueueJobsSync
}

// SetupTopology декларирует обменник и очереди уведомлений.
// Идемпотентно; вызывается каждым процессом на старте.
func SetupTopology(conn *Connection) error {
	return conn.WithChannel(func(ch *amqp.Channel) error {
		err := ch.ExchangeDeclare(string(ExchangeJobs), "direct", true, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ExchangeJobs, err)
		}

		for kind, queue := range map[domain.Kind]Queue{
			domain.KindSync:  QueueJobsSync,
			domain.KindAudio: QueueJobsAudio,
		} {
			if _, err := ch.QueueDeclare(string(queue), true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare queue %s: %w", queue, err)
			}
			if err := ch.QueueBind(string(queue), string(kind), string(ExchangeJobs), false, nil); err != nil {
				return fmt.Errorf("bind queue %s: %w", queue, err)
			}
		}
		return nil
	})
}
