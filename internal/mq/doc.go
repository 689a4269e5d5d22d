// Package mq — событийные уведомления о новых jobs поверх RabbitMQ.
//
// MQ здесь не источник истины, а лишь будильник: запись job живёт
// в KV-хранилище, а сообщение job.enqueued будит worker, чтобы тот
// не ждал очередного polling-тика. Потеря сообщения не теряет job —
// её подберёт polling fallback.
package mq
