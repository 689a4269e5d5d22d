// Package pipeline реализует staged-обработку sync-джоба: получение
// новостей, отбор, AI-стадии (summary, перевод, важность), сборку
// текста выпуска, постановку аудио-задачи и сохранение результата.
//
// Стадии выполняются строго по порядку. AI-стадии защищены circuit
// breaker'ом; пер-item работа внутри стадии ограничена общим token
// bucket и семафором, а отказ одного item деградирует до fallback
// вместо отмены всего batch. Прогресс стадий публикуется наружу через
// ReportFunc.
package pipeline
