// Package worker — цикл обработки jobs.
//
// Worker — stateless компонент, который:
//   - периодически опрашивает pending-очереди sync и audio jobs
//     (polling fallback)
//   - получает wakeup-уведомления из RabbitMQ (event-driven, опционально)
//   - прогоняет sync-джобы через pipeline.Runner, audio-джобы через
//     synth.Chunked
//   - выставляет терминальный статус ровно один раз
//
// Несколько workers могут работать с одним хранилищем: claim
// разрешается повторной проверкой статуса, проигравший гонку делает
// no-op. Режим single-shot (ProcessOne) подходит для хостов с жёстким
// лимитом времени вызова.
package worker
