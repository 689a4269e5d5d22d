// Package limiter содержит примитивы ограничения нагрузки:
//
//   - Semaphore — ограничение числа одновременных операций
//   - TokenBucket — ограничение частоты запросов
//
// Примитивы чистые (без I/O) и потокобезопасные. Экземпляры создаются
// в composition root и передаются компонентам явно — по одному на
// защищаемую внешнюю зависимость.
package limiter
