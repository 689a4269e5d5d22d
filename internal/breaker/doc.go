// Package breaker реализует circuit breaker для защиты от каскадных
// отказов внешних AI-зависимостей.
//
// Машина состояний:
//
//	closed → open → half-open → closed (успех)
//	                          ↘ open   (любая ошибка)
//
// Состояние процесс-локально и не персистится. Экземпляры создаются
// в composition root по одному на зависимость и передаются в pipeline
// явно, не через глобальные синглтоны.
package breaker
