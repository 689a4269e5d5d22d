// Package api — HTTP-интерфейс оркестрационного ядра: постановка
// jobs, статус и SSE-стрим прогресса, статистика очередей, выборка
// новостей за дату.
package api
