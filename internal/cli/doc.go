// Package cli реализует инструмент командной строки news.
//
// CLI — клиентская утилита для взаимодействия с news API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// Используется для постановки jobs, наблюдения за их прогрессом
// и чтения результатов синхронизации.
//
// Client инкапсулирует HTTP-запросы и парсинг ответов
// (DataResponse/ErrorResponse), Output — форматирование
// (таблицы через text/tabwriter либо JSON с флагом --json).
// Данные идут в stdout, сообщения — в stderr, так что вывод
// можно передавать в pipe: news job show ID --json | jq .
//
// Каждая группа команд создаётся фабричной функцией (NewJobCmd и т.д.),
// принимающей clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
