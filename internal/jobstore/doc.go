// Package jobstore хранит состояние фоновых jobs в внешнем key-value
// хранилище (см. internal/kv).
//
// Store — единственная точка координации между stateless worker'ами:
// очередь, статусы, прогресс и результаты живут только здесь. Каждый
// вид jobs (sync, audio) получает собственный экземпляр Store со своим
// keyspace, но одинаковой формой данных.
package jobstore
