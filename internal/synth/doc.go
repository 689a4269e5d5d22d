// Package synth превращает длинный текст выпуска в набор
// аудио-артефактов.
//
// Текст режется на chunks по границам предложений (splitter.go),
// chunks синтезируются параллельно под семафором и собираются
// строго в исходном порядке (chunked.go). Конкретный TTS-движок
// и blob-хранилище приходят снаружи через интерфейсы.
package synth
