// Package provider содержит конкретные клиенты внешних сервисов:
// RSS-ленты (ContentFetcher), chat-completions API (Summarizer,
// Translator, Scorer) и TTS API (Synthesizer).
//
// Все клиенты — тонкие HTTP-обёртки; политика надёжности (retry,
// breaker, лимиты) живёт уровнем выше, в pipeline. Ошибки HTTP
// включают код статуса в текст, чтобы классификация breaker.IsRateLimit
// и breaker.IsPermanent работала без отдельных типов.
package provider
