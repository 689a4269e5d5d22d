package synth

// Разбиение длинного текста на chunks ограниченного размера.
//
// Сначала текст режется по границам предложений (CJK и латинская
// пунктуация плюс перевод строки), затем предложения упаковываются
// в chunks так, чтобы ни один не превышал maxChunkChars (в рунах).
// Предложение длиннее лимита режется жёстко по рунам. Текст никогда
// не теряется и не переупорядочивается: конкатенация chunks даёт
// исходную строку.

// isSentenceEnd сообщает, завершает ли руна предложение.
func isSentenceEnd(r rune) bool {
	switch r {
	case '。', '！', '？', '．', '.', '!', '?', '\n':
		return true
	default:
		return false
	}
}

// sentences режет текст на предложения, сохраняя терминальную пунктуацию.
func sentences(text string) []string {
	var parts []string
	runes := []rune(text)

	start := 0
	for i := 0; i < len(runes); i++ {
		if !isSentenceEnd(runes[i]) {
			continue
		}
		// Захватываем подряд идущие знаки конца предложения ("?!", "。」").
		end := i + 1
		for end < len(runes) && isSentenceEnd(runes[end]) {
			end++
		}
		parts = append(parts, string(runes[start:end]))
		start = end
		i = end - 1
	}
	if start < len(runes) {
		parts = append(parts, string(runes[start:]))
	}
	return parts
}

// hardSlice режет строку на куски ровно по maxChars рун.
func hardSlice(text string, maxChars int) []string {
	runes := []rune(text)
	var parts []string
	for i := 0; i < len(runes); i += maxChars {
		end := min(i+maxChars, len(runes))
		parts = append(parts, string(runes[i:end]))
	}
	return parts
}

// Split разбивает текст на chunks не длиннее maxChunkChars рун.
func Split(text string, maxChunkChars int) []string {
	if maxChunkChars <= 0 {
		maxChunkChars = defaultMaxChunkChars
	}
	if text == "" {
		return nil
	}

	var chunks []string
	var current []rune

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, string(current))
			current = current[:0]
		}
	}

	for _, sentence := range sentences(text) {
		sr := []rune(sentence)

		if len(sr) > maxChunkChars {
			// Предложение само не помещается — жёсткая нарезка.
			flush()
			chunks = append(chunks, hardSlice(sentence, maxChunkChars)...)
			continue
		}

		if len(current)+len(sr) > maxChunkChars {
			flush()
		}
		current = append(current, sr...)
	}
	flush()

	return chunks
}
