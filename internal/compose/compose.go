package compose

import (
	"fmt"
	"strings"
	"time"

	"github.com/jrjgit/news/internal/domain"
)

// Лимит длины одной новости в выпуске (в рунах).
const defaultMaxItemChars = 200

var weekdays = [...]string{"星期日", "星期一", "星期二", "星期三", "星期四", "星期五", "星期六"}

// Composer собирает текст ежедневного выпуска из обработанных новостей.
// Чистый шаблонный код без I/O: все данные приходят аргументами.
type Composer struct {
	maxItemChars int
}

// New создаёт Composer. maxItemChars <= 0 — значение по умолчанию.
func New(maxItemChars int) *Composer {
	if maxItemChars <= 0 {
		maxItemChars = defaultMaxItemChars
	}
	return &Composer{maxItemChars: maxItemChars}
}

// DailyScript собирает полный текст выпуска за дату: интро,
// секции внутренних и международных новостей, аутро. Пустые секции
// пропускаются.
func (c *Composer) DailyScript(date time.Time, items []domain.ProcessedItem) string {
	var domestic, international []domain.ProcessedItem
	for _, item := range items {
		if item.Category == domain.CategoryInternational {
			international = append(international, item)
		} else {
			domestic = append(domestic, item)
		}
	}

	var b strings.Builder
	b.WriteString(intro(date))
	if len(domestic) > 0 {
		c.writeSection(&b, "国内新闻", domestic)
	}
	if len(international) > 0 {
		c.writeSection(&b, "国际新闻", international)
	}
	b.WriteString(outro)
	return b.String()
}

// ItemScript собирает короткий скрипт одной новости.
func (c *Composer) ItemScript(item domain.ProcessedItem) string {
	return fmt.Sprintf("来自%s的报道：%s。\n%s。", item.Source, item.Title, c.simplify(itemBody(item)))
}

func intro(date time.Time) string {
	return fmt.Sprintf("各位听众朋友，大家好。今天是%s，欢迎收听每日热点新闻播报。\n\n", formatDate(date))
}

const outro = "以上是今天的热点新闻播报。感谢您的收听，我们下期再见。"

func formatDate(date time.Time) string {
	return fmt.Sprintf("%d年%d月%d日%s", date.Year(), int(date.Month()), date.Day(), weekdays[date.Weekday()])
}

func (c *Composer) writeSection(b *strings.Builder, title string, items []domain.ProcessedItem) {
	fmt.Fprintf(b, "首先，我们来关注%s。\n\n", title)
	for i, item := range items {
		fmt.Fprintf(b, "第%d条新闻：%s。\n%s\n\n", i+1, item.Title, c.simplify(itemBody(item)))
	}
	b.WriteString("\n")
}

// itemBody — текст новости для озвучки: перевод, иначе summary,
// иначе исходное содержимое.
func itemBody(item domain.ProcessedItem) string {
	if item.TranslatedContent != "" {
		return item.TranslatedContent
	}
	if item.Summary != "" {
		return item.Summary
	}
	return item.Content
}

// simplify адаптирует текст под устную подачу: тяжёлая пунктуация
// заменяется запятыми, длина ограничивается maxItemChars.
func (c *Composer) simplify(content string) string {
	simplified := strings.NewReplacer("；", "，", "：", "，").Replace(content)

	runes := []rune(simplified)
	if len(runes) > c.maxItemChars {
		simplified = string(runes[:c.maxItemChars]) + "。"
	}
	return simplified
}
