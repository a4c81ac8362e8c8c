package presentation

import (
	"fmt"
	"strconv"
	"strings"

	"smart-support-bot/pkg/dataset"
	"smart-support-bot/pkg/store"
	"smart-support-bot/pkg/utils"
)

const ParseModeMarkdown = "Markdown"

// Callback data understood by the conversation engine
const (
	CallbackShowExamples = "show_examples"
	CallbackShowStats    = "show_stats"
	CallbackNewSearch    = "new_search"
	CallbackCancelSearch = "cancel_search"
	CallbackSelectPrefix = "select_result_"
)

const (
	searchingQueryLimit = 100
	resultsQueryLimit   = 80
	descriptionLimit    = 100
	buttonTitleLimit    = 30
)

const lastLoadedLayout = "2006-01-02 15:04:05"

// Button is one inline action attached to a message.
type Button struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// Payload is a transport-neutral outbound message.
type Payload struct {
	Text      string     `json:"text"`
	ParseMode string     `json:"parse_mode,omitempty"`
	Keyboard  [][]Button `json:"keyboard,omitempty"`
}

// SelectCallback encodes the callback data of a candidate selector.
func SelectCallback(id int) string {
	return CallbackSelectPrefix + strconv.Itoa(id)
}

// Builder renders every message the bot sends. It holds no state besides
// static settings and performs no I/O, so identical inputs always produce
// identical payloads.
type Builder struct {
	BotName string
}

func NewBuilder(botName string) *Builder {
	return &Builder{BotName: botName}
}

func (b *Builder) Welcome(userName string, info dataset.Info) Payload {
	status := "⚠️"
	if info.Loaded() {
		status = "✅"
	}
	if userName == "" {
		userName = "друг"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "👋 Привет, %s!\n\n", userName)
	if b.BotName != "" {
		fmt.Fprintf(&sb, "Я — %s, ваш умный помощник по мерам государственной поддержки бизнеса.\n", b.BotName)
	} else {
		sb.WriteString("Я — ваш умный помощник по мерам государственной поддержки бизнеса.\n")
	}
	fmt.Fprintf(&sb, "%s База мер поддержки: %d записей\n\n", status, info.Rows)
	sb.WriteString("🔍 **Как я могу помочь?**\n")
	sb.WriteString("Просто опишите свою ситуацию, и я найду подходящие меры поддержки.\n\n")
	sb.WriteString("📝 **Примеры запросов:**\n")
	sb.WriteString("• \"Хочу открыть кафе, какие есть программы?\"\n")
	sb.WriteString("• \"Ищу поддержку для сельского хозяйства\"\n")
	sb.WriteString("• \"Какие есть гранты для ИП?\"\n\n")
	sb.WriteString("⬇️ *Опишите ваш запрос ниже...*")

	return Payload{
		Text:      sb.String(),
		ParseMode: ParseModeMarkdown,
		Keyboard: [][]Button{
			{{Label: "❓ Примеры запросов", Data: CallbackShowExamples}},
			{{Label: "📊 Статистика базы", Data: CallbackShowStats}},
		},
	}
}

func (b *Builder) Searching(query string) Payload {
	return Payload{
		Text: fmt.Sprintf("🔍 Ищу подходящие меры поддержки по запросу:\n\"%s\"\n\n⏳ *Обрабатываю запрос...*",
			utils.Truncate(query, searchingQueryLimit)),
		ParseMode: ParseModeMarkdown,
	}
}

// Results renders the numbered candidate list with one selector per
// candidate followed by the new search / cancel row.
func (b *Builder) Results(query string, candidates []store.Candidate) Payload {
	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ Нашёл %d подходящих мер по запросу:\n\"%s\"\n\n", len(candidates), utils.Truncate(query, resultsQueryLimit))

	keyboard := make([][]Button, 0, len(candidates)+1)
	for i, c := range candidates {
		n := i + 1
		fmt.Fprintf(&sb, "%d. **%s**\n", n, c.Title)
		if c.Description != "" {
			fmt.Fprintf(&sb, "   %s\n", utils.Truncate(c.Description, descriptionLimit))
		}
		fmt.Fprintf(&sb, "   📊 Совпадение: %s\n\n", FormatScore(c.Score))

		keyboard = append(keyboard, []Button{{
			Label: fmt.Sprintf("%d. %s", n, utils.Truncate(c.Title, buttonTitleLimit)),
			Data:  SelectCallback(c.ID),
		}})
	}
	sb.WriteString("👇 *Выберите наиболее подходящий вариант:*")

	keyboard = append(keyboard, []Button{
		{Label: "🔄 Новый поиск", Data: CallbackNewSearch},
		{Label: "❌ Отмена", Data: CallbackCancelSearch},
	})

	return Payload{Text: sb.String(), ParseMode: ParseModeMarkdown, Keyboard: keyboard}
}

func (b *Builder) NoResults() Payload {
	return Payload{
		Text: "😕 По вашему запросу не найдено подходящих мер поддержки.\n\n" +
			"Попробуйте изменить формулировку или уточнить запрос.\n" +
			"Например: \"поддержка для сельского хозяйства\" или \"гранты для ИП\"",
	}
}

func (b *Builder) Reprompt() Payload {
	return Payload{
		Text: "Пожалуйста, опишите ваш запрос. Например: \"Какие есть программы поддержки малого бизнеса?\"",
	}
}

func (b *Builder) Examples() Payload {
	return Payload{
		Text: "📝 **Примеры запросов для поиска:**\n\n" +
			"• \"Ищу гранты для открытия малого бизнеса\"\n" +
			"• \"Какая есть поддержка для сельского хозяйства?\"\n" +
			"• \"Программы для ИП в сфере услуг\"\n" +
			"• \"Хочу получить субсидию на оборудование\"\n" +
			"• \"Поддержка экспорта для производителей\"\n" +
			"• \"Льготные кредиты для стартапов\"\n" +
			"• \"Меры поддержки в IT-сфере\"\n\n" +
			"💡 *Чем конкретнее запрос, тем точнее результаты!*",
		ParseMode: ParseModeMarkdown,
	}
}

func (b *Builder) Stats(info dataset.Info) Payload {
	if !info.Loaded() {
		return Payload{Text: "⚠️ База данных не загружена или пуста.", ParseMode: ParseModeMarkdown}
	}

	lastLoaded := "неизвестно"
	if info.LastLoaded != nil {
		lastLoaded = info.LastLoaded.Format(lastLoadedLayout)
	}

	var sb strings.Builder
	sb.WriteString("📊 **Статистика базы мер поддержки:**\n\n")
	fmt.Fprintf(&sb, "• Всего записей: %d\n", info.Rows)
	fmt.Fprintf(&sb, "• Категорий: %d\n", info.Categories)
	fmt.Fprintf(&sb, "• Последнее обновление: %s\n", lastLoaded)
	if info.Synthetic {
		sb.WriteString("• Источник: тестовые данные\n")
	}
	fmt.Fprintf(&sb, "\n📂 *Колонки в базе:*\n%s", strings.Join(info.Details.ColumnNames, ", "))

	return Payload{Text: sb.String(), ParseMode: ParseModeMarkdown}
}

func (b *Builder) Selected(c store.Candidate) Payload {
	return Payload{
		Text: fmt.Sprintf("✅ Вы выбрали: **%s**\n\n", c.Title) +
			"📋 *Подготовка детальной информации...*\n\n" +
			"💡 Вы можете задавать вопросы по этой мере поддержки.\n" +
			"Например: \"Какие документы нужны?\" или \"Какой размер поддержки?\"\n\n" +
			"⬇️ *Задайте ваш вопрос ниже...*",
		ParseMode: ParseModeMarkdown,
	}
}

func (b *Builder) StaleSelection() Payload {
	return Payload{
		Text: "⚠️ Этот вариант больше недоступен.\n\n" +
			"Выберите один из результатов последнего поиска или начните новый поиск.",
	}
}

func (b *Builder) NewSearch() Payload {
	return Payload{
		Text:      "🔄 Начинаем новый поиск.\n\n⬇️ *Опишите ваш запрос ниже...*",
		ParseMode: ParseModeMarkdown,
	}
}

func (b *Builder) SearchCancelled() Payload {
	return Payload{
		Text:      "❌ Поиск отменен.\n\nИспользуйте /start для начала нового диалога.",
		ParseMode: ParseModeMarkdown,
	}
}

func (b *Builder) DialogCancelled() Payload {
	return Payload{
		Text: "❌ Диалог прерван.\n\nИспользуйте /start для начала нового поиска.",
	}
}

// Unsupported answers an event the current phase has no transition for.
func (b *Builder) Unsupported(phase store.Phase) Payload {
	var hint string
	switch phase {
	case store.PhaseAwaitingQuery:
		hint = "Опишите ваш запрос текстом, и я подберу меры поддержки."
	case store.PhaseShowingResults:
		hint = "Выберите один из найденных вариантов или начните новый поиск."
	default:
		hint = "Используйте /start для начала нового диалога."
	}
	return Payload{Text: "🤔 Это действие сейчас недоступно.\n\n" + hint}
}

// FormatScore renders a match score as a whole percentage.
func FormatScore(score float64) string {
	return fmt.Sprintf("%.0f%%", score*100)
}
