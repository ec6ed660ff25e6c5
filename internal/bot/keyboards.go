package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"marathonbot/internal/store"
)

// adminPageSize is how many posts one admin list page shows.
const adminPageSize = 8

func startTaskKeyboard(postID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Начать?", fmt.Sprintf("task:start:%d", postID)),
		),
	)
}

func taskDoneKeyboard(postID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Задание завершено", fmt.Sprintf("task:done:%d", postID)),
		),
	)
}

func onboardingGoKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("ПОЕХАЛИ!", "onboarding:go"),
		),
	)
}

func summaryKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Посмотреть мои ответы", "summary:show"),
		),
	)
}

func summaryFullKeyboard(postID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Показать полностью", fmt.Sprintf("summary:full:%d", postID)),
		),
	)
}

func adminMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📋 Посты", "admin:list:0"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✉️ Приветствие", "admin:greeting"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏱ Окно ответа", "admin:resp_window"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏲ Интервал рассылки", "admin:send_interval"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📄 Моя сводка", "admin:summary:me"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Сводки всех (CSV)", "admin:export:csv"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📣 Рассылка всем", "admin:broadcast:start"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Создать пост", "admin:create"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Сбросить (я)", "admin:reset:me"),
			tgbotapi.NewInlineKeyboardButtonData("🔄 Сбросить (все)", "admin:reset:all"),
		),
	)
}

func adminBroadcastConfirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Отправить всем", "admin:broadcast:send"),
			tgbotapi.NewInlineKeyboardButtonData("❌ Отмена", "admin:broadcast:cancel"),
		),
	)
}

// adminPostsListKeyboard renders one page of posts. Every post gets a wide
// title button and a row of move/delete controls, followed by pagination.
func adminPostsListKeyboard(posts []*store.Post, page, total int) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, p := range posts {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("День %d. %s", p.Position, p.Title),
				fmt.Sprintf("admin:edit:%d:%d", p.ID, page),
			),
		))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬆️", fmt.Sprintf("admin:move:up:%d:%d", p.ID, page)),
			tgbotapi.NewInlineKeyboardButtonData("⬇️", fmt.Sprintf("admin:move:down:%d:%d", p.ID, page)),
			tgbotapi.NewInlineKeyboardButtonData("❌", fmt.Sprintf("admin:del:%d:%d", p.ID, page)),
		))
	}

	maxPage := 0
	if total > 0 {
		maxPage = (total - 1) / adminPageSize
	}
	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️", fmt.Sprintf("admin:list:%d", page-1)))
	}
	nav = append(nav, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d/%d", page+1, maxPage+1), "noop"))
	if page < maxPage {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("➡️", fmt.Sprintf("admin:list:%d", page+1)))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(nav...))

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад", "admin:menu"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func adminEditPostKeyboard(postID int64, page int) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✏️ Название", fmt.Sprintf("admin:edit_title:%d:%d", postID, page)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✏️ Текст", fmt.Sprintf("admin:edit_text:%d:%d", postID, page)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🖼 Картинка", fmt.Sprintf("admin:edit_media:%d:%d", postID, page)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ К списку", fmt.Sprintf("admin:list:%d", page)),
		),
	)
}
