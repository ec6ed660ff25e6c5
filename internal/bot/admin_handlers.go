package bot

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"marathonbot/internal/store"
	"marathonbot/internal/telegram"
	"marathonbot/pkg/text"
)

func (b *Bot) cmdAdmin(ctx context.Context, msg *tgbotapi.Message) {
	if !b.cfg.IsAdmin(msg.From.ID) {
		return
	}
	b.states.clear(msg.From.ID)
	menu, err := b.renderAdminMenuText(ctx, msg.From.ID)
	if err != nil {
		b.logger.Error("failed to render admin menu", zap.Error(err))
		return
	}
	b.sendHTMLKeyboard(msg.Chat.ID, menu, adminMenuKeyboard())
}

func (b *Bot) handleAdminCallback(ctx context.Context, call *tgbotapi.CallbackQuery) {
	if !b.cfg.IsAdmin(call.From.ID) {
		b.alertCallback(call.ID, "Нет доступа")
		return
	}
	data := strings.TrimPrefix(call.Data, "admin:")

	switch {
	case data == "menu":
		b.states.clear(call.From.ID)
		b.editAdminMenu(ctx, call)
		b.answerCallback(call.ID, "")

	case strings.HasPrefix(data, "list:"):
		page, err := strconv.Atoi(strings.TrimPrefix(data, "list:"))
		if err != nil {
			return
		}
		b.renderPostsList(ctx, call, page)
		b.answerCallback(call.ID, "")

	case data == "greeting":
		b.adminGreetingPrompt(ctx, call)

	case data == "resp_window":
		b.adminResponseWindowPrompt(ctx, call)

	case data == "send_interval":
		b.adminSendIntervalPrompt(ctx, call)

	case data == "summary:me":
		b.adminSummaryMe(ctx, call)

	case data == "export:csv":
		b.adminExportCSV(ctx, call)

	case data == "broadcast:start":
		b.states.set(call.From.ID, convState{kind: stateAdminBroadcast})
		b.sendPlain(callbackChatID(call), "Пришлите текст рассылки (HTML-разметка Telegram допустима):")
		b.answerCallback(call.ID, "")

	case data == "broadcast:send":
		b.adminBroadcastSend(ctx, call)

	case data == "broadcast:cancel":
		b.states.clear(call.From.ID)
		b.sendPlain(callbackChatID(call), "Рассылка отменена.")
		b.answerCallback(call.ID, "")

	case data == "create":
		b.states.set(call.From.ID, convState{kind: stateAdminCreateTitle})
		b.sendHTML(callbackChatID(call), "Введите <b>название</b> нового поста (без «День X.»):")
		b.answerCallback(call.ID, "")

	case strings.HasPrefix(data, "edit_title:"):
		b.adminEditFieldPrompt(call, data, "edit_title:", stateAdminEditTitle,
			"Введите новое <b>название</b> (без «День X.»):")

	case strings.HasPrefix(data, "edit_text:"):
		b.adminEditFieldPrompt(call, data, "edit_text:", stateAdminEditText,
			"Пришлите новый <b>текст</b> (HTML-разметка Telegram допустима):")

	case strings.HasPrefix(data, "edit_media:"):
		b.adminEditFieldPrompt(call, data, "edit_media:", stateAdminEditMedia,
			"Пришлите <b>картинку</b> (photo) для поста или текст <code>remove</code>, чтобы убрать картинку:")

	case strings.HasPrefix(data, "edit:"):
		b.adminOpenPost(ctx, call, data)

	case strings.HasPrefix(data, "move:"):
		b.adminMovePost(ctx, call, data)

	case strings.HasPrefix(data, "del:"):
		b.adminDeletePost(ctx, call, data)

	case data == "reset:me":
		b.adminResetMe(ctx, call)

	case data == "reset:all":
		b.adminResetAll(ctx, call)
	}
}

// renderAdminMenuText builds the admin dashboard: tunables, post count and
// the admin's own progress for quick smoke checks.
func (b *Bot) renderAdminMenuText(ctx context.Context, telegramID int64) (string, error) {
	settings, err := b.store.GetAppSettings(ctx)
	if err != nil {
		return "", err
	}
	total, err := b.store.CountPosts(ctx)
	if err != nil {
		return "", err
	}

	var prog *store.Progress
	user, err := b.store.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return "", err
	}
	if user != nil {
		if prog, err = b.store.GetProgressByUserID(ctx, user.ID); err != nil {
			return "", err
		}
	}

	progText := "нет"
	if prog != nil {
		done := prog.NextPosition - 1
		if done < 0 {
			done = 0
		}
		pending := "pending=нет"
		if prog.PendingPostID != nil {
			pending = fmt.Sprintf("pending_post_id=%d", *prog.PendingPostID)
		}
		active := "active=нет"
		if prog.ActivePostID != nil && prog.ActiveUntil != nil {
			active = fmt.Sprintf("active_post_id=%d до %s", *prog.ActivePostID,
				prog.ActiveUntil.Format("2006-01-02 15:04"))
		}
		progText = fmt.Sprintf("пройдено дней: <b>%d</b>\n%s\n%s\nnext_send_at: <code>%s</code>",
			done, pending, active, prog.NextSendAt.Format("2006-01-02 15:04"))
	}

	return fmt.Sprintf(
		"<b>Админ-меню</b>\n\n"+
			"⏱ Окно ответа: <b>%d мин</b>\n"+
			"⏲ Интервал рассылки: <b>%d мин</b>\n\n"+
			"<b>Постов в БД</b>: <b>%d</b>\n\n"+
			"<b>Прогресс</b>\n%s",
		settings.ResponseWindowMinutes, settings.SendIntervalMinutes, total, progText), nil
}

func (b *Bot) editAdminMenu(ctx context.Context, call *tgbotapi.CallbackQuery) {
	menu, err := b.renderAdminMenuText(ctx, call.From.ID)
	if err != nil {
		b.logger.Error("failed to render admin menu", zap.Error(err))
		return
	}
	b.editHTMLKeyboard(call, menu, adminMenuKeyboard())
}

func (b *Bot) renderPostsList(ctx context.Context, call *tgbotapi.CallbackQuery, page int) {
	total, err := b.store.CountPosts(ctx)
	if err != nil {
		b.logger.Error("failed to count posts", zap.Error(err))
		return
	}
	posts, err := b.store.ListPosts(ctx, adminPageSize, page*adminPageSize)
	if err != nil {
		b.logger.Error("failed to list posts", zap.Error(err))
		return
	}
	body := fmt.Sprintf("Посты (всего: <b>%d</b>):", total)
	b.editHTMLKeyboard(call, body, adminPostsListKeyboard(posts, page, total))
}

func (b *Bot) adminGreetingPrompt(ctx context.Context, call *tgbotapi.CallbackQuery) {
	settings, err := b.store.GetAppSettings(ctx)
	if err != nil {
		b.logger.Error("failed to load settings", zap.Error(err))
		return
	}
	b.states.set(call.From.ID, convState{kind: stateAdminGreeting})
	b.sendHTML(callbackChatID(call),
		"<b>Приветствие</b>\n\nТекущее:\n"+text.EscapeHTML(settings.GreetingText)+
			"\n\nПришлите новый текст приветствия:")
	b.answerCallback(call.ID, "")
}

func (b *Bot) adminResponseWindowPrompt(ctx context.Context, call *tgbotapi.CallbackQuery) {
	settings, err := b.store.GetAppSettings(ctx)
	if err != nil {
		b.logger.Error("failed to load settings", zap.Error(err))
		return
	}
	b.states.set(call.From.ID, convState{kind: stateAdminResponseWindow})
	b.sendHTML(callbackChatID(call), fmt.Sprintf(
		"Текущее окно ответа: <b>%d мин</b>\n\nПришлите новое значение (целое число минут, минимум 1):",
		settings.ResponseWindowMinutes))
	b.answerCallback(call.ID, "")
}

func (b *Bot) adminSendIntervalPrompt(ctx context.Context, call *tgbotapi.CallbackQuery) {
	settings, err := b.store.GetAppSettings(ctx)
	if err != nil {
		b.logger.Error("failed to load settings", zap.Error(err))
		return
	}
	b.states.set(call.From.ID, convState{kind: stateAdminSendInterval})
	b.sendHTML(callbackChatID(call), fmt.Sprintf(
		"Текущий интервал рассылки: <b>%d мин</b>\n\nПришлите новое значение (целое число минут, минимум 1):",
		settings.SendIntervalMinutes))
	b.answerCallback(call.ID, "")
}

// adminSummaryMe renders the admin's own day-by-day answers in HTML, with
// oversized items attached as files so nothing is lost to truncation.
func (b *Bot) adminSummaryMe(ctx context.Context, call *tgbotapi.CallbackQuery) {
	user, err := b.store.GetUserByTelegramID(ctx, call.From.ID)
	if err != nil {
		b.logger.Error("failed to load user", zap.Error(err))
		return
	}
	if user == nil {
		b.alertCallback(call.ID, "Пользователь не найден")
		return
	}
	items, err := b.store.SummaryForUser(ctx, user.ID)
	if err != nil {
		b.logger.Error("failed to build summary", zap.Error(err))
		return
	}

	chatID := callbackChatID(call)
	if len(items) == 0 {
		b.sendPlain(chatID, "Пока нет заданий или ответов.")
		b.answerCallback(call.ID, "")
		return
	}

	b.sendHTML(chatID, "<b>Ваша сводка ответов</b>")
	for _, item := range items {
		var sb strings.Builder
		fmt.Fprintf(&sb, "<b>День %d. %s</b>\n\n", item.Post.Position, text.EscapeHTML(item.Post.Title))
		sb.WriteString("<b>Ответ(ы):</b>\n")
		if len(item.Responses) == 0 {
			sb.WriteString("- —\n")
		} else {
			for _, r := range item.Responses {
				fmt.Fprintf(&sb, "- %s\n", text.EscapeHTML(r.Text))
			}
		}
		full := sb.String()

		if len([]rune(full)) <= summaryTruncateRunes {
			b.sendHTML(chatID, full)
			continue
		}
		b.sendHTML(chatID, text.TruncateRunes(full, summaryTruncateRunes))
		plain := strings.NewReplacer("<b>", "", "</b>", "").Replace(full)
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
			Name:  fmt.Sprintf("day_%d.txt", item.Post.Position),
			Bytes: []byte(plain),
		})
		doc.Caption = fmt.Sprintf("День %d. %s", item.Post.Position, strings.TrimSpace(item.Post.Title))
		if _, err := b.sender.Send(doc); err != nil {
			b.logger.Warn("failed to send summary document", zap.Error(err))
		}
	}
	b.answerCallback(call.ID, "")
}

// adminExportCSV sends every participant's answers as a CSV attachment.
// The UTF-8 BOM keeps Cyrillic readable when the file is opened in Excel.
func (b *Bot) adminExportCSV(ctx context.Context, call *tgbotapi.CallbackQuery) {
	users, err := b.store.ListUsers(ctx)
	if err != nil {
		b.logger.Error("failed to list users", zap.Error(err))
		return
	}

	var buf bytes.Buffer
	buf.WriteString("\ufeff")
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"telegram_id", "ФИО", "Регион", "Email", "День", "Задание", "Ответы"})

	for _, u := range users {
		items, err := b.store.SummaryForUser(ctx, u.ID)
		if err != nil {
			b.logger.Error("failed to build summary", zap.Int64("user_id", u.ID), zap.Error(err))
			continue
		}
		for _, item := range items {
			answers := "—"
			if len(item.Responses) > 0 {
				var lines []string
				for _, r := range item.Responses {
					lines = append(lines, strings.TrimSpace(r.Text))
				}
				answers = strings.Join(lines, "\n")
			}
			_ = w.Write([]string{
				strconv.FormatInt(u.TelegramID, 10),
				u.FullName,
				u.Region,
				u.Email,
				strconv.Itoa(item.Post.Position),
				item.Post.Title,
				answers,
			})
		}
	}
	w.Flush()

	doc := tgbotapi.NewDocument(callbackChatID(call), tgbotapi.FileBytes{
		Name:  "marathon_summaries.csv",
		Bytes: buf.Bytes(),
	})
	doc.Caption = "Сводка ответов всех участников"
	if _, err := b.sender.Send(doc); err != nil {
		b.logger.Warn("failed to send export", zap.Error(err))
	}
	b.answerCallback(call.ID, "")
}

func (b *Bot) adminBroadcastSend(ctx context.Context, call *tgbotapi.CallbackQuery) {
	st := b.states.get(call.From.ID)
	if st.kind != stateAdminBroadcast || strings.TrimSpace(st.broadcastHTML) == "" {
		b.alertCallback(call.ID, "Нет подготовленной рассылки.")
		return
	}
	b.states.clear(call.From.ID)

	users, err := b.store.ListUsers(ctx)
	if err != nil {
		b.logger.Error("failed to list users", zap.Error(err))
		return
	}

	sent := 0
	for _, u := range users {
		msg := tgbotapi.NewMessage(u.TelegramID, st.broadcastHTML)
		msg.DisableWebPagePreview = true
		if _, err := telegram.SendMessageHTML(b.sender, msg); err != nil {
			b.logger.Warn("broadcast send failed", zap.Int64("chat_id", u.TelegramID), zap.Error(err))
			continue
		}
		sent++
	}

	b.sendPlain(callbackChatID(call), fmt.Sprintf("✅ Отправлено: %d из %d.", sent, len(users)))
	b.answerCallback(call.ID, "")
}

// adminEditFieldPrompt switches the admin into a field-edit state bound to a
// specific post and asks for the new value.
func (b *Bot) adminEditFieldPrompt(call *tgbotapi.CallbackQuery, data, prefix string, kind stateKind, prompt string) {
	postID, page, ok := parseIDPage(data, prefix)
	if !ok {
		return
	}
	b.states.set(call.From.ID, convState{kind: kind, postID: postID, page: page})
	b.sendHTML(callbackChatID(call), prompt)
	b.answerCallback(call.ID, "")
}

func (b *Bot) adminOpenPost(ctx context.Context, call *tgbotapi.CallbackQuery, data string) {
	postID, page, ok := parseIDPage(data, "edit:")
	if !ok {
		return
	}
	post, err := b.store.GetPost(ctx, postID)
	if err != nil {
		b.logger.Error("failed to load post", zap.Error(err))
		return
	}
	if post == nil {
		b.alertCallback(call.ID, "Пост не найден")
		return
	}

	media := post.MediaType
	if media == "" {
		media = "нет"
	}
	body := fmt.Sprintf("<b>День %d. %s</b>\nМедиа: <b>%s</b>\n\n%s",
		post.Position, text.EscapeHTML(post.Title), media, post.TextHTML)
	b.editHTMLKeyboard(call, body, adminEditPostKeyboard(post.ID, page))
	b.answerCallback(call.ID, "")
}

func (b *Bot) adminMovePost(ctx context.Context, call *tgbotapi.CallbackQuery, data string) {
	parts := strings.Split(data, ":")
	if len(parts) != 4 {
		return
	}
	direction := parts[1]
	postID, err1 := strconv.ParseInt(parts[2], 10, 64)
	page, err2 := strconv.Atoi(parts[3])
	if err1 != nil || err2 != nil {
		return
	}

	ok, err := b.store.MovePost(ctx, postID, direction)
	if err != nil {
		b.logger.Error("failed to move post", zap.Int64("post_id", postID), zap.Error(err))
		return
	}
	if ok {
		b.answerCallback(call.ID, "Готово")
	} else {
		b.answerCallback(call.ID, "Нельзя")
	}
	b.renderPostsList(ctx, call, page)
}

func (b *Bot) adminDeletePost(ctx context.Context, call *tgbotapi.CallbackQuery, data string) {
	postID, page, ok := parseIDPage(data, "del:")
	if !ok {
		return
	}
	deleted, err := b.store.DeletePost(ctx, postID)
	if err != nil {
		b.logger.Error("failed to delete post", zap.Int64("post_id", postID), zap.Error(err))
		return
	}
	if deleted {
		b.answerCallback(call.ID, "Удалено")
	} else {
		b.answerCallback(call.ID, "Не найдено")
	}
	b.renderPostsList(ctx, call, page)
}

func (b *Bot) adminResetMe(ctx context.Context, call *tgbotapi.CallbackQuery) {
	user, err := b.store.GetUserByTelegramID(ctx, call.From.ID)
	if err != nil {
		b.logger.Error("failed to load user", zap.Error(err))
		return
	}
	if user == nil {
		b.alertCallback(call.ID, "Пользователь не найден")
		return
	}
	if err := b.svc.ResetUser(ctx, user.ID, b.svc.Now().Add(10*time.Second)); err != nil {
		b.logger.Error("failed to reset user", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}
	b.alertCallback(call.ID, "Сброшено ✅")
	b.editAdminMenu(ctx, call)
}

func (b *Bot) adminResetAll(ctx context.Context, call *tgbotapi.CallbackQuery) {
	if err := b.svc.ResetAllUsers(ctx, b.svc.Now().Add(10*time.Second)); err != nil {
		b.logger.Error("failed to reset all users", zap.Error(err))
		return
	}
	b.alertCallback(call.ID, "Сброшено для всех ✅")
	b.editAdminMenu(ctx, call)
}

// handleAdminStateMessage routes a message while the admin is inside an
// edit flow.
func (b *Bot) handleAdminStateMessage(ctx context.Context, msg *tgbotapi.Message, st convState) {
	switch st.kind {
	case stateAdminEditTitle:
		b.adminSaveTitle(ctx, msg, st)
	case stateAdminEditText:
		b.adminSaveText(ctx, msg, st)
	case stateAdminEditMedia:
		b.adminSaveMedia(ctx, msg, st)
	case stateAdminCreateTitle:
		b.adminCreateTitle(msg)
	case stateAdminCreateText:
		b.adminCreateText(msg)
	case stateAdminCreateMedia:
		b.adminCreateMedia(ctx, msg, st)
	case stateAdminGreeting:
		b.adminSaveGreeting(ctx, msg)
	case stateAdminResponseWindow:
		b.adminSaveResponseWindow(ctx, msg)
	case stateAdminSendInterval:
		b.adminSaveSendInterval(ctx, msg)
	case stateAdminBroadcast:
		b.adminBroadcastPreview(ctx, msg)
	}
}

func (b *Bot) adminSaveTitle(ctx context.Context, msg *tgbotapi.Message, st convState) {
	title := strings.TrimSpace(msg.Text)
	if err := b.store.UpdatePostTitle(ctx, st.postID, title); err != nil {
		b.logger.Error("failed to update title", zap.Int64("post_id", st.postID), zap.Error(err))
		return
	}
	b.states.clear(msg.From.ID)
	b.sendPlain(msg.Chat.ID, "✅ Название обновлено.")
}

func (b *Bot) adminSaveText(ctx context.Context, msg *tgbotapi.Message, st convState) {
	if err := b.store.UpdatePostText(ctx, st.postID, msg.Text); err != nil {
		b.logger.Error("failed to update text", zap.Int64("post_id", st.postID), zap.Error(err))
		return
	}
	b.states.clear(msg.From.ID)
	b.sendPlain(msg.Chat.ID, "✅ Текст обновлён.")
}

func (b *Bot) adminSaveMedia(ctx context.Context, msg *tgbotapi.Message, st convState) {
	mediaType, fileID, ok := mediaFromMessage(msg)
	if !ok {
		b.sendHTML(msg.Chat.ID, "Нужна картинка (photo) или <code>remove</code>.")
		return
	}
	if err := b.store.UpdatePostMedia(ctx, st.postID, mediaType, fileID); err != nil {
		b.logger.Error("failed to update media", zap.Int64("post_id", st.postID), zap.Error(err))
		return
	}
	b.states.clear(msg.From.ID)
	b.sendPlain(msg.Chat.ID, "✅ Медиа обновлено.")
}

func (b *Bot) adminCreateTitle(msg *tgbotapi.Message) {
	title := strings.TrimSpace(msg.Text)
	if title == "" {
		b.sendPlain(msg.Chat.ID, "Название не должно быть пустым.")
		return
	}
	b.states.update(msg.From.ID, func(st *convState) {
		st.kind = stateAdminCreateText
		st.createTitle = title
	})
	b.sendHTML(msg.Chat.ID, "Пришлите <b>текст</b> нового поста:")
}

func (b *Bot) adminCreateText(msg *tgbotapi.Message) {
	b.states.update(msg.From.ID, func(st *convState) {
		st.kind = stateAdminCreateMedia
		st.createText = msg.Text
	})
	b.sendHTML(msg.Chat.ID, "Пришлите <b>картинку</b> (photo) или напишите <code>skip</code>:")
}

func (b *Bot) adminCreateMedia(ctx context.Context, msg *tgbotapi.Message, st convState) {
	var mediaType, fileID string
	switch {
	case strings.EqualFold(strings.TrimSpace(msg.Text), "skip"):
	case len(msg.Photo) > 0:
		mediaType = "photo"
		fileID = msg.Photo[len(msg.Photo)-1].FileID
	default:
		b.sendHTML(msg.Chat.ID, "Нужна картинка (photo) или <code>skip</code>.")
		return
	}

	post, err := b.store.CreatePost(ctx, st.createTitle, st.createText, mediaType, fileID)
	if err != nil {
		b.logger.Error("failed to create post", zap.Error(err))
		return
	}
	b.states.clear(msg.From.ID)
	b.sendHTML(msg.Chat.ID, fmt.Sprintf("✅ Создан пост: День %d. %s", post.Position, text.EscapeHTML(post.Title)))
}

func (b *Bot) adminSaveGreeting(ctx context.Context, msg *tgbotapi.Message) {
	if strings.TrimSpace(msg.Text) == "" {
		b.sendPlain(msg.Chat.ID, "Текст пустой. Пришлите ещё раз:")
		return
	}
	if _, err := b.store.SetGreetingText(ctx, msg.Text); err != nil {
		b.logger.Error("failed to save greeting", zap.Error(err))
		return
	}
	b.states.clear(msg.From.ID)
	b.sendHTMLKeyboard(msg.Chat.ID, "✅ Приветствие обновлено.", adminMenuKeyboard())
}

func (b *Bot) adminSaveResponseWindow(ctx context.Context, msg *tgbotapi.Message) {
	minutes, err := strconv.Atoi(strings.TrimSpace(msg.Text))
	if err != nil {
		b.sendPlain(msg.Chat.ID, "Нужно целое число минут. Пришлите ещё раз:")
		return
	}
	settings, err := b.store.SetResponseWindowMinutes(ctx, minutes)
	if err != nil {
		b.logger.Error("failed to save response window", zap.Error(err))
		return
	}
	b.states.clear(msg.From.ID)
	b.sendHTMLKeyboard(msg.Chat.ID,
		fmt.Sprintf("✅ Окно ответа установлено: <b>%d мин</b>", settings.ResponseWindowMinutes),
		adminMenuKeyboard())
}

func (b *Bot) adminSaveSendInterval(ctx context.Context, msg *tgbotapi.Message) {
	minutes, err := strconv.Atoi(strings.TrimSpace(msg.Text))
	if err != nil {
		b.sendPlain(msg.Chat.ID, "Нужно целое число минут. Пришлите ещё раз:")
		return
	}
	settings, err := b.store.SetSendIntervalMinutes(ctx, minutes)
	if err != nil {
		b.logger.Error("failed to save send interval", zap.Error(err))
		return
	}
	b.states.clear(msg.From.ID)
	b.sendHTMLKeyboard(msg.Chat.ID,
		fmt.Sprintf("✅ Интервал рассылки установлен: <b>%d мин</b>", settings.SendIntervalMinutes),
		adminMenuKeyboard())
}

// adminBroadcastPreview stores the broadcast text and shows a preview with
// confirm buttons; nothing is sent until the admin confirms.
func (b *Bot) adminBroadcastPreview(ctx context.Context, msg *tgbotapi.Message) {
	body := msg.Text
	if body == "" {
		body = msg.Caption
	}
	if strings.TrimSpace(body) == "" {
		b.sendPlain(msg.Chat.ID, "Текст пустой. Пришлите ещё раз:")
		return
	}

	b.states.update(msg.From.ID, func(st *convState) {
		st.broadcastHTML = body
	})

	total, err := b.store.CountUsers(ctx)
	if err != nil {
		b.logger.Error("failed to count users", zap.Error(err))
		return
	}
	b.sendPlain(msg.Chat.ID, fmt.Sprintf("Предпросмотр рассылки (получателей: %d):", total))
	b.sendHTMLKeyboard(msg.Chat.ID, body, adminBroadcastConfirmKeyboard())
}

// editHTMLKeyboard edits the callback's message in place, falling back to
// plain text when the markup is rejected.
func (b *Bot) editHTMLKeyboard(call *tgbotapi.CallbackQuery, body string, kb tgbotapi.InlineKeyboardMarkup) {
	if call.Message == nil {
		return
	}
	edit := tgbotapi.NewEditMessageTextAndMarkup(call.Message.Chat.ID, call.Message.MessageID, body, kb)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.DisableWebPagePreview = true
	_, err := b.sender.Send(edit)
	if telegram.IsEntityParseError(err) {
		edit.ParseMode = ""
		_, err = b.sender.Send(edit)
	}
	if err != nil {
		b.logger.Debug("failed to edit message", zap.Error(err))
	}
}

// mediaFromMessage interprets an admin media submission: a photo attaches
// its largest size, the word "remove" detaches media.
func mediaFromMessage(msg *tgbotapi.Message) (mediaType, fileID string, ok bool) {
	if strings.EqualFold(strings.TrimSpace(msg.Text), "remove") {
		return "", "", true
	}
	if len(msg.Photo) > 0 {
		return "photo", msg.Photo[len(msg.Photo)-1].FileID, true
	}
	return "", "", false
}

// parseIDPage parses "<prefix><postID>:<page>" callback data.
func parseIDPage(data, prefix string) (int64, int, bool) {
	rest := strings.TrimPrefix(data, prefix)
	idStr, pageStr, found := strings.Cut(rest, ":")
	if !found {
		return 0, 0, false
	}
	id, err1 := strconv.ParseInt(idStr, 10, 64)
	page, err2 := strconv.Atoi(pageStr)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return id, page, true
}
