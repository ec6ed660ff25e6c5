package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"marathonbot/internal/marathon"
	"marathonbot/internal/store"
	"marathonbot/internal/telegram"
	"marathonbot/pkg/text"
)

const onboardingStartText = "Здравствуйте!\n" +
	"Вас приветствует команда челленджа «30 дней для заявки». Давайте познакомимся!\n\n" +
	"Укажите Ваше полное Ф.И.О."

const rulesFallbackText = "Правила челленджа пока не настроены администратором."

// summaryTruncateRunes is the preview length of one summary item; longer
// items get a "show full" button.
const summaryTruncateRunes = 500

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || !msg.Chat.IsPrivate() {
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	// Replies to the bot's "День N" messages record answers for that day,
	// even while an admin edit prompt is waiting. Other replies are ignored.
	if reply := msg.ReplyToMessage; reply != nil {
		if reply.From == nil || !reply.From.IsBot {
			return
		}
		replied := reply.Text
		if replied == "" {
			replied = reply.Caption
		}
		if day, ok := text.ParseDayNumber(replied); ok {
			b.captureAnswer(ctx, msg, day)
		}
		return
	}

	st := b.states.get(msg.From.ID)
	switch st.kind {
	case stateOnboardingFIO:
		b.onboardingFIO(ctx, msg)
	case stateOnboardingRegion:
		b.onboardingRegion(ctx, msg)
	case stateOnboardingEmail:
		b.onboardingEmail(ctx, msg)
	case stateNone:
		b.captureAnswer(ctx, msg, 0)
	default:
		if b.cfg.IsAdmin(msg.From.ID) {
			b.handleAdminStateMessage(ctx, msg, st)
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.cmdStart(ctx, msg)
	case "cancel":
		b.cmdCancel(ctx, msg)
	case "summary":
		b.cmdSummary(ctx, msg)
	case "null":
		b.cmdNull(ctx, msg)
	case "admin", "admins":
		b.cmdAdmin(ctx, msg)
	}
}

// cmdStart always restarts onboarding, matching the expectations of users
// who press /start to "reset" the conversation.
func (b *Bot) cmdStart(ctx context.Context, msg *tgbotapi.Message) {
	if _, err := b.svc.RegisterUser(ctx, msg.From.ID); err != nil {
		b.logger.Error("failed to register user", zap.Int64("chat_id", msg.From.ID), zap.Error(err))
		return
	}
	b.states.set(msg.From.ID, convState{kind: stateOnboardingFIO})
	b.sendPlain(msg.Chat.ID, onboardingStartText)
}

func (b *Bot) cmdCancel(ctx context.Context, msg *tgbotapi.Message) {
	if b.cfg.IsAdmin(msg.From.ID) {
		b.states.clear(msg.From.ID)
		menu, err := b.renderAdminMenuText(ctx, msg.From.ID)
		if err != nil {
			b.logger.Error("failed to render admin menu", zap.Error(err))
			return
		}
		b.sendHTMLKeyboard(msg.Chat.ID, "Отменено.\n\n"+menu, adminMenuKeyboard())
		return
	}

	st := b.states.get(msg.From.ID)
	switch st.kind {
	case stateOnboardingFIO, stateOnboardingRegion, stateOnboardingEmail:
		b.states.clear(msg.From.ID)
		b.sendPlain(msg.Chat.ID, "✅ Ок, отменено.")
	}
}

func (b *Bot) cmdSummary(ctx context.Context, msg *tgbotapi.Message) {
	items, err := b.svc.Summary(ctx, msg.From.ID)
	if errors.Is(err, marathon.ErrUserNotFound) {
		b.sendPlain(msg.Chat.ID, "Пользователь не найден.")
		return
	}
	if err != nil {
		b.logger.Error("failed to build summary", zap.Int64("chat_id", msg.From.ID), zap.Error(err))
		return
	}
	if len(items) == 0 {
		b.sendPlain(msg.Chat.ID, "Пока нет заданий или ответов.")
		return
	}

	b.sendHTML(msg.Chat.ID, "<b>Ваши ответы по дням</b>")
	for _, item := range items {
		b.sendSummaryItem(msg.Chat.ID, item)
	}
}

// cmdNull forgets the user entirely: profile, progress, runs and answers.
func (b *Bot) cmdNull(ctx context.Context, msg *tgbotapi.Message) {
	ok, err := b.svc.ForgetUser(ctx, msg.From.ID)
	if err != nil {
		b.logger.Error("failed to forget user", zap.Int64("chat_id", msg.From.ID), zap.Error(err))
		return
	}
	b.states.clear(msg.From.ID)
	if ok {
		b.sendPlain(msg.Chat.ID, "✅ Сброшено.")
	} else {
		b.sendPlain(msg.Chat.ID, "Пользователь не найден.")
	}
}

func (b *Bot) onboardingFIO(ctx context.Context, msg *tgbotapi.Message) {
	fio := extractText(msg)
	if len([]rune(fio)) < 5 {
		b.sendPlain(msg.Chat.ID, "Пожалуйста, укажите полное Ф.И.О. (хотя бы 5 символов).")
		return
	}
	user, err := b.svc.RegisterUser(ctx, msg.From.ID)
	if err != nil {
		b.logger.Error("failed to register user", zap.Error(err))
		return
	}
	if err := b.store.SetUserFullName(ctx, user.ID, fio); err != nil {
		b.logger.Error("failed to save full name", zap.Error(err))
		return
	}
	b.states.set(msg.From.ID, convState{kind: stateOnboardingRegion})
	b.sendPlain(msg.Chat.ID, "Укажите Ваш регион")
}

func (b *Bot) onboardingRegion(ctx context.Context, msg *tgbotapi.Message) {
	region := extractText(msg)
	if len([]rune(region)) < 2 {
		b.sendPlain(msg.Chat.ID, "Пожалуйста, укажите регион (хотя бы 2 символа).")
		return
	}
	user, err := b.svc.RegisterUser(ctx, msg.From.ID)
	if err != nil {
		b.logger.Error("failed to register user", zap.Error(err))
		return
	}
	if err := b.store.SetUserRegion(ctx, user.ID, region); err != nil {
		b.logger.Error("failed to save region", zap.Error(err))
		return
	}
	b.states.set(msg.From.ID, convState{kind: stateOnboardingEmail})
	b.sendPlain(msg.Chat.ID, "Укажите Вашу электронную почту")
}

func (b *Bot) onboardingEmail(ctx context.Context, msg *tgbotapi.Message) {
	email := extractText(msg)
	if !looksLikeEmail(email) {
		b.sendPlain(msg.Chat.ID, "Пожалуйста, укажите корректный email (например: name@example.com).")
		return
	}
	user, err := b.svc.RegisterUser(ctx, msg.From.ID)
	if err != nil {
		b.logger.Error("failed to register user", zap.Error(err))
		return
	}
	if err := b.store.SetUserEmail(ctx, user.ID, email); err != nil {
		b.logger.Error("failed to save email", zap.Error(err))
		return
	}

	settings, err := b.store.GetAppSettings(ctx)
	if err != nil {
		b.logger.Error("failed to load settings", zap.Error(err))
		return
	}
	rules := strings.TrimSpace(settings.GreetingText)
	if rules == "" {
		rules = rulesFallbackText
	}
	b.sendHTMLKeyboard(msg.Chat.ID, rules, onboardingGoKeyboard())
	b.states.clear(msg.From.ID)
}

// captureAnswer records a marathon answer. replyDay routes the answer to a
// specific day when the message replied to a task message; zero targets the
// latest open window.
func (b *Bot) captureAnswer(ctx context.Context, msg *tgbotapi.Message, replyDay int) {
	txt := extractText(msg)
	if txt == "" {
		return
	}

	res, err := b.svc.RecordAnswer(ctx, msg.From.ID, replyDay, txt)
	if err != nil {
		b.logger.Error("failed to record answer", zap.Int64("chat_id", msg.From.ID), zap.Error(err))
		return
	}
	if res == nil {
		return
	}

	interval := text.FormatMinutes(res.IntervalMinutes)
	if res.Closed {
		b.sendPlain(msg.Chat.ID,
			"Спасибо! Ваш ответ записан.\n"+
				"Задание закрыто.\n"+
				"Следующее задание станет доступным через "+interval+".")
		return
	}
	b.sendPlainKeyboard(msg.Chat.ID,
		fmt.Sprintf("Спасибо! Ваш ответ записан.\n"+
			"Можно отправить ещё %d сообщ.\n"+
			"Следующее задание станет доступным через %s после завершения задания. "+
			"Если задание завершено — нажмите кнопку ниже.", res.Remaining, interval),
		taskDoneKeyboard(res.PostID))
}

func (b *Bot) handleCallback(ctx context.Context, call *tgbotapi.CallbackQuery) {
	if call.From == nil {
		return
	}
	data := call.Data

	switch {
	case data == "noop":
		b.answerCallback(call.ID, "")
	case data == "onboarding:go":
		b.onboardingGoCallback(ctx, call)
	case strings.HasPrefix(data, "task:start:"):
		b.taskStartCallback(ctx, call)
	case strings.HasPrefix(data, "task:done:"):
		b.taskDoneCallback(ctx, call)
	case data == "summary:show":
		b.summaryShowCallback(ctx, call)
	case strings.HasPrefix(data, "summary:full:"):
		b.summaryFullCallback(ctx, call)
	case strings.HasPrefix(data, "admin:"):
		b.handleAdminCallback(ctx, call)
	}
}

// onboardingGoCallback completes onboarding and hands out the first task
// immediately.
func (b *Bot) onboardingGoCallback(ctx context.Context, call *tgbotapi.CallbackQuery) {
	b.answerCallback(call.ID, "Поехали!")
	b.removeCallbackKeyboard(call)

	if err := b.svc.MarkOnboarded(ctx, call.From.ID); err != nil {
		b.logger.Error("failed to mark onboarded", zap.Int64("chat_id", call.From.ID), zap.Error(err))
		return
	}

	status, err := b.svc.SendDueTaskNow(ctx, call.From.ID)
	if err != nil {
		b.logger.Error("failed to send first task", zap.Int64("chat_id", call.From.ID), zap.Error(err))
		status = ""
	}
	switch status {
	case marathon.DeliverySent, marathon.DeliveryAlreadyPending:
	case marathon.DeliveryAlreadyActive:
		b.sendPlain(call.From.ID, "У вас уже есть активное задание. Просто отправляйте ответы в чат.")
	case marathon.DeliveryTooEarly:
		b.sendPlain(call.From.ID, "Следующее задание будет доступно позже по таймеру.")
	case marathon.DeliveryMissingPost:
		b.sendPlain(call.From.ID, "Не нашёл задание в базе. Сообщите администратору.")
	case marathon.DeliveryDone:
		b.sendPlain(call.From.ID, "Похоже, задания закончились. Нажмите «Посмотреть мои ответы» в финале.")
	default:
		b.sendPlain(call.From.ID, "Не удалось выдать задание. Попробуйте ещё раз через минуту.")
	}
}

func (b *Bot) taskStartCallback(ctx context.Context, call *tgbotapi.CallbackQuery) {
	postID, ok := parseCallbackID(call.Data, "task:start:")
	if !ok {
		return
	}

	started, err := b.svc.StartTask(ctx, call.From.ID, postID)
	if errors.Is(err, marathon.ErrPostNotFound) {
		b.alertCallback(call.ID, "Задание не найдено.")
		return
	}
	if err != nil {
		b.logger.Error("failed to start task", zap.Int64("post_id", postID), zap.Error(err))
		b.alertCallback(call.ID, "Не получилось открыть задание. Попробуйте ещё раз.")
		return
	}

	body := fmt.Sprintf(
		"<b>День %d. %s</b>\n\n%s\n\n"+
			"<b>Важно:</b> у вас есть <b>%s</b> на выполнение задания с момента нажатия кнопки.\n"+
			"Можно отправить до <b>%d</b> сообщений.",
		started.Post.Position,
		text.EscapeHTML(started.Post.Title),
		started.Post.TextHTML,
		text.FormatMinutes(started.WindowMinutes),
		started.MaxResponses,
	)

	b.removeCallbackKeyboard(call)

	chatID := callbackChatID(call)
	if started.Post.HasPhoto() {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(started.Post.FileID))
		photo.Caption = body
		if _, err := telegram.SendPhotoHTML(b.sender, photo); err != nil {
			b.logger.Warn("failed to send task photo", zap.Int64("post_id", postID), zap.Error(err))
		}
	} else {
		b.sendHTML(chatID, body)
	}
	b.answerCallback(call.ID, "Ок ✅")
}

func (b *Bot) taskDoneCallback(ctx context.Context, call *tgbotapi.CallbackQuery) {
	postID, ok := parseCallbackID(call.Data, "task:done:")
	if !ok {
		return
	}

	interval, err := b.svc.CompleteTask(ctx, call.From.ID, postID)
	switch {
	case errors.Is(err, marathon.ErrNoOpenRun):
		b.alertCallback(call.ID, "Задание уже закрыто или окно ответа истекло.")
		return
	case errors.Is(err, marathon.ErrUserNotFound):
		b.alertCallback(call.ID, "Пользователь не найден")
		return
	case err != nil:
		b.logger.Error("failed to complete task", zap.Int64("post_id", postID), zap.Error(err))
		return
	}

	b.sendPlain(callbackChatID(call),
		"✅ Готово! Задание закрыто.\n"+
			"Следующее задание станет доступным через "+text.FormatMinutes(interval)+".")
	b.answerCallback(call.ID, "")
}

func (b *Bot) summaryShowCallback(ctx context.Context, call *tgbotapi.CallbackQuery) {
	items, err := b.svc.Summary(ctx, call.From.ID)
	if errors.Is(err, marathon.ErrUserNotFound) {
		b.alertCallback(call.ID, "Пользователь не найден")
		return
	}
	if err != nil {
		b.logger.Error("failed to build summary", zap.Int64("chat_id", call.From.ID), zap.Error(err))
		return
	}

	chatID := callbackChatID(call)
	if len(items) == 0 {
		b.sendPlain(chatID, "Пока нет заданий или ответов.")
		b.answerCallback(call.ID, "")
		return
	}

	b.sendPlain(chatID, "Ваши ответы по дням")
	for _, item := range items {
		b.sendSummaryItem(chatID, item)
	}
	b.answerCallback(call.ID, "")
}

func (b *Bot) summaryFullCallback(ctx context.Context, call *tgbotapi.CallbackQuery) {
	postID, ok := parseCallbackID(call.Data, "summary:full:")
	if !ok {
		return
	}

	items, err := b.svc.Summary(ctx, call.From.ID)
	if errors.Is(err, marathon.ErrUserNotFound) {
		b.alertCallback(call.ID, "Пользователь не найден")
		return
	}
	if err != nil {
		b.logger.Error("failed to build summary", zap.Int64("chat_id", call.From.ID), zap.Error(err))
		return
	}

	var found *store.SummaryItem
	for i := range items {
		if items[i].Post.ID == postID {
			found = &items[i]
			break
		}
	}
	if found == nil {
		b.alertCallback(call.ID, "Не найдено")
		return
	}

	chatID := callbackChatID(call)
	full := summaryTextForPost(*found)
	if len(full) > text.DefaultMaxBytes {
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
			Name:  fmt.Sprintf("day_%d.txt", found.Post.Position),
			Bytes: []byte(full),
		})
		doc.Caption = fmt.Sprintf("День %d. %s", found.Post.Position, strings.TrimSpace(found.Post.Title))
		if _, err := b.sender.Send(doc); err != nil {
			b.logger.Warn("failed to send summary document", zap.Error(err))
		}
	} else {
		b.sendPlain(chatID, full)
	}
	b.answerCallback(call.ID, "")
}

// sendSummaryItem sends one question-answer block, truncated with a "show
// full" button when long. Summaries are plain text so arbitrary user content
// can't break entity parsing.
func (b *Bot) sendSummaryItem(chatID int64, item store.SummaryItem) {
	full := summaryTextForPost(item)
	if len([]rune(full)) <= summaryTruncateRunes {
		b.sendPlain(chatID, full)
		return
	}
	b.sendPlainKeyboard(chatID, text.TruncateRunes(full, summaryTruncateRunes), summaryFullKeyboard(item.Post.ID))
}

func summaryTextForPost(item store.SummaryItem) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "День %d. %s\n\n", item.Post.Position, strings.TrimSpace(item.Post.Title))
	sb.WriteString("Ответ(ы):\n")
	if len(item.Responses) == 0 {
		sb.WriteString("- —\n")
	} else {
		for _, r := range item.Responses {
			fmt.Fprintf(&sb, "- %s\n", strings.TrimSpace(r.Text))
		}
	}
	return sb.String()
}

// removeCallbackKeyboard strips the inline keyboard from the message the
// callback came from. Old messages may refuse the edit; that's fine.
func (b *Bot) removeCallbackKeyboard(call *tgbotapi.CallbackQuery) {
	if call.Message == nil {
		return
	}
	if err := telegram.RemoveInlineKeyboard(b.sender, call.Message.Chat.ID, call.Message.MessageID); err != nil {
		b.logger.Debug("failed to remove inline keyboard", zap.Error(err))
	}
}

func callbackChatID(call *tgbotapi.CallbackQuery) int64 {
	if call.Message != nil {
		return call.Message.Chat.ID
	}
	return call.From.ID
}

func extractText(msg *tgbotapi.Message) string {
	if msg.Text != "" {
		return strings.TrimSpace(msg.Text)
	}
	return strings.TrimSpace(msg.Caption)
}

// parseCallbackID extracts the trailing numeric id from callback data.
func parseCallbackID(data, prefix string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(data, prefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// looksLikeEmail is a deliberately loose check: one @, a non-empty local
// part and a dotted domain.
func looksLikeEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, " ") {
		return false
	}
	if strings.Count(s, "@") != 1 {
		return false
	}
	local, domain, _ := strings.Cut(s, "@")
	return local != "" && strings.Contains(domain, ".")
}
