package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/PoluyanbIch/QuizBot/internal/config"
	"github.com/PoluyanbIch/QuizBot/internal/locale"
	"github.com/PoluyanbIch/QuizBot/internal/metrics"
	"github.com/PoluyanbIch/QuizBot/internal/service"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

const (
	answerPrefix        = "answer:"
	callbackRestart     = "start_quiz"
	callbackLeaderboard = "leaderboard"
	leaderboardSize     = 10
	historySize         = 5
)

// API is the part of tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// UserStore records Telegram users as they show up.
type UserStore interface {
	Upsert(ctx context.Context, id int64, username string) error
}

// SessionHistory lists a user's past and current sessions, newest first.
type SessionHistory interface {
	History(ctx context.Context, userID int64, limit int) ([]service.QuizSession, error)
}

type Deps struct {
	Quiz        *service.QuizService
	Users       UserStore
	Leaderboard service.Leaderboard
	History     SessionHistory
	Messages    *locale.Messages
	PollTimeout int
}

type Bot struct {
	api         API
	quiz        *service.QuizService
	users       UserStore
	leaderboard service.Leaderboard
	history     SessionHistory
	loc         *locale.Messages
	pollTimeout int

	mu    sync.Mutex
	locks map[int64]*userLock
}

// userLock is dropped from Bot.locks once no update holds or waits for it.
type userLock struct {
	mu   sync.Mutex
	refs int
}

func NewBot(api API, deps Deps) *Bot {
	loc := deps.Messages
	if loc == nil {
		loc = locale.New(nil)
	}
	timeout := deps.PollTimeout
	if timeout <= 0 {
		timeout = 60
	}
	return &Bot{
		api:         api,
		quiz:        deps.Quiz,
		users:       deps.Users,
		leaderboard: deps.Leaderboard,
		history:     deps.History,
		loc:         loc,
		pollTimeout: timeout,
		locks:       make(map[int64]*userLock),
	}
}

// Start polls for updates until ctx is cancelled, then waits for the
// handlers still running.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(u)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			config.Logger.Info("Stopped receiving updates")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			wg.Add(1)
			go func(update tgbotapi.Update) {
				defer wg.Done()
				b.HandleUpdate(ctx, update)
			}(update)
		}
	}
}

// HandleUpdate processes one update. Updates from the same user are
// handled one at a time.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	from := update.SentFrom()
	chat := update.FromChat()
	if from == nil || chat == nil {
		return
	}
	unlock := b.lockUser(from.ID)
	defer unlock()

	ctx = config.ContextWithUser(ctx, from.ID, chat.ID)
	defer func() {
		if r := recover(); r != nil {
			config.WithContext(ctx).WithField("panic", r).Error("Update handler panicked")
		}
	}()

	switch {
	case update.Message != nil && update.Message.IsCommand():
		metrics.UpdateHandled("command")
		b.handleCommand(ctx, update.Message)
	case update.CallbackQuery != nil:
		metrics.UpdateHandled("callback")
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		metrics.UpdateHandled("message")
		b.sendText(ctx, chat.ID, b.loc.Get("use_buttons", from.LanguageCode))
	}
}

func (b *Bot) lockUser(userID int64) (unlock func()) {
	b.mu.Lock()
	l, ok := b.locks[userID]
	if !ok {
		l = &userLock{}
		b.locks[userID] = l
	}
	l.refs++
	b.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		b.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(b.locks, userID)
		}
		b.mu.Unlock()
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	user := msg.From
	chatID := msg.Chat.ID
	lang := user.LanguageCode

	switch msg.Command() {
	case "start":
		b.startQuiz(ctx, chatID, user)
	case "stop":
		b.stopQuiz(ctx, chatID, user)
	case "c":
		b.jumpTo(ctx, chatID, user, msg.CommandArguments())
	case "leaderboard":
		b.showLeaderboard(ctx, chatID, user)
	case "history":
		b.showHistory(ctx, chatID, user)
	case "help":
		b.sendText(ctx, chatID, b.loc.Get("help_message", lang))
	default:
		b.sendText(ctx, chatID, b.loc.Get("unknown_command", lang))
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		config.WithContext(ctx).WithError(err).Warn("Failed to answer callback")
	}
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	lang := cb.From.LanguageCode

	switch data := cb.Data; {
	case strings.HasPrefix(data, answerPrefix):
		b.answer(ctx, chatID, cb.From, strings.TrimPrefix(data, answerPrefix))
	case data == callbackRestart:
		b.startQuiz(ctx, chatID, cb.From)
	case data == callbackLeaderboard:
		b.showLeaderboard(ctx, chatID, cb.From)
	default:
		config.WithContext(ctx).WithField("data", data).Warn("Unexpected callback data")
		b.sendText(ctx, chatID, b.loc.Get(service.KeyUnexpectedAction, lang))
	}
}

func (b *Bot) startQuiz(ctx context.Context, chatID int64, user *tgbotapi.User) {
	lang := user.LanguageCode
	b.rememberUser(ctx, user)

	_, created, err := b.quiz.Start(ctx, user.ID)
	if err != nil {
		b.replyError(ctx, chatID, lang, err)
		return
	}
	if created {
		b.sendText(ctx, chatID, b.loc.Get("greeting_message", lang))
	} else {
		b.sendText(ctx, chatID, b.loc.Get("quiz_already_active", lang))
	}

	_, view, err := b.quiz.Current(ctx, user.ID)
	if err != nil {
		b.replyError(ctx, chatID, lang, err)
		return
	}
	b.sendQuestion(ctx, chatID, view)
}

func (b *Bot) stopQuiz(ctx context.Context, chatID int64, user *tgbotapi.User) {
	lang := user.LanguageCode
	if _, err := b.quiz.Stop(ctx, user.ID); err != nil {
		b.replyError(ctx, chatID, lang, err)
		return
	}
	b.sendText(ctx, chatID, b.loc.Get("farewell_message", lang))
}

func (b *Bot) jumpTo(ctx context.Context, chatID int64, user *tgbotapi.User, args string) {
	lang := user.LanguageCode

	number, err := ParseQuestionNumber(args)
	switch {
	case errors.Is(err, errUsage):
		b.sendText(ctx, chatID, b.loc.Get("c_command_usage", lang))
		return
	case err != nil:
		b.sendText(ctx, chatID, b.loc.Get("invalid_number_format", lang))
		return
	}

	b.rememberUser(ctx, user)
	_, view, created, err := b.quiz.JumpTo(ctx, user.ID, number-1)
	if err != nil {
		b.replyError(ctx, chatID, lang, err)
		return
	}
	key := "jump_to_q"
	if created {
		key = "new_quiz_at_q"
	}
	b.sendText(ctx, chatID, b.loc.Format(key, lang, map[string]any{"q_num": view.Number()}))
	b.sendQuestion(ctx, chatID, view)
}

func (b *Bot) answer(ctx context.Context, chatID int64, user *tgbotapi.User, label string) {
	lang := user.LanguageCode

	result, err := b.quiz.SubmitAnswer(ctx, user.ID, label)
	if err != nil {
		if errors.Is(err, service.ErrNoActiveSession) {
			b.sendText(ctx, chatID, b.loc.Get("no_active_quiz_callback", lang))
			return
		}
		b.replyError(ctx, chatID, lang, err)
		return
	}

	if result.Correct {
		b.sendText(ctx, chatID, b.loc.Get("answer_correct", lang))
	} else {
		b.sendText(ctx, chatID, b.loc.Format("answer_incorrect", lang, map[string]any{
			"correct_answer": result.CorrectText,
		}))
	}

	if result.Next != nil {
		b.sendQuestion(ctx, chatID, *result.Next)
		return
	}
	if result.Report != nil {
		b.finishQuiz(ctx, chatID, user, *result.Report)
	}
}

func (b *Bot) finishQuiz(ctx context.Context, chatID int64, user *tgbotapi.User, r service.Report) {
	lang := user.LanguageCode
	text := b.loc.Format("quiz_finished_report", lang, map[string]any{
		"correct":    r.CorrectCount,
		"incorrect":  r.IncorrectCount,
		"total":      r.TotalQuestions,
		"percentage": r.FormattedPercentage(),
	})

	if b.leaderboard != nil {
		entry := service.EntryFromReport(r, user.UserName, user.FirstName)
		improved, err := b.leaderboard.Record(ctx, entry)
		if err != nil {
			config.WithContext(ctx).WithError(err).Error("Failed to record leaderboard entry")
		} else if improved {
			if pos, _, err := b.leaderboard.Position(ctx, user.ID); err == nil && pos > 0 {
				text += "\n\n" + b.loc.Format("new_record", lang, map[string]any{"position": pos})
			}
		}
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.loc.Get("button_restart", lang), callbackRestart),
			tgbotapi.NewInlineKeyboardButtonData(b.loc.Get("button_leaderboard", lang), callbackLeaderboard),
		),
	)
	b.send(ctx, msg)
	config.WithContext(ctx).WithFields(logrus.Fields{
		"correct": r.CorrectCount,
		"total":   r.TotalQuestions,
	}).Info("Final report sent")
}

func (b *Bot) showLeaderboard(ctx context.Context, chatID int64, user *tgbotapi.User) {
	lang := user.LanguageCode
	if b.leaderboard == nil {
		b.sendText(ctx, chatID, b.loc.Get("leaderboard_empty", lang))
		return
	}
	top, err := b.leaderboard.Top(ctx, leaderboardSize)
	if err != nil {
		config.WithContext(ctx).WithError(err).Error("Failed to load leaderboard")
		b.sendText(ctx, chatID, b.loc.Get("database_error", lang))
		return
	}
	if len(top) == 0 {
		b.sendText(ctx, chatID, b.loc.Get("leaderboard_empty", lang))
		return
	}

	msg := tgbotapi.NewMessage(chatID, LeaderboardText(b.loc.Get("leaderboard_title", lang), top))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.loc.Get("button_start", lang), callbackRestart),
		),
	)
	b.send(ctx, msg)
}

func (b *Bot) showHistory(ctx context.Context, chatID int64, user *tgbotapi.User) {
	lang := user.LanguageCode
	if b.history == nil {
		b.sendText(ctx, chatID, b.loc.Get("history_empty", lang))
		return
	}
	sessions, err := b.history.History(ctx, user.ID, historySize)
	if err != nil {
		config.WithContext(ctx).WithError(err).Error("Failed to load history")
		b.sendText(ctx, chatID, b.loc.Get("database_error", lang))
		return
	}
	if len(sessions) == 0 {
		b.sendText(ctx, chatID, b.loc.Get("history_empty", lang))
		return
	}
	status := func(s service.SessionStatus) string {
		return b.loc.Get("status_"+string(s), lang)
	}
	b.sendText(ctx, chatID, HistoryText(b.loc.Get("history_title", lang), sessions, status))
}

func (b *Bot) sendQuestion(ctx context.Context, chatID int64, view service.QuestionView) {
	msg := tgbotapi.NewMessage(chatID, QuestionText(view))
	msg.ReplyMarkup = AnswerKeyboard(view)
	b.send(ctx, msg)
}

// replyError turns an operation error into the matching user message.
func (b *Bot) replyError(ctx context.Context, chatID int64, lang string, err error) {
	key := service.MessageKey(err)
	log := config.WithContext(ctx).WithError(err)
	if key == service.KeyInternalError {
		log.Error("Quiz operation failed")
		if errors.Is(err, service.ErrPersistence) {
			key = "database_error"
		}
	} else {
		log.Debug("Quiz operation rejected")
	}

	var idxErr *service.InvalidIndexError
	if errors.As(err, &idxErr) {
		b.sendText(ctx, chatID, b.loc.Format(key, lang, map[string]any{"count": idxErr.Total}))
		return
	}
	b.sendText(ctx, chatID, b.loc.Get(key, lang))
}

func (b *Bot) rememberUser(ctx context.Context, user *tgbotapi.User) {
	if b.users == nil {
		return
	}
	if err := b.users.Upsert(ctx, user.ID, user.UserName); err != nil {
		config.WithContext(ctx).WithError(err).Warn("Failed to save user")
	}
}

func (b *Bot) sendText(ctx context.Context, chatID int64, text string) {
	b.send(ctx, tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(ctx context.Context, c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		config.WithContext(ctx).WithError(err).Error("Error sending message")
	}
}
