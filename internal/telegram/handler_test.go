package telegram

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PoluyanbIch/QuizBot/internal/locale"
	"github.com/PoluyanbIch/QuizBot/internal/service"
	"github.com/PoluyanbIch/QuizBot/internal/storage"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeAPI struct {
	mu        sync.Mutex
	sent      []tgbotapi.MessageConfig
	callbacks int
	updates   chan tgbotapi.Update
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {}

// texts returns the messages sent since the previous call.
func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.Text)
	}
	f.sent = nil
	return out
}

func (f *fakeAPI) last() tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

var testMessages = map[string]map[string]string{
	"en": {
		"greeting_message":        "greeting",
		"quiz_already_active":     "already active",
		"farewell_message":        "bye",
		"no_active_quiz":          "no quiz",
		"no_active_quiz_callback": "no quiz to answer",
		"c_command_usage":         "usage",
		"invalid_number_format":   "not a number",
		"invalid_question_number": "pick 1..{count}",
		"new_quiz_at_q":           "new at {q_num}",
		"jump_to_q":               "jump to {q_num}",
		"answer_correct":          "correct",
		"answer_incorrect":        "wrong: {correct_answer}",
		"quiz_finished_report":    "done {correct}/{total} {percentage}%",
		"new_record":              "record {position}",
		"unexpected_action":       "unexpected",
		"leaderboard_title":       "TOP",
		"leaderboard_empty":       "empty",
		"history_title":           "HISTORY",
		"history_empty":           "no history",
		"status_active":           "active",
		"status_cancelled":        "stopped",
		"status_finished":         "done",
	},
}

type fixture struct {
	api         *fakeAPI
	bot         *Bot
	bank        *service.Bank
	users       *storage.MemoryStore
	leaderboard *service.MemoryLeaderboard
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	q1, err := service.NewQuestion("Capital of France?", []string{"Paris", "London", "Berlin"})
	if err != nil {
		t.Fatal(err)
	}
	q2, err := service.NewQuestion("2+2?", []string{"4", "5"})
	if err != nil {
		t.Fatal(err)
	}
	bank := service.NewBank(q1, q2)
	store := storage.NewMemoryStore()
	lb := service.NewMemoryLeaderboard()
	api := &fakeAPI{}
	bot := NewBot(api, Deps{
		Quiz:        service.NewQuizService(bank, store),
		Users:       store,
		Leaderboard: lb,
		History:     store,
		Messages:    locale.New(testMessages),
	})
	return &fixture{api: api, bot: bot, bank: bank, users: store, leaderboard: lb}
}

func (f *fixture) correctLabel(i int) string {
	q, _ := f.bank.At(i)
	return q.CorrectLabel()
}

func (f *fixture) wrongLabel(i int) string {
	q, _ := f.bank.At(i)
	for _, a := range q.Answers() {
		if a.Label != q.CorrectLabel() {
			return a.Label
		}
	}
	return ""
}

func testUser(id int64) *tgbotapi.User {
	return &tgbotapi.User{ID: id, UserName: "ann", FirstName: "Ann", LanguageCode: "en"}
}

func command(userID int64, text string) tgbotapi.Update {
	name := strings.SplitN(text, " ", 2)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		From:     testUser(userID),
		Chat:     &tgbotapi.Chat{ID: userID},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}}
}

func callback(userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    testUser(userID),
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: userID}},
		Data:    data,
	}}
}

func expectTexts(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d messages %q, got %d %q", len(want), want, len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("message %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestStartCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, command(1, "/start"))
	markup, ok := f.api.last().ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(markup.InlineKeyboard) != 3 {
		t.Fatalf("expected a three-row answer keyboard, got %#v", f.api.last().ReplyMarkup)
	}
	if data := *markup.InlineKeyboard[0][0].CallbackData; data != "answer:A" {
		t.Fatalf("unexpected callback data %q", data)
	}
	expectTexts(t, f.api.texts(), "greeting", "1/2. Capital of France?")

	f.bot.HandleUpdate(ctx, command(1, "/start"))
	expectTexts(t, f.api.texts(), "already active", "1/2. Capital of France?")

	if name, ok := f.users.Username(1); !ok || name != "ann" {
		t.Fatalf("user was not recorded: %q %v", name, ok)
	}
}

func TestFullRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, command(1, "/start"))
	f.api.texts()

	f.bot.HandleUpdate(ctx, callback(1, "answer:"+f.correctLabel(0)))
	expectTexts(t, f.api.texts(), "correct", "2/2. 2+2?")

	f.bot.HandleUpdate(ctx, callback(1, "answer:"+f.wrongLabel(1)))
	expectTexts(t, f.api.texts(), "wrong: 4", "done 1/2 50.00%\n\nrecord 1")

	top, _ := f.leaderboard.Top(ctx, 10)
	if len(top) != 1 || top[0].Score != 1 || top[0].Username != "ann" {
		t.Fatalf("unexpected leaderboard %+v", top)
	}

	f.bot.HandleUpdate(ctx, callback(1, "answer:A"))
	expectTexts(t, f.api.texts(), "no quiz to answer")

	f.bot.HandleUpdate(ctx, callback(1, "leaderboard"))
	got := f.api.texts()
	if len(got) != 1 || !strings.HasPrefix(got[0], "TOP\n\n🥇 1. @ann - 50.00% (1/2)") {
		t.Fatalf("unexpected leaderboard message %q", got)
	}
	if f.api.callbacks != 4 {
		t.Fatalf("every callback must be acknowledged, got %d", f.api.callbacks)
	}
}

func TestJumpCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, command(1, "/c"))
	expectTexts(t, f.api.texts(), "usage")

	f.bot.HandleUpdate(ctx, command(1, "/c 1 2"))
	expectTexts(t, f.api.texts(), "usage")

	f.bot.HandleUpdate(ctx, command(1, "/c two"))
	expectTexts(t, f.api.texts(), "not a number")

	f.bot.HandleUpdate(ctx, command(1, "/c 5"))
	expectTexts(t, f.api.texts(), "pick 1..2")

	f.bot.HandleUpdate(ctx, command(1, "/c 0"))
	expectTexts(t, f.api.texts(), "pick 1..2")

	f.bot.HandleUpdate(ctx, command(1, "/c 2"))
	expectTexts(t, f.api.texts(), "new at 2", "2/2. 2+2?")

	f.bot.HandleUpdate(ctx, command(1, "/c 1"))
	expectTexts(t, f.api.texts(), "jump to 1", "1/2. Capital of France?")
}

func TestStopCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, command(1, "/stop"))
	expectTexts(t, f.api.texts(), "no quiz")

	f.bot.HandleUpdate(ctx, command(1, "/start"))
	f.api.texts()
	f.bot.HandleUpdate(ctx, command(1, "/stop"))
	expectTexts(t, f.api.texts(), "bye")

	f.bot.HandleUpdate(ctx, command(1, "/stop"))
	expectTexts(t, f.api.texts(), "no quiz")
}

func TestUnexpectedCallbacks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, callback(1, "garbage"))
	expectTexts(t, f.api.texts(), "unexpected")

	f.bot.HandleUpdate(ctx, command(1, "/start"))
	f.api.texts()
	f.bot.HandleUpdate(ctx, callback(1, "answer:Z"))
	expectTexts(t, f.api.texts(), "unexpected")

	// the invalid label must not have advanced the session
	f.bot.HandleUpdate(ctx, callback(1, "answer:"+f.correctLabel(0)))
	expectTexts(t, f.api.texts(), "correct", "2/2. 2+2?")
}

func TestUsersAreIsolated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, command(1, "/start"))
	f.bot.HandleUpdate(ctx, command(2, "/c 2"))
	f.api.texts()

	f.bot.HandleUpdate(ctx, callback(1, "answer:"+f.correctLabel(0)))
	expectTexts(t, f.api.texts(), "correct", "2/2. 2+2?")
	f.bot.HandleUpdate(ctx, callback(2, "answer:"+f.correctLabel(1)))
	expectTexts(t, f.api.texts(), "correct", "done 1/2 50.00%\n\nrecord 1")
}

func TestHistoryCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.bot.HandleUpdate(ctx, command(1, "/history"))
	expectTexts(t, f.api.texts(), "no history")

	f.bot.HandleUpdate(ctx, command(1, "/start"))
	f.bot.HandleUpdate(ctx, callback(1, "answer:"+f.correctLabel(0)))
	f.bot.HandleUpdate(ctx, command(1, "/stop"))
	f.api.texts()

	f.bot.HandleUpdate(ctx, command(1, "/history"))
	got := f.api.texts()
	if len(got) != 1 || !strings.HasPrefix(got[0], "HISTORY\n\n1. ") || !strings.HasSuffix(got[0], " stopped 1/1") {
		t.Fatalf("unexpected history message %q", got)
	}

	f.bot.HandleUpdate(ctx, command(2, "/history"))
	expectTexts(t, f.api.texts(), "no history")
}

func TestUserLocksAreReleased(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			f.bot.HandleUpdate(ctx, command(userID%4+1, "/start"))
		}(int64(i + 1))
	}
	wg.Wait()

	f.bot.mu.Lock()
	left := len(f.bot.locks)
	f.bot.mu.Unlock()
	if left != 0 {
		t.Fatalf("expected no user locks after all updates finished, got %d", left)
	}

	// one active session per user even when updates raced
	for id := int64(1); id <= 4; id++ {
		history, err := f.users.History(ctx, id, 0)
		if err != nil || len(history) != 1 {
			t.Fatalf("user %d: expected one session, got %d %v", id, len(history), err)
		}
	}
}

func TestStartLoop(t *testing.T) {
	f := newFixture(t)
	f.api.updates = make(chan tgbotapi.Update, 2)
	f.api.updates <- command(1, "/start")
	f.api.updates <- command(2, "/stop")
	close(f.api.updates)

	done := make(chan struct{})
	go func() {
		f.bot.Start(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after the updates channel closed")
	}
	if got := f.api.texts(); len(got) != 3 {
		t.Fatalf("expected 3 messages, got %q", got)
	}
}
