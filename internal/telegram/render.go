package telegram

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PoluyanbIch/QuizBot/internal/service"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var (
	errUsage  = errors.New("expected exactly one argument")
	errFormat = errors.New("argument is not a number")
)

// QuestionText renders "3/10. body".
func QuestionText(v service.QuestionView) string {
	return fmt.Sprintf("%d/%d. %s", v.Number(), v.Total, v.Body)
}

// AnswerKeyboard has one row per answer, labelled "A. text".
func AnswerKeyboard(v service.QuestionView) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(v.Answers))
	for _, a := range v.Answers {
		button := tgbotapi.NewInlineKeyboardButtonData(a.Label+". "+a.Text, answerPrefix+a.Label)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// ParseQuestionNumber reads the single 1-based argument of /c.
func ParseQuestionNumber(args string) (int, error) {
	fields := strings.Fields(args)
	if len(fields) != 1 {
		return 0, errUsage
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, errFormat
	}
	return n, nil
}

func LeaderboardText(title string, entries []service.LeaderboardEntry) string {
	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString("\n\n")
	for i, e := range entries {
		medal := "🔸"
		switch i {
		case 0:
			medal = "🥇"
		case 1:
			medal = "🥈"
		case 2:
			medal = "🥉"
		}
		fmt.Fprintf(&sb, "%s %d. %s - %.2f%% (%d/%d)\n   📅 %s\n\n",
			medal, i+1, e.DisplayName(), e.Percentage, e.Score, e.Total, e.Date.Format("2006-01-02"))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// HistoryText lists sessions as "1. 2024-05-01 10:00 finished 3/5", where
// the fraction is correct over answered.
func HistoryText(title string, sessions []service.QuizSession, status func(service.SessionStatus) string) string {
	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString("\n")
	for i, s := range sessions {
		fmt.Fprintf(&sb, "\n%d. %s %s %d/%d",
			i+1, s.StartTime.UTC().Format("2006-01-02 15:04"), status(s.Status), s.CorrectCount, s.AnsweredCount)
	}
	return sb.String()
}
