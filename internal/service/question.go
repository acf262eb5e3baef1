package service

import (
	"fmt"
)

// MaxAnswers is the size of the label alphabet A..Z.
const MaxAnswers = 26

// Answer is one labelled choice as displayed to the user.
type Answer struct {
	Label string `json:"label" yaml:"label"`
	Text  string `json:"text" yaml:"text"`
}

// Question is a quiz item whose answers were shuffled once at construction.
// It is never modified afterwards and is safe for concurrent reads.
type Question struct {
	body         string
	answers      []Answer
	correctLabel string
}

// NewQuestion builds a question from its raw answers. rawAnswers[0] must be
// the correct answer; the displayed order is a random permutation.
func NewQuestion(body string, rawAnswers []string) (*Question, error) {
	return newQuestion(body, rawAnswers, RandomPermutation)
}

func newQuestion(body string, rawAnswers []string, shuffle ShuffleFunc) (*Question, error) {
	if len(rawAnswers) == 0 {
		return nil, fmt.Errorf("%w: question %q has no answers", ErrConstruction, body)
	}
	if len(rawAnswers) > MaxAnswers {
		return nil, fmt.Errorf("%w: question %q has %d answers, at most %d are supported",
			ErrConstruction, body, len(rawAnswers), MaxAnswers)
	}

	order := shuffle(len(rawAnswers))
	q := &Question{
		body:    body,
		answers: make([]Answer, len(order)),
	}
	for pos, src := range order {
		label := labelFor(pos)
		q.answers[pos] = Answer{Label: label, Text: rawAnswers[src]}
		if src == 0 {
			q.correctLabel = label
		}
	}
	return q, nil
}

func labelFor(pos int) string {
	return string(rune('A' + pos))
}

func (q *Question) Body() string { return q.body }

func (q *Question) CorrectLabel() string { return q.correctLabel }

// Answers returns the choices in display order.
func (q *Question) Answers() []Answer {
	out := make([]Answer, len(q.answers))
	copy(out, q.answers)
	return out
}

// AnswerText looks up the text behind a label.
func (q *Question) AnswerText(label string) (string, bool) {
	for _, a := range q.answers {
		if a.Label == label {
			return a.Text, true
		}
	}
	return "", false
}

// CorrectText is the text of the correct answer.
func (q *Question) CorrectText() string {
	text, _ := q.AnswerText(q.correctLabel)
	return text
}

func (q *Question) String() string { return q.body }

// QuestionSnapshot is the serialisable form used for bank dumps.
type QuestionSnapshot struct {
	Body          string   `json:"question_body" yaml:"question_body"`
	CorrectAnswer string   `json:"question_correct_answer" yaml:"question_correct_answer"`
	Answers       []Answer `json:"question_answers" yaml:"question_answers"`
}

func (q *Question) Snapshot() QuestionSnapshot {
	return QuestionSnapshot{
		Body:          q.body,
		CorrectAnswer: q.correctLabel,
		Answers:       q.Answers(),
	}
}
