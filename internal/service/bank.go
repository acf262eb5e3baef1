package service

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"
)

// Bank is the loaded question collection. It is read-only once LoadBank
// returns and may be shared by any number of goroutines.
type Bank struct {
	questions []*Question
}

// NewBank wraps already constructed questions, mostly for tests.
func NewBank(questions ...*Question) *Bank {
	qs := make([]*Question, len(questions))
	copy(qs, questions)
	return &Bank{questions: qs}
}

func (b *Bank) Len() int {
	if b == nil {
		return 0
	}
	return len(b.questions)
}

// At returns the question at index i.
func (b *Bank) At(i int) (*Question, bool) {
	if i < 0 || i >= b.Len() {
		return nil, false
	}
	return b.questions[i], true
}

func (b *Bank) Snapshots() []QuestionSnapshot {
	out := make([]QuestionSnapshot, 0, b.Len())
	for _, q := range b.questions {
		out = append(out, q.Snapshot())
	}
	return out
}

// WriteJSON writes the bank, shuffled answers included, as indented JSON.
func (b *Bank) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(b.Snapshots())
}

func (b *Bank) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(b.Snapshots()); err != nil {
		return err
	}
	return enc.Close()
}
