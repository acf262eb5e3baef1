package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/PoluyanbIch/QuizBot/internal/config"
	"gopkg.in/yaml.v3"
)

// LoadObserver is told about every file and record the loader touches.
// Implementations must be safe for concurrent use.
type LoadObserver interface {
	FileLoaded(path string, questions int)
	FileSkipped(path string, reason error)
	RecordSkipped(path string, index int, reason error)
}

// BankLoader reads question files from a directory, one goroutine per file.
type BankLoader struct {
	Shuffle  ShuffleFunc
	Observer LoadObserver
}

// bankRecord is one entry of a question file:
//
//	- question: "Capital of France?"
//	  answers: [Paris, London, Berlin]
//	  correct: Paris   # optional, defaults to the first answer
type bankRecord struct {
	Question string   `yaml:"question"`
	Answers  []string `yaml:"answers"`
	Correct  string   `yaml:"correct"`
}

var (
	errMalformedRecord = errors.New("expected a mapping with 'question' and a non-empty 'answers' list")
	errNotAList        = errors.New("expected a list of questions at the top level")
)

// LoadBank loads dir/*.ext with the default shuffle.
func LoadBank(ctx context.Context, dir, ext string) (*Bank, error) {
	return (&BankLoader{}).Load(ctx, dir, ext)
}

// Load starts one worker per matching file and waits for all of them. The
// resulting order follows worker completion and is not stable across runs.
// A bank with no questions is reported as ErrBankEmpty.
func (l *BankLoader) Load(ctx context.Context, dir, ext string) (*Bank, error) {
	log := config.WithContext(ctx).WithField("dir", dir)
	log.Infof("Loading questions with extension .%s", ext)

	files, err := l.listFiles(dir, ext)
	if err != nil {
		log.WithError(err).Warn("Question directory cannot be read")
	} else if len(files) == 0 {
		log.Warnf("No question files found with extension .%s", ext)
	}

	var (
		mu        sync.Mutex
		questions []*Question
		wg        sync.WaitGroup
	)
	for _, path := range files {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			loaded := l.loadFile(ctx, path)
			mu.Lock()
			questions = append(questions, loaded...)
			mu.Unlock()
		}(path)
	}
	wg.Wait()

	log.Infof("Finished loading questions. Total loaded: %d", len(questions))
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no questions in %s/*.%s", ErrBankEmpty, dir, ext)
	}
	return &Bank{questions: questions}, nil
}

func (l *BankLoader) listFiles(dir, ext string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	return filepath.Glob(filepath.Join(dir, "*."+ext))
}

// loadFile never fails: problems are logged and the file or record skipped.
func (l *BankLoader) loadFile(ctx context.Context, path string) []*Question {
	log := config.WithContext(ctx).WithField("file", path)

	records, err := readRecords(path)
	if err != nil {
		log.WithError(err).Warn("Skipping question file")
		l.fileSkipped(path, err)
		return nil
	}

	shuffle := l.Shuffle
	if shuffle == nil {
		shuffle = RandomPermutation
	}

	questions := make([]*Question, 0, len(records))
	for i, node := range records {
		rec, err := decodeRecord(node)
		if err != nil {
			log.WithError(err).Warnf("Skipping entry %d at line %d", i+1, node.Line)
			l.recordSkipped(path, i, err)
			continue
		}
		q, err := newQuestion(rec.Question, rec.Answers, shuffle)
		if err != nil {
			log.WithError(err).Warnf("Skipping entry %d at line %d", i+1, node.Line)
			l.recordSkipped(path, i, err)
			continue
		}
		questions = append(questions, q)
	}
	if l.Observer != nil {
		l.Observer.FileLoaded(path, len(questions))
	}
	return questions
}

func readRecords(path string) ([]*yaml.Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var doc yaml.Node
	if err := yaml.NewDecoder(f).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errNotAList
		}
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.SequenceNode {
		return nil, errNotAList
	}
	return root.Content, nil
}

// decodeRecord validates one entry and returns it with the correct answer
// first, which is the order NewQuestion expects.
func decodeRecord(node *yaml.Node) (bankRecord, error) {
	var rec bankRecord
	if node.Kind != yaml.MappingNode {
		return rec, errMalformedRecord
	}
	if err := node.Decode(&rec); err != nil {
		return rec, fmt.Errorf("%w: %v", errMalformedRecord, err)
	}
	if rec.Question == "" || len(rec.Answers) == 0 {
		return rec, errMalformedRecord
	}
	if rec.Correct == "" {
		return rec, nil
	}
	for i, a := range rec.Answers {
		if a == rec.Correct {
			answers := make([]string, 0, len(rec.Answers))
			answers = append(answers, a)
			answers = append(answers, rec.Answers[:i]...)
			answers = append(answers, rec.Answers[i+1:]...)
			rec.Answers = answers
			return rec, nil
		}
	}
	return rec, fmt.Errorf("correct answer %q is not one of the answers", rec.Correct)
}

func (l *BankLoader) fileSkipped(path string, err error) {
	if l.Observer != nil {
		l.Observer.FileSkipped(path, err)
	}
}

func (l *BankLoader) recordSkipped(path string, index int, err error) {
	if l.Observer != nil {
		l.Observer.RecordSkipped(path, index, err)
	}
}
