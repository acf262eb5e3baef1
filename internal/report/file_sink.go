package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/PoluyanbIch/QuizBot/internal/config"
	"github.com/PoluyanbIch/QuizBot/internal/service"
)

// FileSink writes one text file per finished session into Dir.
type FileSink struct {
	Dir string
}

func NewFileSink(dir string) *FileSink {
	return &FileSink{Dir: dir}
}

func (s *FileSink) Emit(ctx context.Context, r service.Report) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create answers dir: %w", err)
	}
	path := filepath.Join(s.Dir, FileName(r))
	err := writeFile(path, func(w io.Writer) error { return WriteText(w, r) })
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	config.WithContext(ctx).WithField("path", path).Debug("Report written")
	return nil
}

// FileName is unique per session: the end time plus the session id.
func FileName(r service.Report) string {
	end := r.EndTime
	if end.IsZero() {
		end = time.Now()
	}
	return fmt.Sprintf("%s_%d_%s.txt", end.UTC().Format("20060102_150405"), r.UserID, r.SessionID.String()[:8])
}

func WriteText(w io.Writer, r service.Report) error {
	_, err := fmt.Fprintf(w,
		"--- Test Results ---\nCorrect Answers: %d\nIncorrect Answers: %d\nCorrect Percentage: %s%%\n",
		r.CorrectCount, r.IncorrectCount, r.FormattedPercentage())
	return err
}
