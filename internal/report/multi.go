package report

import (
	"context"
	"errors"

	"github.com/PoluyanbIch/QuizBot/internal/service"
)

// Multi hands every report to each sink in order. All sinks run even if an
// earlier one fails; the errors are joined.
type Multi []service.ReportSink

func (m Multi) Emit(ctx context.Context, r service.Report) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Emit(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
