package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/PoluyanbIch/QuizBot/internal/service"
)

const (
	DumpJSONName = "testing.json"
	DumpYAMLName = "testing.yml"
)

// WriteBankDump saves the loaded bank, shuffled answers included, as JSON
// and YAML in dir. Both files are attempted; the first error is returned.
func WriteBankDump(bank *service.Bank, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	jsonErr := writeFile(filepath.Join(dir, DumpJSONName), bank.WriteJSON)
	yamlErr := writeFile(filepath.Join(dir, DumpYAMLName), bank.WriteYAML)
	if jsonErr != nil {
		return jsonErr
	}
	return yamlErr
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	return writeAndClose(f, path, write)
}

// writeAndClose always closes w and reports a failed close.
func writeAndClose(w io.WriteCloser, path string, write func(io.Writer) error) error {
	if err := write(w); err != nil {
		w.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
