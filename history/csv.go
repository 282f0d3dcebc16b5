package history

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// CSVHeader is the first row of an exported file.
var CSVHeader = []string{"Date", "Account", "Earned Points", "Points Difference"}

// ExportCSV appends r to the CSV file at path, writing the header when
// the file is new or empty.
func ExportCSV(path string, r DailyRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("history: csv dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("history: open csv: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("history: stat csv: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(CSVHeader); err != nil {
			return fmt.Errorf("history: write csv header: %w", err)
		}
	}
	if err := w.Write([]string{r.Day, r.Account, strconv.Itoa(r.Earned), strconv.Itoa(r.Difference)}); err != nil {
		return fmt.Errorf("history: write csv row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("history: flush csv: %w", err)
	}
	return f.Close()
}
