// Package statslog rotates the engine's DSP load stats (engine.Stats)
// into daily CSV files, grounded on the teacher's src/log.go daily-name
// strategy. The filename itself is produced with strftime.Format, the
// same call the teacher already makes in src/xmit.go/src/tq.go to
// timestamp saved audio, applied here to log file names instead.
package statslog

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lestrrat-go/strftime"

	"github.com/lodsb/scratchd/internal/engine"
)

// DefaultPattern is the strftime pattern used to derive one log file
// name per UTC day, mirroring log_write's "2006-01-02.log" layout.
const DefaultPattern = "%Y-%m-%d.log"

const csvHeader = "utime,isotime,load_percent,process_time_us,xruns\n"

// Writer rotates to a new file whenever the formatted name changes,
// keeping the previous file open across calls until then (log_write's
// "close current file if name has changed, open for append if not
// already open" strategy).
type Writer struct {
	dir     string
	pattern string
	file    *os.File

	openAt string
}

// Open prepares a Writer rooted at dir, creating dir if it doesn't
// exist yet, using pattern to name each day's file.
func Open(dir, pattern string) (*Writer, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if _, err := strftime.Format(pattern, time.Unix(0, 0)); err != nil {
		return nil, err
	}
	if st, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := os.Mkdir(dir, 0o755); err != nil {
			return nil, err
		}
	} else if !st.IsDir() {
		return nil, fmt.Errorf("statslog: %q is not a directory", dir)
	}
	return &Writer{dir: dir, pattern: pattern}, nil
}

// Write appends one stats sample as a CSV row, rotating to a new file
// first if the current UTC time now maps to a different filename than
// the currently open one.
func (w *Writer) Write(now time.Time, stats engine.Stats) error {
	now = now.UTC()
	name, err := strftime.Format(w.pattern, now)
	if err != nil {
		return err
	}

	if w.file != nil && name != w.openAt {
		w.close()
	}
	if w.file == nil {
		if err := w.open(name); err != nil {
			return err
		}
	}

	row := fmt.Sprintf("%d,%s,%.2f,%.2f,%d\n",
		now.Unix(), now.Format(time.RFC3339), stats.LoadPercent, stats.ProcessTimeUs, stats.Xruns)
	_, err = w.file.WriteString(row)
	return err
}

func (w *Writer) open(name string) error {
	fullPath := filepath.Join(w.dir, name)
	_, statErr := os.Stat(fullPath)
	alreadyThere := statErr == nil

	f, err := os.OpenFile(fullPath, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.openAt = name

	if !alreadyThere {
		if _, err := f.WriteString(csvHeader); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) close() {
	if w.file != nil {
		w.file.Close()
		w.file = nil
		w.openAt = ""
	}
}

// Close closes the currently open file, if any.
func (w *Writer) Close() error {
	w.close()
	return nil
}
