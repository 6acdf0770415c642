// Package stream turns a growing remote file into a live sequence of lines.
package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/sourceplane/slurmster/internal/errors"
	"github.com/sourceplane/slurmster/internal/logger"
	"github.com/sourceplane/slurmster/internal/remote"
)

// MaxLineSize bounds a single line; job output longer than this fails the stream
const MaxLineSize = 1024 * 1024

// ErrStop ends Follow without error when returned from a LineFunc
var ErrStop = errors.New("stop streaming")

// Mode selects where streaming starts
type Mode struct {
	FromStart bool // whole file, Lines ignored
	Lines     int  // last N lines before following
}

// Validate rejects a negative line count
func (m Mode) Validate() error {
	if !m.FromStart && m.Lines < 0 {
		return errors.Configurationf("line count must not be negative (got %d)", m.Lines)
	}
	return nil
}

func (m Mode) String() string {
	if m.FromStart {
		return "from start"
	}
	return fmt.Sprintf("last %d lines", m.Lines)
}

// LineFunc receives each line without its trailing newline
type LineFunc func(line string) error

// ToWriter returns a LineFunc printing every line to w
func ToWriter(w io.Writer) LineFunc {
	return func(line string) error {
		_, err := fmt.Fprintln(w, line)
		return err
	}
}

// Follow streams path through fn until ctx is done, fn returns ErrStop or
// the remote stream ends. Cancellation is a normal end: it returns nil and
// only stops local consumption. Follow keeps no state between calls.
func Follow(ctx context.Context, ch remote.Channel, path string, mode Mode, fn LineFunc, log *zap.SugaredLogger) error {
	if err := mode.Validate(); err != nil {
		return err
	}
	log = logger.OrNop(log).With(logger.FieldLogFile, path)

	rc, err := ch.Tail(ctx, path, mode.FromStart, mode.Lines)
	if err != nil {
		return err
	}
	defer rc.Close()
	stop := context.AfterFunc(ctx, func() { rc.Close() })
	defer stop()

	log.Debugw("Streaming started", "mode", mode.String())

	lines := 0
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 64*1024), MaxLineSize)
	for sc.Scan() {
		lines++
		if err := fn(sc.Text()); err != nil {
			if errors.Is(err, ErrStop) {
				break
			}
			return err
		}
	}

	log.Debugw("Streaming stopped", logger.FieldCount, lines)

	if ctx.Err() != nil {
		return nil
	}
	if err := sc.Err(); err != nil {
		return errors.RemoteIOf(err, "failed to read %s", path)
	}
	return nil
}
