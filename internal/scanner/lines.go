package scanner

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
)

// ReadLines pushes one code per line from r, the way a keyboard-wedge scanner
// types them. Blank lines are skipped. It returns when r is exhausted, the
// feed stops or ctx ends.
func ReadLines(ctx context.Context, r io.Reader, f *Feed, logger *slog.Logger) error {
	lines := bufio.NewScanner(r)
	for lines.Scan() {
		code := strings.TrimSpace(lines.Text())
		if code == "" {
			continue
		}
		ok, err := f.Push(ctx, code)
		if errors.Is(err, ErrStopped) {
			return nil
		}
		if err != nil {
			return err
		}
		if !ok && logger != nil {
			logger.DebugContext(ctx, "scan dropped", "paused", f.Paused())
		}
	}
	return lines.Err()
}
