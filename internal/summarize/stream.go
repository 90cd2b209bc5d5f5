package summarize

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// StreamText writes text to w one word at a time, pausing delay between
// words, and ends with a newline.
func StreamText(ctx context.Context, w io.Writer, text string, delay time.Duration) error {
	for i, word := range strings.Fields(text) {
		if i > 0 {
			if _, err := io.WriteString(w, " "); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, word); err != nil {
			return err
		}
		if delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}
