package proxy

import (
	"bufio"
	"errors"
	"io"
	"net/http"
	"strings"
)

// transcodeStream re-emits an upstream line-oriented event stream with
// double-newline framing. Blank lines are dropped, line order is preserved,
// and a trailing line without a terminator is never emitted. rewrite, when
// non-nil, is applied to lines carrying a media src attribute.
//
// There is no buffering beyond one line: each write is flushed before the
// next upstream read, so downstream back-pressure throttles the upstream
// pull. The upstream body is tied to the request context, so a client
// disconnect cancels the pull promptly.
func transcodeStream(w http.ResponseWriter, upstream io.Reader, rewrite func(string) string) error {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	br := bufio.NewReader(upstream)
	for {
		raw, err := br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Unterminated trailing bytes are dropped, not emitted.
				return nil
			}
			return err
		}
		line := strings.TrimRight(raw, "\r\n")
		if line == "" {
			continue
		}
		if rewrite != nil && strings.Contains(line, `src="`) {
			line = rewrite(line)
		}
		if _, err := io.WriteString(w, line+"\n\n"); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
