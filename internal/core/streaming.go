package core

// streaming.go reads a fetched page body.
//
// Export bodies are small enough to hold in memory, but they still need the
// same cleanup before they are split:
//
//   - a UTF-8 BOM at the start is dropped so the first header matches
//   - invalid UTF-8 is replaced with U+FFFD
//   - the body is capped so a wrong URL cannot stream an unbounded response

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// countingReader tracks bytes read and refuses to go past limit.
type countingReader struct {
	reader    io.Reader
	limit     int64
	BytesRead int64
}

func (r *countingReader) Read(p []byte) (int, error) {
	if r.limit > 0 {
		remaining := r.limit + 1 - r.BytesRead
		if remaining <= 0 {
			return 0, fmt.Errorf("%w: more than %d bytes", ErrPageTooLarge, r.limit)
		}
		if int64(len(p)) > remaining {
			p = p[:remaining]
		}
	}
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	if r.limit > 0 && r.BytesRead > r.limit {
		return n, fmt.Errorf("%w: more than %d bytes", ErrPageTooLarge, r.limit)
	}
	return n, err
}

// readPageBody reads r up to limit bytes (0 = unlimited) and returns clean
// UTF-8 text along with the raw byte count.
func readPageBody(r io.Reader, limit int64) (string, int64, error) {
	counter := &countingReader{reader: r, limit: limit}
	br := bufio.NewReader(counter)

	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(br); err != nil {
		return "", counter.BytesRead, err
	}

	return strings.ToValidUTF8(buf.String(), "�"), counter.BytesRead, nil
}
