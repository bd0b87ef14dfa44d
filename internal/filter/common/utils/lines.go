package utils

import (
	"bufio"
	"bytes"
	"io"
)

// MaxLineSize bounds a single filter-list line.
const MaxLineSize = 1 << 20

// SplitLines splits text into lines, dropping LF and CRLF terminators. A line
// longer than MaxLineSize fails the split with bufio.ErrTooLong.
func SplitLines(data []byte) ([]string, error) {
	sc := NewLineScanner(bytes.NewReader(data))
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// NewLineScanner returns a line scanner sized for filter lists.
func NewLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), MaxLineSize)
	return sc
}
