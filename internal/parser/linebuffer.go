package parser

import "bytes"

// LineBuffer splits a byte stream into complete lines. A trailing fragment
// without a newline is withheld until a later Write completes it.
type LineBuffer struct {
	partial []byte
}

// Write appends p and returns every line completed by it, without the line
// terminator. CRLF endings are accepted.
func (b *LineBuffer) Write(p []byte) []string {
	if len(p) == 0 {
		return nil
	}
	data := append(b.partial, p...)

	var lines []string
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimSuffix(data[:i], []byte("\r"))))
		data = data[i+1:]
	}
	b.partial = append([]byte(nil), data...)
	return lines
}

// Pending returns the withheld partial line.
func (b *LineBuffer) Pending() string {
	return string(b.partial)
}

// Reset drops the withheld fragment, e.g. after the file was rotated.
func (b *LineBuffer) Reset() {
	b.partial = nil
}
