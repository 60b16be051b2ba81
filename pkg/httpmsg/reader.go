package httpmsg

import (
	"bufio"
	"errors"
	"strings"

	"github.com/sh4nks/stegoproxy/pkg/stegoerr"
)

var (
	errHeadersTooLarge = errors.New("httpmsg: header block exceeds configured limit")
	errMalformedLine   = errors.New("httpmsg: malformed start line")
)

// bufReader is a thin wrapper over bufio.Reader exposing CRLF-aware line
// reads, matching the teacher's client.readLine.
type bufReader struct {
	r *bufio.Reader
}

func newBufReader(r *bufio.Reader) *bufReader {
	return &bufReader{r: r}
}

// ReadLine returns the next line with its trailing CRLF or LF stripped.
// Grounded on client.Client.readLine.
func (b *bufReader) ReadLine() (string, error) {
	line, err := b.r.ReadString('\n')
	if err != nil {
		return "", stegoerr.NewProtocolError("read-line", err)
	}
	line = strings.TrimRight(line, "\r\n")
	return line, nil
}

func (b *bufReader) Reader() *bufio.Reader {
	return b.r
}
