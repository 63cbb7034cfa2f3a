// Package report renders a sorted index as the flat text report:
//
//	word line1, line2, ...
//
// one entry per line, partitions in order, words ascending within each
// partition.
package report

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/indexgen/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/indexgen/pkg/errors"
)

// Write emits the report for idx to w and returns the number of bytes
// written. idx must be sorted. Write does not modify idx, so calling it again
// produces identical output.
func Write(w io.Writer, idx *index.Index) (int64, error) {
	if !idx.Sorted() {
		return 0, apperrors.New(apperrors.ErrIndexNotSorted, http.StatusInternalServerError,
			"report requires a sorted index")
	}
	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)
	buf := make([]byte, 0, 256)
	for p := 0; p < idx.Workers(); p++ {
		for _, e := range idx.Partition(p) {
			buf = AppendEntry(buf[:0], e)
			if _, err := bw.Write(buf); err != nil {
				return cw.n, fmt.Errorf("%w: %v", apperrors.ErrOutputUnwritable, err)
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return cw.n, fmt.Errorf("%w: %v", apperrors.ErrOutputUnwritable, err)
	}
	return cw.n, nil
}

// Render returns the report for idx as a byte slice.
func Render(idx *index.Index) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := Write(&buf, idx); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// AppendEntry appends the report line for e, including the trailing
// newline, to dst.
func AppendEntry(dst []byte, e *index.Entry) []byte {
	dst = append(dst, e.Word...)
	dst = append(dst, ' ')
	for i, nr := range e.Lines {
		if i > 0 {
			dst = append(dst, ", "...)
		}
		dst = strconv.AppendInt(dst, int64(nr), 10)
	}
	return append(dst, '\n')
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
