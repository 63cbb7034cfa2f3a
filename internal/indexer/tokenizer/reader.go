package tokenizer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	apperrors "github.com/Adithya-Monish-Kumar-K/indexgen/pkg/errors"
)

// LineFunc receives the 1-based number of a line and its words. It is called
// once per line, in order, including for lines without words.
type LineFunc func(lineNr int, words []string) error

// ReadLines reads r sequentially and hands every line to fn. Lines may be
// arbitrarily long. It returns the number of lines read. Read failures are
// reported as ErrInputUnreadable; errors from fn are returned wrapped with
// the line number.
func ReadLines(ctx context.Context, r io.Reader, opts Options, fn LineFunc) (int, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	lineNr := 0
	for {
		if err := ctx.Err(); err != nil {
			return lineNr, err
		}
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			lineNr++
			if fnErr := fn(lineNr, Tokenize(line, opts)); fnErr != nil {
				return lineNr, fmt.Errorf("line %d: %w", lineNr, fnErr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return lineNr, nil
			}
			return lineNr, fmt.Errorf("%w: reading line %d: %v", apperrors.ErrInputUnreadable, lineNr+1, err)
		}
	}
}
