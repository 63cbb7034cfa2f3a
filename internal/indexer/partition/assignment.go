// Package partition statically assigns the 26 letters of the alphabet to a
// fixed number of index partitions. Each partition is owned by one sort
// worker, and every word lives in the partition of its first letter.
package partition

import (
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/indexgen/pkg/errors"
)

// Letters is the size of the alphabet covered by an Assignment.
const Letters = 26

// Assignment maps each letter index (0 for 'a' … 25 for 'z') to a partition.
// It is a value type: once built it is never mutated and may be read from
// any number of goroutines.
type Assignment struct {
	table   [Letters]int
	workers int
}

// New builds the assignment for the given number of partitions.
//
// Letters are split into runs of 26/workers; the 26%workers letters left over
// at the end of the alphabet all go to the last partition, so the last
// partition carries the largest share. That bias is part of the output
// contract and is not rebalanced.
func New(workers int) (Assignment, error) {
	if workers < 1 || workers > Letters {
		return Assignment{}, apperrors.Newf(apperrors.ErrInvalidConfig, http.StatusBadRequest,
			"partition count must be between 1 and %d, got %d", Letters, workers)
	}
	a := Assignment{workers: workers}
	step := Letters / workers
	for p := 0; p < workers; p++ {
		for j := 0; j < step; j++ {
			a.table[p*step+j] = p
		}
	}
	for i := Letters % workers; i > 0; i-- {
		a.table[Letters-i] = workers - 1
	}
	return a, nil
}

// Workers returns the number of partitions.
func (a Assignment) Workers() int {
	return a.workers
}

// Partition returns the partition owning words that start with letter.
// letter must be an ASCII lower-case letter.
func (a Assignment) Partition(letter byte) (int, error) {
	if letter < 'a' || letter > 'z' {
		return 0, apperrors.Newf(apperrors.ErrUnindexableWord, http.StatusBadRequest,
			"first character %q is outside a-z", letter)
	}
	return a.table[letter-'a'], nil
}

// Letters returns the letters owned by partition p in alphabetical order.
func (a Assignment) Letters(p int) []byte {
	var out []byte
	for i, owner := range a.table {
		if owner == p {
			out = append(out, byte('a'+i))
		}
	}
	return out
}

// String renders the assignment as ranges, e.g. "0:a-m 1:n-z".
func (a Assignment) String() string {
	parts := make([]string, 0, a.workers)
	for p := 0; p < a.workers; p++ {
		letters := a.Letters(p)
		switch len(letters) {
		case 0:
			parts = append(parts, fmt.Sprintf("%d:-", p))
		case 1:
			parts = append(parts, fmt.Sprintf("%d:%c", p, letters[0]))
		default:
			parts = append(parts, fmt.Sprintf("%d:%c-%c", p, letters[0], letters[len(letters)-1]))
		}
	}
	return strings.Join(parts, " ")
}
