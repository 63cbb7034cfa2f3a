// Package index holds the letter-partitioned inverted index. Words are
// inserted by a single sequential reader; afterwards every partition is
// sorted by its own goroutine, and the sorted index is read-only.
package index

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/indexgen/internal/indexer/partition"
	"github.com/Adithya-Monish-Kumar-K/indexgen/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/indexgen/pkg/errors"
)

// Index maps every distinct word to the lines it appears on, split into
// disjoint partitions by the word's first letter.
//
// Index is not safe for concurrent use. Insert is meant to be driven by one
// reader; Sort fans out internally and returns once every partition is done.
type Index struct {
	assignment partition.Assignment
	lists      []*wordList
	sortTimes  []time.Duration
	sorted     bool
}

// PartitionStats describes one partition of the index.
type PartitionStats struct {
	Partition    int           `json:"partition"`
	Letters      string        `json:"letters"`
	Words        int           `json:"words"`
	Occurrences  int           `json:"occurrences"`
	SortDuration time.Duration `json:"sort_duration"`
}

// Stats summarises the whole index.
type Stats struct {
	Words       int              `json:"words"`
	Occurrences int              `json:"occurrences"`
	Partitions  []PartitionStats `json:"partitions"`
}

// New creates an empty index with one partition per worker of a.
func New(a partition.Assignment) *Index {
	lists := make([]*wordList, a.Workers())
	for i := range lists {
		lists[i] = newWordList(i)
	}
	return &Index{
		assignment: a,
		lists:      lists,
		sortTimes:  make([]time.Duration, a.Workers()),
	}
}

// Insert records that word occurs on line lineNr. word must already be
// normalised by the tokenizer.
func (idx *Index) Insert(word string, lineNr int) error {
	if idx.sorted {
		return apperrors.New(apperrors.ErrIndexSealed, http.StatusConflict, "cannot insert into a sorted index")
	}
	if lineNr < 1 {
		return apperrors.Newf(apperrors.ErrInvalidLine, http.StatusBadRequest, "line number must be positive, got %d", lineNr)
	}
	if err := tokenizer.Classify(word); err != nil {
		return err
	}
	p, err := idx.assignment.Partition(word[0])
	if err != nil {
		return err
	}
	idx.lists[p].insert(word, lineNr)
	return nil
}

// Workers returns the number of partitions.
func (idx *Index) Workers() int {
	return len(idx.lists)
}

// Assignment returns the letter assignment the index was built with.
func (idx *Index) Assignment() partition.Assignment {
	return idx.assignment
}

// Sorted reports whether Sort has completed.
func (idx *Index) Sorted() bool {
	return idx.sorted
}

// Partition returns the entries of partition p. Before Sort they are in
// reverse discovery order (newest word first); after Sort they are in
// ascending word order.
func (idx *Index) Partition(p int) []*Entry {
	if p < 0 || p >= len(idx.lists) {
		panic(fmt.Sprintf("index: partition %d out of range [0,%d)", p, len(idx.lists)))
	}
	entries := idx.lists[p].entries
	out := make([]*Entry, len(entries))
	if idx.sorted {
		copy(out, entries)
		return out
	}
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out
}

// Lookup returns the entry for word, if present.
func (idx *Index) Lookup(word string) (*Entry, bool) {
	if tokenizer.Classify(word) != nil {
		return nil, false
	}
	p, err := idx.assignment.Partition(word[0])
	if err != nil {
		return nil, false
	}
	return idx.lists[p].lookup(word)
}

// Stats returns per-partition counts and, once sorted, sort durations.
func (idx *Index) Stats() Stats {
	st := Stats{Partitions: make([]PartitionStats, len(idx.lists))}
	for i, l := range idx.lists {
		ps := PartitionStats{
			Partition:    i,
			Letters:      string(idx.assignment.Letters(i)),
			Words:        len(l.entries),
			Occurrences:  l.occurrences,
			SortDuration: idx.sortTimes[i],
		}
		st.Words += ps.Words
		st.Occurrences += ps.Occurrences
		st.Partitions[i] = ps
	}
	return st
}
