package index

import (
	"slices"
	"sort"
)

// Entry is the index record for one distinct word.
type Entry struct {
	Word string
	// Lines holds the 1-based line numbers the word occurs on, strictly
	// ascending.
	Lines []int
}

// addLine records lineNr, keeping Lines ascending and duplicate free.
// It reports whether the line was new.
func (e *Entry) addLine(lineNr int) bool {
	i := sort.SearchInts(e.Lines, lineNr)
	if i < len(e.Lines) && e.Lines[i] == lineNr {
		return false
	}
	e.Lines = slices.Insert(e.Lines, i, lineNr)
	return true
}

// wordList is the exclusively owned word sequence of one partition.
type wordList struct {
	id          int
	entries     []*Entry // discovery order until sorted
	slots       map[string]int
	occurrences int
}

func newWordList(id int) *wordList {
	return &wordList{
		id:    id,
		slots: make(map[string]int),
	}
}

func (l *wordList) insert(word string, lineNr int) {
	if slot, ok := l.slots[word]; ok {
		if l.entries[slot].addLine(lineNr) {
			l.occurrences++
		}
		return
	}
	l.slots[word] = len(l.entries)
	l.entries = append(l.entries, &Entry{Word: word, Lines: []int{lineNr}})
	l.occurrences++
}

func (l *wordList) lookup(word string) (*Entry, bool) {
	slot, ok := l.slots[word]
	if !ok {
		return nil, false
	}
	return l.entries[slot], true
}

// sortWords orders the list by byte-wise word comparison. Words are unique
// within a list, so the order is total.
func (l *wordList) sortWords() {
	sort.Slice(l.entries, func(i, j int) bool {
		return l.entries[i].Word < l.entries[j].Word
	})
	for i, e := range l.entries {
		l.slots[e.Word] = i
	}
}
