package partition

import (
	"errors"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/indexgen/pkg/errors"
)

func TestNewRejectsOutOfRange(t *testing.T) {
	for _, w := range []int{-1, 0, 27, 100} {
		_, err := New(w)
		if !errors.Is(err, apperrors.ErrInvalidConfig) {
			t.Errorf("New(%d): expected ErrInvalidConfig, got %v", w, err)
		}
	}
}

func TestAssignmentIsTotalAndBiasedToLast(t *testing.T) {
	for w := 1; w <= Letters; w++ {
		a, err := New(w)
		if err != nil {
			t.Fatalf("New(%d): %v", w, err)
		}
		if a.Workers() != w {
			t.Fatalf("Workers() = %d, want %d", a.Workers(), w)
		}
		sizes := make([]int, w)
		for l := byte('a'); l <= 'z'; l++ {
			p, err := a.Partition(l)
			if err != nil {
				t.Fatalf("w=%d letter %c: %v", w, l, err)
			}
			if p < 0 || p >= w {
				t.Fatalf("w=%d letter %c mapped to %d", w, l, p)
			}
			sizes[p]++
		}
		last := sizes[w-1]
		for p := 0; p < w-1; p++ {
			if sizes[p] > last {
				t.Errorf("w=%d: partition %d has %d letters, last has %d", w, p, sizes[p], last)
			}
			if sizes[p] != Letters/w {
				t.Errorf("w=%d: partition %d has %d letters, want %d", w, p, sizes[p], Letters/w)
			}
		}
		if want := Letters/w + Letters%w; last != want {
			t.Errorf("w=%d: last partition has %d letters, want %d", w, last, want)
		}
	}
}

func TestTwoPartitions(t *testing.T) {
	a, err := New(2)
	if err != nil {
		t.Fatal(err)
	}
	if p, _ := a.Partition('m'); p != 0 {
		t.Errorf("'m' should map to 0, got %d", p)
	}
	if p, _ := a.Partition('n'); p != 1 {
		t.Errorf("'n' should map to 1, got %d", p)
	}
	if p, _ := a.Partition('z'); p != 1 {
		t.Errorf("'z' should map to 1, got %d", p)
	}
	if got := a.String(); got != "0:a-m 1:n-z" {
		t.Errorf("String() = %q", got)
	}
}

func TestRemainderGoesToLastPartition(t *testing.T) {
	// 26 = 3*8 + 2: y and z join partition 7.
	a, err := New(8)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(a.Letters(7)); got != "vwxyz" {
		t.Errorf("Letters(7) = %q, want vwxyz", got)
	}
	if got := string(a.Letters(0)); got != "abc" {
		t.Errorf("Letters(0) = %q, want abc", got)
	}
}

func TestPartitionRejectsNonLetters(t *testing.T) {
	a, _ := New(3)
	for _, c := range []byte{'A', '0', '.', ' ', 0xC3} {
		if _, err := a.Partition(c); !errors.Is(err, apperrors.ErrUnindexableWord) {
			t.Errorf("Partition(%q): expected ErrUnindexableWord, got %v", c, err)
		}
	}
}
