package index

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
)

// BenchmarkInsert measures per-word insert throughput into a 4-way index.
func BenchmarkInsert(b *testing.B) {
	doc := randomDocument(rand.New(rand.NewSource(1)), 1000, 12)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		idx := mustIndex(b, 4)
		for nr, line := range doc {
			for _, w := range line {
				if err := idx.Insert(w, nr+1); err != nil {
					b.Fatal(err)
				}
			}
		}
	}
}

// BenchmarkSort measures the parallel sort stage at several partition
// counts over the same document.
func BenchmarkSort(b *testing.B) {
	doc := randomDocument(rand.New(rand.NewSource(2)), 5000, 16)
	for _, workers := range []int{1, 2, 4, 8, 26} {
		b.Run(fmt.Sprintf("workers_%d", workers), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				b.StopTimer()
				idx := mustIndex(b, workers)
				for nr, line := range doc {
					for _, w := range line {
						idx.Insert(w, nr+1)
					}
				}
				b.StartTimer()
				if err := idx.Sort(context.Background()); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
