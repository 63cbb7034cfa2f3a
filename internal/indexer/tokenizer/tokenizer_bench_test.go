package tokenizer

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

var sampleLines = map[string]string{
	"short":  "The quick brown fox jumps over the lazy dog",
	"medium": strings.Repeat("Each partition maintains its own word list and is sorted independently. ", 8),
	"long":   strings.Repeat("Information retrieval systems map every term to the lines containing it. ", 200),
}

func BenchmarkTokenize(b *testing.B) {
	for name, line := range sampleLines {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(line)))
			for i := 0; i < b.N; i++ {
				_ = Tokenize(line, Options{})
			}
		})
	}
}

func BenchmarkTokenizeStripPunctuation(b *testing.B) {
	line := sampleLines["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(line)))
	for i := 0; i < b.N; i++ {
		_ = Tokenize(line, Options{StripPunctuation: true})
	}
}

func BenchmarkReadLines(b *testing.B) {
	for _, lines := range []int{100, 1000, 10000} {
		doc := strings.Repeat(sampleLines["short"]+"\n", lines)
		b.Run(fmt.Sprintf("lines_%d", lines), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(doc)))
			for i := 0; i < b.N; i++ {
				_, err := ReadLines(context.Background(), strings.NewReader(doc), Options{}, func(int, []string) error { return nil })
				if err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
