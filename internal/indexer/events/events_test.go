package events

import (
	"errors"
	"strings"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/indexgen/pkg/errors"
)

func TestIndexJobValidate(t *testing.T) {
	tests := []struct {
		name   string
		job    IndexJob
		fields []string
	}{
		{"valid", IndexJob{JobID: "j1", InputPath: "in.txt", OutputPath: "out.txt", Workers: 4}, nil},
		{"default workers", IndexJob{JobID: "j1", InputPath: "in.txt", OutputPath: "out.txt"}, nil},
		{"missing everything", IndexJob{}, []string{"job_id", "input_path", "output_path"}},
		{"same paths", IndexJob{JobID: "j", InputPath: "a", OutputPath: "a"}, []string{"output_path"}},
		{"too many workers", IndexJob{JobID: "j", InputPath: "a", OutputPath: "b", Workers: 27}, []string{"workers"}},
		{"negative workers", IndexJob{JobID: "j", InputPath: "a", OutputPath: "b", Workers: -1}, []string{"workers"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if tt.fields == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !errors.Is(err, apperrors.ErrInvalidInput) {
				t.Error("validation errors should match ErrInvalidInput")
			}
			if len(verr.Fields) != len(tt.fields) {
				t.Errorf("fields = %v, want %v", verr.Fields, tt.fields)
			}
			for _, f := range tt.fields {
				if _, ok := verr.Fields[f]; !ok {
					t.Errorf("missing field %q in %v", f, verr.Fields)
				}
				if !strings.Contains(err.Error(), f) {
					t.Errorf("message %q does not mention %q", err.Error(), f)
				}
			}
		})
	}
}
