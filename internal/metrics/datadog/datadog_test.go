package datadog

import (
	"reflect"
	"testing"

	"pgtable/internal/metrics"
)

// TestNewBackend requires an address and accepts a UDP agent address without
// a listening agent.
func TestNewBackend(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend(Config{}); err == nil {
		t.Fatalf("NewBackend(empty) error = nil, want error")
	}

	b, err := NewBackend(Config{Addr: "127.0.0.1:8125", Namespace: "pgtable.", GlobalTags: []string{"env:test"}})
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "create_table", "status": "success"})
	b.ObserveHistogram(metrics.StepDurationSeconds, 0.2, metrics.Labels{"step": "create_table"})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

// TestNilClient makes every method a no-op on a zero Backend.
func TestNilClient(t *testing.T) {
	t.Parallel()

	var b Backend
	b.IncCounter(metrics.RowsTotal, 3, nil)
	b.ObserveHistogram(metrics.StepDurationSeconds, 1, nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

// TestLabelsToTags renders sorted key:value tags.
func TestLabelsToTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   metrics.Labels
		want []string
	}{
		{name: "nil", in: nil, want: nil},
		{name: "empty", in: metrics.Labels{}, want: nil},
		{
			name: "sorted",
			in:   metrics.Labels{"step": "load_batch", "job": "buys", "status": "failure"},
			want: []string{"job:buys", "status:failure", "step:load_batch"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := labelsToTags(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("labelsToTags() = %v, want %v", got, tt.want)
			}
		})
	}
}
