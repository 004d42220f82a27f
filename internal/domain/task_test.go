package domain

import "testing"

func TestProgressPercent(t *testing.T) {
	cases := []struct {
		name  string
		done  int
		total int
		want  int
	}{
		{name: "empty task", done: 0, total: 0, want: 0},
		{name: "not started", done: 0, total: 3, want: 0},
		{name: "one third rounds down", done: 1, total: 3, want: 33},
		{name: "two thirds rounds up", done: 2, total: 3, want: 67},
		{name: "done", done: 3, total: 3, want: 100},
		{name: "overflow clamps", done: 5, total: 3, want: 100},
		{name: "negative clamps", done: -1, total: 3, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ProgressPercent(tc.done, tc.total); got != tc.want {
				t.Fatalf("ProgressPercent(%d, %d) = %d, want %d", tc.done, tc.total, got, tc.want)
			}
		})
	}
}

func TestTaskStatusTerminal(t *testing.T) {
	if TaskStatusProcessing.Terminal() {
		t.Fatalf("processing must not be terminal")
	}
	if !TaskStatusCompleted.Terminal() || !TaskStatusFailed.Terminal() {
		t.Fatalf("completed and failed must be terminal")
	}
}

func TestTaskResultNormalize(t *testing.T) {
	var r TaskResult
	r.Normalize()
	if r.Pages == nil || r.GeneratedPages == nil {
		t.Fatalf("expected non-nil slices after Normalize: %+v", r)
	}
}
