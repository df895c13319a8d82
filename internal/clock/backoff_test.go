package clock

import (
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	tests := []struct {
		name    string
		attempt int
		initial time.Duration
		max     time.Duration
		want    time.Duration
	}{
		{name: "first attempt", attempt: 0, initial: 100 * time.Millisecond, max: time.Second, want: 100 * time.Millisecond},
		{name: "doubles", attempt: 2, initial: 100 * time.Millisecond, max: time.Second, want: 400 * time.Millisecond},
		{name: "capped", attempt: 4, initial: 100 * time.Millisecond, max: time.Second, want: time.Second},
		{name: "large attempt does not overflow", attempt: 200, initial: time.Second, max: 30 * time.Second, want: 30 * time.Second},
		{name: "disabled", attempt: 3, initial: 0, max: time.Second, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Backoff(tt.attempt, tt.initial, tt.max); got != tt.want {
				t.Fatalf("Backoff() = %v, want %v", got, tt.want)
			}
		})
	}
}
