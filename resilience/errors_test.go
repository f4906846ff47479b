package resilience

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	for _, err := range []error{ErrCircuitOpen, ErrBulkheadFull, ErrTimeout} {
		if err == nil || err.Error() == "" {
			t.Errorf("sentinel %v is empty", err)
		}
	}
}

func TestIsRejection(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrCircuitOpen, true},
		{fmt.Errorf("ocsp: %w", ErrBulkheadFull), true},
		{ErrTimeout, false},
		{errors.New("other"), false},
		{nil, false},
	}

	for _, tt := range tests {
		if got := IsRejection(tt.err); got != tt.want {
			t.Errorf("IsRejection(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
