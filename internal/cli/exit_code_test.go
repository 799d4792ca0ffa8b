package cli

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/benedict2310/slimlytics/internal/client"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: 0},
		{name: "plain", err: errors.New("boom"), want: 1},
		{name: "coded", err: exitCodeError(2, errors.New("boom")), want: 2},
		{name: "zero code falls through", err: exitCodeError(0, errors.New("boom")), want: 1},
		{name: "unauthorized", err: fmt.Errorf("list sites: %w", &client.APIError{StatusCode: http.StatusUnauthorized}), want: 3},
		{name: "not found", err: &client.APIError{StatusCode: http.StatusNotFound}, want: 4},
		{name: "server error", err: &client.APIError{StatusCode: http.StatusInternalServerError}, want: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExitCode(tc.err); got != tc.want {
				t.Fatalf("ExitCode(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}
