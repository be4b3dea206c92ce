package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/paperlens/paperlens/internal/logger"
	"github.com/paperlens/paperlens/models"
)

func TestRateLimitedCallSuccess(t *testing.T) {
	calls := 0
	result, err := RateLimitedCall(context.Background(), 1, logger.NewNoOp(), func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil || result != "ok" {
		t.Fatalf("got (%q, %v)", result, err)
	}
	if calls != 1 {
		t.Errorf("calls = %d", calls)
	}
}

func TestRateLimitedCallNonRetryableError(t *testing.T) {
	calls := 0
	wantErr := errors.New("401 unauthorized")
	_, err := RateLimitedCall(context.Background(), 1, logger.NewNoOp(), func(context.Context) (string, error) {
		calls++
		return "", wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Errorf("non-retryable error retried: calls = %d", calls)
	}
}

func TestRateLimitedCallRetriesOn429(t *testing.T) {
	calls := 0
	result, err := RateLimitedCall(context.Background(), 1, logger.NewNoOp(), func(context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("429 Too Many Requests")
		}
		return "recovered", nil
	})
	if err != nil || result != "recovered" {
		t.Fatalf("got (%q, %v)", result, err)
	}
	if calls != 2 {
		t.Errorf("calls = %d", calls)
	}
}

func TestIsRateLimitError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("HTTP 429"), true},
		{errors.New("rate_limit_exceeded"), true},
		{errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		if got := isRateLimitError(tt.err); got != tt.want {
			t.Errorf("isRateLimitError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestParallelProcessPreservesOrder(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	results, err := ParallelProcess(context.Background(), items, 2, func(_ context.Context, _ int, n int) (string, error) {
		return fmt.Sprintf("n%d", n), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, n := range items {
		if results[i] != fmt.Sprintf("n%d", n) {
			t.Errorf("results[%d] = %q", i, results[i])
		}
	}
}

func TestParallelProcessPropagatesError(t *testing.T) {
	items := []int{1, 2, 3}
	wantErr := errors.New("item failed")
	_, err := ParallelProcess(context.Background(), items, 2, func(_ context.Context, _ int, n int) (int, error) {
		if n == 2 {
			return 0, wantErr
		}
		return n, nil
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v", err)
	}
}

func TestFigureInventory(t *testing.T) {
	registry := models.Registry{
		"fig2": {ID: "fig2", Type: models.TypeFigure, Caption: "Panels.",
			Subfigures: []models.Subfigure{{ID: "a", Caption: "Left."}}},
		"fig1":          {ID: "fig1", Type: models.TypeFigure, Caption: "Overview."},
		"tab1":          {ID: "tab1", Type: models.TypeTable, Caption: "Results."},
		"appendix_fig1": {ID: "appendix_fig1", Type: models.TypeFigure, Caption: "Extra."},
	}
	inv := FigureInventory(registry)
	lines := strings.Split(strings.TrimSpace(inv), "\n")
	want := []string{
		"- Figure 1: Overview.",
		"- Figure 2: Panels.",
		"  - 2.a: Left.",
		"- Figure 1: Extra.",
		"- Table 1: Results.",
	}
	if len(lines) != len(want) {
		t.Fatalf("inventory:\n%s", inv)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestFigureInventoryEmpty(t *testing.T) {
	if got := FigureInventory(models.Registry{}); got != "(none)\n" {
		t.Errorf("got %q", got)
	}
}

func TestKnownRefs(t *testing.T) {
	registry := models.Registry{
		"fig1": {ID: "fig1", Type: models.TypeFigure},
		"fig2": {ID: "fig2", Type: models.TypeFigure,
			Subfigures: []models.Subfigure{{ID: "a"}}},
	}
	refs := knownRefs([]string{"1", "2.a", "2.z", "9", "garbage"}, registry)
	if len(refs) != 2 || refs[0] != "1" || refs[1] != "2.a" {
		t.Errorf("refs = %v", refs)
	}
}
