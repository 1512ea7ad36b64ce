package main

import "testing"

func TestWindowLimitOffset(t *testing.T) {
	limit, offset := windowLimitOffset(3, 5)
	if limit != 5 || offset != 10 {
		t.Fatalf("unexpected limit/offset: %d %d", limit, offset)
	}
	limit, offset = windowLimitOffset(-1, 0)
	if limit != 1 || offset != 0 {
		t.Fatalf("expected defaults, got %d %d", limit, offset)
	}
}

func TestNormalizePositiveInt(t *testing.T) {
	if got := normalizePositiveInt(7, 1); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
	if got := normalizePositiveInt(0, 2); got != 2 {
		t.Fatalf("expected fallback 2, got %d", got)
	}
}

func TestNewPGStoreBatchSize(t *testing.T) {
	if s := newPGStore(nil, 0); s.batchSize != defaultFetchBatchSize {
		t.Fatalf("expected default batch size, got %d", s.batchSize)
	}
	if s := newPGStore(nil, 50); s.batchSize != 50 {
		t.Fatalf("expected 50, got %d", s.batchSize)
	}
}
