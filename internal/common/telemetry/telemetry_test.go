// File path: internal/common/telemetry/telemetry_test.go
package telemetry

import (
	"context"
	"testing"
	"time"
)

func TestCountersAdvance(t *testing.T) {
	before := Snapshot()
	RecordDecode(time.Millisecond)
	RecordDecode(0, "InvalidDigit")
	RecordCompile(2 * time.Millisecond)
	RecordLayoutLookup(true)
	RecordLayoutLookup(false)
	after := Snapshot()

	if got := after["copybook_records_decoded_total"] - before["copybook_records_decoded_total"]; got != 2 {
		t.Fatalf("expected 2 decoded records, got %d", got)
	}
	if got := after["copybook_records_failed_total"] - before["copybook_records_failed_total"]; got != 1 {
		t.Fatalf("expected 1 failed record, got %d", got)
	}
	if got := after["copybook_layouts_compiled_total"] - before["copybook_layouts_compiled_total"]; got != 1 {
		t.Fatalf("expected 1 compile, got %d", got)
	}
	if got := after["copybook_layout_cache_hits"] - before["copybook_layout_cache_hits"]; got != 1 {
		t.Fatalf("expected 1 cache hit, got %d", got)
	}
}

func TestStartSpanTracksDuration(t *testing.T) {
	ctx, end := StartSpan(context.Background(), "decode")
	time.Sleep(2 * time.Millisecond)
	if SpanDuration(ctx) <= 0 {
		t.Fatalf("expected positive span duration")
	}
	end("records", 1)
	if SpanDuration(context.Background()) != 0 {
		t.Fatalf("expected zero duration without a span")
	}
}

func TestCheckMemoryBudgetWithoutLimit(t *testing.T) {
	if err := CheckMemoryBudget("test"); err != nil && memoryLimitBytes == 0 {
		t.Fatalf("unexpected memory error without a limit: %v", err)
	}
}
