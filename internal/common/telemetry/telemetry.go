// File path: internal/common/telemetry/telemetry.go
package telemetry

import (
	"context"
	"expvar"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nicodishanthj/Katral_copybook/internal/common"
)

type spanKey struct{}

type span struct {
	name  string
	start time.Time
}

// MemoryLimitError is returned when heap usage passes COPYBOOK_MEMORY_LIMIT_MB.
type MemoryLimitError struct {
	Component string
	Usage     uint64
	Limit     uint64
}

func (e MemoryLimitError) Error() string {
	return fmt.Sprintf("memory limit exceeded for %s: %d > %d", e.Component, e.Usage, e.Limit)
}

var (
	initOnce sync.Once

	recordsDecoded   *expvar.Int
	recordsFailed    *expvar.Int
	decodeLatencyMS  *expvar.Int
	fieldErrorsTotal *expvar.Map

	layoutsCompiled  *expvar.Int
	layoutCacheHits  *expvar.Int
	layoutCacheMiss  *expvar.Int
	compileLatencyMS *expvar.Int

	runsTotal *expvar.Map

	memoryLimitBytes uint64
	memoryLimitVar   *expvar.Int
	memoryUsageVar   *expvar.Int
)

func ensureInit() {
	initOnce.Do(func() {
		recordsDecoded = expvar.NewInt("copybook_records_decoded_total")
		recordsFailed = expvar.NewInt("copybook_records_failed_total")
		decodeLatencyMS = expvar.NewInt("copybook_decode_latency_ms")
		fieldErrorsTotal = expvar.NewMap("copybook_field_errors_total")

		layoutsCompiled = expvar.NewInt("copybook_layouts_compiled_total")
		layoutCacheHits = expvar.NewInt("copybook_layout_cache_hits")
		layoutCacheMiss = expvar.NewInt("copybook_layout_cache_misses")
		compileLatencyMS = expvar.NewInt("copybook_compile_latency_ms")

		runsTotal = expvar.NewMap("copybook_runs_total")

		memoryLimitVar = expvar.NewInt("copybook_memory_limit_bytes")
		memoryUsageVar = expvar.NewInt("copybook_memory_usage_bytes")

		memoryLimitBytes = loadMemoryLimit()
		memoryLimitVar.Set(int64(memoryLimitBytes))
	})
}

func loadMemoryLimit() uint64 {
	if limitMB := strings.TrimSpace(os.Getenv("COPYBOOK_MEMORY_LIMIT_MB")); limitMB != "" {
		if value, err := strconv.ParseUint(limitMB, 10, 64); err == nil {
			return value * 1024 * 1024
		}
	}
	return 0
}

// StartSpan logs the start of a unit of work at debug level. The returned
// function logs its end with the elapsed time and any extra attributes.
func StartSpan(ctx context.Context, name string) (context.Context, func(attrs ...interface{})) {
	ensureInit()
	if ctx == nil {
		ctx = context.Background()
	}
	sp := &span{name: name, start: time.Now()}
	ctx = context.WithValue(ctx, spanKey{}, sp)
	logger := common.Logger()
	logger.Debug("trace: start", "span", name)
	return ctx, func(attrs ...interface{}) {
		logger.Debug("trace: end", append([]interface{}{"span", name, "dur", time.Since(sp.start)}, attrs...)...)
	}
}

// SpanDuration reports how long the span stored in ctx has been running.
func SpanDuration(ctx context.Context) time.Duration {
	sp, _ := ctx.Value(spanKey{}).(*span)
	if sp == nil {
		return 0
	}
	return time.Since(sp.start)
}

// RecordDecode counts one decoded record. codes lists the error codes of its
// failed fields; a record with any is counted as failed.
func RecordDecode(duration time.Duration, codes ...string) {
	ensureInit()
	recordsDecoded.Add(1)
	if len(codes) > 0 {
		recordsFailed.Add(1)
	}
	for _, code := range codes {
		key := strings.TrimSpace(code)
		if key == "" {
			key = "unknown"
		}
		fieldErrorsTotal.Add(key, 1)
	}
	if duration > 0 {
		decodeLatencyMS.Add(duration.Milliseconds())
	}
}

// RecordCompile counts one copybook compilation.
func RecordCompile(duration time.Duration) {
	ensureInit()
	layoutsCompiled.Add(1)
	if duration > 0 {
		compileLatencyMS.Add(duration.Milliseconds())
	}
}

// RecordLayoutLookup counts a registry lookup as a cache hit or miss.
func RecordLayoutLookup(hit bool) {
	ensureInit()
	if hit {
		layoutCacheHits.Add(1)
		return
	}
	layoutCacheMiss.Add(1)
}

// RecordRun counts a finished batch run by outcome.
func RecordRun(outcome string) {
	ensureInit()
	key := strings.ToLower(strings.TrimSpace(outcome))
	if key == "" {
		key = "unknown"
	}
	runsTotal.Add(key, 1)
}

// Snapshot returns the current counter values, keyed by expvar name.
func Snapshot() map[string]int64 {
	ensureInit()
	return map[string]int64{
		"copybook_records_decoded_total":  recordsDecoded.Value(),
		"copybook_records_failed_total":   recordsFailed.Value(),
		"copybook_layouts_compiled_total": layoutsCompiled.Value(),
		"copybook_layout_cache_hits":      layoutCacheHits.Value(),
		"copybook_layout_cache_misses":    layoutCacheMiss.Value(),
	}
}

// CheckMemoryBudget fails when heap usage exceeds the configured limit.
func CheckMemoryBudget(component string) error {
	ensureInit()
	usage := updateMemoryUsage()
	if memoryLimitBytes == 0 || usage <= memoryLimitBytes {
		return nil
	}
	common.Logger().Warn("telemetry: memory guard tripped", "component", component, "usage", usage, "limit", memoryLimitBytes)
	return MemoryLimitError{Component: component, Usage: usage, Limit: memoryLimitBytes}
}

func updateMemoryUsage() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	memoryUsageVar.Set(int64(stats.Alloc))
	return stats.Alloc
}
