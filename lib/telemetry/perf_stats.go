package telemetry

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"go.opentelemetry.io/otel"
)

const perfStatsInterval = time.Second * 30

var perfMeter = otel.Meter("lapelle.perf")

// InstrumentPerfStats samples process health until ctx is cancelled. A
// scraping daemon that drives a headless browser leaks memory in
// characteristic ways, so allocation and goroutine counts matter more
// than raw throughput here.
func InstrumentPerfStats(ctx context.Context) {
	cpuGauge, _ := perfMeter.Float64Gauge("cpu_usage")
	heapGauge, _ := perfMeter.Int64Gauge("heap_alloc_mb")
	objectsGauge, _ := perfMeter.Int64Gauge("live_objects")
	goroutineGauge, _ := perfMeter.Int64Gauge("goroutine_count")

	go func() {
		ticker := time.NewTicker(perfStatsInterval)
		defer ticker.Stop()

		var memStats runtime.MemStats
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			runtime.ReadMemStats(&memStats)
			heapGauge.Record(ctx, int64(memStats.HeapAlloc/1_000_000))
			objectsGauge.Record(ctx, int64(memStats.Mallocs)-int64(memStats.Frees))
			goroutineGauge.Record(ctx, int64(runtime.NumGoroutine()))

			usage, err := cpu.Percent(time.Minute, false)
			if err != nil {
				slog.WarnContext(ctx, "failed to read cpu usage", "err", err)
				continue
			}
			cpuGauge.Record(ctx, usage[0])
		}
	}()
}
