package metrics

import (
	"runtime"
	"time"
)

// CollectRuntime starts a goroutine that samples Go runtime stats into
// gauges every interval. The prefix names the service, e.g.
// "mezger_collector" yields mezger_collector_goroutines and friends.
// The goroutine runs for the life of the process.
func (r *Registry) CollectRuntime(prefix string, interval time.Duration) {
	r.sampleRuntime(prefix)
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for range t.C {
			r.sampleRuntime(prefix)
		}
	}()
}

func (r *Registry) sampleRuntime(prefix string) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	r.Gauge(prefix+"_goroutines", "Number of live goroutines").Set(int64(runtime.NumGoroutine()))
	r.Gauge(prefix+"_heap_alloc_bytes", "Bytes of allocated heap objects").Set(int64(m.HeapAlloc))
	r.Gauge(prefix+"_heap_objects", "Number of allocated heap objects").Set(int64(m.HeapObjects))
	r.Gauge(prefix+"_gc_runs_total", "Completed GC cycles").Set(int64(m.NumGC))
}
