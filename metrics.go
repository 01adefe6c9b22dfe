package vdisk

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector receives operational metrics from a Volume.
// Implement it to bridge into a monitoring system such as Prometheus.
type MetricsCollector interface {
	// RecordOp is called after every public volume operation. op is the
	// operation name ("write", "mkdir", ...), err is nil on success.
	RecordOp(op string, duration time.Duration, err error)

	// RecordIO is called after every cluster transfer.
	RecordIO(read bool, bytes int)
}

// NoopMetricsCollector discards all metrics.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordOp(string, time.Duration, error) {}
func (NoopMetricsCollector) RecordIO(bool, int)                    {}

// BasicMetricsCollector keeps in-memory counters. Useful for tests and for
// the shell's df output.
type BasicMetricsCollector struct {
	ReadClusters  atomic.Int64
	ReadBytes     atomic.Int64
	WriteClusters atomic.Int64
	WriteBytes    atomic.Int64

	mu  sync.Mutex
	ops map[string]*opCounters
}

type opCounters struct {
	count  int64
	errors int64
	nanos  int64
}

// RecordOp implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOp(op string, duration time.Duration, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ops == nil {
		b.ops = make(map[string]*opCounters)
	}
	c, ok := b.ops[op]
	if !ok {
		c = &opCounters{}
		b.ops[op] = c
	}
	c.count++
	c.nanos += duration.Nanoseconds()
	if err != nil {
		c.errors++
	}
}

// RecordIO implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIO(read bool, bytes int) {
	if read {
		b.ReadClusters.Add(1)
		b.ReadBytes.Add(int64(bytes))
		return
	}
	b.WriteClusters.Add(1)
	b.WriteBytes.Add(int64(bytes))
}

// GetStats returns a snapshot of the current counters.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	s := BasicMetricsStats{
		ReadClusters:  b.ReadClusters.Load(),
		ReadBytes:     b.ReadBytes.Load(),
		WriteClusters: b.WriteClusters.Load(),
		WriteBytes:    b.WriteBytes.Load(),
		Ops:           make(map[string]OpStats),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for op, c := range b.ops {
		var avg int64
		if c.count > 0 {
			avg = c.nanos / c.count
		}
		s.Ops[op] = OpStats{Count: c.count, Errors: c.errors, AvgNanos: avg}
	}
	return s
}

// OpStats aggregates one operation kind.
type OpStats struct {
	Count    int64
	Errors   int64
	AvgNanos int64
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ReadClusters  int64
	ReadBytes     int64
	WriteClusters int64
	WriteBytes    int64
	Ops           map[string]OpStats
}
