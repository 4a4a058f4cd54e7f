package profiler

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartOperationAggregates(t *testing.T) {
	p := New()

	for i := 0; i < 3; i++ {
		stop := p.StartOperation("infer")
		time.Sleep(time.Millisecond)
		stop()
	}

	report := p.Snapshot()
	op, ok := report.Operations["infer"]
	require.True(t, ok)
	assert.Equal(t, int64(3), op.Count)
	assert.Greater(t, op.TotalMS, 0.0)
	assert.LessOrEqual(t, op.MinMS, op.MaxMS)
	assert.InDelta(t, op.TotalMS/3, op.AvgMS, 1e-9)
}

func TestRecordMetric(t *testing.T) {
	p := New()
	p.RecordMetric("emitters_per_frame", 4)
	p.RecordMetric("emitters_per_frame", 10)
	p.RecordMetric("emitters_per_frame", 1)

	m, ok := p.Snapshot().Metrics["emitters_per_frame"]
	require.True(t, ok)
	assert.Equal(t, int64(3), m.Count)
	assert.Equal(t, 1.0, m.Min)
	assert.Equal(t, 10.0, m.Max)
	assert.InDelta(t, 5.0, m.Avg, 1e-9)
}

func TestCounters(t *testing.T) {
	p := New()
	p.Add("frames", 8)
	p.Add("frames", 2)
	p.Add("detections", 41)

	report := p.Snapshot()
	assert.Equal(t, int64(10), report.Counters["frames"])
	assert.Equal(t, int64(41), report.Counters["detections"])
}

func TestNilProfilerIsNoOp(t *testing.T) {
	var p *Profiler

	stop := p.StartOperation("anything")
	stop()
	p.RecordMetric("metric", 1)
	p.Add("counter", 1)

	report := p.Snapshot()
	assert.Empty(t, report.Operations)
	assert.Empty(t, report.Counters)
}

func TestSnapshotSamplesProcess(t *testing.T) {
	report := New().Snapshot()

	assert.Greater(t, report.Process.Goroutines, 0)
	assert.Greater(t, report.Process.HeapAlloc, uint64(0))
	assert.GreaterOrEqual(t, report.UptimeMS, 0.0)
}

func TestConcurrentRecording(t *testing.T) {
	p := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				stop := p.StartOperation("op")
				stop()
				p.Add("events", 1)
			}
		}()
	}
	wg.Wait()

	report := p.Snapshot()
	assert.Equal(t, int64(1600), report.Operations["op"].Count)
	assert.Equal(t, int64(1600), report.Counters["events"])
}

func TestReportString(t *testing.T) {
	p := New()
	p.StartOperation("beta")()
	p.StartOperation("alpha")()
	p.Add("frames", 7)

	text := p.Snapshot().String()
	assert.Contains(t, text, "OPERATION TIMINGS:")
	assert.Contains(t, text, "frames: 7")
	assert.Less(t, strings.Index(text, "alpha"), strings.Index(text, "beta"),
		"operations must list in deterministic order")
}
