package observability

import "testing"

func TestLatencyWindowSnapshot(t *testing.T) {
	w := newLatencyWindow(8)
	w.Observe(StageUpstream, 500)
	w.Observe(StageUpstream, 700)
	w.Observe(StageUpstream, 900)
	w.ObserveIndicator("ok")
	w.ObserveIndicator("ok")
	w.ObserveIndicator("rate_limited")

	snap := w.Snapshot()
	if snap.WindowSize != 8 {
		t.Fatalf("WindowSize = %d, want 8", snap.WindowSize)
	}
	if len(snap.Stages) != 1 {
		t.Fatalf("len(Stages) = %d, want 1", len(snap.Stages))
	}
	s := snap.Stages[0]
	if s.Stage != StageUpstream {
		t.Fatalf("Stage = %q, want %q", s.Stage, StageUpstream)
	}
	if s.Samples != 3 {
		t.Fatalf("Samples = %d, want 3", s.Samples)
	}
	if s.LastMS != 900 {
		t.Fatalf("LastMS = %.2f, want 900", s.LastMS)
	}
	if s.P50MS != 700 {
		t.Fatalf("P50MS = %.2f, want 700", s.P50MS)
	}
	if s.P95MS <= 700 || s.P95MS > 900 {
		t.Fatalf("P95MS = %.2f, want (700,900]", s.P95MS)
	}
	if len(snap.Outcomes) != 2 {
		t.Fatalf("len(Outcomes) = %d, want 2", len(snap.Outcomes))
	}
	if snap.Outcomes[0].Outcome != "ok" || snap.Outcomes[0].Count != 2 {
		t.Fatalf("Outcomes[0] = %+v, want ok x2", snap.Outcomes[0])
	}
}

func TestLatencyWindowWrapsAround(t *testing.T) {
	w := newLatencyWindow(2)
	w.Observe(StageRequestTotal, 10)
	w.Observe(StageRequestTotal, 20)
	w.Observe(StageRequestTotal, 30)

	snap := w.Snapshot()
	s := snap.Stages[0]
	if s.Samples != 2 {
		t.Fatalf("Samples = %d, want 2", s.Samples)
	}
	if s.AvgMS != 25 {
		t.Fatalf("AvgMS = %.2f, want 25 (oldest sample overwritten)", s.AvgMS)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("ok")
	m.ObserveUpstream(0, "timeout")
	m.SetTableSizes(1, 1)
	m.ObserveEvictions("sessions", 3)
	if snap := m.SnapshotLatency(); len(snap.Stages) != 0 {
		t.Fatalf("nil metrics snapshot has stages: %+v", snap.Stages)
	}
}
