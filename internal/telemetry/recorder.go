// Package telemetry counts what happened across runs, in memory.
package telemetry

import "sync"

type Snapshot struct {
	Dismantles    uint64            `json:"dismantles"`
	ByKind        map[string]uint64 `json:"dismantles_by_kind"`
	Confirmations uint64            `json:"confirmations"`
	Cancellations uint64            `json:"cancellations"`
	Rejected      uint64            `json:"rejected"`
	RejectedByOp  map[string]uint64 `json:"rejected_by_op"`
	SegmentsBuilt uint64            `json:"segments_built"`
	EventsFired   uint64            `json:"events_fired"`
	EventsByName  map[string]uint64 `json:"events_by_name"`
	RunsFinished  uint64            `json:"runs_finished"`
	EndingsByTier map[string]uint64 `json:"endings_by_tier"`
}

type Recorder struct {
	mu            sync.Mutex
	byKind        map[string]uint64
	confirmations uint64
	cancellations uint64
	rejectedByOp  map[string]uint64
	segments      uint64
	eventsByName  map[string]uint64
	endings       map[string]uint64
}

func NewRecorder() *Recorder {
	return &Recorder{
		byKind:       map[string]uint64{},
		rejectedByOp: map[string]uint64{},
		eventsByName: map[string]uint64{},
		endings:      map[string]uint64{},
	}
}

func (r *Recorder) RecordDismantle(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKind[kind]++
}

func (r *Recorder) RecordConfirmation() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmations++
}

func (r *Recorder) RecordCancellation() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancellations++
}

func (r *Recorder) RecordRejected(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejectedByOp[op]++
}

func (r *Recorder) RecordSegments(n int) {
	if n <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segments += uint64(n)
}

func (r *Recorder) RecordEvent(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.eventsByName[name]++
}

func (r *Recorder) RecordEnding(tier string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endings[tier]++
}

func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := Snapshot{
		ByKind:        copyCounts(r.byKind),
		Confirmations: r.confirmations,
		Cancellations: r.cancellations,
		RejectedByOp:  copyCounts(r.rejectedByOp),
		SegmentsBuilt: r.segments,
		EventsByName:  copyCounts(r.eventsByName),
		EndingsByTier: copyCounts(r.endings),
	}
	out.Dismantles = sum(out.ByKind)
	out.Rejected = sum(out.RejectedByOp)
	out.EventsFired = sum(out.EventsByName)
	out.RunsFinished = sum(out.EndingsByTier)
	return out
}

func copyCounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sum(m map[string]uint64) uint64 {
	var total uint64
	for _, v := range m {
		total += v
	}
	return total
}
