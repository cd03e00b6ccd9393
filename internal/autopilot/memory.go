package autopilot

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const maxRecords = 500

// CycleRecord captures what happened in a single autopilot cycle.
type CycleRecord struct {
	Tick       uint64  `json:"tick"`
	Action     string  `json:"action"`
	ElementID  int     `json:"element_id,omitempty"`
	Standing   int     `json:"standing"`
	FloodTimer float64 `json:"flood_timer"`
	Urgency    string  `json:"urgency"`
	Rationale  string  `json:"rationale,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// CycleMemory keeps the recent cycle records of one autopilot session.
type CycleMemory struct {
	Records []CycleRecord `json:"records"`
}

// LoadMemory reads a memory file. Returns empty memory if not found.
func LoadMemory(path string) *CycleMemory {
	data, err := os.ReadFile(path)
	if err != nil {
		return &CycleMemory{}
	}
	var mem CycleMemory
	if err := json.Unmarshal(data, &mem); err != nil {
		slog.Warn("autopilot memory corrupted, starting fresh", "path", path, "error", err)
		return &CycleMemory{}
	}
	return &mem
}

// Save writes the memory to disk.
func (m *CycleMemory) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal autopilot memory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write autopilot memory: %w", err)
	}
	return nil
}

// Record adds a cycle record, trimming to maxRecords. Repeated waits are
// folded into one record.
func (m *CycleMemory) Record(r CycleRecord) {
	if n := len(m.Records); n > 0 && r.Action == ActionWait && m.Records[n-1].Action == ActionWait {
		m.Records[n-1] = r
		return
	}
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// Counts tallies records by action.
func (m *CycleMemory) Counts() map[string]int {
	out := make(map[string]int)
	for _, r := range m.Records {
		out[r.Action]++
	}
	return out
}

// Format returns the last n records as text lines.
func (m *CycleMemory) Format(n int) string {
	if len(m.Records) == 0 {
		return ""
	}

	var b strings.Builder
	start := 0
	if n > 0 && len(m.Records) > n {
		start = len(m.Records) - n
	}
	for _, r := range m.Records[start:] {
		fmt.Fprintf(&b, "tick %d: %s", r.Tick, r.Action)
		if r.Action == ActionDismantle || r.Action == ActionConfirm || r.Action == ActionCancel {
			fmt.Fprintf(&b, " #%d", r.ElementID)
		}
		fmt.Fprintf(&b, " (standing %d, %.0fs left, %s)", r.Standing, r.FloodTimer, r.Urgency)
		if r.Error != "" {
			fmt.Fprintf(&b, " error=%s", r.Error)
		}
		b.WriteString("\n")
	}
	return b.String()
}
