// Package bridge turns salvaged materials into bridge segments.
package bridge

import (
	"time"

	"github.com/talgya/bridge-keeper/internal/economy"
)

// Recipe is the fixed cost of one segment.
var Recipe = economy.Materials{economy.Wood: 3, economy.Stone: 2, economy.Metal: 1}

// SettleWindow is how long a new segment stays in its construction animation.
const SettleWindow = 500 * time.Millisecond

// SegmentType classifies a segment by position.
type SegmentType string

const (
	Foundation SegmentType = "foundation"
	Support    SegmentType = "support"
	Platform   SegmentType = "platform"
)

// TypeFor returns the segment type for index in a bridge of total segments.
// The first two and last two are foundations, every fourth of the rest is a
// support.
func TypeFor(index, total int) SegmentType {
	switch {
	case index < 2 || index >= total-2:
		return Foundation
	case index%4 == 0:
		return Support
	default:
		return Platform
	}
}

// Segment is one built piece of the bridge.
type Segment struct {
	Index     int         `json:"index"`
	Y         int         `json:"y"`
	Type      SegmentType `json:"type"`
	BuiltAt   time.Time   `json:"built_at"`
	Completed bool        `json:"completed"`
}

// Builder owns the segment list. Segments are append-only.
type Builder struct {
	TotalSegments int `json:"total_segments"`
	Required      int `json:"required"`
	ScreenHeight  int `json:"screen_height"`

	Segments []Segment `json:"segments"`
}

// NewBuilder creates an empty bridge.
func NewBuilder(totalSegments, required, screenHeight int) *Builder {
	return &Builder{TotalSegments: totalSegments, Required: required, ScreenHeight: screenHeight}
}

// SegmentY is the vertical position of the segment at index. It depends only
// on index and the segment count.
func (b *Builder) SegmentY(index int) int {
	return b.ScreenHeight - (index+1)*(b.ScreenHeight/b.TotalSegments)
}

// AutoBuild builds as many segments as the ledger can pay for, up to the cap.
// Each segment's debit and append happen together. Returns the new segments.
func (b *Builder) AutoBuild(ledger *economy.Ledger, now time.Time) []Segment {
	var built []Segment
	for len(b.Segments) < b.TotalSegments && ledger.Debit(Recipe) {
		i := len(b.Segments)
		seg := Segment{
			Index:   i,
			Y:       b.SegmentY(i),
			Type:    TypeFor(i, b.TotalSegments),
			BuiltAt: now,
		}
		b.Segments = append(b.Segments, seg)
		built = append(built, seg)
	}
	return built
}

// Settle marks segments completed once SettleWindow has elapsed since they were built.
func (b *Builder) Settle(now time.Time) {
	for i := range b.Segments {
		s := &b.Segments[i]
		if !s.Completed && now.Sub(s.BuiltAt) >= SettleWindow {
			s.Completed = true
		}
	}
}

// Progress is len(segments)/total scaled to Required.
func (b *Builder) Progress() float64 {
	if b.TotalSegments == 0 {
		return 0
	}
	return float64(len(b.Segments)) / float64(b.TotalSegments) * float64(b.Required)
}

// Complete reports whether progress has reached Required.
func (b *Builder) Complete() bool {
	return b.Progress() >= float64(b.Required)
}

// Built returns the number of segments built.
func (b *Builder) Built() int { return len(b.Segments) }

// Remaining returns how many segments are still missing.
func (b *Builder) Remaining() int { return b.TotalSegments - len(b.Segments) }
