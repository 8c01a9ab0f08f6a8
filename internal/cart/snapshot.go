package cart

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is a frozen copy of the cart taken when checkout starts.
// Later edits to the live cart never reach it.
type Snapshot struct {
	lines      []Line
	capturedAt time.Time
}

// NewSnapshot copies lines.
func NewSnapshot(lines []Line, capturedAt time.Time) Snapshot {
	return Snapshot{lines: copyLines(lines), capturedAt: capturedAt}
}

// Lines returns a copy of the snapshot's lines.
func (s Snapshot) Lines() []Line { return copyLines(s.lines) }

func (s Snapshot) Len() int { return len(s.lines) }

func (s Snapshot) IsEmpty() bool { return len(s.lines) == 0 }

func (s Snapshot) CapturedAt() time.Time { return s.capturedAt }

// Total is recomputed from the lines on every call.
func (s Snapshot) Total() decimal.Decimal { return ComputeTotal(s.lines) }

// Finalized returns a snapshot whose units have passed through ClampUnits.
func (s Snapshot) Finalized() Snapshot {
	lines := copyLines(s.lines)
	for i := range lines {
		lines[i].Units = ClampUnits(lines[i], lines[i].Units)
	}
	return Snapshot{lines: lines, capturedAt: s.capturedAt}
}

type snapshotJSON struct {
	Lines      []Line    `json:"lines"`
	CapturedAt time.Time `json:"capturedAt"`
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotJSON{Lines: s.lines, CapturedAt: s.capturedAt})
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw snapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.lines = raw.Lines
	s.capturedAt = raw.CapturedAt
	return nil
}

func copyLines(lines []Line) []Line {
	if lines == nil {
		return nil
	}
	out := make([]Line, len(lines))
	copy(out, lines)
	return out
}
