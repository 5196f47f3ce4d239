package pipeline

import (
	"tickd/internal/gsi"
	"tickd/internal/rules"
)

// endVerdict is the outcome of evaluating the match-end heuristics for one
// tick.
type endVerdict struct {
	ended        bool
	gameOver     bool   // the explicit terminal phase flag fired
	inferredMode string // format inferred from the scoreline
	winThreshold int    // expected winning score for the inferred format
}

// detectMatchEnd evaluates the tick against the threshold decision table.
// Any one heuristic being true concludes the match: the explicit gameover
// phase, a regulation tie, an overtime tie, or either side reaching a
// regulation or overtime win threshold.
func (p *Pipeline) detectMatchEnd(t *gsi.Tick) endVerdict {
	if t.Map == nil {
		return endVerdict{}
	}

	ct, ts := t.Map.CTScore, t.Map.TScore
	hi := ct
	if ts > hi {
		hi = ts
	}

	tbl := p.rules.Thresholds
	gameOver := t.Map.Phase == "gameover"

	if t.Map.Mode == rules.ModeCasual {
		v := endVerdict{gameOver: gameOver, inferredMode: rules.ModeCasual, winThreshold: tbl.Casual.Win}
		v.ended = gameOver || hi >= tbl.Casual.Win
		return v
	}

	v := endVerdict{gameOver: gameOver}
	switch {
	case ct == tbl.Overtime.Tie && ts == tbl.Overtime.Tie:
		v.ended = true
		v.inferredMode = rules.ModeLong
		v.winThreshold = tbl.Overtime.Win
	case hi >= tbl.Overtime.Win:
		v.ended = true
		v.inferredMode = rules.ModeLong
		v.winThreshold = tbl.Overtime.Win
	case ct == tbl.Regulation.Tie && ts == tbl.Regulation.Tie:
		v.ended = true
		v.inferredMode = rules.ModeCompetitive
		v.winThreshold = tbl.Regulation.Win
	case hi >= tbl.Regulation.Win:
		v.ended = true
		v.inferredMode = rules.ModeCompetitive
		v.winThreshold = tbl.Regulation.Win
	case gameOver:
		v.ended = true
		v.inferredMode = rules.ModeCompetitive
		v.winThreshold = tbl.Regulation.Win
	}
	return v
}
