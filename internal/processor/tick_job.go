package processor

import (
	"context"
	"encoding/json"

	"tickd/internal/gsi"
	"tickd/internal/logging"
	"tickd/internal/pipeline"
)

// TickJob is the incoming job from the Redis queue. The subject identity
// comes from the job envelope, set by the receiving transport; it is never
// taken from the snapshot body.
type TickJob struct {
	SteamID  string          `json:"steam_id"`
	Snapshot json.RawMessage `json:"snapshot"`
}

// TickProcessor applies queued snapshots to the telemetry pipeline.
type TickProcessor struct {
	ctx  context.Context
	pipe *pipeline.Pipeline
}

// NewTickProcessor creates a processor bound to the worker's lifetime context.
func NewTickProcessor(ctx context.Context, pipe *pipeline.Pipeline) *TickProcessor {
	return &TickProcessor{ctx: ctx, pipe: pipe}
}

// Handle processes a single tick job. Malformed jobs are dropped with a
// warning rather than retried; only store failures are returned, because
// only those are fixed by redelivery.
func (p *TickProcessor) Handle(payload []byte) error {
	logger := logging.Logger()

	var job TickJob
	if err := json.Unmarshal(payload, &job); err != nil {
		logger.Warnf("dropping malformed tick job: %v", err)
		return nil
	}
	if job.SteamID == "" {
		logger.Warnf("dropping tick job without steam_id")
		return nil
	}

	var snap gsi.Snapshot
	if len(job.Snapshot) > 0 {
		if err := json.Unmarshal(job.Snapshot, &snap); err != nil {
			logger.Warnf("dropping undecodable snapshot for %s: %v", job.SteamID, err)
			return nil
		}
	}

	return p.pipe.ApplyTick(p.ctx, job.SteamID, &snap)
}
