package realtime

import (
	"errors"

	"fleet_monitor/internal/logger"
	"fleet_monitor/internal/metrics"
)

// maxLoggedFrame bounds how much of a rejected frame ends up in the log.
const maxLoggedFrame = 256

// Pipeline validates raw frames and publishes the resulting events.
// Rejected frames are logged and counted; they never reach the dispatcher.
type Pipeline struct {
	validator  *Validator
	dispatcher *Dispatcher
	log        *logger.Logger
	metrics    *metrics.Metrics
}

func NewPipeline(v *Validator, d *Dispatcher, log *logger.Logger, m *metrics.Metrics) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.Discard()
	}
	return &Pipeline{validator: v, dispatcher: d, log: log, metrics: m}
}

// HandleFrame is the FrameHandler wired into the Manager.
func (p *Pipeline) HandleFrame(raw []byte) {
	ev, err := p.validator.Validate(raw)
	if err != nil {
		reason := ReasonMalformed
		var rej *RejectionError
		if errors.As(err, &rej) {
			reason = rej.Reason
		}
		p.metrics.FramesRejected.WithLabelValues(string(reason)).Inc()
		p.log.Warnw("ws_frame_rejected", "reason", reason, "err", err, "frame", truncate(raw, maxLoggedFrame))
		return
	}
	// listener faults are already logged by the dispatcher
	_ = p.dispatcher.Publish(ev)
}

func truncate(raw []byte, n int) string {
	if len(raw) <= n {
		return string(raw)
	}
	return string(raw[:n]) + "..."
}
