package vm

import (
	"github.com/voyagervm/voyagervm/core/types"
	"github.com/voyagervm/voyagervm/log"
)

// Tracer observes interpreter progress. Implementations must not mutate
// anything they are handed.
type Tracer interface {
	// CaptureState fires before every instruction, after its total cost
	// has been computed but before it is deducted.
	CaptureState(pc uint64, op OpCode, gas, cost uint64, depth int)
	// CaptureFrameStart fires when a frame begins executing.
	CaptureFrameStart(addr types.Address, gas uint64, depth int)
	// CaptureFrameEnd fires when a frame reaches a terminal status.
	CaptureFrameEnd(status Status, gasLeft uint64, depth int)
}

// LogTracer writes one structured log entry per step and per frame
// boundary. Debug level; enable a debug handler to see the stream.
type LogTracer struct {
	logger *log.Logger
}

// NewLogTracer builds a tracer over the given logger (the default logger
// when nil).
func NewLogTracer(l *log.Logger) *LogTracer {
	if l == nil {
		l = log.Default()
	}
	return &LogTracer{logger: l.Module("vm")}
}

func (t *LogTracer) CaptureState(pc uint64, op OpCode, gas, cost uint64, depth int) {
	t.logger.Debug("step", "pc", pc, "op", op.String(), "gas", gas, "cost", cost, "depth", depth)
}

func (t *LogTracer) CaptureFrameStart(addr types.Address, gas uint64, depth int) {
	t.logger.Debug("frame start", "address", addr.Hex(), "gas", gas, "depth", depth)
}

func (t *LogTracer) CaptureFrameEnd(status Status, gasLeft uint64, depth int) {
	t.logger.Debug("frame end", "status", status.String(), "gasLeft", gasLeft, "depth", depth)
}
