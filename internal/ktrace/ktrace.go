// Package ktrace provides gated structured logging for the record and
// handshake layers, modeled on the teacher's kernel.ktracePrefix/
// ktraceHex/ktraceCall pattern: trace output costs nothing when disabled
// and dumps a hex view of wire bytes only when hex tracing is turned on
// separately from the main trace flag.
package ktrace

import (
	"encoding/hex"

	"go.uber.org/zap"
)

// Tracer gates zap logging behind two independent flags, matching the
// kernel's params.Trace / params.TraceHex split: Trace covers control-flow
// events (records sent/received, handshake messages, state transitions);
// TraceHex additionally dumps the raw bytes of those events.
type Tracer struct {
	log      *zap.Logger
	trace    bool
	traceHex bool
}

// New builds a Tracer. A nil logger is replaced with zap.NewNop() so a
// disabled Tracer never allocates or formats anything.
func New(log *zap.Logger, trace, traceHex bool) *Tracer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracer{log: log, trace: trace, traceHex: traceHex}
}

// Event logs a control-flow event at debug level if trace is enabled.
func (t *Tracer) Event(msg string, fields ...zap.Field) {
	if !t.trace {
		return
	}
	t.log.Debug(msg, fields...)
}

// Hex logs msg with a hex dump of data if hex tracing is enabled. The dump
// itself is only built when TraceHex is on, so the encoding/hex call never
// runs on a hot path with tracing off.
func (t *Tracer) Hex(msg string, data []byte) {
	if !t.traceHex {
		return
	}
	t.log.Debug(msg, zap.String("hex", hex.Dump(data)))
}

// Enabled reports whether Event will actually log anything, letting a
// caller skip building expensive zap.Field values when tracing is off.
func (t *Tracer) Enabled() bool { return t.trace }
