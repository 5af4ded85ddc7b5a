package cmdqueue

import (
	"sync/atomic"
)

// Metrics contains atomic counters of an Engine.
// Each field can back a prometheus CounterFunc or GaugeFunc; see NewCollector.
type Metrics struct {
	// CommandSendCount indicates the number of command writes, resends included.
	CommandSendCount atomic.Uint64
	// CommandResendCount indicates the number of timeout-triggered resends.
	CommandResendCount atomic.Uint64
	// CommandTimeoutCount indicates the number of waits that ended without a response.
	CommandTimeoutCount atomic.Uint64
	// StatusRecvCount indicates the number of status responses matched to a command.
	StatusRecvCount atomic.Uint64
	// ErrorRecvCount indicates the number of error responses matched to a command.
	ErrorRecvCount atomic.Uint64
	// CommandAbortCount indicates the number of commands abandoned after the last resend.
	CommandAbortCount atomic.Uint64
	// WriteErrCount indicates the number of transport write failures.
	WriteErrCount atomic.Uint64
	// MarkerRunCount indicates the number of callback markers executed.
	MarkerRunCount atomic.Uint64
	// CulledItemCount indicates the number of queue items discarded after an error.
	CulledItemCount atomic.Uint64
}

func (m *Metrics) incCommandSendCount()     { m.CommandSendCount.Add(1) }
func (m *Metrics) incCommandResendCount()   { m.CommandResendCount.Add(1) }
func (m *Metrics) incCommandTimeoutCount()  { m.CommandTimeoutCount.Add(1) }
func (m *Metrics) incStatusRecvCount()      { m.StatusRecvCount.Add(1) }
func (m *Metrics) incErrorRecvCount()       { m.ErrorRecvCount.Add(1) }
func (m *Metrics) incCommandAbortCount()    { m.CommandAbortCount.Add(1) }
func (m *Metrics) incWriteErrCount()        { m.WriteErrCount.Add(1) }
func (m *Metrics) incMarkerRunCount()       { m.MarkerRunCount.Add(1) }
func (m *Metrics) addCulledItemCount(n int) { m.CulledItemCount.Add(uint64(n)) } //nolint:gosec
