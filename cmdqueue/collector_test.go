package cmdqueue

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-tekdaqc/command"
)

func TestCollector_Gather(t *testing.T) {
	require := require.New(t)

	e, _ := newTestEngine(t, &fakeBoard{}, newFakeConn(false))
	e.EnqueueCommand(command.Identify())
	e.EnqueueCommand(command.Halt())
	e.metrics.incCommandSendCount()
	e.metrics.incCommandSendCount()
	e.metrics.incCommandResendCount()

	reg := prometheus.NewRegistry()
	require.NoError(reg.Register(NewCollector(e, prometheus.Labels{"board": testBoard})))

	families, err := reg.Gather()
	require.NoError(err)
	require.Len(families, 10)

	values := make(map[string]float64, len(families))
	for _, mf := range families {
		require.Len(mf.GetMetric(), 1)
		m := mf.GetMetric()[0]
		require.Equal("board", m.GetLabel()[0].GetName())
		require.Equal(testBoard, m.GetLabel()[0].GetValue())

		if m.GetCounter() != nil {
			values[mf.GetName()] = m.GetCounter().GetValue()
		} else {
			values[mf.GetName()] = m.GetGauge().GetValue()
		}
	}

	require.InDelta(2.0, values["tekdaqc_command_sent_total"], 0)
	require.InDelta(1.0, values["tekdaqc_command_resent_total"], 0)
	require.InDelta(0.0, values["tekdaqc_command_abort_total"], 0)
	require.InDelta(4.0, values["tekdaqc_command_queue_depth"], 0)
}
