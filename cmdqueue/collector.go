package cmdqueue

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricNamespace = "tekdaqc"

// Collector exposes the Metrics and queue depth of one Engine to prometheus.
type Collector struct {
	engine *Engine
	descs  map[string]*prometheus.Desc
	depth  *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector for engine. constLabels usually carries the board serial.
func NewCollector(engine *Engine, constLabels prometheus.Labels) *Collector {
	newDesc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metricNamespace, "command", name), help, nil, constLabels)
	}

	return &Collector{
		engine: engine,
		descs: map[string]*prometheus.Desc{
			"sent_total":    newDesc("sent_total", "Commands written to the board, resends included."),
			"resent_total":  newDesc("resent_total", "Commands resent after a response timeout."),
			"timeout_total": newDesc("timeout_total", "Command waits that ended without a response."),
			"status_total":  newDesc("status_total", "Status responses matched to a command."),
			"error_total":   newDesc("error_total", "Error responses matched to a command."),
			"abort_total":   newDesc("abort_total", "Commands abandoned after exhausting resends."),
			"write_errors":  newDesc("write_errors_total", "Transport write failures."),
			"markers_total": newDesc("markers_total", "Callback markers executed."),
			"culled_total":  newDesc("culled_total", "Queue items discarded after an error response."),
		},
		depth: newDesc("queue_depth", "Items waiting in the command queue."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d
	}
	ch <- c.depth
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.engine.Metrics()

	counters := map[string]uint64{
		"sent_total":    m.CommandSendCount.Load(),
		"resent_total":  m.CommandResendCount.Load(),
		"timeout_total": m.CommandTimeoutCount.Load(),
		"status_total":  m.StatusRecvCount.Load(),
		"error_total":   m.ErrorRecvCount.Load(),
		"abort_total":   m.CommandAbortCount.Load(),
		"write_errors":  m.WriteErrCount.Load(),
		"markers_total": m.MarkerRunCount.Load(),
		"culled_total":  m.CulledItemCount.Load(),
	}
	for key, v := range counters {
		ch <- prometheus.MustNewConstMetric(c.descs[key], prometheus.CounterValue, float64(v))
	}

	ch <- prometheus.MustNewConstMetric(c.depth, prometheus.GaugeValue, float64(c.engine.QueuedCount()))
}
