package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devlog_frames_total",
			Help: "Captured WebSocket frames handed to the debug log decoder",
		},
		[]string{"relevance"},
	)

	entriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "devlog_entries_emitted_total",
			Help: "Developer logs converted and written to the output",
		},
	)

	decodeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devlog_decode_errors_total",
			Help: "Records or messages the decoder could not process, by kind",
		},
		[]string{"kind"},
	)

	streamClients = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "devlog_stream_clients",
			Help: "Connected live stream clients by transport",
		},
		[]string{"transport"},
	)
)

// Register registers all collectors on r.
func Register(r prometheus.Registerer) {
	r.MustRegister(framesTotal, entriesTotal, decodeErrorsTotal, streamClients)
}

// ObserveFrame counts a frame as relevant or ignored.
func ObserveFrame(relevant bool) {
	if relevant {
		framesTotal.WithLabelValues("relevant").Inc()
		return
	}
	framesTotal.WithLabelValues("ignored").Inc()
}

func AddEntries(n int) { add(entriesTotal, n) }

func AddFragmentErrors(n int) { add(decodeErrorsTotal.WithLabelValues("fragment"), n) }

func AddShapeMismatches(n int) { add(decodeErrorsTotal.WithLabelValues("shape"), n) }

func AddConversionErrors(n int) { add(decodeErrorsTotal.WithLabelValues("conversion"), n) }

// StreamClientConnected adjusts the live client gauge for transport.
func StreamClientConnected(transport string) { streamClients.WithLabelValues(transport).Inc() }

func StreamClientDisconnected(transport string) { streamClients.WithLabelValues(transport).Dec() }

func add(c prometheus.Counter, n int) {
	if n > 0 {
		c.Add(float64(n))
	}
}
