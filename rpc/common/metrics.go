package common

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// --------------------------------------------------------------------------
// Codec metrics (exposed in prometheus text format by the server)
// --------------------------------------------------------------------------

// Direction of an encoded message
const (
	DirectionEncode = "encode"
	DirectionDecode = "decode"
)

// ObserveMessage records one message of size bytes for method
func ObserveMessage(direction string, method TransportMethod, size int) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`dps_codec_messages_total{direction=%q,method=%q}`, direction, method)).Inc()
	metrics.GetOrCreateCounter(fmt.Sprintf(`dps_codec_bytes_total{direction=%q,method=%q}`, direction, method)).Add(size)
	metrics.GetOrCreateHistogram(fmt.Sprintf(`dps_codec_message_size_bytes{direction=%q}`, direction)).Update(float64(size))
}

// ObserveCodecError records a failed encode or decode
func ObserveCodecError(direction string, method TransportMethod) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`dps_codec_errors_total{direction=%q,method=%q}`, direction, method)).Inc()
}

// ObserveRequest records a handled request on a shard
func ObserveRequest(method TransportMethod, failed bool) {
	status := "ok"
	if failed {
		status = "error"
	}
	metrics.GetOrCreateCounter(fmt.Sprintf(`dps_server_requests_total{method=%q,status=%q}`, method, status)).Inc()
}

// WriteMetrics writes all metrics in prometheus text format
func WriteMetrics(w io.Writer) {
	metrics.WritePrometheus(w, true)
}
