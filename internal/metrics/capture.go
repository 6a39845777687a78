// Package metrics provides Prometheus metrics for capture and supervision.
package metrics

import (
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recorderLive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "liverec",
		Subsystem: "recorder",
		Name:      "live",
		Help:      "Whether the streamer is currently observed live (1) or not (0)",
	}, []string{"streamer"})

	recorderRetryCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "liverec",
		Subsystem: "recorder",
		Name:      "retry_count",
		Help:      "Consecutive non-live polls since the last successful capture",
	}, []string{"streamer"})

	recorderSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liverec",
		Subsystem: "recorder",
		Name:      "sessions_total",
		Help:      "Completed live sessions",
	}, []string{"streamer"})

	captureSizeKB = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "liverec",
		Subsystem: "capture",
		Name:      "size_kilobytes",
		Help:      "Current capture size reported by the capture engine",
	}, []string{"streamer"})

	captureBitrate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "liverec",
		Subsystem: "capture",
		Name:      "bitrate_kbits",
		Help:      "Current capture bitrate reported by the capture engine",
	}, []string{"streamer"})

	captureSegments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liverec",
		Subsystem: "capture",
		Name:      "segments_total",
		Help:      "Capture segments opened by the capture engine",
	}, []string{"streamer"})

	uploadJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liverec",
		Subsystem: "upload",
		Name:      "jobs_total",
		Help:      "Upload jobs handed to the upload service",
	}, []string{"streamer"})
)

// SetLive sets the observed liveness for a streamer.
func SetLive(streamer string, live bool) {
	v := 0.0
	if live {
		v = 1.0
	}
	recorderLive.WithLabelValues(streamer).Set(v)
}

// SetRetryCount sets the current retry count for a streamer.
func SetRetryCount(streamer string, count int) {
	recorderRetryCount.WithLabelValues(streamer).Set(float64(count))
}

// IncSessions counts a completed live session.
func IncSessions(streamer string) {
	recorderSessions.WithLabelValues(streamer).Inc()
}

// SetProgress records a progress report from the capture engine. The
// bitrate arrives as the engine's textual form ("1234.5kbits/s").
func SetProgress(streamer string, sizeKB int64, bitrate string) {
	captureSizeKB.WithLabelValues(streamer).Set(float64(sizeKB))
	if v, ok := parseBitrate(bitrate); ok {
		captureBitrate.WithLabelValues(streamer).Set(v)
	}
}

// IncSegments counts a segment opened by the capture engine.
func IncSegments(streamer string) {
	captureSegments.WithLabelValues(streamer).Inc()
}

// IncUploadJobs counts a queued upload job.
func IncUploadJobs(streamer string) {
	uploadJobs.WithLabelValues(streamer).Inc()
}

// DeleteStreamer removes the gauge metrics for a streamer, e.g. after it is
// removed from configuration. Its counters are kept.
func DeleteStreamer(streamer string) {
	labels := []string{streamer}
	recorderLive.DeleteLabelValues(labels...)
	recorderRetryCount.DeleteLabelValues(labels...)
	captureSizeKB.DeleteLabelValues(labels...)
	captureBitrate.DeleteLabelValues(labels...)
}

// parseBitrate extracts the numeric prefix of an engine bitrate string.
func parseBitrate(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.') {
		end++
	}
	if end == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
