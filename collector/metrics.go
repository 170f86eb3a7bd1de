package collector

import (
	"strconv"
	"strings"

	"allpairs/workload"
)

// Metrics are the averaged measurements scraped from one job log.
type Metrics struct {
	AvgLatency   float64
	AvgBandwidth float64
	Samples      int
}

// parseMetrics extracts every "latency: <float>" and "busbw: <float>"
// occurrence from the log text and averages each series independently. A
// job that logged several iterations contributes all of them. Missing or
// unparsable values simply do not contribute; both averages default to zero.
func parseMetrics(text string) Metrics {
	var latencies, bandwidths []float64

	fields := strings.Fields(text)
	for i := 0; i < len(fields)-1; i++ {
		switch fields[i] {
		case workload.LatencyLabel:
			if v, err := strconv.ParseFloat(fields[i+1], 64); err == nil {
				latencies = append(latencies, v)
			}
		case workload.BandwidthLabel:
			if v, err := strconv.ParseFloat(fields[i+1], 64); err == nil {
				bandwidths = append(bandwidths, v)
			}
		}
	}

	m := Metrics{}
	if len(latencies) > 0 {
		m.AvgLatency = mean(latencies)
	}
	if len(bandwidths) > 0 {
		m.AvgBandwidth = mean(bandwidths)
	}
	if len(bandwidths) > len(latencies) {
		m.Samples = len(bandwidths)
	} else {
		m.Samples = len(latencies)
	}
	return m
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
