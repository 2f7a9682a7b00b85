package metrics

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Dump gathers every metric family from g and writes it in the Prometheus
// text exposition format.
func Dump(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather: %w", err)
	}

	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// ParseText decodes Prometheus text format into metric families keyed by
// name.
func ParseText(r io.Reader) (map[string]*dto.MetricFamily, error) {
	decoder := expfmt.NewDecoder(r, expfmt.FmtText)
	parsed := make(map[string]*dto.MetricFamily)

	for {
		var mf dto.MetricFamily
		if err := decoder.Decode(&mf); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("decode error: %w", err)
		}
		parsed[mf.GetName()] = &mf
	}
	return parsed, nil
}

// Sample is one exported value, flattened for display.
type Sample struct {
	Name  string
	Value float64
}

// Samples gathers g and returns unlabelled gauge and counter values under
// the hls_playstats namespace, sorted by name. It round-trips through the
// text format so it reports exactly what a scrape would see.
func Samples(g prometheus.Gatherer) ([]Sample, error) {
	var buf bytes.Buffer
	if err := Dump(&buf, g); err != nil {
		return nil, err
	}
	families, err := ParseText(&buf)
	if err != nil {
		return nil, err
	}

	var out []Sample
	for name, mf := range families {
		if !IsPlaybackMetric(name) {
			continue
		}
		for _, m := range mf.GetMetric() {
			if len(m.GetLabel()) > 0 {
				continue
			}
			switch mf.GetType() {
			case dto.MetricType_GAUGE:
				out = append(out, Sample{Name: name, Value: m.GetGauge().GetValue()})
			case dto.MetricType_COUNTER:
				out = append(out, Sample{Name: name, Value: m.GetCounter().GetValue()})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// IsPlaybackMetric reports whether name belongs to the hls_playstats
// namespace.
func IsPlaybackMetric(name string) bool {
	return strings.HasPrefix(name, namespace+"_")
}
