package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	at := time.Unix(1700000000, 0)
	m.RunFinished("ok", 250*time.Millisecond, at)
	m.RunFinished("rate_limited", time.Second, at.Add(time.Hour))
	m.Items("inserted", 3)
	m.Items("duplicate", 0)
	m.JSONError("syntax")

	counters := []struct {
		name string
		got  float64
		want float64
	}{
		{name: "ok runs", got: testutil.ToFloat64(m.RunsTotal.WithLabelValues("ok")), want: 1},
		{name: "rate limited runs", got: testutil.ToFloat64(m.RunsTotal.WithLabelValues("rate_limited")), want: 1},
		{name: "inserted items", got: testutil.ToFloat64(m.ItemsTotal.WithLabelValues("inserted")), want: 3},
		{name: "syntax errors", got: testutil.ToFloat64(m.JSONErrorsTotal.WithLabelValues("syntax")), want: 1},
	}
	for _, c := range counters {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}

	if got := testutil.ToFloat64(m.LastSuccess); got != float64(at.Unix()) {
		t.Errorf("LastSuccess = %v, want %v; failed runs do not move the success gauge", got, float64(at.Unix()))
	}

	// zero counts are not recorded, so the duplicate series was never created
	if n := testutil.CollectAndCount(m.ItemsTotal); n != 1 {
		t.Errorf("ItemsTotal series = %d, want 1", n)
	}
}
