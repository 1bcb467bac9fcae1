package launcher

import (
	"fmt"
	"io"
	"sort"

	"github.com/ethereum/go-ethereum/metrics"
)

// dumpMetrics prints every registered counter and timer.
func dumpMetrics(w io.Writer) {
	var lines []string
	metrics.DefaultRegistry.Each(func(name string, i interface{}) {
		switch m := i.(type) {
		case metrics.Counter:
			lines = append(lines, fmt.Sprintf("%s count=%d", name, m.Count()))
		case metrics.Timer:
			lines = append(lines, fmt.Sprintf("%s count=%d mean=%.0fns max=%dns", name, m.Count(), m.Mean(), m.Max()))
		}
	})
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}
