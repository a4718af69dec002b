package isomap

import (
	"fmt"
	"os"
	"time"
)

// globalDebug gates rebuild and render-list statistics on stderr. Only one
// debug setting exists per process; the renderer is single-threaded.
var globalDebug bool

// SetDebugMode enables or disables debug statistics. When enabled, every
// cache rebuild and render list rebuild prints timing and counts to stderr.
func SetDebugMode(enabled bool) {
	globalDebug = enabled
}

// renderStats holds the numbers gathered by one render list rebuild.
type renderStats struct {
	collectTime time.Duration
	sortTime    time.Duration
	sections    int
	candidates  int
	visible     int
}

// debugLogRender prints render list rebuild stats to stderr.
func debugLogRender(stats renderStats) {
	total := stats.collectTime + stats.sortTime
	_, _ = fmt.Fprintf(os.Stderr,
		"[isomap] render list: collect: %v | sort: %v | total: %v\n",
		stats.collectTime, stats.sortTime, total)
	_, _ = fmt.Fprintf(os.Stderr,
		"[isomap] sections: %d | candidates: %d | visible: %d\n",
		stats.sections, stats.candidates, stats.visible)
}

// debugLogRebuild prints cache compaction stats to stderr.
func debugLogRebuild(placed, evicted, pages int, elapsed time.Duration) {
	_, _ = fmt.Fprintf(os.Stderr,
		"[isomap] cache rebuild: placed: %d | evicted: %d | pages: %d | time: %v\n",
		placed, evicted, pages, elapsed)
}

// debugCheckRenderListSize warns on stderr when a render list grows past the
// threshold, usually a sign that the section size is far too large.
const debugMaxRenderList = 50000

func debugCheckRenderListSize(n int) {
	if n > debugMaxRenderList {
		_, _ = fmt.Fprintf(os.Stderr, "[isomap] warning: render list holds %d graphics (threshold %d)\n",
			n, debugMaxRenderList)
	}
}
