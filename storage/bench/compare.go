package bench

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/dustin/go-humanize"
)

// defaultThresholdPct 低于此变化视为无变化
const defaultThresholdPct = 5.0

// Comparison 单个基准与基线的差异
type Comparison struct {
	Name string `json:"name"`

	BaselineOps   float64 `json:"baseline_ops"`
	CurrentOps    float64 `json:"current_ops"`
	ChangePercent float64 `json:"change_percent"` // 正数表示更快

	// 压缩比变化，正数表示压缩得更小
	BaselineRatio  float64 `json:"baseline_ratio"`
	CurrentRatio   float64 `json:"current_ratio"`
	RatioChangePct float64 `json:"ratio_change_pct"`

	BaselineSize int64 `json:"baseline_size"`
	CurrentSize  int64 `json:"current_size"`
	TreeChanged  bool  `json:"tree_changed"`
}

// ComparisonReport 比较报告，Comparisons 按名称排序
type ComparisonReport struct {
	Comparisons  []*Comparison `json:"comparisons"`
	Improved     int           `json:"improved"`
	Regressed    int           `json:"regressed"`
	Unchanged    int           `json:"unchanged"`
	RatioDropped int           `json:"ratio_dropped"`
	ThresholdPct float64       `json:"threshold_pct"`
}

func pctChange(base, curr float64) float64 {
	if base <= 0 {
		return 0
	}
	return (curr - base) / base * 100
}

// CompareResults matches results by name; results missing from either side
// are skipped.
func CompareResults(baseline, current *ResultSet) *ComparisonReport {
	report := &ComparisonReport{ThresholdPct: defaultThresholdPct}

	for _, curr := range current.Results {
		base, ok := baseline.Find(curr.Name)
		if !ok {
			continue
		}
		comp := &Comparison{
			Name:           curr.Name,
			BaselineOps:    base.OpsPerSec,
			CurrentOps:     curr.OpsPerSec,
			ChangePercent:  pctChange(base.OpsPerSec, curr.OpsPerSec),
			BaselineRatio:  base.CompressionRatio,
			CurrentRatio:   curr.CompressionRatio,
			RatioChangePct: pctChange(base.CompressionRatio, curr.CompressionRatio),
			BaselineSize:   base.CompressedSize,
			CurrentSize:    curr.CompressedSize,
			TreeChanged:    base.Tree != curr.Tree,
		}

		switch {
		case math.Abs(comp.ChangePercent) < report.ThresholdPct:
			report.Unchanged++
		case comp.ChangePercent > 0:
			report.Improved++
		default:
			report.Regressed++
		}
		if comp.RatioChangePct <= -report.ThresholdPct {
			report.RatioDropped++
		}
		report.Comparisons = append(report.Comparisons, comp)
	}

	sort.Slice(report.Comparisons, func(i, j int) bool {
		return report.Comparisons[i].Name < report.Comparisons[j].Name
	})
	return report
}

// Print writes the report to w.
func (r *ComparisonReport) Print(w io.Writer) {
	fmt.Fprintln(w, "========================================")
	fmt.Fprintln(w, "      Compression Benchmark Report")
	fmt.Fprintln(w, "========================================")
	fmt.Fprintf(w, "Threshold:     ±%.1f%%\n", r.ThresholdPct)
	fmt.Fprintf(w, "Improved:      %d\n", r.Improved)
	fmt.Fprintf(w, "Regressed:     %d\n", r.Regressed)
	fmt.Fprintf(w, "Unchanged:     %d\n", r.Unchanged)
	fmt.Fprintf(w, "Ratio dropped: %d\n", r.RatioDropped)
	fmt.Fprintln(w, "----------------------------------------")

	if r.RatioDropped > 0 {
		fmt.Fprintln(w, "\nCompression ratio drops:")
		for _, c := range r.Comparisons {
			if c.RatioChangePct <= -r.ThresholdPct {
				fmt.Fprintf(w, "  %-50s %6.1f%%  (%.2fx → %.2fx, %s → %s, tree changed: %v)\n",
					c.Name, c.RatioChangePct, c.BaselineRatio, c.CurrentRatio,
					humanize.IBytes(uint64(max(c.BaselineSize, 0))), humanize.IBytes(uint64(max(c.CurrentSize, 0))),
					c.TreeChanged)
			}
		}
	}

	if r.Regressed > 0 {
		fmt.Fprintln(w, "\nThroughput regressions:")
		for _, c := range r.Comparisons {
			if c.ChangePercent <= -r.ThresholdPct {
				fmt.Fprintf(w, "  %-50s %6.1f%%  (%.0f → %.0f ops/s)\n",
					c.Name, c.ChangePercent, c.BaselineOps, c.CurrentOps)
			}
		}
	}

	if r.Improved > 0 {
		fmt.Fprintln(w, "\nThroughput improvements:")
		for _, c := range r.Comparisons {
			if c.ChangePercent >= r.ThresholdPct {
				fmt.Fprintf(w, "  %-50s +%5.1f%%  (%.0f → %.0f ops/s)\n",
					c.Name, c.ChangePercent, c.BaselineOps, c.CurrentOps)
			}
		}
	}
}
