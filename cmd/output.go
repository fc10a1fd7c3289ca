package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/lambda-tuner/lambda-tuner/tuner"
)

// maxNameWidth is the widest function name printed before truncation.
const maxNameWidth = 80

// memoryColor highlights large memory sizes: red above 2048MB, yellow above
// 1024MB, green otherwise.
func memoryColor(m tuner.MemorySize) color.Attribute {
	switch {
	case m > 2048:
		return color.FgRed
	case m > 1024:
		return color.FgYellow
	default:
		return color.FgGreen
	}
}

func memoryLabel(m tuner.MemorySize) string {
	return color.New(memoryColor(m), color.Bold).Sprintf("%4dMB", int(m))
}

func truncateName(name string) string {
	r := []rune(name)
	if len(r) <= maxNameWidth {
		return name
	}
	return string(r[:maxNameWidth-1]) + "…"
}

func dollars(v float64) string {
	if v < 0 {
		return "-$" + humanize.CommafWithDigits(-v, 2)
	}
	return "$" + humanize.CommafWithDigits(v, 2)
}

// renderFunctions prints the function listing.
func renderFunctions(w io.Writer, fns []tuner.FunctionInformation) {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Name", "Memory", "Runtime", "State"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Memory", Align: text.AlignRight},
	})
	for _, fn := range fns {
		state := string(fn.State)
		if state == "" {
			state = "Unknown"
		}
		t.AppendRow(table.Row{truncateName(fn.Name), memoryLabel(fn.Memory), fn.Runtime, state})
	}
	fmt.Fprintln(w, t.Render())
}

// report is the per-function output record.
type report struct {
	Function string              `json:"function"`
	Result   *tuner.TuningResult `json:"result,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// buildReports orders outcomes by function name.
func buildReports(outcomes map[string]tuner.Outcome) []report {
	names := make([]string, 0, len(outcomes))
	for name := range outcomes {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]report, 0, len(names))
	for _, name := range names {
		o := outcomes[name]
		r := report{Function: name, Result: o.Result}
		if o.Err != nil {
			r.Error = o.Err.Error()
		}
		out = append(out, r)
	}
	return out
}

func renderJSON(w io.Writer, reports []report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}

// renderResults prints a summary table and one measurement table per
// function. invocations is the monthly volume monthly costs refer to.
func renderResults(w io.Writer, reports []report, invocations int64) {
	t := table.NewWriter()
	t.SetTitle("Tuning results (monthly cost at %s invocations)", humanize.Comma(invocations))
	t.AppendHeader(table.Row{"Function", "Original", "Recommended", "Phase", "Mean", "Per 1M", "Monthly", "Saving", "Invocations", "Note"})
	for _, r := range reports {
		res := r.Result
		if res == nil {
			t.AppendRow(table.Row{truncateName(r.Function), "", "", "", "", "", "", "", "", r.Error})
			continue
		}
		note := res.Reason
		if r.Error != "" {
			note = r.Error
		}
		row := table.Row{truncateName(r.Function), memoryLabel(res.OriginalMemory), "-", string(res.Phase), "-", "-", "-", "-",
			humanize.Comma(int64(res.InvocationCount())), note}
		if rec := res.Recommended; rec != nil {
			row[2] = memoryLabel(rec.Memory)
			row[4] = fmt.Sprintf("%.1f ms", rec.Duration.Mean)
			row[5] = dollars(rec.Cost.PerMillion)
			row[6] = dollars(rec.Cost.Monthly)
			if base := res.Baseline(); base != nil && base.Usable() {
				row[7] = dollars(base.Cost.Monthly - rec.Cost.Monthly)
			}
		}
		t.AppendRow(row)
	}
	fmt.Fprintln(w, t.Render())

	for _, r := range reports {
		if r.Result == nil || len(r.Result.Measurements) == 0 {
			continue
		}
		fmt.Fprintln(w, renderMeasurements(r.Result))
	}
}

func renderMeasurements(res *tuner.TuningResult) string {
	t := table.NewWriter()
	t.SetTitle("%s", truncateName(res.FunctionID))
	t.AppendHeader(table.Row{"#", "Memory", "Samples", "Failed", "Mean", "P95", "Billed", "Per 1M", "Flags"})
	for _, m := range res.Measurements {
		var flags []string
		if res.Recommended != nil && m.Memory == res.Recommended.Memory && m.Sequence == latestSequence(res, m.Memory) {
			flags = append(flags, "recommended")
		}
		if m.Memory == res.OriginalMemory {
			flags = append(flags, "original")
		}
		if m.ExceedsCeiling {
			flags = append(flags, "over ceiling")
		}
		if m.ReconfigurationError != "" {
			flags = append(flags, "unconfigurable")
		} else if !m.Usable() {
			flags = append(flags, "all failed")
		}
		row := table.Row{m.Sequence + 1, memoryLabel(m.Memory), m.Count, m.FailureCount(), "-", "-", "-", "-", strings.Join(flags, ", ")}
		if m.Usable() {
			row[4] = fmt.Sprintf("%.1f ms", m.Duration.Mean)
			row[5] = fmt.Sprintf("%.1f ms", m.Duration.P95)
			row[6] = fmt.Sprintf("%.0f ms", m.BilledDuration)
			row[7] = dollars(m.Cost.PerMillion)
		}
		t.AppendRow(row)
	}
	return t.Render()
}

func latestSequence(res *tuner.TuningResult, memory tuner.MemorySize) int {
	seq := -1
	for _, m := range res.Measurements {
		if m.Memory == memory {
			seq = m.Sequence
		}
	}
	return seq
}
