package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
)

func WriteTable(w io.Writer, headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(headers) > 0 {
		if _, err := fmt.Fprintln(tw, strings.Join(headers, "\t")); err != nil {
			return err
		}
	}
	for i, row := range rows {
		if len(headers) > 0 && len(row) != len(headers) {
			return fmt.Errorf("table row %d has %d columns, expected %d", i, len(row), len(headers))
		}
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// WriteKeyValues prints a two-column FIELD/VALUE table.
func WriteKeyValues(w io.Writer, pairs [][2]string) error {
	rows := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, []string{p[0], p[1]})
	}
	return WriteTable(w, []string{"FIELD", "VALUE"}, rows)
}

func OrNone(v *string) string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return "<none>"
	}
	return strings.TrimSpace(*v)
}

func Int(v int64) string {
	return strconv.FormatInt(v, 10)
}

// Percent renders a value already expressed in percent, e.g. 12.5 -> "12.5%".
func Percent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}

// Trend renders a signed percentage change.
func Trend(v float64) string {
	if v > 0 {
		return "+" + Percent(v)
	}
	return Percent(v)
}

// Seconds renders a duration in seconds as e.g. "1m05s".
func Seconds(v float64) string {
	total := int64(v + 0.5)
	if total < 60 {
		return strconv.FormatInt(total, 10) + "s"
	}
	return fmt.Sprintf("%dm%02ds", total/60, total%60)
}

func Truncate(v string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(v) <= max {
		return v
	}
	if max <= 3 {
		return v[:max]
	}
	return v[:max-3] + "..."
}
