// Package cli writes segmentation reports for the command line.
package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/hyperjump/custseg/internal/models"
)

// OutputFormat is the format for report output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
	// OutputCSV is the labeled customer table, one row per customer.
	OutputCSV OutputFormat = "csv"
)

// ParseOutputFormat validates a format name. An empty name selects text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case "":
		return OutputText, nil
	case OutputText, OutputJSON, OutputCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text, json, or csv)", s)
	}
}

// WriteReport writes a run to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteReport(w io.Writer, run *models.Run, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, run)
	case OutputCSV:
		return WriteCustomersCSV(w, run.Customers)
	default:
		return writeReportText(w, run)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeReportText(w io.Writer, run *models.Run) error {
	if run.ID != "" {
		fmt.Fprintf(w, "\nRun %s (%s)\n", run.ID, run.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(w, "\nSegmented %d customers into %d clusters (seed %d, inertia %.4f, %d iterations",
		run.CustomerCount, run.K, run.Seed, run.Inertia, run.Iterations)
	if !run.Converged {
		fmt.Fprint(w, ", not converged")
	}
	fmt.Fprint(w, ")\n\n")

	fmt.Fprintln(w, "--- Segments (mean standardized features) ---")
	if err := writeSegmentsTable(w, run.Segments); err != nil {
		return err
	}

	if len(run.Elbow) > 0 {
		fmt.Fprintln(w, "\n--- Elbow (inertia by k) ---")
		if err := writeElbowTable(w, run.Elbow); err != nil {
			return err
		}
	}

	if len(run.Diagnostics) > 0 {
		fmt.Fprintln(w, "\n--- Diagnostics ---")
		for _, d := range run.Diagnostics {
			fmt.Fprintf(w, "  %s\n", d)
		}
	}
	fmt.Fprintln(w)
	return nil
}

func writeSegmentsTable(w io.Writer, segments []models.SegmentSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "cluster\tsegment\tcustomers\t%s\t\n", strings.Join(models.FeatureColumns, "\t"))
	for _, s := range segments {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t\n", s.Cluster, s.Segment, s.Customers, joinFloats(s.Means, "\t", 3))
	}
	return tw.Flush()
}

func writeElbowTable(w io.Writer, points []models.InertiaPoint) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "k\tinertia\titerations\t")
	for _, p := range points {
		fmt.Fprintf(tw, "%d\t%.4f\t%d\t\n", p.K, p.Inertia, p.Iterations)
	}
	return tw.Flush()
}

// WriteElbow writes the inertia-by-k series in the given format.
func WriteElbow(w io.Writer, points []models.InertiaPoint, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, points)
	case OutputCSV:
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"k", "inertia", "iterations"})
		for _, p := range points {
			_ = cw.Write([]string{strconv.Itoa(p.K), formatFloat(p.Inertia), strconv.Itoa(p.Iterations)})
		}
		cw.Flush()
		return cw.Error()
	default:
		return writeElbowTable(w, points)
	}
}

// WriteCustomersCSV writes the labeled customer table: Customer_ID, the feature
// columns, Cluster, and Segment.
func WriteCustomersCSV(w io.Writer, customers []models.LabeledCustomer) error {
	cw := csv.NewWriter(w)
	header := append([]string{"Customer_ID"}, models.FeatureColumns...)
	header = append(header, "Cluster", "Segment")
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, c := range customers {
		record := make([]string, 0, len(header))
		record = append(record, c.CustomerID)
		for _, v := range c.Features {
			record = append(record, formatFloat(v))
		}
		record = append(record, strconv.Itoa(c.Cluster), c.Segment)
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummaryCSV writes one row per segment with the mean of every feature column.
func WriteSummaryCSV(w io.Writer, segments []models.SegmentSummary) error {
	cw := csv.NewWriter(w)
	header := append([]string{"Segment", "Cluster", "Customers"}, models.FeatureColumns...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, s := range segments {
		record := []string{s.Segment, strconv.Itoa(s.Cluster), strconv.Itoa(s.Customers)}
		for _, v := range s.Means {
			record = append(record, formatFloat(v))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRunList writes stored run headers.
func WriteRunList(w io.Writer, runs []*models.Run, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs stored.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tK\tCUSTOMERS\tINERTIA\tSOURCE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.4f\t%s\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.K, r.CustomerCount, r.Inertia, Truncate(r.Source, 40))
	}
	return tw.Flush()
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func joinFloats(values []float64, sep string, prec int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'f', prec, 64)
	}
	return strings.Join(parts, sep)
}
