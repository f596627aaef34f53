package cli

import (
	"fmt"
	"github.com/mattfenwick/collections/pkg/slice"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/scanserver/scanner-client/pkg/scanclient"
	"github.com/scanserver/scanner-client/pkg/utils"
	"io"
	"strings"
	"time"
)

const (
	OutputTable = "table"
	OutputJson  = "json"
	OutputYaml  = "yaml"
)

func printOutput(out io.Writer, format string, obj interface{}, table func() string) error {
	switch format {
	case OutputJson:
		_, err := fmt.Fprintf(out, "%s\n", utils.JsonString(obj))
		return errors.WithStack(err)
	case OutputYaml:
		_, err := fmt.Fprint(out, utils.YamlString(obj))
		return errors.WithStack(err)
	case OutputTable:
		_, err := fmt.Fprint(out, table())
		return errors.WithStack(err)
	default:
		return errors.Errorf("invalid output format '%s'; expected one of [%s, %s, %s]", format, OutputTable, OutputJson, OutputYaml)
	}
}

func newTable(headers []string) (*strings.Builder, *tablewriter.Table) {
	tableString := &strings.Builder{}
	table := tablewriter.NewWriter(tableString)
	table.SetAutoWrapText(false)
	table.SetRowLine(true)
	table.SetHeader(headers)
	return tableString, table
}

func ScannersTable(scanners []*scanclient.Scanner) string {
	tableString, table := newTable([]string{"ID", "Name", "Model", "Status", "Resolutions", "Formats", "Feeder", "Duplex"})
	for _, scanner := range slice.SortOn(func(s *scanclient.Scanner) string { return s.ID }, scanners) {
		row := []string{scanner.ID, scanner.Name, scanner.Model, scanner.Status, "", "", "", ""}
		if caps := scanner.Capabilities; caps != nil {
			var resolutions []string
			for _, r := range caps.Resolutions {
				resolutions = append(resolutions, fmt.Sprintf("%d", r))
			}
			row[4] = strings.Join(resolutions, ", ")
			row[5] = strings.Join(caps.DocumentFormats, ", ")
			row[6] = fmt.Sprintf("%t", caps.FeederEnabled)
			row[7] = fmt.Sprintf("%t", caps.DuplexEnabled)
		}
		table.Append(row)
	}
	table.Render()
	return tableString.String()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

// JobsTable keeps the server's order, which is creation order.
func JobsTable(jobs []*scanclient.Job) string {
	tableString, table := newTable([]string{"ID", "Scanner", "Status", "Progress", "Pages", "Created", "Error"})
	for _, job := range jobs {
		table.Append([]string{
			job.ID,
			job.ScannerID,
			string(job.Status),
			fmt.Sprintf("%d%%", job.Progress),
			fmt.Sprintf("%d", len(job.Results)),
			formatTime(job.CreatedAt),
			utils.StringPrefix(job.Error, 60),
		})
	}
	table.Render()
	return tableString.String()
}

func JobTable(job *scanclient.Job) string {
	summary := JobsTable([]*scanclient.Job{job})
	if len(job.Results) == 0 {
		return summary
	}
	tableString, table := newTable([]string{"Page", "File", "Size", "Format"})
	for _, result := range job.Results {
		table.Append([]string{
			fmt.Sprintf("%d", result.PageNumber),
			result.FilePath,
			fmt.Sprintf("%d", result.FileSize),
			result.Format,
		})
	}
	table.Render()
	return summary + tableString.String()
}

func BatchTable(result *scanclient.BatchScanResult) string {
	tableString, table := newTable([]string{"Message", "Scans", "Pages", "Jobs"})
	table.Append([]string{
		result.Message,
		fmt.Sprintf("%d", result.TotalScans),
		fmt.Sprintf("%d", result.TotalPages),
		strings.Join(result.JobIDs, "\n"),
	})
	table.Render()
	return tableString.String()
}
