package formatter

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/younsl/vpcepilot/internal/models"
	"github.com/younsl/vpcepilot/pkg/utils"
)

// RunInfo describes the invocation a response belongs to
type RunInfo struct {
	InstanceID string
	Region     string
	Lookback   string // e.g. "12 hours"
	Window     models.TimeWindow
	StartTime  time.Time
	Duration   time.Duration
}

// statusOrder fixes the row order of the status summary
var statusOrder = []models.EndpointStatus{
	models.StatusCreated,
	models.StatusAlreadyExists,
	models.StatusFail,
}

// PrintHeader prints the instance, region and audit window of a run
func PrintHeader(w io.Writer, info RunInfo) {
	fmt.Fprintf(w, "## VPC endpoint check for %s in %s (%s)\n",
		info.InstanceID,
		info.Region,
		utils.GetRegionDescriptiveName(info.Region),
	)
	fmt.Fprintf(w, "Audit window: last %s, since %s (%s)\n\n",
		info.Lookback,
		info.Window.Start.Format("2006-01-02 15:04:05"),
		humanize.Time(info.Window.Start),
	)
}

// PrintResultsTable prints the per gap results of a response, or its message
// when no gap was processed
func PrintResultsTable(w io.Writer, resp models.Response, info RunInfo) {
	PrintHeader(w, info)

	if !resp.HasResults() {
		fmt.Fprintln(w, resp.Message)
		printTimestamp(w, info.StartTime, info.Duration)
		return
	}

	// Set up tabwriter with kubectl style spacing
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)

	fmt.Fprintln(tw, "SERVICE\tREGION\tSTATUS\tENDPOINT ID\tSTATE\tMESSAGE")
	for _, r := range resp.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Service,
			r.Region,
			r.Status,
			orDash(r.EndpointID),
			orDash(r.State),
			orDash(r.Message),
		)
	}
	tw.Flush()

	PrintStatusSummary(w, resp.Results)
	fmt.Fprintln(w)
	printTimestamp(w, info.StartTime, info.Duration)
}

// PrintStatusSummary prints how many gaps ended in each status
func PrintStatusSummary(w io.Writer, results []models.EndpointResult) {
	if len(results) == 0 {
		return
	}

	counts := make(map[models.EndpointStatus]int)
	for _, r := range results {
		counts[r.Status]++
	}

	fmt.Fprintln(w, "\n## Results by Status")

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tCOUNT")
	for _, status := range statusOrder {
		if counts[status] == 0 {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\n", status, humanize.Comma(int64(counts[status])))
	}
	fmt.Fprintf(tw, "Total:\t%s\n", humanize.Comma(int64(len(results))))
	tw.Flush()
}

// PrintJSON prints the response in the {"statusCode", "body"} envelope
func PrintJSON(w io.Writer, resp models.Response) error {
	out, err := utils.FormatJSON(resp)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
