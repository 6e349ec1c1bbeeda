package aws

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"

	"github.com/younsl/vpcepilot/internal/models"
	"github.com/younsl/vpcepilot/pkg/utils"
)

// LogsSource reads CloudTrail events delivered to a CloudWatch Logs log group.
// Unlike LookupEvents this covers data events such as S3 GetObject when the trail records them.
type LogsSource struct {
	client       cloudwatchlogs.FilterLogEventsAPIClient
	logGroupName string
	eventSources []string
}

// NewLogsSource creates a LogsSource for a trail log group
func NewLogsSource(client cloudwatchlogs.FilterLogEventsAPIClient, logGroupName string, eventSources []string) *LogsSource {
	return &LogsSource{
		client:       client,
		logGroupName: logGroupName,
		eventSources: eventSources,
	}
}

// eventSourcePattern builds a JSON filter pattern matching any of the event sources
func eventSourcePattern(sources []string) string {
	if len(sources) == 0 {
		return ""
	}
	terms := make([]string, 0, len(sources))
	for _, s := range sources {
		terms = append(terms, fmt.Sprintf("($.eventSource = %q)", s))
	}
	return "{ " + strings.Join(terms, " || ") + " }"
}

// QueryAuditEvents implements classifier.AuditSource
func (s *LogsSource) QueryAuditEvents(ctx context.Context, region string, window models.TimeWindow) ([]models.RawAuditRecord, error) {
	input := &cloudwatchlogs.FilterLogEventsInput{
		LogGroupName: aws.String(s.logGroupName),
		StartTime:    aws.Int64(window.Start.UnixMilli()),
		EndTime:      aws.Int64(window.End.UnixMilli()),
	}
	if pattern := eventSourcePattern(s.eventSources); pattern != "" {
		input.FilterPattern = aws.String(pattern)
	}

	paginator := cloudwatchlogs.NewFilterLogEventsPaginator(s.client, input)

	var records []models.RawAuditRecord
	pageCount := 0
	for paginator.HasMorePages() {
		pageCount++
		output, err := paginator.NextPage(ctx)
		if err != nil {
			var resourceNotFound *types.ResourceNotFoundException
			if errors.As(err, &resourceNotFound) {
				return nil, fmt.Errorf("log group %s not found in %s: %w", s.logGroupName, region, err)
			}
			return nil, fmt.Errorf("error fetching log events page %d of %s: %w", pageCount, s.logGroupName, err)
		}
		for _, ev := range output.Events {
			records = append(records, models.RawAuditRecord{
				EventID: utils.SafeDeref(ev.EventId),
				Payload: utils.SafeDeref(ev.Message),
			})
		}
	}

	return records, nil
}
