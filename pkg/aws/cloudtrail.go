package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail/types"
	"github.com/sirupsen/logrus"

	"github.com/younsl/vpcepilot/internal/models"
	"github.com/younsl/vpcepilot/pkg/utils"
)

// lookupMaxResults is the LookupEvents page size limit
const lookupMaxResults = 50

// CloudTrailSource reads management events through the CloudTrail LookupEvents API
type CloudTrailSource struct {
	client       cloudtrail.LookupEventsAPIClient
	eventSources []string
}

// NewCloudTrailSource creates a CloudTrailSource. With eventSources set, one
// lookup per event source is issued instead of scanning every event.
func NewCloudTrailSource(client cloudtrail.LookupEventsAPIClient, eventSources []string) *CloudTrailSource {
	return &CloudTrailSource{
		client:       client,
		eventSources: eventSources,
	}
}

// QueryAuditEvents implements classifier.AuditSource
func (s *CloudTrailSource) QueryAuditEvents(ctx context.Context, region string, window models.TimeWindow) ([]models.RawAuditRecord, error) {
	if len(s.eventSources) == 0 {
		return s.lookup(ctx, region, window, nil)
	}

	var records []models.RawAuditRecord
	for _, source := range s.eventSources {
		attrs := []types.LookupAttribute{
			{
				AttributeKey:   types.LookupAttributeKeyEventSource,
				AttributeValue: aws.String(source),
			},
		}
		found, err := s.lookup(ctx, region, window, attrs)
		if err != nil {
			return nil, err
		}
		records = append(records, found...)
	}
	return records, nil
}

func (s *CloudTrailSource) lookup(ctx context.Context, region string, window models.TimeWindow, attrs []types.LookupAttribute) ([]models.RawAuditRecord, error) {
	paginator := cloudtrail.NewLookupEventsPaginator(s.client, &cloudtrail.LookupEventsInput{
		StartTime:        aws.Time(window.Start),
		EndTime:          aws.Time(window.End),
		LookupAttributes: attrs,
		MaxResults:       aws.Int32(lookupMaxResults),
	})

	var records []models.RawAuditRecord
	pageCount := 0
	for paginator.HasMorePages() {
		pageCount++
		page, err := paginator.NextPage(ctx)
		if err != nil {
			var invalidRange *types.InvalidTimeRangeException
			if errors.As(err, &invalidRange) {
				return nil, fmt.Errorf("lookback window %s to %s rejected (CloudTrail keeps 90 days): %w",
					window.Start.Format("2006-01-02 15:04"), window.End.Format("2006-01-02 15:04"), err)
			}
			return nil, fmt.Errorf("error looking up CloudTrail events page %d in %s: %w", pageCount, region, err)
		}

		for _, ev := range page.Events {
			records = append(records, models.RawAuditRecord{
				EventID: utils.SafeDeref(ev.EventId),
				Payload: utils.SafeDeref(ev.CloudTrailEvent),
			})
		}
	}

	logrus.WithField("region", region).Debugf("CloudTrail lookup returned %d events in %d pages", len(records), pageCount)
	return records, nil
}
