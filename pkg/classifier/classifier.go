package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/younsl/vpcepilot/internal/models"
	"github.com/younsl/vpcepilot/pkg/catalog"
)

// AuditSource returns the raw audit records of one region for a time window.
// Implementations handle their own pagination and authentication.
type AuditSource interface {
	QueryAuditEvents(ctx context.Context, region string, window models.TimeWindow) ([]models.RawAuditRecord, error)
}

// cloudTrailEvent is the part of a CloudTrail event record we read
type cloudTrailEvent struct {
	EventTime     string `json:"eventTime"`
	EventSource   string `json:"eventSource"`
	EventName     string `json:"eventName"`
	AWSRegion     string `json:"awsRegion"`
	VpcEndpointID string `json:"vpcEndpointId"`
	UserIdentity  struct {
		PrincipalID string `json:"principalId"`
		ARN         string `json:"arn"`
		UserName    string `json:"userName"`
	} `json:"userIdentity"`
}

// Classifier turns raw audit records into traffic events of a single instance
type Classifier struct {
	source  AuditSource
	catalog *catalog.Catalog
}

// New creates a Classifier reading from source and tracking the services of cat
func New(source AuditSource, cat *catalog.Catalog) *Classifier {
	return &Classifier{
		source:  source,
		catalog: cat,
	}
}

// Classify returns the traffic events of instanceID in region during window.
// The audit query runs on first iteration and the sequence can be consumed once.
// A failed query yields no events: no evidence is not an error.
func (c *Classifier) Classify(ctx context.Context, instanceID, region string, window models.TimeWindow) iter.Seq[models.TrafficEvent] {
	consumed := false

	return func(yield func(models.TrafficEvent) bool) {
		if consumed {
			logrus.WithField("instance_id", instanceID).Debug("traffic event sequence already consumed")
			return
		}
		consumed = true

		log := logrus.WithFields(logrus.Fields{
			"instance_id": instanceID,
			"region":      region,
		})

		records, err := c.source.QueryAuditEvents(ctx, region, window)
		if err != nil {
			log.WithError(err).Error("Audit event query failed, treating as no traffic")
			return
		}
		log.Debugf("Fetched %d audit records between %s and %s", len(records),
			window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339))

		for _, record := range records {
			event, ok, err := c.classifyRecord(record, instanceID, region)
			if err != nil {
				log.WithField("event_id", record.EventID).WithError(err).Warn("Skipping malformed audit record")
				continue
			}
			if !ok {
				continue
			}
			if !yield(event) {
				return
			}
		}
	}
}

// classifyRecord parses one record. ok is false when the record is filtered out.
func (c *Classifier) classifyRecord(record models.RawAuditRecord, instanceID, region string) (models.TrafficEvent, bool, error) {
	var ev cloudTrailEvent
	if err := json.Unmarshal([]byte(record.Payload), &ev); err != nil {
		return models.TrafficEvent{}, false, fmt.Errorf("error parsing CloudTrail event: %w", err)
	}

	entry, tracked := c.catalog.ByEventSource(ev.EventSource)
	if !tracked {
		return models.TrafficEvent{}, false, nil
	}
	if !actorIsInstance(ev.UserIdentity.PrincipalID, ev.UserIdentity.ARN, instanceID) {
		return models.TrafficEvent{}, false, nil
	}
	if ev.AWSRegion == "" || ev.AWSRegion != region {
		return models.TrafficEvent{}, false, nil
	}

	return models.TrafficEvent{
		Timestamp:       eventTime(ev.EventTime),
		Service:         entry.Service,
		EventName:       ev.EventName,
		UsedPrivatePath: ev.VpcEndpointID != "",
		EndpointID:      ev.VpcEndpointID,
		ActorID:         actorID(ev),
		Region:          ev.AWSRegion,
	}, true, nil
}

// eventTime parses the record timestamp. Counting does not depend on it,
// so an empty or unparsable value leaves the zero time.
func eventTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// actorIsInstance matches instance role sessions, whose principal id is
// "<role id>:<instance id>" and whose ARN ends with the instance id as session name
func actorIsInstance(principalID, arn, instanceID string) bool {
	if instanceID == "" {
		return false
	}
	if principalID == instanceID || strings.Contains(principalID, ":"+instanceID) {
		return true
	}
	return strings.HasSuffix(arn, "/"+instanceID)
}

func actorID(ev cloudTrailEvent) string {
	switch {
	case ev.UserIdentity.ARN != "":
		return ev.UserIdentity.ARN
	case ev.UserIdentity.UserName != "":
		return ev.UserIdentity.UserName
	default:
		return ev.UserIdentity.PrincipalID
	}
}
