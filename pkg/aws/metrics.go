package aws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwTypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/younsl/vpcepilot/internal/models"
)

// DefaultMetricsNamespace is the CloudWatch namespace of published metrics
const DefaultMetricsNamespace = "VPCEndpointPilot"

const (
	metricPublicPathCalls = "PublicPathCalls"
	metricEndpointResults = "EndpointResults"
)

// PutMetricDataAPI is the CloudWatch call used by the recorder
type PutMetricDataAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// MetricsRecorder publishes public path call counts and provisioning results
// to CloudWatch in the region each datum belongs to
type MetricsRecorder struct {
	namespace string
	clientFor func(ctx context.Context, region string) (PutMetricDataAPI, error)
	now       func() time.Time
}

// NewMetricsRecorder creates a recorder that reuses the factory's per-region config
func NewMetricsRecorder(f *Factory, namespace string) *MetricsRecorder {
	if namespace == "" {
		namespace = DefaultMetricsNamespace
	}
	return &MetricsRecorder{
		namespace: namespace,
		clientFor: func(ctx context.Context, region string) (PutMetricDataAPI, error) {
			cfg, err := f.Config(ctx, region)
			if err != nil {
				return nil, err
			}
			return cloudwatch.NewFromConfig(cfg), nil
		},
		now: time.Now,
	}
}

func dimension(name, value string) cwTypes.Dimension {
	return cwTypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

// RecordGaps implements orchestrator.Recorder
func (r *MetricsRecorder) RecordGaps(ctx context.Context, instanceID string, gaps []models.CandidateGap) error {
	byRegion := make(map[string][]cwTypes.MetricDatum)
	for _, gap := range gaps {
		byRegion[gap.Region] = append(byRegion[gap.Region], cwTypes.MetricDatum{
			MetricName: aws.String(metricPublicPathCalls),
			Dimensions: []cwTypes.Dimension{
				dimension("InstanceId", instanceID),
				dimension("Service", string(gap.Service)),
			},
			Value:     aws.Float64(float64(gap.MissCount)),
			Unit:      cwTypes.StandardUnitCount,
			Timestamp: aws.Time(r.now()),
		})
	}
	return r.put(ctx, byRegion)
}

// RecordResults implements orchestrator.Recorder
func (r *MetricsRecorder) RecordResults(ctx context.Context, instanceID string, results []models.EndpointResult) error {
	byRegion := make(map[string][]cwTypes.MetricDatum)
	for _, res := range results {
		byRegion[res.Region] = append(byRegion[res.Region], cwTypes.MetricDatum{
			MetricName: aws.String(metricEndpointResults),
			Dimensions: []cwTypes.Dimension{
				dimension("Service", string(res.Service)),
				dimension("Status", string(res.Status)),
			},
			Value:     aws.Float64(1),
			Unit:      cwTypes.StandardUnitCount,
			Timestamp: aws.Time(r.now()),
		})
	}
	return r.put(ctx, byRegion)
}

func (r *MetricsRecorder) put(ctx context.Context, byRegion map[string][]cwTypes.MetricDatum) error {
	var errs []error
	for region, data := range byRegion {
		client, err := r.clientFor(ctx, region)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		_, err = client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(r.namespace),
			MetricData: data,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("error putting %d metrics in %s: %w", len(data), region, err))
		}
	}
	return errors.Join(errs...)
}
