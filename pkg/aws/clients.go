package aws

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/younsl/vpcepilot/pkg/classifier"
	"github.com/younsl/vpcepilot/pkg/orchestrator"
)

// Audit source types
const (
	SourceLookup         = "lookup"
	SourceCloudWatchLogs = "cloudwatch-logs"
	SourceS3             = "s3"
)

// SourceOptions selects where audit events are read from
type SourceOptions struct {
	Type     string
	LogGroup string // cloudwatch-logs
	Bucket   string // s3
	Prefix   string // s3, up to AWSLogs/<account>/CloudTrail
}

// Factory builds the clients of a region once and reuses them for later calls.
// The cache is keyed by region only.
type Factory struct {
	source       SourceOptions
	eventSources []string

	mu      sync.Mutex
	configs map[string]aws.Config
	clients map[string]orchestrator.Clients
}

// NewFactory creates a Factory. eventSources narrows audit queries to the tracked services.
func NewFactory(source SourceOptions, eventSources []string) *Factory {
	if source.Type == "" {
		source.Type = SourceLookup
	}
	return &Factory{
		source:       source,
		eventSources: eventSources,
		configs:      make(map[string]aws.Config),
		clients:      make(map[string]orchestrator.Clients),
	}
}

// Config returns the AWS config of region
func (f *Factory) Config(ctx context.Context, region string) (aws.Config, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.configLocked(ctx, region)
}

func (f *Factory) configLocked(ctx context.Context, region string) (aws.Config, error) {
	if cfg, ok := f.configs[region]; ok {
		return cfg, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithRetryMode(aws.RetryModeStandard),
		config.WithEC2IMDSClientEnableState(imds.ClientEnabled),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("error loading AWS config for region %s: %w", region, err)
	}
	f.configs[region] = cfg
	return cfg, nil
}

// Clients implements orchestrator.ClientFactory
func (f *Factory) Clients(ctx context.Context, region string) (orchestrator.Clients, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients[region]; ok {
		return c, nil
	}

	cfg, err := f.configLocked(ctx, region)
	if err != nil {
		return orchestrator.Clients{}, err
	}

	audit, err := f.auditSource(cfg)
	if err != nil {
		return orchestrator.Clients{}, err
	}

	ec2Client := NewEC2Client(ec2.NewFromConfig(cfg), region)
	c := orchestrator.Clients{
		Audit:     audit,
		Network:   ec2Client,
		Endpoints: ec2Client,
	}
	f.clients[region] = c
	return c, nil
}

func (f *Factory) auditSource(cfg aws.Config) (classifier.AuditSource, error) {
	switch f.source.Type {
	case SourceLookup:
		return NewCloudTrailSource(cloudtrail.NewFromConfig(cfg), f.eventSources), nil
	case SourceCloudWatchLogs:
		if f.source.LogGroup == "" {
			return nil, fmt.Errorf("audit source %s requires a log group", SourceCloudWatchLogs)
		}
		return NewLogsSource(cloudwatchlogs.NewFromConfig(cfg), f.source.LogGroup, f.eventSources), nil
	case SourceS3:
		if f.source.Bucket == "" {
			return nil, fmt.Errorf("audit source %s requires a bucket", SourceS3)
		}
		return NewS3TrailSource(s3.NewFromConfig(cfg), f.source.Bucket, f.source.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown audit source type %q", f.source.Type)
	}
}
