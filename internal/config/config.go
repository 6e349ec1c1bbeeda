package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/sirupsen/logrus"

	"github.com/younsl/vpcepilot/internal/models"
	"github.com/younsl/vpcepilot/pkg/aggregator"
	"github.com/younsl/vpcepilot/pkg/aws"
	"github.com/younsl/vpcepilot/pkg/catalog"
	"github.com/younsl/vpcepilot/pkg/placement"
)

// EnvPrefix is the prefix of environment overrides. A double underscore
// separates nesting levels, e.g. VPCEPILOT_AUDIT_SOURCE__TYPE.
const EnvPrefix = "VPCEPILOT_"

type Config struct {
	LogLevel               string         `koanf:"log_level"`
	MissThreshold          int            `koanf:"miss_threshold"`
	ServiceThresholds      map[string]int `koanf:"service_thresholds"`
	MaxAvailabilityZones   int            `koanf:"max_availability_zones"`
	MainRouteTableFallback string         `koanf:"main_route_table_fallback"`
	LookbackDays           int            `koanf:"lookback_days"`
	PrivateDNSEnabled      bool           `koanf:"private_dns_enabled"`

	TrackedServices []TrackedService  `koanf:"tracked_services"`
	AuditSource     AuditSourceConfig `koanf:"audit_source"`
	Metrics         MetricsConfig     `koanf:"metrics"`
}

type TrackedService struct {
	EventSource     string `koanf:"event_source"`
	Service         string `koanf:"service"`
	EndpointService string `koanf:"endpoint_service"`
	EndpointType    string `koanf:"endpoint_type"`
}

type AuditSourceConfig struct {
	Type     string `koanf:"type"`
	LogGroup string `koanf:"log_group"`
	Bucket   string `koanf:"bucket"`
	Prefix   string `koanf:"prefix"`
}

type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Namespace string `koanf:"namespace"`
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		LogLevel:               "info",
		MissThreshold:          aggregator.DefaultThreshold,
		MaxAvailabilityZones:   placement.DefaultMaxAZ,
		MainRouteTableFallback: string(placement.FallbackFirst),
		LookbackDays:           1,
		PrivateDNSEnabled:      true,
		AuditSource: AuditSourceConfig{
			Type: aws.SourceLookup,
		},
		Metrics: MetricsConfig{
			Namespace: aws.DefaultMetricsNamespace,
		},
	}
}

// envKey maps VPCEPILOT_AUDIT_SOURCE__TYPE to audit_source.type
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Load reads defaults, then the YAML file at path when path is not empty,
// then environment overrides
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
		logrus.WithField("path", path).Debug("Loaded config file")
	}

	// env keys arrive lowercased, so file keys are lowercased too for env to override them
	if err := lowercaseServiceThresholds(k); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if len(cfg.TrackedServices) == 0 {
		cfg.TrackedServices = defaultTrackedServices()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func lowercaseServiceThresholds(k *koanf.Koanf) error {
	overrides := k.IntMap("service_thresholds")
	if len(overrides) == 0 {
		return nil
	}

	k.Delete("service_thresholds")
	for service, v := range overrides {
		key := "service_thresholds." + strings.ToLower(service)
		if k.Exists(key) {
			return fmt.Errorf("service_thresholds sets %s more than once", strings.ToLower(service))
		}
		if err := k.Set(key, v); err != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}
	}
	return nil
}

func defaultTrackedServices() []TrackedService {
	services := make([]TrackedService, 0, len(catalog.DefaultEntries))
	for _, e := range catalog.DefaultEntries {
		services = append(services, TrackedService{
			EventSource:     e.EventSource,
			Service:         string(e.Service),
			EndpointService: e.EndpointService,
			EndpointType:    string(e.EndpointType),
		})
	}
	return services
}

// Validate rejects settings the pipeline cannot run with
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	if c.MissThreshold < 1 {
		return fmt.Errorf("miss_threshold must be at least 1, got %d", c.MissThreshold)
	}
	resolved := make(map[models.Service]string, len(c.ServiceThresholds))
	for key, v := range c.ServiceThresholds {
		if v < 1 {
			return fmt.Errorf("service_thresholds.%s must be at least 1, got %d", key, v)
		}
		service, ok := c.trackedService(key)
		if !ok {
			return fmt.Errorf("service_thresholds.%s does not name a tracked service", key)
		}
		if other, dup := resolved[service]; dup {
			return fmt.Errorf("service_thresholds.%s and service_thresholds.%s both set %s", other, key, service)
		}
		resolved[service] = key
	}
	if c.MaxAvailabilityZones < 1 {
		return fmt.Errorf("max_availability_zones must be at least 1, got %d", c.MaxAvailabilityZones)
	}
	if !placement.FallbackRule(c.MainRouteTableFallback).Valid() {
		return fmt.Errorf("unknown main_route_table_fallback %q (first, lowest-id, none)", c.MainRouteTableFallback)
	}
	if c.LookbackDays < 1 {
		return fmt.Errorf("lookback_days must be at least 1, got %d", c.LookbackDays)
	}

	switch c.AuditSource.Type {
	case aws.SourceLookup:
	case aws.SourceCloudWatchLogs:
		if c.AuditSource.LogGroup == "" {
			return fmt.Errorf("audit_source.log_group is required for %s", aws.SourceCloudWatchLogs)
		}
	case aws.SourceS3:
		if c.AuditSource.Bucket == "" {
			return fmt.Errorf("audit_source.bucket is required for %s", aws.SourceS3)
		}
	default:
		return fmt.Errorf("unknown audit_source.type %q", c.AuditSource.Type)
	}

	if _, err := c.Catalog(); err != nil {
		return fmt.Errorf("invalid tracked_services: %w", err)
	}
	return nil
}

// Catalog builds the tracked service catalog
func (c *Config) Catalog() (*catalog.Catalog, error) {
	entries := make([]catalog.Entry, 0, len(c.TrackedServices))
	for _, s := range c.TrackedServices {
		entries = append(entries, catalog.Entry{
			EventSource:     s.EventSource,
			Service:         models.Service(s.Service),
			EndpointService: s.EndpointService,
			EndpointType:    models.EndpointType(s.EndpointType),
		})
	}
	return catalog.New(entries)
}

// trackedService matches a service_thresholds key to a tracked service id, ignoring case
func (c *Config) trackedService(key string) (models.Service, bool) {
	for _, s := range c.TrackedServices {
		if strings.EqualFold(s.Service, key) {
			return models.Service(s.Service), true
		}
	}
	return "", false
}

// Thresholds returns the uniform threshold with its per-service overrides
// keyed by the tracked service ids
func (c *Config) Thresholds() aggregator.Thresholds {
	th := aggregator.Thresholds{Default: c.MissThreshold}
	if len(c.ServiceThresholds) > 0 {
		th.PerService = make(map[models.Service]int, len(c.ServiceThresholds))
		for key, v := range c.ServiceThresholds {
			if service, ok := c.trackedService(key); ok {
				th.PerService[service] = v
			}
		}
	}
	return th
}

// Selector returns the placement selector for the configured cap and fallback rule
func (c *Config) Selector() *placement.Selector {
	return placement.NewSelector(c.MaxAvailabilityZones, placement.FallbackRule(c.MainRouteTableFallback))
}

// Source returns the audit source options
func (c *Config) Source() aws.SourceOptions {
	return aws.SourceOptions{
		Type:     c.AuditSource.Type,
		LogGroup: c.AuditSource.LogGroup,
		Bucket:   c.AuditSource.Bucket,
		Prefix:   c.AuditSource.Prefix,
	}
}
