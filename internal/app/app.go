// Package app wires the configuration into a ready to run orchestrator.
// Both the CLI and the Lambda handler start from here.
package app

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/younsl/vpcepilot/internal/config"
	"github.com/younsl/vpcepilot/pkg/aws"
	"github.com/younsl/vpcepilot/pkg/orchestrator"
)

// Options builds the orchestrator options and the region-keyed client factory from cfg
func Options(cfg *config.Config, now func() time.Time) (orchestrator.Options, *aws.Factory, error) {
	cat, err := cfg.Catalog()
	if err != nil {
		return orchestrator.Options{}, nil, fmt.Errorf("building service catalog: %w", err)
	}

	factory := aws.NewFactory(cfg.Source(), cat.EventSources())

	opts := orchestrator.Options{
		Catalog:           cat,
		Thresholds:        cfg.Thresholds(),
		Selector:          cfg.Selector(),
		LookbackDays:      cfg.LookbackDays,
		PrivateDNSEnabled: cfg.PrivateDNSEnabled,
		Now:               now,
	}
	if cfg.Metrics.Enabled {
		opts.Recorder = aws.NewMetricsRecorder(factory, cfg.Metrics.Namespace)
	}

	return opts, factory, nil
}

// New returns an orchestrator backed by AWS clients
func New(cfg *config.Config, now func() time.Time) (*orchestrator.Orchestrator, error) {
	opts, factory, err := Options(cfg, now)
	if err != nil {
		return nil, err
	}
	return orchestrator.New(factory, opts), nil
}

// ConfigureLogging sets the logrus level, falling back to info on an unknown level
func ConfigureLogging(level string, json bool) {
	if json {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.WithError(err).Warn("Unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}
