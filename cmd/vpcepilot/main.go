package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/younsl/vpcepilot/internal/app"
	"github.com/younsl/vpcepilot/internal/config"
	"github.com/younsl/vpcepilot/internal/models"
	"github.com/younsl/vpcepilot/internal/version"
	"github.com/younsl/vpcepilot/pkg/formatter"
	"github.com/younsl/vpcepilot/pkg/utils"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

type options struct {
	instanceID  string
	region      string
	days        int
	hours       int
	configPath  string
	output      string
	logLevel    string
	threshold   int
	maxAZ       int
	showVersion bool
}

// startSpinner creates and starts a spinner on stderr so stdout only carries results
func startSpinner(instanceID string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[9], 200*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = fmt.Sprintf(" Analyzing traffic of %s ...", instanceID)
	s.Start()
	return s
}

// showSpinner reports whether the spinner can run without info logs writing over it
func showSpinner(output string, level logrus.Level) bool {
	return output == outputTable && level < logrus.InfoLevel
}

// buildRequest maps the flags onto a request. Unset days and hours stay nil.
func buildRequest(cmd *cobra.Command, o *options) models.Request {
	req := models.Request{
		InstanceID: o.instanceID,
		Region:     o.region,
	}
	if cmd.Flags().Changed("days") {
		req.Days = &o.days
	}
	if cmd.Flags().Changed("hours") {
		req.Hours = &o.hours
	}
	return req
}

// applyOverrides lets explicit flags win over the file and environment
func applyOverrides(cmd *cobra.Command, o *options, cfg *config.Config) error {
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if cmd.Flags().Changed("threshold") {
		cfg.MissThreshold = o.threshold
	}
	if cmd.Flags().Changed("max-az") {
		cfg.MaxAvailabilityZones = o.maxAZ
	}
	return cfg.Validate()
}

func run(cmd *cobra.Command, o *options) (int, error) {
	if o.showVersion {
		fmt.Println(version.Get())
		return 0, nil
	}
	if o.output != outputTable && o.output != outputJSON {
		return 1, fmt.Errorf("unknown output format %q (table, json)", o.output)
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return 1, err
	}
	if err := applyOverrides(cmd, o, cfg); err != nil {
		return 1, err
	}
	app.ConfigureLogging(cfg.LogLevel, false)

	if o.region != "" && !utils.IsValidRegion(o.region) {
		logrus.Warnf("Region %s is not in the known region list", o.region)
	}

	startTime := time.Now()
	orch, err := app.New(cfg, func() time.Time { return startTime })
	if err != nil {
		return 1, err
	}

	req := buildRequest(cmd, o)

	var s *spinner.Spinner
	if showSpinner(o.output, logrus.GetLevel()) {
		s = startSpinner(req.InstanceID)
	}
	resp := orch.Run(cmd.Context(), req)
	duration := time.Since(startTime)
	if s != nil {
		s.FinalMSG = fmt.Sprintf("✓ Analysis of %s completed in %.2f seconds\n", req.InstanceID, duration.Seconds())
		s.Stop()
	}

	switch o.output {
	case outputJSON:
		if err := formatter.PrintJSON(os.Stdout, resp); err != nil {
			return 1, err
		}
	default:
		formatter.PrintResultsTable(os.Stdout, resp, formatter.RunInfo{
			InstanceID: req.InstanceID,
			Region:     req.Region,
			Lookback:   utils.DescribeLookback(req.Days, req.Hours, cfg.LookbackDays),
			Window:     utils.LookbackWindow(startTime, req.Days, req.Hours, cfg.LookbackDays),
			StartTime:  startTime,
			Duration:   duration,
		})
	}

	if resp.StatusCode != 200 {
		return 1, nil
	}
	return 0, nil
}

func main() {
	o := &options{}

	rootCmd := &cobra.Command{
		Use:   "vpcepilot",
		Short: "Provision missing VPC endpoints from an instance's audit trail",
		Long: `vpcepilot reads the audit trail of an EC2 instance, finds managed services
it keeps reaching over the public path, and creates the missing VPC endpoints
spread across availability zones.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := run(cmd, o)
			if err != nil {
				return err
			}
			if code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&o.instanceID, "instance-id", "i", "", "Reference EC2 instance ID")
	flags.StringVarP(&o.region, "region", "r", os.Getenv("AWS_REGION"), "AWS region of the instance")
	flags.IntVarP(&o.days, "days", "d", 0, "Lookback window in days")
	flags.IntVar(&o.hours, "hours", 0, "Lookback window in hours (takes precedence over --days)")
	flags.StringVarP(&o.configPath, "config", "c", "", "Path to a YAML config file")
	flags.StringVarP(&o.output, "output", "o", outputTable, "Output format: table or json")
	flags.StringVar(&o.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.IntVar(&o.threshold, "threshold", 0, "Public path calls from which an endpoint is considered missing")
	flags.IntVar(&o.maxAZ, "max-az", 0, "Maximum availability zones per endpoint")
	flags.BoolVarP(&o.showVersion, "version", "v", false, "Show version information")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
