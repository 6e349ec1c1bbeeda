package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/younsl/vpcepilot/internal/models"
	"github.com/younsl/vpcepilot/pkg/aggregator"
	"github.com/younsl/vpcepilot/pkg/catalog"
	"github.com/younsl/vpcepilot/pkg/classifier"
	"github.com/younsl/vpcepilot/pkg/placement"
	"github.com/younsl/vpcepilot/pkg/topology"
	"github.com/younsl/vpcepilot/pkg/utils"
)

// ErrInvalidRequest is returned for requests missing required fields
var ErrInvalidRequest = errors.New("invalid request")

// EndpointAPI is the region-scoped VPC endpoint transport
type EndpointAPI interface {
	ListExistingEndpoints(ctx context.Context, vpcID, serviceName string) ([]models.ExistingEndpoint, error)
	CreateEndpoint(ctx context.Context, params models.CreateEndpointParams) (models.CreatedEndpoint, error)
}

// Clients are the collaborators of one region
type Clients struct {
	Audit     classifier.AuditSource
	Network   topology.NetworkAPI
	Endpoints EndpointAPI
}

// ClientFactory hands out the clients of a region. Implementations may cache per region.
type ClientFactory interface {
	Clients(ctx context.Context, region string) (Clients, error)
}

// Recorder receives run outcomes, e.g. to publish metrics
type Recorder interface {
	RecordGaps(ctx context.Context, instanceID string, gaps []models.CandidateGap) error
	RecordResults(ctx context.Context, instanceID string, results []models.EndpointResult) error
}

// Options configure an Orchestrator
type Options struct {
	Catalog           *catalog.Catalog
	Thresholds        aggregator.Thresholds
	Selector          *placement.Selector
	LookbackDays      int
	PrivateDNSEnabled bool
	Recorder          Recorder         // optional
	Now               func() time.Time // optional, defaults to time.Now
}

// Orchestrator runs the detect-and-provision pipeline for one instance per invocation
type Orchestrator struct {
	factory ClientFactory
	opts    Options
}

// New creates an Orchestrator
func New(factory ClientFactory, opts Options) *Orchestrator {
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}
	if opts.Selector == nil {
		opts.Selector = placement.NewSelector(placement.DefaultMaxAZ, placement.FallbackFirst)
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		factory: factory,
		opts:    opts,
	}
}

// Validate checks the required request fields
func Validate(req models.Request) error {
	if req.InstanceID == "" || req.Region == "" {
		return fmt.Errorf("%w: instance_id and region are required", ErrInvalidRequest)
	}
	if req.Hours != nil && *req.Hours <= 0 {
		return fmt.Errorf("%w: hours must be positive", ErrInvalidRequest)
	}
	if req.Days != nil && *req.Days <= 0 {
		return fmt.Errorf("%w: days must be positive", ErrInvalidRequest)
	}
	return nil
}

// run carries the state shared by the gaps of one invocation
type run struct {
	req     models.Request
	clients Clients
	network models.NetworkContext
}

// Run inspects the instance traffic and provisions the missing endpoints.
// Only request validation and network context failures abort the run;
// every other failure becomes a per-gap result.
func (o *Orchestrator) Run(ctx context.Context, req models.Request) models.Response {
	if err := Validate(req); err != nil {
		return models.Response{StatusCode: 400, Message: err.Error()}
	}

	log := logrus.WithFields(logrus.Fields{
		"instance_id": req.InstanceID,
		"region":      req.Region,
	})

	clients, err := o.factory.Clients(ctx, req.Region)
	if err != nil {
		log.WithError(err).Error("Failed to create AWS clients")
		return models.Response{StatusCode: 500, Message: fmt.Sprintf("failed to create clients for region %s: %v", req.Region, err)}
	}

	window := utils.LookbackWindow(o.opts.Now(), req.Days, req.Hours, o.opts.LookbackDays)
	log.Infof("Looking up tracked service traffic for the last %s", utils.DescribeLookback(req.Days, req.Hours, o.opts.LookbackDays))

	events := classifier.New(clients.Audit, o.opts.Catalog).Classify(ctx, req.InstanceID, req.Region, window)
	summary := aggregator.Aggregate(events, o.opts.Thresholds)

	if summary.Observed == 0 {
		return models.Response{
			StatusCode: 200,
			Message:    fmt.Sprintf("no relevant traffic found for instance %s", req.InstanceID),
		}
	}
	log.Infof("Classified %d events, %d over the public path", summary.Observed, summary.PublicPath)

	if len(summary.Gaps) == 0 {
		return models.Response{
			StatusCode: 200,
			Message:    fmt.Sprintf("no missing VPC endpoint detected for instance %s", req.InstanceID),
		}
	}
	o.record(func(r Recorder) error { return r.RecordGaps(ctx, req.InstanceID, summary.Gaps) })

	resolver := topology.NewResolver(clients.Network)
	network, err := resolver.ResolveInstanceNetwork(ctx, req.InstanceID)
	if err != nil {
		log.WithError(err).Error("Network context resolution failed")
		return models.Response{
			StatusCode: 500,
			Message:    fmt.Sprintf("failed to resolve network of instance %s: %v", req.InstanceID, err),
		}
	}

	r := run{req: req, clients: clients, network: network}
	results := make([]models.EndpointResult, 0, len(summary.Gaps))
	for _, gap := range summary.Gaps {
		if gap.Region != req.Region {
			log.WithField("service", gap.Service).Debugf("Skipping gap in foreign region %s", gap.Region)
			continue
		}
		results = append(results, o.provision(ctx, r, resolver, gap))
	}

	o.record(func(rec Recorder) error { return rec.RecordResults(ctx, req.InstanceID, results) })

	return models.Response{StatusCode: 200, Results: results}
}

// provision drives one gap to a terminal state
func (o *Orchestrator) provision(ctx context.Context, r run, resolver *topology.Resolver, gap models.CandidateGap) models.EndpointResult {
	vpcID := r.network.NetworkID
	result := models.EndpointResult{Service: gap.Service, Region: gap.Region}
	log := logrus.WithFields(logrus.Fields{
		"service": gap.Service,
		"region":  gap.Region,
		"vpc_id":  vpcID,
	})

	fail := func(format string, args ...interface{}) models.EndpointResult {
		result.Status = models.StatusFail
		result.Message = fmt.Sprintf(format, args...)
		log.Warn(result.Message)
		return result
	}

	entry, ok := o.opts.Catalog.ByService(gap.Service)
	if !ok {
		return fail("service %s is not tracked", gap.Service)
	}
	serviceName := entry.ServiceName(gap.Region)

	existing, err := r.clients.Endpoints.ListExistingEndpoints(ctx, vpcID, serviceName)
	if err != nil {
		return fail("existing endpoint check failed for %s: %v", serviceName, err)
	}
	for _, ep := range existing {
		if !ep.Live() {
			continue
		}
		result.Status = models.StatusAlreadyExists
		result.EndpointID = ep.EndpointID
		result.State = ep.State
		result.Message = fmt.Sprintf("endpoint %s for %s already exists in VPC %s, skipping creation", ep.EndpointID, serviceName, vpcID)
		log.Info(result.Message)
		return result
	}

	params := models.CreateEndpointParams{
		Type:        entry.EndpointType,
		VpcID:       vpcID,
		ServiceName: serviceName,
		Tags: map[string]string{
			"Name":                         fmt.Sprintf("%s-%s-endpoint", vpcID, gap.Service),
			"Service":                      string(gap.Service),
			"NetworkId":                    vpcID,
			"CreatedFromReferenceInstance": r.req.InstanceID,
		},
	}

	subnets, err := resolver.ListSubnets(ctx, vpcID)
	if err != nil {
		return fail("subnet inventory failed: %v", err)
	}

	var placementSummary string
	switch entry.EndpointType {
	case models.EndpointTypeGateway:
		tables, err := resolver.ListRouteTables(ctx, vpcID)
		if err != nil {
			return fail("route table inventory failed: %v", err)
		}
		ids, summary, err := o.opts.Selector.SelectRouteTables(subnets, tables)
		if err != nil {
			return fail("route table selection failed: %s", summary)
		}
		params.RouteTableIDs = ids
		placementSummary = summary
	default:
		ids, summary, err := o.opts.Selector.SelectSubnets(subnets)
		if err != nil {
			return fail("subnet selection failed: %s", summary)
		}
		params.SubnetIDs = ids
		params.SecurityGroupIDs = r.network.SecurityGroupIDs
		params.PrivateDNSEnabled = o.opts.PrivateDNSEnabled
		placementSummary = summary
	}
	log.Info(placementSummary)

	created, err := r.clients.Endpoints.CreateEndpoint(ctx, params)
	if err != nil {
		return fail("endpoint creation failed: %v", err)
	}
	if created.EndpointID == "" {
		return fail("endpoint creation succeeded but the response has no endpoint id")
	}

	result.Status = models.StatusCreated
	result.EndpointID = created.EndpointID
	result.State = created.State
	result.Message = placementSummary
	log.WithField("endpoint_id", created.EndpointID).Infof("Created %s endpoint (%s)", entry.EndpointType, created.State)
	return result
}

func (o *Orchestrator) record(fn func(Recorder) error) {
	if o.opts.Recorder == nil {
		return
	}
	if err := fn(o.opts.Recorder); err != nil {
		logrus.WithError(err).Warn("Failed to record run outcome")
	}
}
