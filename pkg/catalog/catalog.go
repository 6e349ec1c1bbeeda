package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/younsl/vpcepilot/internal/models"
)

// Entry maps one audited event source to the endpoint that keeps its traffic private
type Entry struct {
	EventSource     string
	Service         models.Service
	EndpointService string // suffix after com.amazonaws.<region>., lowercase service id when empty
	EndpointType    models.EndpointType
}

// DefaultEntries are the services tracked out of the box.
// ECR image pulls go through the Docker registry API, hence ecr.dkr.
var DefaultEntries = []Entry{
	{
		EventSource:     "s3.amazonaws.com",
		Service:         models.ServiceS3,
		EndpointService: "s3",
		EndpointType:    models.EndpointTypeGateway,
	},
	{
		EventSource:     "ecr.amazonaws.com",
		Service:         models.ServiceECR,
		EndpointService: "ecr.dkr",
		EndpointType:    models.EndpointTypeInterface,
	},
}

// Catalog is the lookup table of tracked services
type Catalog struct {
	bySource  map[string]Entry
	byService map[models.Service]Entry
}

// New builds a catalog, rejecting duplicate event sources or service ids
func New(entries []Entry) (*Catalog, error) {
	c := &Catalog{
		bySource:  make(map[string]Entry, len(entries)),
		byService: make(map[models.Service]Entry, len(entries)),
	}

	for _, e := range entries {
		if e.EventSource == "" || e.Service == "" {
			return nil, fmt.Errorf("tracked service entry needs event source and service id: %+v", e)
		}
		if e.EndpointType == "" {
			e.EndpointType = defaultEndpointType(e.Service)
		}
		if !e.EndpointType.Valid() {
			return nil, fmt.Errorf("unknown endpoint type %q for service %s", e.EndpointType, e.Service)
		}
		if _, dup := c.bySource[e.EventSource]; dup {
			return nil, fmt.Errorf("duplicate event source %q", e.EventSource)
		}
		if _, dup := c.byService[e.Service]; dup {
			return nil, fmt.Errorf("duplicate service id %q", e.Service)
		}
		c.bySource[e.EventSource] = e
		c.byService[e.Service] = e
	}

	return c, nil
}

// Default returns the catalog of DefaultEntries
func Default() *Catalog {
	c, err := New(DefaultEntries)
	if err != nil {
		panic(err)
	}
	return c
}

// defaultEndpointType applies the object storage rule: S3 is gateway, everything else interface
func defaultEndpointType(service models.Service) models.EndpointType {
	if service == models.ServiceS3 {
		return models.EndpointTypeGateway
	}
	return models.EndpointTypeInterface
}

// ByEventSource returns the entry tracking the given CloudTrail event source
func (c *Catalog) ByEventSource(source string) (Entry, bool) {
	e, ok := c.bySource[source]
	return e, ok
}

// ByService returns the entry of a service id
func (c *Catalog) ByService(service models.Service) (Entry, bool) {
	e, ok := c.byService[service]
	return e, ok
}

// EventSources returns the tracked event sources in sorted order
func (c *Catalog) EventSources() []string {
	sources := make([]string, 0, len(c.bySource))
	for s := range c.bySource {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	return sources
}

// ServiceName returns the canonical endpoint service name, e.g. com.amazonaws.ap-northeast-2.ecr.dkr
func (e Entry) ServiceName(region string) string {
	suffix := e.EndpointService
	if suffix == "" {
		suffix = strings.ToLower(string(e.Service))
	}
	return fmt.Sprintf("com.amazonaws.%s.%s", region, suffix)
}
