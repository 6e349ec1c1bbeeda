package placement

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/younsl/vpcepilot/internal/models"
)

// DefaultMaxAZ is the default number of availability zones an endpoint spans
const DefaultMaxAZ = 3

var (
	// ErrNoAvailableSubnets is returned when no availability zone has an available subnet
	ErrNoAvailableSubnets = errors.New("no available subnets")

	// ErrNoRouteTableSelectable is returned when neither an associated nor a main route table exists
	ErrNoRouteTableSelectable = errors.New("no route table selectable")
)

// FallbackRule decides the main route table when none is flagged as the VPC default association
type FallbackRule string

const (
	// FallbackFirst uses the first route table of the inventory. Inventory order is not guaranteed.
	FallbackFirst FallbackRule = "first"
	// FallbackLowestID uses the lexically smallest route table id
	FallbackLowestID FallbackRule = "lowest-id"
	// FallbackNone disables the implicit main route table
	FallbackNone FallbackRule = "none"
)

// Valid reports whether r is a known rule
func (r FallbackRule) Valid() bool {
	switch r {
	case FallbackFirst, FallbackLowestID, FallbackNone:
		return true
	}
	return false
}

// Selector picks availability zone diverse placements for VPC endpoints.
// Selections are deterministic for a given inventory snapshot.
type Selector struct {
	maxAZ    int
	fallback FallbackRule
}

// NewSelector creates a Selector spanning at most maxAZ zones
func NewSelector(maxAZ int, fallback FallbackRule) *Selector {
	if maxAZ <= 0 {
		maxAZ = DefaultMaxAZ
	}
	if !fallback.Valid() {
		fallback = FallbackFirst
	}
	return &Selector{
		maxAZ:    maxAZ,
		fallback: fallback,
	}
}

// MaxAZ returns the zone cap
func (s *Selector) MaxAZ() int {
	return s.maxAZ
}

// zonePartition holds available subnets grouped by zone, zones in ascending order
type zonePartition struct {
	zones   []string
	subnets map[string][]string
}

func partitionByZone(subnets []models.SubnetRecord) zonePartition {
	p := zonePartition{subnets: make(map[string][]string)}
	for _, sub := range subnets {
		if sub.SubnetID == "" || sub.AvailabilityZone == "" || !sub.Available() {
			continue
		}
		if _, seen := p.subnets[sub.AvailabilityZone]; !seen {
			p.zones = append(p.zones, sub.AvailabilityZone)
		}
		p.subnets[sub.AvailabilityZone] = append(p.subnets[sub.AvailabilityZone], sub.SubnetID)
	}
	sort.Strings(p.zones)
	return p
}

func noSubnetsSummary(subnets []models.SubnetRecord) string {
	if len(subnets) == 0 {
		return "no subnets in VPC"
	}
	return fmt.Sprintf("none of %d subnets is available", len(subnets))
}

// SelectSubnets picks the first listed subnet of each zone, zones in ascending
// order, up to the zone cap. Used for interface endpoints.
func (s *Selector) SelectSubnets(subnets []models.SubnetRecord) ([]string, string, error) {
	p := partitionByZone(subnets)
	if len(p.zones) == 0 {
		return nil, noSubnetsSummary(subnets), ErrNoAvailableSubnets
	}

	var selected, details []string
	for _, az := range p.zones {
		if len(selected) >= s.maxAZ {
			break
		}
		subnetID := p.subnets[az][0]
		selected = append(selected, subnetID)
		details = append(details, fmt.Sprintf("%s (%s)", subnetID, az))
	}

	return selected, "selected subnets: " + strings.Join(details, ", "), nil
}

// SelectRouteTables picks one route table per zone, zones in ascending order.
// A zone with an explicitly associated subnet contributes that subnet's table;
// other zones share the main route table, which is added at most once.
// Used for gateway endpoints.
func (s *Selector) SelectRouteTables(subnets []models.SubnetRecord, tables []models.RouteTableRecord) ([]string, string, error) {
	p := partitionByZone(subnets)
	if len(p.zones) == 0 {
		return nil, noSubnetsSummary(subnets), ErrNoAvailableSubnets
	}

	subnetTable := make(map[string]string)
	for _, rt := range tables {
		for _, subnetID := range rt.AssociatedSubnetIDs {
			subnetTable[subnetID] = rt.RouteTableID
		}
	}
	mainID := s.mainRouteTable(tables)

	var selected []string
	seen := make(map[string]bool)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			selected = append(selected, id)
		}
	}

	for _, az := range p.zones {
		if len(selected) >= s.maxAZ {
			break
		}
		explicit := ""
		for _, subnetID := range p.subnets[az] {
			if rt, ok := subnetTable[subnetID]; ok {
				explicit = rt
				break
			}
		}
		switch {
		case explicit != "":
			add(explicit)
		case mainID != "":
			add(mainID)
		}
	}

	if len(selected) == 0 && mainID != "" {
		selected = []string{mainID}
	}
	if len(selected) == 0 {
		return nil, "no explicit route table association and no main route table", ErrNoRouteTableSelectable
	}

	details := make([]string, 0, len(selected))
	for _, id := range selected {
		if id == mainID {
			details = append(details, id+" (main)")
			continue
		}
		details = append(details, id)
	}

	return selected, "selected route tables: " + strings.Join(details, ", "), nil
}

// mainRouteTable returns the table flagged as main, else applies the fallback rule
func (s *Selector) mainRouteTable(tables []models.RouteTableRecord) string {
	for _, rt := range tables {
		if rt.IsMain && rt.RouteTableID != "" {
			return rt.RouteTableID
		}
	}
	if len(tables) == 0 {
		return ""
	}

	switch s.fallback {
	case FallbackLowestID:
		lowest := ""
		for _, rt := range tables {
			if rt.RouteTableID != "" && (lowest == "" || rt.RouteTableID < lowest) {
				lowest = rt.RouteTableID
			}
		}
		return lowest
	case FallbackNone:
		return ""
	default:
		return tables[0].RouteTableID
	}
}
