package topology

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/younsl/vpcepilot/internal/models"
)

// NetworkAPI is the region-scoped network inventory transport
type NetworkAPI interface {
	// DescribeInstance returns models.ErrInstanceNotFound when the instance does not exist
	DescribeInstance(ctx context.Context, instanceID string) (models.InstanceRecord, error)
	ListSubnets(ctx context.Context, vpcID string) ([]models.SubnetRecord, error)
	ListRouteTables(ctx context.Context, vpcID string) ([]models.RouteTableRecord, error)
}

// Resolver resolves the network context of an instance and the inventory of its VPC
type Resolver struct {
	api NetworkAPI
}

// NewResolver creates a Resolver on top of api
func NewResolver(api NetworkAPI) *Resolver {
	return &Resolver{api: api}
}

// ResolveInstanceNetwork returns the VPC and security groups of instanceID.
// A missing VPC, subnet or security group is a failure: endpoints cannot be
// attached safely with partial context.
func (r *Resolver) ResolveInstanceNetwork(ctx context.Context, instanceID string) (models.NetworkContext, error) {
	log := logrus.WithField("instance_id", instanceID)
	log.Info("Resolving instance network context")

	inst, err := r.api.DescribeInstance(ctx, instanceID)
	if err != nil {
		if errors.Is(err, models.ErrInstanceNotFound) {
			return models.NetworkContext{}, fmt.Errorf("instance %s: %w", instanceID, models.ErrInstanceNotFound)
		}
		return models.NetworkContext{}, fmt.Errorf("error describing instance %s: %w", instanceID, err)
	}

	var sgIDs []string
	for _, id := range inst.SecurityGroupIDs {
		if id != "" {
			sgIDs = append(sgIDs, id)
		}
	}

	var missing []string
	if inst.VpcID == "" {
		missing = append(missing, "vpc")
	}
	if inst.SubnetID == "" {
		missing = append(missing, "subnet")
	}
	if len(sgIDs) == 0 {
		missing = append(missing, "security group")
	}
	if len(missing) > 0 {
		return models.NetworkContext{}, fmt.Errorf("instance %s missing %v: %w", instanceID, missing, models.ErrIncompleteNetworkContext)
	}

	log.WithField("vpc_id", inst.VpcID).Debugf("Instance attached to %d security groups", len(sgIDs))

	return models.NetworkContext{
		NetworkID:        inst.VpcID,
		SubnetID:         inst.SubnetID,
		SecurityGroupIDs: sgIDs,
	}, nil
}

// ListSubnets returns the subnet inventory of vpcID
func (r *Resolver) ListSubnets(ctx context.Context, vpcID string) ([]models.SubnetRecord, error) {
	subnets, err := r.api.ListSubnets(ctx, vpcID)
	if err != nil {
		return nil, fmt.Errorf("error listing subnets of %s: %w", vpcID, err)
	}
	return subnets, nil
}

// ListRouteTables returns the route table inventory of vpcID
func (r *Resolver) ListRouteTables(ctx context.Context, vpcID string) ([]models.RouteTableRecord, error) {
	tables, err := r.api.ListRouteTables(ctx, vpcID)
	if err != nil {
		return nil, fmt.Errorf("error listing route tables of %s: %w", vpcID, err)
	}
	return tables, nil
}
