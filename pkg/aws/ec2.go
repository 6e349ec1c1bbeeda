package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"

	"github.com/younsl/vpcepilot/internal/models"
	"github.com/younsl/vpcepilot/pkg/utils"
)

// EC2API is the subset of the EC2 client used for network inventory and endpoints
type EC2API interface {
	ec2.DescribeInstancesAPIClient
	ec2.DescribeSubnetsAPIClient
	ec2.DescribeRouteTablesAPIClient
	ec2.DescribeVpcEndpointsAPIClient
	CreateVpcEndpoint(ctx context.Context, params *ec2.CreateVpcEndpointInput, optFns ...func(*ec2.Options)) (*ec2.CreateVpcEndpointOutput, error)
}

// EC2Client struct for EC2 client
type EC2Client struct {
	client EC2API
	region string
}

// NewEC2Client creates a new EC2Client
func NewEC2Client(client EC2API, region string) *EC2Client {
	return &EC2Client{
		client: client,
		region: region,
	}
}

func vpcFilter(vpcID string) types.Filter {
	return types.Filter{
		Name:   aws.String("vpc-id"),
		Values: []string{vpcID},
	}
}

// DescribeInstance returns the network attributes of an instance
func (c *EC2Client) DescribeInstance(ctx context.Context, instanceID string) (models.InstanceRecord, error) {
	result, err := c.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "InvalidInstanceID.NotFound" || apiErr.ErrorCode() == "InvalidInstanceID.Malformed") {
			return models.InstanceRecord{}, fmt.Errorf("%w: %s", models.ErrInstanceNotFound, apiErr.ErrorMessage())
		}
		return models.InstanceRecord{}, fmt.Errorf("error querying EC2 instance %s in %s: %w", instanceID, c.region, err)
	}

	if len(result.Reservations) == 0 || len(result.Reservations[0].Instances) == 0 {
		return models.InstanceRecord{}, models.ErrInstanceNotFound
	}

	instance := result.Reservations[0].Instances[0]
	record := models.InstanceRecord{
		InstanceID: utils.SafeDeref(instance.InstanceId),
		VpcID:      utils.SafeDeref(instance.VpcId),
		SubnetID:   utils.SafeDeref(instance.SubnetId),
	}
	for _, sg := range instance.SecurityGroups {
		if id := utils.SafeDeref(sg.GroupId); id != "" {
			record.SecurityGroupIDs = append(record.SecurityGroupIDs, id)
		}
	}

	return record, nil
}

// ListSubnets returns all subnets of a VPC in inventory order
func (c *EC2Client) ListSubnets(ctx context.Context, vpcID string) ([]models.SubnetRecord, error) {
	paginator := ec2.NewDescribeSubnetsPaginator(c.client, &ec2.DescribeSubnetsInput{
		Filters: []types.Filter{vpcFilter(vpcID)},
	})

	var subnets []models.SubnetRecord
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("error describing subnets of %s: %w", vpcID, err)
		}
		for _, sub := range page.Subnets {
			subnets = append(subnets, models.SubnetRecord{
				SubnetID:         utils.SafeDeref(sub.SubnetId),
				AvailabilityZone: utils.SafeDeref(sub.AvailabilityZone),
				State:            models.SubnetState(sub.State),
			})
		}
	}

	return subnets, nil
}

// ListRouteTables returns all route tables of a VPC in inventory order
func (c *EC2Client) ListRouteTables(ctx context.Context, vpcID string) ([]models.RouteTableRecord, error) {
	paginator := ec2.NewDescribeRouteTablesPaginator(c.client, &ec2.DescribeRouteTablesInput{
		Filters: []types.Filter{vpcFilter(vpcID)},
	})

	var tables []models.RouteTableRecord
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("error describing route tables of %s: %w", vpcID, err)
		}
		for _, rt := range page.RouteTables {
			record := models.RouteTableRecord{RouteTableID: utils.SafeDeref(rt.RouteTableId)}
			for _, assoc := range rt.Associations {
				if aws.ToBool(assoc.Main) {
					record.IsMain = true
				}
				if id := utils.SafeDeref(assoc.SubnetId); id != "" {
					record.AssociatedSubnetIDs = append(record.AssociatedSubnetIDs, id)
				}
			}
			tables = append(tables, record)
		}
	}

	return tables, nil
}

// ListExistingEndpoints returns the endpoints of a VPC for a service name, in any state
func (c *EC2Client) ListExistingEndpoints(ctx context.Context, vpcID, serviceName string) ([]models.ExistingEndpoint, error) {
	paginator := ec2.NewDescribeVpcEndpointsPaginator(c.client, &ec2.DescribeVpcEndpointsInput{
		Filters: []types.Filter{
			vpcFilter(vpcID),
			{
				Name:   aws.String("service-name"),
				Values: []string{serviceName},
			},
		},
	})

	var endpoints []models.ExistingEndpoint
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("error describing VPC endpoints of %s: %w", vpcID, err)
		}
		for _, ep := range page.VpcEndpoints {
			endpoints = append(endpoints, models.ExistingEndpoint{
				EndpointID:  utils.SafeDeref(ep.VpcEndpointId),
				ServiceName: utils.SafeDeref(ep.ServiceName),
				State:       string(ep.State),
			})
		}
	}

	return endpoints, nil
}

// CreateEndpoint creates a gateway or interface VPC endpoint
func (c *EC2Client) CreateEndpoint(ctx context.Context, params models.CreateEndpointParams) (models.CreatedEndpoint, error) {
	input := &ec2.CreateVpcEndpointInput{
		VpcEndpointType: types.VpcEndpointType(params.Type),
		VpcId:           aws.String(params.VpcID),
		ServiceName:     aws.String(params.ServiceName),
		TagSpecifications: []types.TagSpecification{
			{
				ResourceType: types.ResourceTypeVpcEndpoint,
				Tags:         utils.ConvertToEC2Tags(params.Tags),
			},
		},
	}

	switch params.Type {
	case models.EndpointTypeGateway:
		input.RouteTableIds = params.RouteTableIDs
	case models.EndpointTypeInterface:
		input.SubnetIds = params.SubnetIDs
		input.SecurityGroupIds = params.SecurityGroupIDs
		input.PrivateDnsEnabled = aws.Bool(params.PrivateDNSEnabled)
	}

	result, err := c.client.CreateVpcEndpoint(ctx, input)
	if err != nil {
		return models.CreatedEndpoint{}, fmt.Errorf("error creating %s endpoint in %s: %w", params.ServiceName, params.VpcID, err)
	}
	if result.VpcEndpoint == nil {
		return models.CreatedEndpoint{}, nil
	}

	return models.CreatedEndpoint{
		EndpointID: utils.SafeDeref(result.VpcEndpoint.VpcEndpointId),
		State:      string(result.VpcEndpoint.State),
	}, nil
}
