package aws

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/younsl/vpcepilot/internal/models"
)

type fakeEC2 struct {
	instances   *ec2.DescribeInstancesOutput
	instanceErr error
	subnetPages []*ec2.DescribeSubnetsOutput
	tables      *ec2.DescribeRouteTablesOutput
	endpoints   *ec2.DescribeVpcEndpointsOutput
	created     *ec2.CreateVpcEndpointOutput
	createInput *ec2.CreateVpcEndpointInput
	filters     []types.Filter
}

func (f *fakeEC2) DescribeInstances(_ context.Context, _ *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	return f.instances, f.instanceErr
}

func (f *fakeEC2) DescribeSubnets(_ context.Context, in *ec2.DescribeSubnetsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error) {
	f.filters = in.Filters
	idx := 0
	if in.NextToken != nil {
		idx = 1
	}
	return f.subnetPages[idx], nil
}

func (f *fakeEC2) DescribeRouteTables(_ context.Context, _ *ec2.DescribeRouteTablesInput, _ ...func(*ec2.Options)) (*ec2.DescribeRouteTablesOutput, error) {
	return f.tables, nil
}

func (f *fakeEC2) DescribeVpcEndpoints(_ context.Context, in *ec2.DescribeVpcEndpointsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcEndpointsOutput, error) {
	f.filters = in.Filters
	return f.endpoints, nil
}

func (f *fakeEC2) CreateVpcEndpoint(_ context.Context, in *ec2.CreateVpcEndpointInput, _ ...func(*ec2.Options)) (*ec2.CreateVpcEndpointOutput, error) {
	f.createInput = in
	return f.created, nil
}

func TestDescribeInstance_ExtractsNetworkAttributes(t *testing.T) {
	fake := &fakeEC2{instances: &ec2.DescribeInstancesOutput{
		Reservations: []types.Reservation{{Instances: []types.Instance{{
			InstanceId: aws.String("i-1"),
			VpcId:      aws.String("vpc-1"),
			SubnetId:   aws.String("subnet-a"),
			SecurityGroups: []types.GroupIdentifier{
				{GroupId: aws.String("sg-1")},
				{GroupName: aws.String("no-id")},
			},
		}}}},
	}}

	got, err := NewEC2Client(fake, "ap-northeast-2").DescribeInstance(context.Background(), "i-1")
	require.NoError(t, err)
	assert.Equal(t, models.InstanceRecord{
		InstanceID:       "i-1",
		VpcID:            "vpc-1",
		SubnetID:         "subnet-a",
		SecurityGroupIDs: []string{"sg-1"},
	}, got)
}

func TestDescribeInstance_NotFound(t *testing.T) {
	fake := &fakeEC2{instanceErr: &smithy.GenericAPIError{Code: "InvalidInstanceID.NotFound", Message: "does not exist"}}
	_, err := NewEC2Client(fake, "ap-northeast-2").DescribeInstance(context.Background(), "i-1")
	assert.ErrorIs(t, err, models.ErrInstanceNotFound)

	fake = &fakeEC2{instances: &ec2.DescribeInstancesOutput{}}
	_, err = NewEC2Client(fake, "ap-northeast-2").DescribeInstance(context.Background(), "i-1")
	assert.ErrorIs(t, err, models.ErrInstanceNotFound)
}

func TestListSubnets_FollowsPagination(t *testing.T) {
	fake := &fakeEC2{subnetPages: []*ec2.DescribeSubnetsOutput{
		{
			Subnets:   []types.Subnet{{SubnetId: aws.String("subnet-a"), AvailabilityZone: aws.String("az-a"), State: types.SubnetStateAvailable}},
			NextToken: aws.String("next"),
		},
		{
			Subnets: []types.Subnet{{SubnetId: aws.String("subnet-b"), AvailabilityZone: aws.String("az-b"), State: types.SubnetStatePending}},
		},
	}}

	got, err := NewEC2Client(fake, "r").ListSubnets(context.Background(), "vpc-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Available())
	assert.False(t, got[1].Available())
	assert.Equal(t, "vpc-id", aws.ToString(fake.filters[0].Name))
	assert.Equal(t, []string{"vpc-1"}, fake.filters[0].Values)
}

func TestListRouteTables_MapsMainAndAssociations(t *testing.T) {
	fake := &fakeEC2{tables: &ec2.DescribeRouteTablesOutput{RouteTables: []types.RouteTable{
		{
			RouteTableId: aws.String("rtb-main"),
			Associations: []types.RouteTableAssociation{{Main: aws.Bool(true)}},
		},
		{
			RouteTableId: aws.String("rtb-private"),
			Associations: []types.RouteTableAssociation{
				{Main: aws.Bool(false), SubnetId: aws.String("subnet-a")},
				{SubnetId: aws.String("subnet-b")},
			},
		},
	}}}

	got, err := NewEC2Client(fake, "r").ListRouteTables(context.Background(), "vpc-1")
	require.NoError(t, err)
	assert.Equal(t, []models.RouteTableRecord{
		{RouteTableID: "rtb-main", IsMain: true},
		{RouteTableID: "rtb-private", AssociatedSubnetIDs: []string{"subnet-a", "subnet-b"}},
	}, got)
}

func TestListExistingEndpoints_FiltersByVPCAndServiceName(t *testing.T) {
	fake := &fakeEC2{endpoints: &ec2.DescribeVpcEndpointsOutput{VpcEndpoints: []types.VpcEndpoint{
		{VpcEndpointId: aws.String("vpce-1"), ServiceName: aws.String("com.amazonaws.r.s3"), State: types.State("available")},
	}}}

	got, err := NewEC2Client(fake, "r").ListExistingEndpoints(context.Background(), "vpc-1", "com.amazonaws.r.s3")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Live())
	require.Len(t, fake.filters, 2)
	assert.Equal(t, "service-name", aws.ToString(fake.filters[1].Name))
	assert.Equal(t, []string{"com.amazonaws.r.s3"}, fake.filters[1].Values)
}

func TestCreateEndpoint_Gateway(t *testing.T) {
	fake := &fakeEC2{created: &ec2.CreateVpcEndpointOutput{VpcEndpoint: &types.VpcEndpoint{
		VpcEndpointId: aws.String("vpce-new"),
		State:         types.State("pending"),
	}}}

	got, err := NewEC2Client(fake, "r").CreateEndpoint(context.Background(), models.CreateEndpointParams{
		Type:             models.EndpointTypeGateway,
		VpcID:            "vpc-1",
		ServiceName:      "com.amazonaws.r.s3",
		RouteTableIDs:    []string{"rtb-main"},
		SecurityGroupIDs: []string{"sg-ignored"},
		Tags:             map[string]string{"Name": "vpc-1-S3-endpoint"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.CreatedEndpoint{EndpointID: "vpce-new", State: "pending"}, got)

	in := fake.createInput
	assert.Equal(t, types.VpcEndpointTypeGateway, in.VpcEndpointType)
	assert.Equal(t, []string{"rtb-main"}, in.RouteTableIds)
	assert.Empty(t, in.SecurityGroupIds)
	assert.Nil(t, in.PrivateDnsEnabled)
	require.Len(t, in.TagSpecifications, 1)
	assert.Equal(t, types.ResourceTypeVpcEndpoint, in.TagSpecifications[0].ResourceType)
}

func TestCreateEndpoint_Interface(t *testing.T) {
	fake := &fakeEC2{created: &ec2.CreateVpcEndpointOutput{}}

	got, err := NewEC2Client(fake, "r").CreateEndpoint(context.Background(), models.CreateEndpointParams{
		Type:              models.EndpointTypeInterface,
		VpcID:             "vpc-1",
		ServiceName:       "com.amazonaws.r.ecr.dkr",
		SubnetIDs:         []string{"subnet-a", "subnet-b"},
		SecurityGroupIDs:  []string{"sg-1"},
		PrivateDNSEnabled: true,
	})
	require.NoError(t, err)
	assert.Empty(t, got.EndpointID)

	in := fake.createInput
	assert.Equal(t, types.VpcEndpointTypeInterface, in.VpcEndpointType)
	assert.Equal(t, []string{"subnet-a", "subnet-b"}, in.SubnetIds)
	assert.Equal(t, []string{"sg-1"}, in.SecurityGroupIds)
	assert.True(t, aws.ToBool(in.PrivateDnsEnabled))
	assert.Empty(t, in.RouteTableIds)
}
