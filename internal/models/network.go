package models

// InstanceRecord is the subset of an EC2 instance description the resolver needs.
// Empty fields mean the attribute was absent.
type InstanceRecord struct {
	InstanceID       string
	VpcID            string
	SubnetID         string
	SecurityGroupIDs []string
}

// NetworkContext is the validated network placement of the subject instance
type NetworkContext struct {
	NetworkID        string
	SubnetID         string // instance's own subnet, reference only
	SecurityGroupIDs []string
}

// SubnetState mirrors the EC2 subnet state
type SubnetState string

const (
	SubnetStateAvailable SubnetState = "available"
	SubnetStatePending   SubnetState = "pending"
)

// SubnetRecord is one subnet of the inventory snapshot
type SubnetRecord struct {
	SubnetID         string
	AvailabilityZone string
	State            SubnetState
}

// Available reports whether the subnet can host an endpoint
func (s SubnetRecord) Available() bool {
	return s.State == SubnetStateAvailable
}

// RouteTableRecord is one route table of the inventory snapshot
type RouteTableRecord struct {
	RouteTableID        string
	IsMain              bool
	AssociatedSubnetIDs []string
}
