package models

import "strings"

// EndpointStatus is the terminal state of a candidate gap
type EndpointStatus string

const (
	StatusAlreadyExists EndpointStatus = "already_exists"
	StatusCreated       EndpointStatus = "created"
	StatusFail          EndpointStatus = "fail"
)

// ExistingEndpoint is a VPC endpoint already present in the network
type ExistingEndpoint struct {
	EndpointID  string
	ServiceName string
	State       string
}

// Live reports whether the endpoint blocks creation of a duplicate.
// Deleting, deleted and failed endpoints do not.
func (e ExistingEndpoint) Live() bool {
	switch strings.ToLower(e.State) {
	case "deleting", "deleted", "failed":
		return false
	}
	return true
}

// CreateEndpointParams describes a VPC endpoint to create
type CreateEndpointParams struct {
	Type              EndpointType
	VpcID             string
	ServiceName       string
	RouteTableIDs     []string // gateway only
	SubnetIDs         []string // interface only
	SecurityGroupIDs  []string // interface only
	PrivateDNSEnabled bool     // interface only
	Tags              map[string]string
}

// CreatedEndpoint is the response of a creation call
type CreatedEndpoint struct {
	EndpointID string
	State      string
}

// EndpointResult is the outcome for one candidate gap
type EndpointResult struct {
	Service    Service        `json:"service"`
	Region     string         `json:"region"`
	Status     EndpointStatus `json:"status"`
	EndpointID string         `json:"endpoint_id,omitempty"`
	State      string         `json:"state,omitempty"`
	Message    string         `json:"message,omitempty"`
}
