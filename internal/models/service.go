package models

// Service identifies a tracked managed service (e.g. "S3", "ECR")
type Service string

const (
	ServiceS3  Service = "S3"
	ServiceECR Service = "ECR"
)

// EndpointType is the kind of private access point a service is reached through
type EndpointType string

const (
	// EndpointTypeGateway is implemented through route table entries
	EndpointTypeGateway EndpointType = "Gateway"
	// EndpointTypeInterface is a network interface bound to subnets and security groups
	EndpointTypeInterface EndpointType = "Interface"
)

// Valid reports whether t is a known endpoint type
func (t EndpointType) Valid() bool {
	return t == EndpointTypeGateway || t == EndpointTypeInterface
}
