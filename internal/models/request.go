package models

import "encoding/json"

// Request is a single invocation input
type Request struct {
	InstanceID string `json:"instance_id"`
	Region     string `json:"region"`
	Days       *int   `json:"days,omitempty"`
	Hours      *int   `json:"hours,omitempty"`
}

// Response is a single invocation output. Body is either Message or Results.
type Response struct {
	StatusCode int
	Message    string
	Results    []EndpointResult
}

// HasResults reports whether the body is a result list rather than a message
func (r Response) HasResults() bool {
	return r.Results != nil
}

// MarshalJSON renders {"statusCode": ..., "body": ...}
func (r Response) MarshalJSON() ([]byte, error) {
	var body interface{} = r.Message
	if r.HasResults() {
		body = r.Results
	}
	return json.Marshal(struct {
		StatusCode int         `json:"statusCode"`
		Body       interface{} `json:"body"`
	}{
		StatusCode: r.StatusCode,
		Body:       body,
	})
}
