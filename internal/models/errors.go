package models

import "errors"

var (
	// ErrInstanceNotFound is returned when the subject instance does not exist
	ErrInstanceNotFound = errors.New("instance not found")

	// ErrIncompleteNetworkContext is returned when the instance lacks a VPC, subnet or security group
	ErrIncompleteNetworkContext = errors.New("incomplete instance network context")
)
