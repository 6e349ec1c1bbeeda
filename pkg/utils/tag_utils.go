package utils

import (
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// ConvertToEC2Tags converts a map of tags to a slice of EC2 tags sorted by key
func ConvertToEC2Tags(tags map[string]string) []types.Tag {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]types.Tag, 0, len(keys))
	for _, k := range keys {
		result = append(result, types.Tag{
			Key:   aws.String(k),
			Value: aws.String(tags[k]),
		})
	}
	return result
}
