package aws

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	ctTypes "github.com/aws/aws-sdk-go-v2/service/cloudtrail/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	logsTypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3Types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/younsl/vpcepilot/internal/models"
)

var testWindow = models.TimeWindow{
	Start: time.Date(2024, 5, 1, 22, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 5, 2, 2, 0, 0, 0, time.UTC),
}

type fakeCloudTrail struct {
	inputs []*cloudtrail.LookupEventsInput
	pages  map[string][]*cloudtrail.LookupEventsOutput
	err    error
}

func (f *fakeCloudTrail) LookupEvents(_ context.Context, in *cloudtrail.LookupEventsInput, _ ...func(*cloudtrail.Options)) (*cloudtrail.LookupEventsOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	source := ""
	if len(in.LookupAttributes) > 0 {
		source = aws.ToString(in.LookupAttributes[0].AttributeValue)
	}
	pages := f.pages[source]
	if in.NextToken != nil {
		return pages[1], nil
	}
	return pages[0], nil
}

func ctEvent(id string) ctTypes.Event {
	return ctTypes.Event{EventId: aws.String(id), CloudTrailEvent: aws.String(`{"eventID":"` + id + `"}`)}
}

func TestCloudTrailSource_OneLookupPerEventSource(t *testing.T) {
	fake := &fakeCloudTrail{pages: map[string][]*cloudtrail.LookupEventsOutput{
		"s3.amazonaws.com": {
			{Events: []ctTypes.Event{ctEvent("a")}, NextToken: aws.String("more")},
			{Events: []ctTypes.Event{ctEvent("b")}},
		},
		"ecr.amazonaws.com": {
			{Events: []ctTypes.Event{ctEvent("c")}},
		},
	}}

	src := NewCloudTrailSource(fake, []string{"s3.amazonaws.com", "ecr.amazonaws.com"})
	got, err := src.QueryAuditEvents(context.Background(), "ap-northeast-2", testWindow)
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].EventID)
	assert.Equal(t, `{"eventID":"a"}`, got[0].Payload)
	assert.Equal(t, "c", got[2].EventID)

	require.Len(t, fake.inputs, 3)
	first := fake.inputs[0]
	assert.Equal(t, testWindow.Start, aws.ToTime(first.StartTime))
	assert.Equal(t, testWindow.End, aws.ToTime(first.EndTime))
	assert.Equal(t, int32(lookupMaxResults), aws.ToInt32(first.MaxResults))
	assert.Equal(t, ctTypes.LookupAttributeKeyEventSource, first.LookupAttributes[0].AttributeKey)
}

func TestCloudTrailSource_NoEventSourcesScansEverything(t *testing.T) {
	fake := &fakeCloudTrail{pages: map[string][]*cloudtrail.LookupEventsOutput{
		"": {{Events: []ctTypes.Event{ctEvent("a")}}},
	}}

	got, err := NewCloudTrailSource(fake, nil).QueryAuditEvents(context.Background(), "r", testWindow)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Empty(t, fake.inputs[0].LookupAttributes)
}

func TestCloudTrailSource_InvalidTimeRange(t *testing.T) {
	fake := &fakeCloudTrail{err: &ctTypes.InvalidTimeRangeException{Message: aws.String("too old")}}

	_, err := NewCloudTrailSource(fake, []string{"s3.amazonaws.com"}).QueryAuditEvents(context.Background(), "r", testWindow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "90 days")

	var invalidRange *ctTypes.InvalidTimeRangeException
	assert.True(t, errors.As(err, &invalidRange))
}

type fakeLogs struct {
	input *cloudwatchlogs.FilterLogEventsInput
	out   *cloudwatchlogs.FilterLogEventsOutput
	err   error
}

func (f *fakeLogs) FilterLogEvents(_ context.Context, in *cloudwatchlogs.FilterLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error) {
	f.input = in
	return f.out, f.err
}

func TestEventSourcePattern(t *testing.T) {
	assert.Empty(t, eventSourcePattern(nil))
	assert.Equal(t, `{ ($.eventSource = "s3.amazonaws.com") }`, eventSourcePattern([]string{"s3.amazonaws.com"}))
	assert.Equal(t,
		`{ ($.eventSource = "s3.amazonaws.com") || ($.eventSource = "ecr.amazonaws.com") }`,
		eventSourcePattern([]string{"s3.amazonaws.com", "ecr.amazonaws.com"}))
}

func TestLogsSource_QueryAuditEvents(t *testing.T) {
	fake := &fakeLogs{out: &cloudwatchlogs.FilterLogEventsOutput{Events: []logsTypes.FilteredLogEvent{
		{EventId: aws.String("1"), Message: aws.String(`{"eventSource":"s3.amazonaws.com"}`)},
	}}}

	src := NewLogsSource(fake, "aws-cloudtrail-logs", []string{"s3.amazonaws.com"})
	got, err := src.QueryAuditEvents(context.Background(), "r", testWindow)
	require.NoError(t, err)

	assert.Equal(t, []models.RawAuditRecord{{EventID: "1", Payload: `{"eventSource":"s3.amazonaws.com"}`}}, got)
	assert.Equal(t, "aws-cloudtrail-logs", aws.ToString(fake.input.LogGroupName))
	assert.Equal(t, testWindow.Start.UnixMilli(), aws.ToInt64(fake.input.StartTime))
	assert.Equal(t, testWindow.End.UnixMilli(), aws.ToInt64(fake.input.EndTime))
	assert.Contains(t, aws.ToString(fake.input.FilterPattern), "s3.amazonaws.com")
}

func TestLogsSource_MissingLogGroup(t *testing.T) {
	fake := &fakeLogs{err: &logsTypes.ResourceNotFoundException{Message: aws.String("gone")}}

	_, err := NewLogsSource(fake, "missing", nil).QueryAuditEvents(context.Background(), "r", testWindow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log group missing not found")
}

type fakeS3 struct {
	prefixes []string
	objects  map[string][]s3Types.Object
	bodies   map[string][]byte
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(in.Prefix)
	f.prefixes = append(f.prefixes, prefix)
	return &s3.ListObjectsV2Output{Contents: f.objects[prefix]}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.bodies[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestS3TrailSource_ReadsDayPrefixesInWindow(t *testing.T) {
	day1 := "AWSLogs/111122223333/CloudTrail/ap-northeast-2/2024/05/01/"
	day2 := "AWSLogs/111122223333/CloudTrail/ap-northeast-2/2024/05/02/"
	fake := &fakeS3{
		objects: map[string][]s3Types.Object{
			day1: {
				{Key: aws.String(day1 + "stale.json.gz"), LastModified: aws.Time(testWindow.Start.Add(-time.Hour))},
				{Key: aws.String(day1 + "a.json.gz"), LastModified: aws.Time(testWindow.Start.Add(time.Hour))},
			},
			day2: {
				{Key: aws.String(day2 + "broken.json.gz"), LastModified: aws.Time(testWindow.End)},
				{Key: aws.String(day2 + "missing.json.gz"), LastModified: aws.Time(testWindow.End)},
			},
		},
		bodies: map[string][]byte{
			day1 + "a.json.gz": gzipped(t, `{"Records":[
				{"eventID":"in","eventTime":"2024-05-01T23:00:00Z"},
				{"eventID":"before","eventTime":"2024-05-01T21:00:00Z"},
				"not-an-object"
			]}`),
			day2 + "broken.json.gz": []byte("plain text"),
		},
	}

	src := NewS3TrailSource(fake, "trail-bucket", "/AWSLogs/111122223333/CloudTrail/")
	got, err := src.QueryAuditEvents(context.Background(), "ap-northeast-2", testWindow)
	require.NoError(t, err)

	assert.Equal(t, []string{day1, day2}, fake.prefixes)
	require.Len(t, got, 2)
	assert.Equal(t, "in", got[0].EventID)
	assert.Empty(t, got[1].EventID)
	assert.Equal(t, `"not-an-object"`, got[1].Payload)
}

func TestS3TrailSource_EmptyPrefix(t *testing.T) {
	src := NewS3TrailSource(&fakeS3{}, "b", "")
	assert.Equal(t, "us-east-1/2024/05/01/", src.dayPrefix("us-east-1", testWindow.Start))
}
