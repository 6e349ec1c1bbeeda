package formatter

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/younsl/vpcepilot/internal/models"
)

func testRunInfo() RunInfo {
	start := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	return RunInfo{
		InstanceID: "i-0abc",
		Region:     "ap-northeast-2",
		Lookback:   "1 day",
		Window:     models.TimeWindow{Start: start.Add(-24 * time.Hour), End: start},
		StartTime:  start,
		Duration:   1500 * time.Millisecond,
	}
}

func TestPrintResultsTable_Results(t *testing.T) {
	resp := models.Response{StatusCode: 200, Results: []models.EndpointResult{
		{Service: models.ServiceECR, Region: "ap-northeast-2", Status: models.StatusCreated, EndpointID: "vpce-new", State: "pending"},
		{Service: models.ServiceS3, Region: "ap-northeast-2", Status: models.StatusAlreadyExists, EndpointID: "vpce-old"},
		{Service: "SQS", Region: "ap-northeast-2", Status: models.StatusFail, Message: "no available subnets"},
	}}

	var buf bytes.Buffer
	PrintResultsTable(&buf, resp, testRunInfo())
	out := buf.String()

	assert.Contains(t, out, "## VPC endpoint check for i-0abc in ap-northeast-2 (Asia Pacific (Seoul))")
	assert.Contains(t, out, "Audit window: last 1 day, since 2024-05-01 09:00:00")
	assert.Contains(t, out, "SERVICE  REGION")
	assert.Regexp(t, `ECR\s+ap-northeast-2\s+created\s+vpce-new\s+pending\s+-`, out)
	assert.Regexp(t, `SQS\s+ap-northeast-2\s+fail\s+-\s+-\s+no available subnets`, out)
	assert.Contains(t, out, "## Results by Status")
	assert.Regexp(t, `already_exists\s+1`, out)
	assert.Regexp(t, `Total:\s+3`, out)
	assert.Contains(t, out, "Run completed at 2024-05-02 09:00:00 (took 1.50s)")
}

func TestPrintResultsTable_Message(t *testing.T) {
	resp := models.Response{StatusCode: 200, Message: "no relevant traffic found for instance i-0abc"}

	var buf bytes.Buffer
	PrintResultsTable(&buf, resp, testRunInfo())
	out := buf.String()

	assert.Contains(t, out, "no relevant traffic found for instance i-0abc")
	assert.NotContains(t, out, "SERVICE")
	assert.NotContains(t, out, "Results by Status")
}

func TestPrintStatusSummary_SkipsEmptyStatuses(t *testing.T) {
	var buf bytes.Buffer
	PrintStatusSummary(&buf, []models.EndpointResult{{Status: models.StatusFail}, {Status: models.StatusFail}})

	out := buf.String()
	assert.Regexp(t, `fail\s+2`, out)
	assert.NotContains(t, out, "created")
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, models.Response{StatusCode: 400, Message: "instance_id and region are required"}))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, float64(400), decoded["statusCode"])
	assert.Equal(t, "instance_id and region are required", decoded["body"])
}
