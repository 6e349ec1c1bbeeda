package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"

	"github.com/younsl/vpcepilot/internal/models"
	"github.com/younsl/vpcepilot/pkg/utils"
)

// S3API is the subset of the S3 client used to read trail log files
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3TrailSource reads gzipped CloudTrail log files delivered to an S3 bucket.
// Keys follow <prefix>/<region>/YYYY/MM/DD/<file>.json.gz.
type S3TrailSource struct {
	client S3API
	bucket string
	prefix string
}

// NewS3TrailSource creates an S3TrailSource. prefix is the key prefix up to
// and including CloudTrail, e.g. AWSLogs/123456789012/CloudTrail.
func NewS3TrailSource(client S3API, bucket, prefix string) *S3TrailSource {
	return &S3TrailSource{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// trailFile is the envelope of one CloudTrail log file
type trailFile struct {
	Records []json.RawMessage `json:"Records"`
}

// recordHeader is read to drop records outside the window
type recordHeader struct {
	EventID   string    `json:"eventID"`
	EventTime time.Time `json:"eventTime"`
}

func (s *S3TrailSource) dayPrefix(region string, day time.Time) string {
	p := fmt.Sprintf("%s/%s/", region, day.Format("2006/01/02"))
	if s.prefix == "" {
		return p
	}
	return s.prefix + "/" + p
}

// QueryAuditEvents implements classifier.AuditSource
func (s *S3TrailSource) QueryAuditEvents(ctx context.Context, region string, window models.TimeWindow) ([]models.RawAuditRecord, error) {
	var records []models.RawAuditRecord
	log := logrus.WithFields(logrus.Fields{"bucket": s.bucket, "region": region})

	for _, day := range utils.UTCDays(window) {
		paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(s.bucket),
			Prefix: aws.String(s.dayPrefix(region, day)),
		})

		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("error listing trail logs in s3://%s/%s: %w", s.bucket, s.dayPrefix(region, day), err)
			}

			for _, obj := range page.Contents {
				// log files are delivered after the events they hold
				if obj.LastModified != nil && obj.LastModified.Before(window.Start) {
					continue
				}
				key := aws.ToString(obj.Key)
				found, err := s.readLogFile(ctx, key, window)
				if err != nil {
					log.WithField("key", key).WithError(err).Warn("Skipping unreadable trail log file")
					continue
				}
				records = append(records, found...)
			}
		}
	}

	return records, nil
}

func (s *S3TrailSource) readLogFile(ctx context.Context, key string, window models.TimeWindow) ([]models.RawAuditRecord, error) {
	obj, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("error reading s3://%s/%s: %w", s.bucket, key, err)
	}
	defer obj.Body.Close()

	gz, err := gzip.NewReader(obj.Body)
	if err != nil {
		return nil, fmt.Errorf("error decompressing %s: %w", key, err)
	}
	defer gz.Close()

	var file trailFile
	if err := json.NewDecoder(gz).Decode(&file); err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", key, err)
	}

	records := make([]models.RawAuditRecord, 0, len(file.Records))
	for _, raw := range file.Records {
		var header recordHeader
		// malformed records are passed on for the classifier to report
		if err := json.Unmarshal(raw, &header); err == nil {
			if header.EventTime.Before(window.Start) || header.EventTime.After(window.End) {
				continue
			}
		}
		records = append(records, models.RawAuditRecord{
			EventID: header.EventID,
			Payload: string(raw),
		})
	}

	return records, nil
}
