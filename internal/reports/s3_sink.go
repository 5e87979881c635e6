package reports

import (
	"bytes"
	"context"
	"io"
	"path"

	"carbon-scribe/mrv/mrv-backend/internal/carbon/calculation"
)

// ObjectUploader is the part of the object store the archive needs
type ObjectUploader interface {
	Upload(ctx context.Context, bucket, key string, body io.Reader, contentType string) (string, error)
}

// S3Sink archives every report under <prefix>/<farm_id>/<report_id>.json
type S3Sink struct {
	uploader ObjectUploader
	bucket   string
	prefix   string
}

// NewS3Sink creates an archive sink for the given bucket and key prefix
func NewS3Sink(uploader ObjectUploader, bucket, prefix string) *S3Sink {
	return &S3Sink{uploader: uploader, bucket: bucket, prefix: prefix}
}

// Name returns the sink name
func (s *S3Sink) Name() string {
	return "s3"
}

// ObjectKey returns the archive key of a report
func (s *S3Sink) ObjectKey(report *calculation.VerificationReport) string {
	return path.Join(s.prefix, report.FarmID, report.ReportID.String()+".json")
}

// Store uploads the report document
func (s *S3Sink) Store(ctx context.Context, report *calculation.VerificationReport) error {
	data, err := EncodeReport(report)
	if err != nil {
		return err
	}
	if _, err := s.uploader.Upload(ctx, s.bucket, s.ObjectKey(report), bytes.NewReader(data), "application/json"); err != nil {
		return err
	}
	return nil
}
