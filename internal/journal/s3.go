package journal

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// objectPutter is the slice of the S3 API the archiver needs.
type objectPutter interface {
	PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error)
}

// Archiver copies the journal to S3 after settlement so the local file
// is never the only record of fills.
type Archiver struct {
	client objectPutter
	bucket string
	prefix string
}

// NewArchiver creates an S3 archiver using the default credential chain.
func NewArchiver(bucket, prefix, region string) *Archiver {
	svc := s3.New(session.New(), aws.NewConfig().WithRegion(region))
	return &Archiver{client: svc, bucket: bucket, prefix: prefix}
}

// ArchiveJournal uploads the journal file under a date-stamped key and
// returns the key it wrote.
func (a *Archiver) ArchiveJournal(ctx context.Context, path string, date time.Time) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read journal for archive: %w", err)
	}

	key := a.objectKey(date)
	_, err = a.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload journal to s3://%s/%s: %w", a.bucket, key, err)
	}
	return key, nil
}

func (a *Archiver) objectKey(date time.Time) string {
	name := fmt.Sprintf("journal-%s.csv", date.Format("2006-01-02"))
	if a.prefix == "" {
		return name
	}
	return strings.TrimSuffix(a.prefix, "/") + "/" + name
}
