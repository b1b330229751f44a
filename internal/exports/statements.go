// Package exports renders monthly author statements and uploads them to S3.
package exports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"patronage/internal/middleware"
	"patronage/internal/repository"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPutter is the part of *s3.Client the exporter needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// StatementSource yields the aggregated ledger lines for a period.
type StatementSource interface {
	Statements(ctx context.Context, from, to time.Time) ([]repository.StatementLine, error)
}

// NewS3Client builds an S3 client from the default AWS credential chain.
func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// Exporter writes one CSV object per author for a calendar month.
type Exporter struct {
	source StatementSource
	s3     ObjectPutter
	bucket string
	prefix string
}

func NewExporter(source StatementSource, putter ObjectPutter, bucket, prefix string) *Exporter {
	return &Exporter{source: source, s3: putter, bucket: bucket, prefix: prefix}
}

// Result describes one uploaded statement.
type Result struct {
	AuthorID uint   `json:"author_id"`
	Key      string `json:"key"`
	Lines    int    `json:"lines"`
	Net      int64  `json:"net"`
}

// ParseMonth parses a YYYY-MM string into the UTC start of that month.
func ParseMonth(s string) (time.Time, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("month must be YYYY-MM: %w", err)
	}
	return t.UTC(), nil
}

// ObjectKey returns the key a statement for authorID in month is stored under.
func ObjectKey(prefix string, month time.Time, authorID uint) string {
	return fmt.Sprintf("%s%s/author-%d.csv", prefix, month.Format("2006-01"), authorID)
}

// ExportMonth uploads statements for every author who received donations in
// the month starting at month.
func (e *Exporter) ExportMonth(ctx context.Context, month time.Time) ([]Result, error) {
	from := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	lines, err := e.source.Statements(ctx, from, to)
	if err != nil {
		return nil, err
	}

	results := []Result{}
	for _, group := range groupByAuthor(lines) {
		authorID := group[0].AuthorID
		body, net, err := RenderCSV(group)
		if err != nil {
			return results, err
		}

		key := ObjectKey(e.prefix, from, authorID)
		_, err = e.s3.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(e.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(body),
			ContentType: aws.String("text/csv"),
		})
		if err != nil {
			return results, fmt.Errorf("upload %s: %w", key, err)
		}

		middleware.Logger.Info("statement exported",
			"author_id", authorID, "key", key, "lines", len(group), "net", net)
		results = append(results, Result{AuthorID: authorID, Key: key, Lines: len(group), Net: net})
	}
	return results, nil
}

// groupByAuthor splits lines, already ordered by author, into per-author runs.
func groupByAuthor(lines []repository.StatementLine) [][]repository.StatementLine {
	var groups [][]repository.StatementLine
	for i, l := range lines {
		if i == 0 || l.AuthorID != lines[i-1].AuthorID {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], l)
	}
	return groups
}

// RenderCSV writes a statement with one row per post and a trailing total row.
func RenderCSV(lines []repository.StatementLine) ([]byte, int64, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{{"post_id", "donations", "gross", "platform_fee", "net"}}
	var donations, gross, fees, net int64
	for _, l := range lines {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(l.PostID), 10),
			strconv.FormatInt(l.Donations, 10),
			strconv.FormatInt(l.Gross, 10),
			strconv.FormatInt(l.Fees, 10),
			strconv.FormatInt(l.Net, 10),
		})
		donations += l.Donations
		gross += l.Gross
		fees += l.Fees
		net += l.Net
	}
	rows = append(rows, []string{
		"total",
		strconv.FormatInt(donations, 10),
		strconv.FormatInt(gross, 10),
		strconv.FormatInt(fees, 10),
		strconv.FormatInt(net, 10),
	})

	if err := w.WriteAll(rows); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), net, nil
}
