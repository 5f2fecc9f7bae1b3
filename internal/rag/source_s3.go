package rag

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads knowledge-base documents from an S3 prefix. Used by the
// indexing CLI when the corpus lives in a bucket rather than on disk.
type S3Source struct {
	client s3API
	bucket string
	prefix string
}

func NewS3Source(client s3API, bucket, prefix string) *S3Source {
	if client == nil {
		panic("rag: s3 client cannot be nil")
	}
	return &S3Source{client: client, bucket: bucket, prefix: prefix}
}

// Load fetches every text object under the prefix and splits each into
// paragraph chunks.
func (s *S3Source) Load(ctx context.Context) ([]string, error) {
	var chunks []string
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("rag: list corpus objects: %w", err)
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, ".txt") && !strings.HasSuffix(key, ".md") {
				continue
			}
			body, err := s.fetch(ctx, key)
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, SplitParagraphs(body)...)
		}
		if out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}
	return chunks, nil
}

func (s *S3Source) fetch(ctx context.Context, key string) (string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("rag: get corpus object %s: %w", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("rag: read corpus object %s: %w", key, err)
	}
	return string(data), nil
}

// SplitParagraphs chunks a document on blank lines, dropping fragments too
// short to be worth indexing.
func SplitParagraphs(text string) []string {
	var chunks []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if len(para) >= 40 {
			chunks = append(chunks, para)
		}
	}
	return chunks
}
