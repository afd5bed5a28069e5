package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Store stores attachments in an S3 bucket. Attachment metadata travels as
// S3 object metadata so Get can reconstruct FileInfo without a database.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store loads the default AWS config and returns a store bound to
// bucket in region.
func NewS3Store(ctx context.Context, bucket, region string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.New(s3.Options{
		Region:       region,
		Credentials:  cfg.Credentials,
		HTTPClient:   cfg.HTTPClient,
		BaseEndpoint: cfg.BaseEndpoint,
		UsePathStyle: true,
	})

	return &S3Store{client: client, bucket: bucket}, nil
}

func (s *S3Store) Put(ctx context.Context, info FileInfo, content io.Reader) (*FileInfo, error) {
	if err := validateInfo(info); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	info.Key = makeKey(info, time.Now())
	info.Size = int64(len(data))
	info.CreatedAt = time.Now().UTC()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(info.Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(info.ContentType),
		ACL:         types.ObjectCannedACLPrivate,
		Metadata: map[string]string{
			"file-name":  info.FileName,
			"patient-id": info.PatientID,
			"kind":       info.Kind,
			"created-at": strconv.FormatInt(info.CreatedAt.UnixMilli(), 10),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("put object %s: %w", info.Key, err)
	}

	out := info
	return &out, nil
}

func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, *FileInfo, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, nil, ErrFileNotFound
		}
		return nil, nil, fmt.Errorf("get object %s: %w", key, err)
	}

	info := infoFromObject(key, out.ContentLength, out.ContentType, out.Metadata)
	return out.Body, info, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// ListByPatient scans each kind prefix for the patient's objects. Keys are
// laid out kind/patientID/..., so one prefixed list per kind covers all of a
// patient's files.
func (s *S3Store) ListByPatient(ctx context.Context, patientID string) ([]*FileInfo, error) {
	var matched []*FileInfo
	for kind := range AllowedKinds {
		prefix := fmt.Sprintf("%s/%s/", kind, patientID)
		p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(s.bucket),
			Prefix: aws.String(prefix),
		})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("list objects %s: %w", prefix, err)
			}
			for _, obj := range page.Contents {
				info := &FileInfo{
					Key:       aws.ToString(obj.Key),
					Size:      aws.ToInt64(obj.Size),
					PatientID: patientID,
					Kind:      kind,
				}
				if obj.LastModified != nil {
					info.CreatedAt = *obj.LastModified
				}
				matched = append(matched, info)
			}
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched, nil
}

func infoFromObject(key string, length *int64, contentType *string, meta map[string]string) *FileInfo {
	info := &FileInfo{
		Key:         key,
		FileName:    meta["file-name"],
		ContentType: aws.ToString(contentType),
		Size:        aws.ToInt64(length),
		PatientID:   meta["patient-id"],
		Kind:        meta["kind"],
	}
	if ms, err := strconv.ParseInt(meta["created-at"], 10, 64); err == nil {
		info.CreatedAt = time.UnixMilli(ms).UTC()
	}
	return info
}
