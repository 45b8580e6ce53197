package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type S3Backend struct {
	s3Client    *s3.Client
	s3Presigner *s3.PresignClient
	config      *S3Config
}

func NewS3Backend(s3Client *s3.Client, config *S3Config) *S3Backend {
	return &S3Backend{
		s3Client:    s3Client,
		s3Presigner: s3.NewPresignClient(s3Client),
		config:      config,
	}
}

func NewS3BackendWithConfig(cfg *S3Config) (*S3Backend, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          200,
			MaxIdleConnsPerHost:   100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		},
		// parts are up to a few hundred MiB, so no overall timeout here
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
		config.WithRegion(cfg.Region),
		config.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	awsClient := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.UseAccelerate {
			o.UseAccelerate = true
		}
	})

	return NewS3Backend(awsClient, cfg), nil
}

// ===================================================================================================

func (s *S3Backend) CreateMultipartUpload(ctx context.Context, params *CreateMultipartUploadParams) (string, error) {
	if !ValidateKey(params.Key) {
		return "", ErrInvalidKey
	}

	input := &s3.CreateMultipartUploadInput{
		Bucket: &s.config.BucketName,
		Key:    &params.Key,
	}
	if params.ContentType != "" {
		input.ContentType = aws.String(params.ContentType)
	}

	result, err := s.s3Client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return "", err
	}
	return aws.ToString(result.UploadId), nil
}

func (s *S3Backend) UploadPart(ctx context.Context, params *UploadPartParams) (*UploadPartResponse, error) {
	if !ValidateKey(params.Key) {
		return nil, ErrInvalidKey
	}
	if params.PartNumber < 1 || params.PartNumber > MaxPartNumber || params.Size <= 0 {
		return nil, ErrInvalidPart
	}

	// the sdk signs the payload, which needs a seekable body
	body, ok := params.Body.(io.ReadSeeker)
	if !ok {
		buf := make([]byte, params.Size)
		if _, err := io.ReadFull(params.Body, buf); err != nil {
			return nil, fmt.Errorf("%w: read body: %w", ErrInvalidPart, err)
		}
		body = bytes.NewReader(buf)
	}

	resp, err := s.s3Client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        &s.config.BucketName,
		Key:           &params.Key,
		UploadId:      &params.UploadID,
		PartNumber:    aws.Int32(int32(params.PartNumber)),
		ContentLength: aws.Int64(params.Size),
		Body:          body,
	})
	if err != nil {
		return nil, mapS3Error(err)
	}

	return &UploadPartResponse{
		PartNumber: params.PartNumber,
		ETag:       cleanETag(resp.ETag),
	}, nil
}

func (s *S3Backend) CompleteMultipartUpload(ctx context.Context, params *CompleteMultipartUploadParams) (*PutObjectResponse, error) {
	if !ValidateKey(params.Key) {
		return nil, ErrInvalidKey
	}

	completedParts := make([]types.CompletedPart, len(params.Parts))
	for i, part := range params.Parts {
		completedParts[i] = types.CompletedPart{
			ETag:       aws.String(part.ETag),
			PartNumber: aws.Int32(int32(part.PartNumber)),
		}
	}

	res, err := s.s3Client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   &s.config.BucketName,
		Key:      &params.Key,
		UploadId: &params.UploadID,
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completedParts,
		},
	})
	if err != nil {
		return nil, mapS3Error(err)
	}

	result := &PutObjectResponse{
		Key:          params.Key,
		Version:      aws.ToString(res.VersionId),
		ETag:         cleanETag(res.ETag),
		LastModified: time.Now().UTC(),
	}

	// CompleteMultipartUploadOutput has no size
	if head, err := s.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.config.BucketName,
		Key:    &params.Key,
	}); err == nil {
		result.Size = aws.ToInt64(head.ContentLength)
		result.LastModified = aws.ToTime(head.LastModified)
	}

	return result, nil
}

func (s *S3Backend) AbortMultipartUpload(ctx context.Context, key string, uploadID string) error {
	_, err := s.s3Client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   &s.config.BucketName,
		Key:      &key,
		UploadId: &uploadID,
	})
	return mapS3Error(err)
}

// ===================================================================================================

func (s *S3Backend) GetObjectPresigned(ctx context.Context, key string, filename string) (string, error) {
	if !ValidateKey(key) {
		return "", ErrInvalidKey
	}

	input := &s3.GetObjectInput{
		Bucket: &s.config.BucketName,
		Key:    &key,
	}
	if filename != "" {
		input.ResponseContentDisposition = aws.String(mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	}

	url, err := s.s3Presigner.PresignGetObject(ctx, input, func(opts *s3.PresignOptions) {
		opts.Expires = s.config.downloadExpiry()
	})
	if err != nil {
		return "", err
	}
	return url.URL, nil
}

func (s *S3Backend) DeleteObject(ctx context.Context, key string) (bool, error) {
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.config.BucketName,
		Key:    &key,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *S3Backend) Delegate() any {
	return s.s3Client
}

func cleanETag(etag *string) string {
	return strings.ReplaceAll(aws.ToString(etag), "\"", "")
}

func mapS3Error(err error) error {
	if err == nil {
		return nil
	}
	var noSuchUpload *types.NoSuchUpload
	if errors.As(err, &noSuchUpload) {
		return fmt.Errorf("%w: %w", ErrUploadNotFound, err)
	}
	return err
}

var _ IBlobBackend = (*S3Backend)(nil)
