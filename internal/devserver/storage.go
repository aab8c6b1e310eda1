// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package devserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tombee/audionote/internal/config"
)

// Storage header names, matching what the client injects from storageConfig.
const (
	HeaderStorageAccessKey = "x-storage-access-key"
	HeaderStorageSecretKey = "x-storage-secret-key"
	HeaderStorageEndpoint  = "x-storage-endpoint"
	HeaderStorageRegion    = "x-storage-region"
	HeaderStorageBucket    = "x-storage-bucket"
)

// defaultRegion is used when neither the request nor the server names one.
const defaultRegion = "us-east-1"

// ObjectStore is the subset of S3 the server needs.
type ObjectStore interface {
	// PresignPut returns a URL that accepts one PUT of key with contentType.
	PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)

	// Put stores body under key.
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
}

// StorageFactory opens an ObjectStore for the resolved settings.
type StorageFactory func(ctx context.Context, settings config.StorageConfig) (ObjectStore, error)

// storageSettings overlays the x-storage-* headers of r on fallback, field by
// field.
func storageSettings(r *http.Request, fallback config.StorageConfig) config.StorageConfig {
	s := fallback
	if v := r.Header.Get(HeaderStorageAccessKey); v != "" {
		s.AccessKey = v
	}
	if v := r.Header.Get(HeaderStorageSecretKey); v != "" {
		s.SecretKey = v
	}
	if v := r.Header.Get(HeaderStorageEndpoint); v != "" {
		s.Endpoint = v
	}
	if v := r.Header.Get(HeaderStorageRegion); v != "" {
		s.Region = v
	}
	if v := r.Header.Get(HeaderStorageBucket); v != "" {
		s.Bucket = v
	}
	return s
}

// checkSettings reports the first missing required setting.
func checkSettings(s config.StorageConfig) error {
	var missing []string
	if s.Endpoint == "" {
		missing = append(missing, "endpoint")
	}
	if s.AccessKey == "" {
		missing = append(missing, "access key")
	}
	if s.SecretKey == "" {
		missing = append(missing, "secret key")
	}
	if s.Bucket == "" {
		missing = append(missing, "bucket")
	}
	if len(missing) > 0 {
		return fmt.Errorf("storage %s not configured", strings.Join(missing, ", "))
	}
	return nil
}

// normalizeEndpoint adds a scheme when missing and strips leading copies of
// the bucket from a virtual-hosted endpoint, since the SDK prepends the
// bucket itself.
func normalizeEndpoint(endpoint, bucket string) string {
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	if bucket == "" {
		return strings.TrimRight(endpoint, "/")
	}

	scheme, rest, _ := strings.Cut(endpoint, "://")
	host, path, _ := strings.Cut(rest, "/")
	for strings.HasPrefix(host, bucket+".") {
		host = strings.TrimPrefix(host, bucket+".")
	}
	endpoint = scheme + "://" + host
	if path = strings.TrimRight(path, "/"); path != "" {
		endpoint += "/" + path
	}
	return endpoint
}

// s3Store is an ObjectStore backed by one bucket.
type s3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	signer  *v4.Signer
	bucket  string
}

// NewS3Store opens an S3-compatible bucket with static credentials.
func NewS3Store(ctx context.Context, settings config.StorageConfig) (ObjectStore, error) {
	if err := checkSettings(settings); err != nil {
		return nil, err
	}

	region := settings.Region
	if region == "" {
		region = defaultRegion
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			settings.AccessKey,
			settings.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	endpoint := normalizeEndpoint(settings.Endpoint, settings.Bucket)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = settings.UsePathStyle
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	signer := v4.NewSigner(func(o *v4.SignerOptions) {
		o.DisableURIPathEscaping = true
	})

	return &s3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		signer:  signer,
		bucket:  settings.Bucket,
	}, nil
}

// contentTypePresigner signs Content-Type into the presigned URL, so the PUT
// is rejected by storage unless it carries the same header.
type contentTypePresigner struct {
	signer      *v4.Signer
	contentType string
}

func (p contentTypePresigner) PresignHTTP(
	ctx context.Context, creds aws.Credentials, r *http.Request,
	payloadHash, service, region string, signingTime time.Time,
	optFns ...func(*v4.SignerOptions),
) (string, http.Header, error) {
	if r.Header == nil {
		r.Header = http.Header{}
	}
	r.Header.Set("Content-Type", p.contentType)
	return p.signer.PresignHTTP(ctx, creds, r, payloadHash, service, region, signingTime, optFns...)
}

func (s *s3Store) PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(expiry), func(o *s3.PresignOptions) {
		o.Presigner = contentTypePresigner{signer: s.signer, contentType: contentType}
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign upload of %s: %w", key, err)
	}
	return req.URL, nil
}

func (s *s3Store) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if size >= 0 {
		in.ContentLength = aws.Int64(size)
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}
