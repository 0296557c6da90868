package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/coredata/blobstore"
	miniostore "github.com/hupe1980/coredata/blobstore/minio"
	s3store "github.com/hupe1980/coredata/blobstore/s3"
	"github.com/hupe1980/coredata/config"
)

var errNoRemote = errors.New("no remote configured (set remote.kind)")

// newRemoteStore builds the blob store described by the remote section.
func newRemoteStore(ctx context.Context, rc config.RemoteConfig) (blobstore.BlobStore, error) {
	switch rc.Kind {
	case config.RemoteS3:
		var opts []func(*awsconfig.LoadOptions) error
		if rc.Region != "" {
			opts = append(opts, awsconfig.WithRegion(rc.Region))
		}
		if rc.AccessKey != "" {
			opts = append(opts, awsconfig.WithCredentialsProvider(
				awscreds.NewStaticCredentialsProvider(rc.AccessKey, rc.SecretKey, ""),
			))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if rc.Endpoint != "" {
				o.BaseEndpoint = aws.String(rc.Endpoint)
				o.UsePathStyle = true
			}
		})
		return s3store.NewStore(client, rc.Bucket, rc.Prefix), nil

	case config.RemoteMinIO:
		client, err := minio.New(rc.Endpoint, &minio.Options{
			Creds:  miniocreds.NewStaticV4(rc.AccessKey, rc.SecretKey, ""),
			Secure: rc.UseSSL,
			Region: rc.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("create minio client: %w", err)
		}
		return miniostore.NewStore(client, rc.Bucket, rc.Prefix), nil

	default:
		return nil, errNoRemote
	}
}
