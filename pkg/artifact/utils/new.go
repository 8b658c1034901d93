package artifactutils

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/papercomputeco/hvision/pkg/artifact"
	"github.com/papercomputeco/hvision/pkg/artifact/minio"
	"github.com/papercomputeco/hvision/pkg/artifact/s3"
)

// Opts configures the object store clients used for s3:// and minio://
// locations. Local paths need no configuration.
type Opts struct {
	S3Region   string
	S3Endpoint string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOSecure    bool
}

// NewStore returns a store able to serve loc, with loc.Key as the name to pass
// to Get and Put.
func NewStore(ctx context.Context, loc artifact.Location, o *Opts) (artifact.Store, error) {
	if o == nil {
		o = &Opts{}
	}

	switch loc.Scheme {
	case artifact.SchemeFile:
		return artifact.NewLocalStore(""), nil

	case artifact.SchemeS3:
		var loadOpts []func(*awsconfig.LoadOptions) error
		if o.S3Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(o.S3Region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("loading aws config: %w", err)
		}
		client := awss3.NewFromConfig(cfg, func(so *awss3.Options) {
			if o.S3Endpoint != "" {
				so.BaseEndpoint = aws.String(o.S3Endpoint)
				so.UsePathStyle = true
			}
		})
		return s3.NewStore(client, loc.Bucket, ""), nil

	case artifact.SchemeMinIO:
		if o.MinIOEndpoint == "" {
			return nil, fmt.Errorf("minio location %s requires an endpoint", loc)
		}
		client, err := miniogo.New(o.MinIOEndpoint, &miniogo.Options{
			Creds:  credentials.NewStaticV4(o.MinIOAccessKey, o.MinIOSecretKey, ""),
			Secure: o.MinIOSecure,
		})
		if err != nil {
			return nil, fmt.Errorf("creating minio client: %w", err)
		}
		return minio.NewStore(client, loc.Bucket, ""), nil

	default:
		return nil, fmt.Errorf("unsupported artifact scheme: %s", loc.Scheme)
	}
}

// Get fetches the artifact at the raw location.
func Get(ctx context.Context, raw string, o *Opts) ([]byte, error) {
	loc, err := artifact.ParseLocation(raw)
	if err != nil {
		return nil, err
	}
	store, err := NewStore(ctx, loc, o)
	if err != nil {
		return nil, err
	}
	return store.Get(ctx, loc.Key)
}

// Put writes the artifact at the raw location.
func Put(ctx context.Context, raw string, data []byte, o *Opts) error {
	loc, err := artifact.ParseLocation(raw)
	if err != nil {
		return err
	}
	store, err := NewStore(ctx, loc, o)
	if err != nil {
		return err
	}
	return store.Put(ctx, loc.Key, data)
}
