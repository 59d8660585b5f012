package snapshot

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/vango-dev/atom/internal/config"
	"github.com/vango-dev/atom/internal/errors"
	"github.com/vango-dev/atom/pkg/atom"
)

// ObjectAPI is the part of the S3 client the store uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store keeps snapshots as objects under a key prefix.
//
//	client := s3.NewFromConfig(awsCfg)
//	store := snapshot.NewS3Store(client, "atom-snapshots", "dev/")
type S3Store struct {
	client ObjectAPI
	bucket string
	prefix string
}

// NewS3Store returns a store writing to bucket under prefix.
func NewS3Store(client ObjectAPI, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

// Save puts state at <prefix><name>.json.
func (s *S3Store) Save(ctx context.Context, name string, state []atom.Dehydrated) (string, error) {
	ref, err := refName(name)
	if err != nil {
		return "", err
	}
	data, err := encode(ref, state)
	if err != nil {
		return "", err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(ref)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"atoms": strconv.Itoa(len(state)),
		},
	})
	if err != nil {
		return "", errors.New("A200").WithDetailf("s3://%s/%s", s.bucket, s.key(ref)).Wrap(err)
	}
	return ref, nil
}

// Load fetches the snapshot saved under ref.
func (s *S3Store) Load(ctx context.Context, ref string) ([]atom.Dehydrated, error) {
	name, err := refName(ref)
	if err != nil || ref == "" {
		return nil, errors.New("A201").WithDetailf("invalid snapshot reference %q", ref)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if stderrors.As(err, &missing) {
			return nil, errors.New("A201").WithDetailf("no object s3://%s/%s", s.bucket, s.key(name)).Wrap(err)
		}
		return nil, errors.New("A202").WithDetailf("s3://%s/%s", s.bucket, s.key(name)).Wrap(err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.New("A202").Wrap(err)
	}
	return decode(name, data)
}

func (s *S3Store) key(ref string) string {
	return s.prefix + ref + ".json"
}

// NewS3Client builds a client for the configured bucket. Credentials come
// from AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY; without them requests
// are anonymous.
func NewS3Client(cfg config.S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.PathStyle,
	}
	if id, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"); id != "" && secret != "" {
		opts.Credentials = aws.NewCredentialsCache(credentials(id, secret, os.Getenv("AWS_SESSION_TOKEN")))
	} else {
		opts.Credentials = aws.AnonymousCredentials{}
	}
	if opts.Region == "" {
		opts.Region = os.Getenv("AWS_REGION")
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func credentials(id, secret, token string) aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     id,
			SecretAccessKey: secret,
			SessionToken:    token,
			Source:          "Environment",
		}, nil
	})
}
