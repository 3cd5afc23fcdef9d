package s3

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/ec2rolecreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// New returns a new S3 audio store.
func New(ctx context.Context, key, secret, region, bucket string, logger zerolog.Logger) (*Store, error) {
	s := &Store{
		key:    key,
		secret: secret,
		region: region,
		bucket: bucket,
		log:    logger,
	}
	if err := s.start(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

type Store struct {
	key    string
	secret string
	region string
	bucket string
	log    zerolog.Logger
	client *s3.Client
}

func (s *Store) Location(name string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, name)
}

func (s *Store) start(ctx context.Context) error {
	var provider aws.CredentialsProvider
	if s.key == "" && s.secret == "" {
		// Load credentials from EC2 Instance Role
		provider = ec2rolecreds.New()
	} else {
		provider = credentials.NewStaticCredentialsProvider(s.key, s.secret, "")
	}
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(provider),
		config.WithRegion(s.region))
	if err != nil {
		return fmt.Errorf("s3: couldn't load aws config: %w", err)
	}
	s.client = s3.NewFromConfig(cfg)

	// Check if bucket exists
	input := &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	}
	if _, err := s.client.HeadBucket(ctx, input); err != nil {
		return fmt.Errorf("s3: couldn't head bucket %s: %w", s.bucket, err)
	}
	return nil
}

func contentType(path string) (string, error) {
	ext := filepath.Ext(path)
	switch ext {
	case ".wav":
		return "audio/wav", nil
	case ".mp3":
		return "audio/mpeg", nil
	case ".flac":
		return "audio/flac", nil
	case ".ogg":
		return "audio/ogg", nil
	case ".jpg", ".jpeg":
		return "image/jpeg", nil
	default:
		return "", fmt.Errorf("s3: unknown content type for extension %s", ext)
	}
}

func (s *Store) Upload(ctx context.Context, path, name string) error {
	typ, err := contentType(path)
	if err != nil {
		return err
	}
	reader, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("s3: couldn't open file %s: %w", path, err)
	}
	defer reader.Close()
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(name),
		Body:        reader,
		ContentType: aws.String(typ),
	}
	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		return fmt.Errorf("s3: couldn't put object %s: %w", name, err)
	}
	s.log.Debug().Str("name", name).Str("etag", aws.ToString(out.ETag)).Msg("s3: put object")
	return nil
}
