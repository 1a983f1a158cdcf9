package writer

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/saleyn/sdb/config"
	"github.com/saleyn/sdb/logger"
)

// Archiver uploads closed SDB files to an S3 bucket so daily recordings
// survive the capture host.
type Archiver struct {
	config   *appconfig.Config
	s3Client *s3.Client
	bucket   string
	prefix   string
	log      *logger.Log
}

// NewArchiver configures the AWS SDK and validates credentials.
func NewArchiver(cfg *appconfig.Config) (*Archiver, error) {
	log := logger.GetLogger()
	ctx := context.Background()

	// Configure AWS options
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Storage.S3.Region),
	}
	if cfg.Storage.S3.AccessKeyID != "" && cfg.Storage.S3.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Storage.S3.AccessKeyID,
				cfg.Storage.S3.SecretAccessKey,
				"",
			),
		))
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		log.WithComponent("s3_archiver").WithError(err).Warn("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	// Validate credentials
	creds, err := awsConfig.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Storage.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.S3.Endpoint)
		}
		o.UsePathStyle = cfg.Storage.S3.PathStyle
	})

	a := &Archiver{
		config:   cfg,
		s3Client: s3Client,
		bucket:   cfg.Storage.S3.Bucket,
		prefix:   cfg.Storage.S3.Prefix,
		log:      log,
	}

	log.WithComponent("s3_archiver").WithFields(logger.Fields{
		"bucket":     a.bucket,
		"region":     cfg.Storage.S3.Region,
		"endpoint":   cfg.Storage.S3.Endpoint,
		"path_style": cfg.Storage.S3.PathStyle,
	}).Info("s3 archiver initialized")

	return a, nil
}

// Key maps a local file path to its object key, preserving the layout
// relative to the storage directory.
func (a *Archiver) Key(localPath string) string {
	rel, err := filepath.Rel(a.config.Storage.Dir, localPath)
	if err != nil || rel == "." || rel == "" {
		rel = filepath.Base(localPath)
	}
	return path.Join(a.prefix, filepath.ToSlash(rel))
}

// Archive uploads one closed file.
func (a *Archiver) Archive(ctx context.Context, localPath string) error {
	log := a.log.WithComponent("s3_archiver").WithFields(logger.Fields{"file": localPath})

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", localPath, err)
	}

	key := a.Key(localPath)
	_, err = a.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(fi.Size()),
	})
	if err != nil {
		log.WithError(err).
			WithEnv("S3_BUCKET").
			WithFields(logger.Fields{"bucket": a.bucket, "s3_key": key}).
			Error("failed to upload to S3")
		return fmt.Errorf("upload %s: %w", key, err)
	}

	logger.IncrementFilesArchived(fi.Size())
	log.WithFields(logger.Fields{"s3_key": key, "file_size": fi.Size()}).Info("file archived")
	return nil
}
