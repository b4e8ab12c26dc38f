// Package s3repo provides a game repository adapter for S3 compatible object
// stores. Games are stored as objects below Bucket/Prefix/<game>/.
package s3repo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/mcdonaldj/xboxftp/internal/ports"
)

// API is the subset of *s3.Client used by the repository.
type API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config holds bucket and credential settings.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Prefix    string
	PathStyle bool

	RetryBudget   time.Duration
	RetryInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Region == "" {
		c.Region = "us-east-1"
	}
	if c.RetryBudget == 0 {
		c.RetryBudget = 30 * time.Second
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = 2 * time.Second
	}
	return c
}

// NewClient builds an S3 client from cfg. Static credentials are used when
// AccessKey is set, the default AWS chain otherwise.
func NewClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	cfg = cfg.withDefaults()
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	}), nil
}

// Repository implements ports.GameRepository on top of an S3 client.
// The client is safe to share; Connect only verifies access to the bucket.
type Repository struct {
	api API
	cfg Config
	log zerolog.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger used for retry warnings.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Repository) {
		r.log = l
	}
}

// New creates a repository using api.
func New(api API, cfg Config, opts ...Option) *Repository {
	r := &Repository{api: api, cfg: cfg.withDefaults(), log: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewFactory returns a factory whose repositories share api.
func NewFactory(api API, cfg Config, opts ...Option) ports.RepositoryFactory {
	return ports.RepositoryFactoryFunc(func() ports.GameRepository {
		return New(api, cfg, opts...)
	})
}

// Connect checks that the bucket is reachable, retrying transient failures
// until RetryBudget is spent.
func (r *Repository) Connect(ctx context.Context) error {
	backoff := retry.WithMaxDuration(r.cfg.RetryBudget, retry.NewConstant(r.cfg.RetryInterval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := r.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(r.cfg.Bucket)})
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		r.log.Warn().Err(err).Str("bucket", r.cfg.Bucket).Msg("Unable to reach bucket. Retrying")
		return retry.RetryableError(err)
	})
	if err != nil {
		return &ports.ConnectionError{Addr: "s3://" + r.cfg.Bucket, Err: err}
	}
	return nil
}

// Disconnect is a no-op: the HTTP client keeps no per-repository state.
func (r *Repository) Disconnect() error {
	return nil
}

// CreateGame writes a directory marker for the game.
func (r *Repository) CreateGame(ctx context.Context, game string) error {
	return r.putMarker(ctx, "create game", r.key(game, ""))
}

// CreateDirectory writes a directory marker for dir.
func (r *Repository) CreateDirectory(ctx context.Context, game, dir string) error {
	return r.putMarker(ctx, "create directory", r.key(game, dir))
}

func (r *Repository) putMarker(ctx context.Context, op, key string) error {
	_, err := r.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.cfg.Bucket),
		Key:           aws.String(key + "/"),
		Body:          strings.NewReader(""),
		ContentLength: aws.Int64(0),
	})
	if err != nil {
		return &ports.PersistenceError{Op: op, Path: key, Transient: isTransient(err), Err: err}
	}
	return nil
}

// Store uploads content as one object.
func (r *Repository) Store(ctx context.Context, game, file string, content io.Reader) error {
	key := r.key(game, file)
	input := &s3.PutObjectInput{
		Bucket: aws.String(r.cfg.Bucket),
		Key:    aws.String(key),
		Body:   content,
	}
	if seeker, ok := content.(io.Seeker); ok {
		size, err := seeker.Seek(0, io.SeekEnd)
		if err == nil {
			_, err = seeker.Seek(0, io.SeekStart)
		}
		if err != nil {
			return &ports.PersistenceError{Op: "store", Path: key, Err: err}
		}
		input.ContentLength = aws.Int64(size)
	}

	if _, err := r.api.PutObject(ctx, input); err != nil {
		return &ports.PersistenceError{Op: "store", Path: key, Transient: isTransient(err), Err: err}
	}
	return nil
}

// Exists reports whether the object exists with exactly size bytes.
func (r *Repository) Exists(ctx context.Context, game, file string, size int64) (bool, error) {
	key := r.key(game, file)
	out, err := r.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, &ports.PersistenceError{Op: "exists", Path: key, Transient: isTransient(err), Err: err}
	}
	return aws.ToInt64(out.ContentLength) == size, nil
}

func (r *Repository) key(game, rel string) string {
	return strings.TrimPrefix(path.Join(r.cfg.Prefix, game, rel), "/")
}

// S3 error codes that retrying cannot fix.
var permanentCodes = map[string]bool{
	"AccessDenied":          true,
	"InvalidAccessKeyId":    true,
	"SignatureDoesNotMatch": true,
	"NoSuchBucket":          true,
	"InvalidBucketName":     true,
	"EntityTooLarge":        true,
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

// isTransient classifies err. Throttling, server faults and network errors
// are worth retrying; credential and bucket errors are not.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if permanentCodes[apiErr.ErrorCode()] {
			return false
		}
		return apiErr.ErrorFault() == smithy.FaultServer || apiErr.ErrorCode() == "SlowDown"
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Compile-time check that Repository implements ports.GameRepository.
var _ ports.GameRepository = (*Repository)(nil)
