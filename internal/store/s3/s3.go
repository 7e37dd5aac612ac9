package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"saldo/internal/core"
	"saldo/internal/store"
)

const (
	backendName = "s3"
	contentType = "application/json"

	// Largest document accepted on load.
	maxDocumentBytes = 4 << 20
)

// API is the subset of the S3 client the store needs.
type API interface {
	GetObject(ctx context.Context, in *awss3.GetObjectInput, opts ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *awss3.PutObjectInput, opts ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
}

type Config struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string // optional, for S3 compatible services
}

// Store keeps each ledger as a JSON object at <prefix>/<userID>.json.
type Store struct {
	client API
	bucket string
	prefix string
}

var _ store.Store = (*Store)(nil)

// New builds a store from the default AWS credential chain.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

func NewWithClient(client API, bucket, prefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key holding userID's ledger.
func (s *Store) Key(userID string) string {
	name := userID + ".json"
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func (s *Store) Load(ctx context.Context, userID string) (core.Ledger, error) {
	if err := store.CheckKeyUserID(userID); err != nil {
		return core.Ledger{}, store.Wrap(store.OpLoad, backendName, userID, err)
	}
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.Key(userID)),
	})
	if err != nil {
		return core.Ledger{}, store.Wrap(store.OpLoad, backendName, userID, mapError(err))
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxDocumentBytes+1))
	if err != nil {
		return core.Ledger{}, store.Wrap(store.OpLoad, backendName, userID, fmt.Errorf("read object: %w", err))
	}
	if len(data) > maxDocumentBytes {
		return core.Ledger{}, store.Wrap(store.OpLoad, backendName, userID, fmt.Errorf("%w: object larger than %d bytes", store.ErrBadPayload, maxDocumentBytes))
	}
	l, err := store.UnmarshalLedger(data)
	if err != nil {
		return core.Ledger{}, store.Wrap(store.OpLoad, backendName, userID, err)
	}
	return l, nil
}

func (s *Store) Save(ctx context.Context, userID string, l core.Ledger) error {
	if err := store.CheckKeyUserID(userID); err != nil {
		return store.Wrap(store.OpSave, backendName, userID, err)
	}
	data, err := store.MarshalLedger(l)
	if err != nil {
		return store.Wrap(store.OpSave, backendName, userID, err)
	}
	_, err = s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.Key(userID)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return store.Wrap(store.OpSave, backendName, userID, mapError(err))
	}
	slog.InfoContext(ctx, "Ledger saved to S3",
		"component", "storage",
		"user_id", userID,
		"bucket", s.bucket,
		"key", s.Key(userID),
		"expense_count", l.Len())
	return nil
}

// mapError turns a missing object into ErrNotFound and keeps the service's
// error code for everything else.
func mapError(err error) error {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %v", store.ErrNotFound, err)
		}
		return fmt.Errorf("%s: %w", apiErr.ErrorCode(), err)
	}
	return err
}
