package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// S3Client — операции S3, используемые S3Store. Позволяет подменять клиент в тестах.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3Presigner — формирование presigned GET запросов.
type S3Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Config — параметры подключения к S3-совместимому хранилищу.
type S3Config struct {
	// Endpoint — URL сервиса; пустой — AWS по региону
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	Bucket       string
	UsePathStyle bool
}

// S3Store — ObjectStore поверх aws-sdk-go-v2.
type S3Store struct {
	client    S3Client
	presigner S3Presigner
	bucket    string
	region    string
}

// NewS3Store загружает AWS-конфигурацию со статическими ключами и создаёт клиента.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("загрузка конфигурации AWS: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewS3StoreWithClient(client, s3.NewPresignClient(client), cfg.Bucket, cfg.Region), nil
}

// NewS3StoreWithClient создаёт S3Store с готовыми клиентами (для тестов).
func NewS3StoreWithClient(client S3Client, presigner S3Presigner, bucket, region string) *S3Store {
	return &S3Store{client: client, presigner: presigner, bucket: bucket, region: region}
}

// Put записывает объект с условием If-None-Match: *.
func (s *S3Store) Put(ctx context.Context, path string, body io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(path),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		IfNoneMatch:   aws.String("*"),
	})
	if err != nil {
		return classifyS3Error(err, "put")
	}
	return nil
}

// Remove удаляет объект.
func (s *S3Store) Remove(ctx context.Context, path string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return classifyS3Error(err, "remove")
	}
	return nil
}

// SignedURL формирует presigned GET URL с заданным сроком действия.
func (s *S3Store) SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", classifyS3Error(err, "presign")
	}
	return req.URL, nil
}

// CheckReady проверяет bucket через HeadBucket.
func (s *S3Store) CheckReady() (status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), readinessTimeout)
	defer cancel()

	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return "fail", fmt.Sprintf("S3 bucket %s недоступен: %v", s.bucket, err)
	}
	return "ok", "bucket доступен"
}

// ensureBucket создаёт bucket, если HeadBucket вернул 404.
func (s *S3Store) ensureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	if !errors.Is(classifyS3Error(err, "head"), ErrBucketNotFound) {
		return fmt.Errorf("проверка bucket %s: %w", s.bucket, err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
	// us-east-1 не принимает LocationConstraint
	if s.region != "" && s.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}
	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("создание bucket %s: %w", s.bucket, err)
	}
	return nil
}

// classifyS3Error приводит ошибки AWS SDK к ошибкам пакета.
func classifyS3Error(err error, operation string) error {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("%w: %v", ErrObjectNotFound, err)
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return ErrBucketNotFound
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return ErrBucketNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return fmt.Errorf("%w: %v", ErrObjectExists, err)
		case "NoSuchKey":
			return fmt.Errorf("%w: %v", ErrObjectNotFound, err)
		case "NoSuchBucket":
			return ErrBucketNotFound
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusPreconditionFailed {
		return fmt.Errorf("%w: %v", ErrObjectExists, err)
	}

	return fmt.Errorf("%s: ошибка S3: %w", operation, err)
}
