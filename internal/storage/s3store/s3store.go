// Пакет s3store — объектное хранилище поверх S3-совместимого API
// (AWS S3, MinIO, LocalStack) через aws-sdk-go-v2.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/bigkaa/goartstore/blobstore/internal/storage"
)

// Options — параметры подключения к S3.
type Options struct {
	// Endpoint — URL S3-совместимого сервиса; пусто — AWS по умолчанию
	Endpoint string
	Region   string
	Bucket   string
	// AccessKey/SecretKey — статические ключи; пусто — цепочка AWS по умолчанию
	AccessKey string
	SecretKey string
	// UsePathStyle — адресация bucket в пути (нужна MinIO)
	UsePathStyle bool
	// CreateBucket — создать bucket при старте, если его нет
	CreateBucket bool
}

// S3Store — объекты в bucket S3.
type S3Store struct {
	client *s3.Client
	bucket string
	logger *slog.Logger
}

// New создаёт клиент S3 и при необходимости создаёт bucket.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*S3Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации AWS: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = opts.UsePathStyle
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			// S3-совместимые сервисы не всегда поддерживают CRC-контрольные суммы
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		}
	})

	st := &S3Store{
		client: client,
		bucket: opts.Bucket,
		logger: logger.With(slog.String("component", "s3store")),
	}

	if opts.CreateBucket {
		if err := st.ensureBucket(ctx, opts.Region); err != nil {
			return nil, err
		}
	}

	return st, nil
}

// BuildKeyFromHash формирует ключ объекта по SHA-256 и MIME-типу.
func (s *S3Store) BuildKeyFromHash(hash, mime string) string {
	return storage.BuildKey(hash, mime)
}

// PutObject загружает объект в bucket.
func (s *S3Store) PutObject(ctx context.Context, key string, body []byte, mime string) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}
	if mime != "" {
		input.ContentType = aws.String(mime)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("ошибка загрузки объекта %s в S3: %w", key, err)
	}
	return nil
}

// GetObjectStream открывает объект для чтения.
// Вызывающий код обязан закрыть ReadCloser.
func (s *S3Store) GetObjectStream(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s: %w", key, storage.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("ошибка чтения объекта %s из S3: %w", key, err)
	}
	return out.Body, nil
}

// DeleteObject удаляет объект. Отсутствие объекта не считается ошибкой.
func (s *S3Store) DeleteObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("ошибка удаления объекта %s из S3: %w", key, err)
	}
	return nil
}

// CheckReady проверяет доступность bucket через HeadBucket.
// Возвращает статус ("ok", "fail") и сообщение.
func (s *S3Store) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return "fail", fmt.Sprintf("S3 bucket %s недоступен: %v", s.bucket, err)
	}
	return "ok", "bucket доступен"
}

// ensureBucket создаёт bucket, если HeadBucket сообщает о его отсутствии.
func (s *S3Store) ensureBucket(ctx context.Context, region string) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	if !isNotFound(err) && !hasErrorCode(err, "NoSuchBucket") {
		return fmt.Errorf("ошибка проверки bucket %s: %w", s.bucket, err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
	// us-east-1 не принимает LocationConstraint
	if region != "" && region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}

	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("ошибка создания bucket %s: %w", s.bucket, err)
	}

	s.logger.Info("Bucket создан", slog.String("bucket", s.bucket))
	return nil
}

// isNotFound распознаёт отсутствие объекта в ответе S3.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	return hasErrorCode(err, "NoSuchKey") || hasErrorCode(err, "NotFound")
}

// hasErrorCode проверяет код ошибки API S3.
func hasErrorCode(err error, code string) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == code
}
