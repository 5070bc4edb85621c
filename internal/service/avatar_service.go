package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-resty/resty/v2"
	"github.com/h2non/filetype"
	cfg "github.com/maheshrc27/postbridge/configs"
	"github.com/maheshrc27/postbridge/internal/models"
	"github.com/maheshrc27/postbridge/pkg/utils"
)

// AvatarService stores provider profile images on R2 so accounts keep a
// stable avatar even after the provider's CDN URL rotates.
type AvatarService struct {
	config *cfg.Config
	http   *resty.Client
}

func NewAvatarService(config *cfg.Config, http *resty.Client) *AvatarService {
	return &AvatarService{config: config, http: http}
}

func (s *AvatarService) r2Client(ctx context.Context) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s.config.R2.AccessKey, s.config.R2.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", s.config.R2.AccountID))
	}), nil
}

// Store fetches a remote image and uploads it under accounts/<provider>/.
// The returned ref points at the stored copy.
func (s *AvatarService) Store(ctx context.Context, provider, imageURL string) (*models.MediaRef, error) {
	if imageURL == "" {
		return nil, nil
	}

	resp, err := s.http.R().SetContext(ctx).Get(imageURL)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch avatar: %s", resp.Status())
	}

	body := resp.Body()
	kind, err := filetype.Match(body)
	if err != nil || kind == filetype.Unknown {
		return nil, fmt.Errorf("avatar: unrecognized image format")
	}

	name, err := utils.UUID()
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("accounts/%s/%s.%s", provider, name, kind.Extension)

	client, err := s.r2Client(ctx)
	if err != nil {
		return nil, err
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.R2.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(kind.MIME.Value),
	})
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return &models.MediaRef{Disk: "r2", Path: key}, nil
}
