// Package services holds integrations with external systems.
package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// SpacesService stores reward catalog images in a DigitalOcean Spaces
// bucket so kiosk screens can load them straight from the CDN.
type SpacesService struct {
	client     *s3.Client
	bucket     string
	region     string
	rewardRoot string
}

func NewSpacesService(key, secret, region, bucket, rewardRoot string) (*SpacesService, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.digitaloceanspaces.com", region),
		}, nil
	})

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load Spaces config: %w", err)
	}

	return &SpacesService{
		client:     s3.NewFromConfig(cfg),
		bucket:     bucket,
		region:     region,
		rewardRoot: strings.Trim(rewardRoot, "/"),
	}, nil
}

func (s *SpacesService) rewardKey(rewardName string) string {
	name := strings.ToLower(strings.ReplaceAll(rewardName, " ", "_"))
	return fmt.Sprintf("%s/%s.jpg", s.rewardRoot, name)
}

// UploadRewardImage stores the image for a reward and returns its public
// URL. Re-uploading replaces the previous image.
func (s *SpacesService) UploadRewardImage(ctx context.Context, rewardName string, imageData []byte) (string, error) {
	key := s.rewardKey(rewardName)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(imageData),
		ContentType:  aws.String("image/jpeg"),
		CacheControl: aws.String("public, max-age=31536000"),
		ACL:          types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload reward image: %w", err)
	}

	return s.RewardImageURL(rewardName), nil
}

// DeleteRewardImage removes a reward's image. Missing objects are not an
// error.
func (s *SpacesService) DeleteRewardImage(ctx context.Context, rewardName string) error {
	key := s.rewardKey(rewardName)

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete reward image: %w", err)
	}
	return nil
}

// RewardImageURL returns the public CDN URL for a reward image.
func (s *SpacesService) RewardImageURL(rewardName string) string {
	return fmt.Sprintf("https://%s.%s.cdn.digitaloceanspaces.com/%s",
		s.bucket, s.region, s.rewardKey(rewardName))
}
