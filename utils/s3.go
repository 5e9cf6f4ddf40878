package utils

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var s3Client *s3.Client

func InitS3() {
	region := os.Getenv("S3_REGION")
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(), awsconfig.WithRegion(region))
	if err != nil {
		log.Fatalf("Unable to load AWS config for S3: %v", err)
	}

	s3Client = s3.NewFromConfig(cfg)
}

// DecodeDataURI splits a "data:<mime>;base64,<data>" payload into content
// type and raw bytes.
func DecodeDataURI(dataURI string) (string, []byte, error) {
	parts := strings.SplitN(dataURI, ",", 2)
	if len(parts) != 2 || !strings.HasPrefix(parts[0], "data:") {
		return "", nil, fmt.Errorf("invalid data URI")
	}
	mediaType := strings.TrimPrefix(parts[0], "data:")
	contentType := strings.SplitN(mediaType, ";", 2)[0]

	data, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return contentType, data, nil
}

// UploadMealImage stores a meal photo under meal-images/ and returns its S3 URL.
func UploadMealImage(ctx context.Context, imageData []byte, contentType string, mealID string) (string, error) {
	if s3Client == nil {
		return "", fmt.Errorf("s3 client not initialized")
	}
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		return "", fmt.Errorf("S3_BUCKET not set")
	}

	ext := ".jpg"
	if p := strings.SplitN(contentType, "/", 2); len(p) == 2 && p[1] != "jpeg" {
		ext = "." + p[1]
	}
	key := fmt.Sprintf("meal-images/%s-%d%s", mealID, time.Now().UnixNano(), ext)

	_, err := s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(imageData),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image to S3: %w", err)
	}

	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", bucket, key), nil
}
