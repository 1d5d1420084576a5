package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"

	"google.golang.org/api/iterator"
)

// signedURLTTL is how long minted read URLs stay valid. Long enough for
// the viewer to load a report's images, short enough that leaked URLs
// expire quickly.
const signedURLTTL = 15 * time.Minute

// GCSImageStore stores original/heatmap image pairs in a Cloud Storage
// bucket and mints time-limited signed read URLs for them. Objects live
// under {patientId}/{reportName}/{pairId}/{filename}.
type GCSImageStore struct {
	bucket     *gcs.BucketHandle
	bucketName string

	// Signed-URL key material, loaded from Secret Manager at startup.
	signerEmail string
	signerKey   string
}

// NewGCSImageStore wraps the given bucket handle with the signing
// credentials needed for V4 signed URLs.
func NewGCSImageStore(bucket *gcs.BucketHandle, cfg Config) *GCSImageStore {
	return &GCSImageStore{
		bucket:      bucket,
		bucketName:  cfg.StorageBucket,
		signerEmail: cfg.SignedURLServiceAccountEmail,
		signerKey:   cfg.SignedURLPrivateKey,
	}
}

// UploadImage writes a JPEG blob to the bucket at the given object path
// and returns the gs:// folder URI of the pair directory containing it.
func (s *GCSImageStore) UploadImage(ctx context.Context, objectPath string, data []byte) (string, error) {
	w := s.bucket.Object(objectPath).NewWriter(ctx)
	w.ContentType = "image/jpeg"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write object %s: %w", objectPath, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close object %s: %w", objectPath, err)
	}

	folder := objectPath
	if i := strings.LastIndex(objectPath, "/"); i >= 0 {
		folder = objectPath[:i]
	}
	return fmt.Sprintf("gs://%s/%s", s.bucketName, folder), nil
}

// SignedURLsForFolder lists every object under the folder named by a
// gs://bucket/prefix URI and returns a V4 signed GET URL for each one.
func (s *GCSImageStore) SignedURLsForFolder(ctx context.Context, folderPath string) ([]string, error) {
	prefix, err := s.objectPrefix(folderPath)
	if err != nil {
		return nil, err
	}

	var urls []string
	it := s.bucket.Objects(ctx, &gcs.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects under %s: %w", prefix, err)
		}
		// Skip directory placeholder objects.
		if strings.HasSuffix(attrs.Name, "/") {
			continue
		}

		u, err := s.signedURL(attrs.Name)
		if err != nil {
			return nil, fmt.Errorf("sign URL for %s: %w", attrs.Name, err)
		}
		urls = append(urls, u)
	}

	if len(urls) == 0 {
		return nil, fmt.Errorf("no objects found under %s", folderPath)
	}
	return urls, nil
}

// objectPrefix turns a gs://bucket/a/b/c URI into the object prefix
// "a/b/c/", validating that the URI names this store's bucket.
func (s *GCSImageStore) objectPrefix(folderPath string) (string, error) {
	rest, ok := strings.CutPrefix(folderPath, "gs://")
	if !ok {
		return "", fmt.Errorf("not a gs:// path: %s", folderPath)
	}

	bucket, prefix, found := strings.Cut(rest, "/")
	if !found || prefix == "" {
		return "", fmt.Errorf("no object prefix in path: %s", folderPath)
	}
	if bucket != s.bucketName {
		return "", fmt.Errorf("path %s names bucket %s, expected %s", folderPath, bucket, s.bucketName)
	}

	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix, nil
}

func (s *GCSImageStore) signedURL(objectName string) (string, error) {
	if s.signerEmail == "" || s.signerKey == "" {
		return "", fmt.Errorf("signed-URL credentials not configured")
	}
	return gcs.SignedURL(s.bucketName, objectName, &gcs.SignedURLOptions{
		Scheme:         gcs.SigningSchemeV4,
		Method:         "GET",
		GoogleAccessID: s.signerEmail,
		PrivateKey:     []byte(s.signerKey),
		Expires:        time.Now().Add(signedURLTTL),
	})
}
