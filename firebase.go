package main

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"

	gcs "cloud.google.com/go/storage"
)

// Firebase bundles the Firebase Admin services this backend consumes: the
// Auth client used to verify ID tokens and the default storage bucket that
// holds the original/heatmap image pairs.
//
// It is built once at startup and injected into Handlers rather than being
// reached through package-level singletons.
type Firebase struct {
	Auth   *auth.Client
	Bucket *gcs.BucketHandle
}

// NewFirebase initializes the Firebase app with Application Default
// Credentials and the configured default storage bucket.
func NewFirebase(ctx context.Context, cfg Config) (*Firebase, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:     cfg.ProjectID,
		StorageBucket: cfg.StorageBucket,
	})
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase app.Auth: %w", err)
	}

	st, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase app.Storage: %w", err)
	}
	bucket, err := st.DefaultBucket()
	if err != nil {
		return nil, fmt.Errorf("firebase storage DefaultBucket: %w", err)
	}

	return &Firebase{
		Auth:   authClient,
		Bucket: bucket,
	}, nil
}
