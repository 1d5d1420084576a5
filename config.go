package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// Config holds service configuration. We need the project ID (for
// Firestore/Firebase), the storage bucket for image pairs, the external
// prediction endpoint, and the credentials used to mint signed read URLs.
type Config struct {
	ProjectID                    string
	StorageBucket                string
	PredictURL                   string
	SignedURLServiceAccountEmail string
	SignedURLPrivateKey          string
}

// serviceAccountCreds is a minimal view of a GCP service account JSON key.
type serviceAccountCreds struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// loadSignedURLCreds loads the signed-URL service account JSON from Google
// Secret Manager. The secret is expected to contain the raw JSON service
// account key used to sign V4 GCS URLs.
func loadSignedURLCreds(ctx context.Context, projectID string) (string, string) {
	const secretID = "docvision-signed-url-credentials"

	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		log.Printf("loadSignedURLCreds: failed to init Secret Manager client: %v", err)
		return "", ""
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Printf("loadSignedURLCreds: error closing Secret Manager client: %v", err)
		}
	}()

	name := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", projectID, secretID)
	resp, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		log.Printf("loadSignedURLCreds: AccessSecretVersion failed for %s: %v", name, err)
		return "", ""
	}
	if resp.Payload == nil || len(resp.Payload.Data) == 0 {
		log.Printf("loadSignedURLCreds: secret %s has empty payload", name)
		return "", ""
	}

	var creds serviceAccountCreds
	if err := json.Unmarshal(resp.Payload.Data, &creds); err != nil {
		log.Printf("loadSignedURLCreds: failed to unmarshal service account JSON: %v", err)
		return "", ""
	}

	if creds.ClientEmail == "" || creds.PrivateKey == "" {
		log.Printf("loadSignedURLCreds: missing client_email or private_key in secret %s", name)
		return "", ""
	}

	return creds.ClientEmail, creds.PrivateKey
}

// LoadConfig reads configuration from environment variables with local-dev
// defaults, then pulls the signed-URL key material from Secret Manager.
func LoadConfig() Config {
	projectID := os.Getenv("DOCVISION_PROJECT_ID")
	if projectID == "" {
		// Sensible default for local dev; change to your DocVision project.
		projectID = "docvision-ai"
	}

	// Firebase default bucket used for original/heatmap image pairs.
	bucket := os.Getenv("DOCVISION_STORAGE_BUCKET")
	if bucket == "" {
		bucket = projectID + ".appspot.com"
	}

	predictURL := os.Getenv("DOCVISION_PREDICT_URL")
	if predictURL == "" {
		predictURL = "http://127.0.0.1:5000/predict"
	}

	ctx := context.Background()
	signedEmail, signedKey := loadSignedURLCreds(ctx, projectID)

	return Config{
		ProjectID:     projectID,
		StorageBucket: bucket,
		PredictURL:    predictURL,

		SignedURLServiceAccountEmail: signedEmail,
		SignedURLPrivateKey:          signedKey,
	}
}
