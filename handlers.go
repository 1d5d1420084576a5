package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"
)

// Store is the Firestore-backed persistence surface the HTTP layer uses.
// Handlers depend on this interface rather than *FirestoreDB directly so
// tests can swap in an in-memory fake.
type Store interface {
	SavePatient(ctx context.Context, patient map[string]interface{}) (time.Time, error)
	SearchPatientByID(ctx context.Context, patientID string) (map[string]interface{}, error)
	SearchPatientByName(ctx context.Context, fullName string) (map[string]interface{}, error)

	PatientReports(ctx context.Context, patientID string) ([]map[string]interface{}, error)
	ReportData(ctx context.Context, patientID, reportName string) (map[string]interface{}, error)
	SaveReport(ctx context.Context, patientID, reportID string, reportData map[string]interface{}) error

	CheckPreliminaryFindings(ctx context.Context, patientID, reportID string) (map[string]interface{}, error)
	SavePreliminaryFindings(ctx context.Context, patientID, reportID string, findings map[string]interface{}) error
	PreliminaryFindings(ctx context.Context, patientID, reportID string) (map[string]interface{}, error)

	StartAnalysis(ctx context.Context, rep *InProgressReport) (string, error)
	FinalizeInProgressReport(ctx context.Context, patientID, reportID, userID string) error
	PendingReports(ctx context.Context, userID string) ([]map[string]interface{}, error)

	SaveUser(ctx context.Context, user map[string]interface{}) (time.Time, error)
	UserExists(ctx context.Context, userID string) (bool, error)
	UserProfile(ctx context.Context, userID string) (map[string]interface{}, error)
	SaveUserProfile(ctx context.Context, userID string, profile map[string]interface{}) error

	SaveTask(ctx context.Context, userID string, task map[string]interface{}) (string, error)
	UserTasks(ctx context.Context, userID string) ([]map[string]interface{}, error)
	UpdateTask(ctx context.Context, userID, taskID string, changes map[string]interface{}) error
}

// ImageStore is the blob-storage surface for original/heatmap image pairs.
type ImageStore interface {
	UploadImage(ctx context.Context, objectPath string, data []byte) (string, error)
	SignedURLsForFolder(ctx context.Context, folderPath string) ([]string, error)
}

// Predictor calls the external pneumonia detection model.
type Predictor interface {
	Predict(ctx context.Context, imagePath string) (map[string]interface{}, error)
}

// TokenVerifier verifies Firebase ID tokens. *auth.Client satisfies it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// Handlers holds dependencies shared by HTTP handlers.
type Handlers struct {
	Cfg       Config
	DB        Store
	Images    ImageStore
	Predictor Predictor
	Auth      TokenVerifier
}

// writeJSON is a small helper to send JSON responses with status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON error: %v", err)
	}
}

// decodeJSONBody decodes the request body into dst, failing on empty or
// malformed payloads.
func decodeJSONBody(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("empty request body")
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// bearerToken extracts the Authorization bearer token, or "" if absent.
func bearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
}

// errorResponse is the generic {"status": "error", "message": ...} body
// used by write endpoints on failure.
func errorResponse(message string) map[string]interface{} {
	return map[string]interface{}{
		"status":  "error",
		"message": message,
	}
}
