package main

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore collection names. Reports and in-progress reports live in
// subcollections under the owning patient document; tasks live under the
// owning user document.
const (
	colPatients          = "Patients"
	colRadiologyReports  = "RadiologyReports"
	colInProgressReports = "InProgressReports"
	colUsers             = "Users"
	colTasks             = "Tasks"
)

// FirestoreDB wraps a Firestore client and exposes the document operations
// the REST layer needs: patient CRUD, report lifecycle, user profiles and
// the denormalized pending-reports index.
type FirestoreDB struct {
	client *firestore.Client
}

// NewFirestoreDB creates a new Firestore client for the given project ID.
func NewFirestoreDB(ctx context.Context, projectID string) (*FirestoreDB, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return &FirestoreDB{client: client}, nil
}

// Close releases underlying Firestore resources.
func (db *FirestoreDB) Close() error {
	return db.client.Close()
}

// isNotFound reports whether err is a Firestore document-not-found error.
// We detect this via the gRPC status code so callers can interpret a nil
// result as "no such document".
func isNotFound(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.NotFound
}

// patientRef returns the document reference for Patients/{patientId}.
func (db *FirestoreDB) patientRef(patientID string) *firestore.DocumentRef {
	return db.client.Collection(colPatients).Doc(patientID)
}

// userRef returns the document reference for Users/{userId}.
func (db *FirestoreDB) userRef(userID string) *firestore.DocumentRef {
	return db.client.Collection(colUsers).Doc(userID)
}

// SavePatient writes the full patient document keyed by its patientId
// field. Saves are full overwrites, not merges; the caller sends the whole
// record every time.
func (db *FirestoreDB) SavePatient(ctx context.Context, patient map[string]interface{}) (time.Time, error) {
	patientID, _ := patient["patientId"].(string)
	if patientID == "" {
		return time.Time{}, fmt.Errorf("missing patientId")
	}
	wr, err := db.patientRef(patientID).Set(ctx, patient)
	if err != nil {
		return time.Time{}, fmt.Errorf("save patient (%s): %w", patientID, err)
	}
	return wr.UpdateTime, nil
}

// SearchPatientByID looks a patient up by the patientId field and returns
// the public projection, or nil if no patient matches.
func (db *FirestoreDB) SearchPatientByID(ctx context.Context, patientID string) (map[string]interface{}, error) {
	return db.searchPatient(ctx, "patientId", patientID)
}

// SearchPatientByName looks a patient up by the fullName field and returns
// the public projection, or nil if no patient matches.
func (db *FirestoreDB) SearchPatientByName(ctx context.Context, fullName string) (map[string]interface{}, error) {
	return db.searchPatient(ctx, "fullName", fullName)
}

func (db *FirestoreDB) searchPatient(ctx context.Context, field, value string) (map[string]interface{}, error) {
	q := db.client.Collection(colPatients).Where(field, "==", value).Limit(1)
	docs, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("query patients by %s: %w", field, err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return filterPatientData(docs[0].Data()), nil
}

// filterPatientData narrows a full patient document to the public subset
// returned by search results: clinical history fields are dropped. Fields
// absent in the source carry through as explicit nulls.
func filterPatientData(data map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"patientId":   data["patientId"],
		"fullName":    data["fullName"],
		"dob":         data["dob"],
		"gender":      data["gender"],
		"contactInfo": data["contactInfo"],
	}
}

// filterReportData narrows a full report document to the list-view subset.
// The stored "reportName" field doubles as the report's unique ID.
func filterReportData(data map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"reportId":    data["reportName"],
		"reportDate":  data["reportDate"],
		"typeOfStudy": data["typeOfStudy"],
	}
}
