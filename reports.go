package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/google/uuid"
)

// InProgressReport is the draft-report document stored under
// Patients/{patientId}/InProgressReports/{reportId} while a radiologist is
// working on an analysis. Findings fields are merged in later by
// SavePreliminaryFindings and are not part of this record.
type InProgressReport struct {
	ReportID        string `firestore:"reportId" json:"reportId"`
	PatientID       string `firestore:"patientId" json:"patientId"`
	PatientName     string `firestore:"patientName" json:"patientName"`
	ReportStartDate string `firestore:"reportStartDate" json:"reportStartDate"`
	RadiologistName string `firestore:"radiologistName" json:"radiologistName"`
	StudyType       string `firestore:"studyType" json:"studyType"`
	SessionNotes    string `firestore:"sessionNotes" json:"sessionNotes"`
	UserID          string `firestore:"userId" json:"userId"`
	CreatedAt       int64  `firestore:"createdAt" json:"createdAt"` // unix millis
	Status          string `firestore:"status" json:"status"`

	// PreliminaryFindingsSaved flips to true the first time findings are
	// saved; the check endpoint treats the document as non-existent until
	// then.
	PreliminaryFindingsSaved bool `firestore:"preliminaryFindingsSaved" json:"preliminaryFindingsSaved"`
}

// findingsFields are the six preliminary-findings fields merged onto an
// in-progress report once the radiologist saves them.
var findingsFields = []string{
	"studyDateTime",
	"keyFindings",
	"relevantHistory",
	"concerns",
	"suggestions",
	"radiologistNotes",
}

func (db *FirestoreDB) reportRef(patientID, reportID string) *firestore.DocumentRef {
	return db.patientRef(patientID).Collection(colRadiologyReports).Doc(reportID)
}

func (db *FirestoreDB) inProgressRef(patientID, reportID string) *firestore.DocumentRef {
	return db.patientRef(patientID).Collection(colInProgressReports).Doc(reportID)
}

// reportPair is the {patientId, reportId} element stored in a user's
// inProgressReports array. The field shape must stay stable: ArrayRemove
// only plucks elements that match exactly.
func reportPair(patientID, reportID string) map[string]interface{} {
	return map[string]interface{}{
		"patientId": patientID,
		"reportId":  reportID,
	}
}

// PatientReports returns the list-view projection of all finalized reports
// for the given patient, newest first.
func (db *FirestoreDB) PatientReports(ctx context.Context, patientID string) ([]map[string]interface{}, error) {
	q := db.patientRef(patientID).Collection(colRadiologyReports).
		OrderBy("reportDate", firestore.Desc)

	docs, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list reports for patient %s: %w", patientID, err)
	}

	reports := make([]map[string]interface{}, 0, len(docs))
	for _, snap := range docs {
		reports = append(reports, filterReportData(snap.Data()))
	}
	return reports, nil
}

// ReportData fetches a full finalized report document, or nil if absent.
func (db *FirestoreDB) ReportData(ctx context.Context, patientID, reportName string) (map[string]interface{}, error) {
	snap, err := db.reportRef(patientID, reportName).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get report (%s/%s): %w", patientID, reportName, err)
	}
	return snap.Data(), nil
}

// SaveReport persists a finalized report under the patient, stamping it
// with a server-side creation time.
func (db *FirestoreDB) SaveReport(ctx context.Context, patientID, reportID string, reportData map[string]interface{}) error {
	reportData["created_at"] = time.Now().UTC()
	_, err := db.reportRef(patientID, reportID).Set(ctx, reportData)
	if err != nil {
		return fmt.Errorf("save report (%s/%s): %w", patientID, reportID, err)
	}
	return nil
}

// CheckPreliminaryFindings reports whether preliminary findings have been
// saved for the given in-progress report. Only when the document exists
// and its preliminaryFindingsSaved flag is true does the result carry
// exists:true plus the findings fields; a missing document and an unset
// flag are indistinguishable to the caller.
func (db *FirestoreDB) CheckPreliminaryFindings(ctx context.Context, patientID, reportID string) (map[string]interface{}, error) {
	snap, err := db.inProgressRef(patientID, reportID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return map[string]interface{}{"exists": false}, nil
		}
		return nil, fmt.Errorf("check preliminary findings (%s/%s): %w", patientID, reportID, err)
	}

	data := snap.Data()
	saved, _ := data["preliminaryFindingsSaved"].(bool)
	if !saved {
		return map[string]interface{}{"exists": false}, nil
	}

	result := map[string]interface{}{"exists": true}
	for _, f := range findingsFields {
		result[f] = data[f]
	}
	return result, nil
}

// SavePreliminaryFindings merges the findings fields onto the in-progress
// report and asserts the preliminaryFindingsSaved flag. Re-saving
// overwrites the previous findings; the transition is one-way. The update
// fails if the in-progress report does not exist.
func (db *FirestoreDB) SavePreliminaryFindings(ctx context.Context, patientID, reportID string, findings map[string]interface{}) error {
	updates := make([]firestore.Update, 0, len(findings)+1)
	for k, v := range findings {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	updates = append(updates, firestore.Update{Path: "preliminaryFindingsSaved", Value: true})

	wr, err := db.inProgressRef(patientID, reportID).Update(ctx, updates)
	if err != nil {
		return fmt.Errorf("save preliminary findings (%s/%s): %w", patientID, reportID, err)
	}
	log.Printf("Preliminary findings saved for report %s at %s", reportID, wr.UpdateTime.Format(time.RFC3339))
	return nil
}

// PreliminaryFindings returns the findings fields of an in-progress
// report, or nil if the document is absent. The flag is not consulted
// here; callers that need the saved/unsaved distinction use
// CheckPreliminaryFindings.
func (db *FirestoreDB) PreliminaryFindings(ctx context.Context, patientID, reportID string) (map[string]interface{}, error) {
	snap, err := db.inProgressRef(patientID, reportID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get preliminary findings (%s/%s): %w", patientID, reportID, err)
	}

	data := snap.Data()
	findings := make(map[string]interface{}, len(findingsFields))
	for _, f := range findingsFields {
		findings[f] = data[f]
	}
	return findings, nil
}

// StartAnalysis creates a new in-progress report for the patient and adds
// the {patientId, reportId} pair to the owning user's inProgressReports
// index. Both writes run in a single transaction so the index can never
// reference a report that was not created.
func (db *FirestoreDB) StartAnalysis(ctx context.Context, rep *InProgressReport) (string, error) {
	if rep == nil {
		return "", fmt.Errorf("nil in-progress report")
	}
	if rep.PatientID == "" || rep.UserID == "" {
		return "", fmt.Errorf("missing patientId or userId")
	}

	reportID := uuid.NewString()
	rep.ReportID = reportID
	rep.CreatedAt = time.Now().UnixMilli()
	rep.Status = "in_progress"
	rep.PreliminaryFindingsSaved = false

	reportRef := db.inProgressRef(rep.PatientID, reportID)
	userRef := db.userRef(rep.UserID)
	pair := reportPair(rep.PatientID, reportID)

	err := db.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Set(reportRef, rep); err != nil {
			return err
		}
		return tx.Update(userRef, []firestore.Update{
			{Path: "inProgressReports", Value: firestore.ArrayUnion(pair)},
		})
	})
	if err != nil {
		return "", fmt.Errorf("start analysis (%s): %w", rep.PatientID, err)
	}
	return reportID, nil
}

// FinalizeInProgressReport deletes the in-progress report and removes the
// matching pair from the user's inProgressReports index in a single
// transaction, so a crash can no longer strand a dangling index entry.
func (db *FirestoreDB) FinalizeInProgressReport(ctx context.Context, patientID, reportID, userID string) error {
	reportRef := db.inProgressRef(patientID, reportID)
	userRef := db.userRef(userID)
	pair := reportPair(patientID, reportID)

	err := db.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Delete(reportRef); err != nil {
			return err
		}
		return tx.Update(userRef, []firestore.Update{
			{Path: "inProgressReports", Value: firestore.ArrayRemove(pair)},
		})
	})
	if err != nil {
		return fmt.Errorf("finalize in-progress report (%s/%s): %w", patientID, reportID, err)
	}
	log.Printf("In-progress report %s finalized and removed from user %s index", reportID, userID)
	return nil
}

// PendingReports resolves the user's inProgressReports index to summary
// entries for each still-existing draft. Pairs whose report document is
// missing (data written before the transactional finalize existed) are
// skipped rather than surfaced.
func (db *FirestoreDB) PendingReports(ctx context.Context, userID string) ([]map[string]interface{}, error) {
	snap, err := db.userRef(userID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return []map[string]interface{}{}, nil
		}
		return nil, fmt.Errorf("get user (%s): %w", userID, err)
	}

	rawPairs, _ := snap.Data()["inProgressReports"].([]interface{})
	pending := make([]map[string]interface{}, 0, len(rawPairs))

	for _, raw := range rawPairs {
		pairMap, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		patientID, _ := pairMap["patientId"].(string)
		reportID, _ := pairMap["reportId"].(string)
		if patientID == "" || reportID == "" {
			continue
		}

		reportSnap, err := db.inProgressRef(patientID, reportID).Get(ctx)
		if err != nil {
			if !isNotFound(err) {
				log.Printf("PendingReports: get in-progress report (%s/%s) error: %v", patientID, reportID, err)
			}
			continue
		}

		data := reportSnap.Data()
		pending = append(pending, map[string]interface{}{
			"reportId":        reportID,
			"patientId":       patientID,
			"patientName":     data["patientName"],
			"reportStartDate": data["reportStartDate"],
			"studyType":       data["studyType"],
		})
	}

	return pending, nil
}
