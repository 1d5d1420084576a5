package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"

	"github.com/google/uuid"
)

// fakeStore is an in-memory Store used by the handler tests. It mirrors
// the document layout of the real Firestore store: reports and drafts are
// keyed by patient, tasks by user, and the pending index lives on the
// user record.
type fakeStore struct {
	patients   map[string]map[string]interface{}
	reports    map[string]map[string]interface{} // patientID/reportID
	inProgress map[string]map[string]interface{} // patientID/reportID
	users      map[string]map[string]interface{}
	tasks      map[string]map[string]map[string]interface{} // userID -> taskID

	failAll bool // force every call to error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		patients:   make(map[string]map[string]interface{}),
		reports:    make(map[string]map[string]interface{}),
		inProgress: make(map[string]map[string]interface{}),
		users:      make(map[string]map[string]interface{}),
		tasks:      make(map[string]map[string]map[string]interface{}),
	}
}

func (s *fakeStore) err() error {
	if s.failAll {
		return fmt.Errorf("store unavailable")
	}
	return nil
}

func docKey(patientID, reportID string) string {
	return patientID + "/" + reportID
}

func (s *fakeStore) SavePatient(_ context.Context, patient map[string]interface{}) (time.Time, error) {
	if err := s.err(); err != nil {
		return time.Time{}, err
	}
	patientID, _ := patient["patientId"].(string)
	if patientID == "" {
		return time.Time{}, fmt.Errorf("missing patientId")
	}
	s.patients[patientID] = patient
	return time.Now(), nil
}

func (s *fakeStore) SearchPatientByID(_ context.Context, patientID string) (map[string]interface{}, error) {
	if err := s.err(); err != nil {
		return nil, err
	}
	p, ok := s.patients[patientID]
	if !ok {
		return nil, nil
	}
	return filterPatientData(p), nil
}

func (s *fakeStore) SearchPatientByName(_ context.Context, fullName string) (map[string]interface{}, error) {
	if err := s.err(); err != nil {
		return nil, err
	}
	for _, p := range s.patients {
		if p["fullName"] == fullName {
			return filterPatientData(p), nil
		}
	}
	return nil, nil
}

func (s *fakeStore) PatientReports(_ context.Context, patientID string) ([]map[string]interface{}, error) {
	if err := s.err(); err != nil {
		return nil, err
	}
	var keys []string
	for k := range s.reports {
		if len(k) > len(patientID) && k[:len(patientID)+1] == patientID+"/" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]map[string]interface{}, 0, len(keys))
	for _, k := range keys {
		out = append(out, filterReportData(s.reports[k]))
	}
	return out, nil
}

func (s *fakeStore) ReportData(_ context.Context, patientID, reportName string) (map[string]interface{}, error) {
	if err := s.err(); err != nil {
		return nil, err
	}
	r, ok := s.reports[docKey(patientID, reportName)]
	if !ok {
		return nil, nil
	}
	return r, nil
}

func (s *fakeStore) SaveReport(_ context.Context, patientID, reportID string, reportData map[string]interface{}) error {
	if err := s.err(); err != nil {
		return err
	}
	reportData["created_at"] = time.Now().UTC()
	s.reports[docKey(patientID, reportID)] = reportData
	return nil
}

func (s *fakeStore) CheckPreliminaryFindings(_ context.Context, patientID, reportID string) (map[string]interface{}, error) {
	if err := s.err(); err != nil {
		return nil, err
	}
	data, ok := s.inProgress[docKey(patientID, reportID)]
	if !ok {
		return map[string]interface{}{"exists": false}, nil
	}
	if saved, _ := data["preliminaryFindingsSaved"].(bool); !saved {
		return map[string]interface{}{"exists": false}, nil
	}
	result := map[string]interface{}{"exists": true}
	for _, f := range findingsFields {
		result[f] = data[f]
	}
	return result, nil
}

func (s *fakeStore) SavePreliminaryFindings(_ context.Context, patientID, reportID string, findings map[string]interface{}) error {
	if err := s.err(); err != nil {
		return err
	}
	data, ok := s.inProgress[docKey(patientID, reportID)]
	if !ok {
		return fmt.Errorf("no in-progress report %s/%s", patientID, reportID)
	}
	for k, v := range findings {
		data[k] = v
	}
	data["preliminaryFindingsSaved"] = true
	return nil
}

func (s *fakeStore) PreliminaryFindings(_ context.Context, patientID, reportID string) (map[string]interface{}, error) {
	if err := s.err(); err != nil {
		return nil, err
	}
	data, ok := s.inProgress[docKey(patientID, reportID)]
	if !ok {
		return nil, nil
	}
	findings := make(map[string]interface{}, len(findingsFields))
	for _, f := range findingsFields {
		findings[f] = data[f]
	}
	return findings, nil
}

func (s *fakeStore) StartAnalysis(_ context.Context, rep *InProgressReport) (string, error) {
	if err := s.err(); err != nil {
		return "", err
	}
	if rep.PatientID == "" || rep.UserID == "" {
		return "", fmt.Errorf("missing patientId or userId")
	}
	user, ok := s.users[rep.UserID]
	if !ok {
		return "", fmt.Errorf("no user %s", rep.UserID)
	}

	reportID := uuid.NewString()
	s.inProgress[docKey(rep.PatientID, reportID)] = map[string]interface{}{
		"reportId":                 reportID,
		"patientId":                rep.PatientID,
		"patientName":              rep.PatientName,
		"reportStartDate":          rep.ReportStartDate,
		"radiologistName":          rep.RadiologistName,
		"studyType":                rep.StudyType,
		"sessionNotes":             rep.SessionNotes,
		"userId":                   rep.UserID,
		"status":                   "in_progress",
		"preliminaryFindingsSaved": false,
	}

	pairs, _ := user["inProgressReports"].([]interface{})
	user["inProgressReports"] = append(pairs, map[string]interface{}{
		"patientId": rep.PatientID,
		"reportId":  reportID,
	})
	return reportID, nil
}

func (s *fakeStore) FinalizeInProgressReport(_ context.Context, patientID, reportID, userID string) error {
	if err := s.err(); err != nil {
		return err
	}
	user, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("no user %s", userID)
	}
	delete(s.inProgress, docKey(patientID, reportID))

	pairs, _ := user["inProgressReports"].([]interface{})
	kept := make([]interface{}, 0, len(pairs))
	for _, raw := range pairs {
		pair, _ := raw.(map[string]interface{})
		if pair["patientId"] == patientID && pair["reportId"] == reportID {
			continue
		}
		kept = append(kept, raw)
	}
	user["inProgressReports"] = kept
	return nil
}

func (s *fakeStore) PendingReports(_ context.Context, userID string) ([]map[string]interface{}, error) {
	if err := s.err(); err != nil {
		return nil, err
	}
	user, ok := s.users[userID]
	if !ok {
		return []map[string]interface{}{}, nil
	}

	pairs, _ := user["inProgressReports"].([]interface{})
	pending := make([]map[string]interface{}, 0, len(pairs))
	for _, raw := range pairs {
		pair, _ := raw.(map[string]interface{})
		patientID, _ := pair["patientId"].(string)
		reportID, _ := pair["reportId"].(string)
		data, ok := s.inProgress[docKey(patientID, reportID)]
		if !ok {
			continue
		}
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

func (s *fakeStore) SaveUser(_ context.Context, user map[string]interface{}) (time.Time, error) {
	if err := s.err(); err != nil {
		return time.Time{}, err
	}
	userID, _ := user["userId"].(string)
	if userID == "" {
		return time.Time{}, fmt.Errorf("missing userId")
	}
	s.users[userID] = user
	return time.Now(), nil
}

func (s *fakeStore) UserExists(_ context.Context, userID string) (bool, error) {
	if err := s.err(); err != nil {
		return false, err
	}
	_, ok := s.users[userID]
	return ok, nil
}

func (s *fakeStore) UserProfile(_ context.Context, userID string) (map[string]interface{}, error) {
	if err := s.err(); err != nil {
		return nil, err
	}
	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	return u, nil
}

func (s *fakeStore) SaveUserProfile(_ context.Context, userID string, profile map[string]interface{}) error {
	if err := s.err(); err != nil {
		return err
	}
	s.users[userID] = profile
	return nil
}

func (s *fakeStore) SaveTask(_ context.Context, userID string, task map[string]interface{}) (string, error) {
	if err := s.err(); err != nil {
		return "", err
	}
	taskID := uuid.NewString()
	task["taskId"] = taskID
	if s.tasks[userID] == nil {
		s.tasks[userID] = make(map[string]map[string]interface{})
	}
	s.tasks[userID][taskID] = task
	return taskID, nil
}

func (s *fakeStore) UserTasks(_ context.Context, userID string) ([]map[string]interface{}, error) {
	if err := s.err(); err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(s.tasks[userID]))
	for _, t := range s.tasks[userID] {
		out = append(out, t)
	}
	return out, nil
}

func (s *fakeStore) UpdateTask(_ context.Context, userID, taskID string, changes map[string]interface{}) error {
	if err := s.err(); err != nil {
		return err
	}
	task, ok := s.tasks[userID][taskID]
	if !ok {
		return fmt.Errorf("no task %s for user %s", taskID, userID)
	}
	for k, v := range changes {
		if k == "taskId" || k == "createdAt" {
			continue
		}
		task[k] = v
	}
	return nil
}

// fakePredictor counts calls and returns a distinct prediction per call so
// tests can assert response ordering.
type fakePredictor struct {
	calls int
	fail  bool
}

func (p *fakePredictor) Predict(_ context.Context, imagePath string) (map[string]interface{}, error) {
	if p.fail {
		return nil, fmt.Errorf("prediction service unreachable")
	}
	p.calls++
	return map[string]interface{}{
		"diagnosis":  "Pneumonia",
		"confidence": 0.9,
		"call":       p.calls,
	}, nil
}

// fakeImageStore records uploads in memory keyed by object path.
type fakeImageStore struct {
	bucketName string
	objects    map[string][]byte
	failSign   bool
}

func newFakeImageStore() *fakeImageStore {
	return &fakeImageStore{
		bucketName: "test-bucket",
		objects:    make(map[string][]byte),
	}
}

func (s *fakeImageStore) UploadImage(_ context.Context, objectPath string, data []byte) (string, error) {
	s.objects[objectPath] = data
	folder := objectPath
	if i := strings.LastIndex(objectPath, "/"); i >= 0 {
		folder = objectPath[:i]
	}
	return "gs://" + s.bucketName + "/" + folder, nil
}

func (s *fakeImageStore) SignedURLsForFolder(_ context.Context, folderPath string) ([]string, error) {
	if s.failSign {
		return nil, fmt.Errorf("no objects found under %s", folderPath)
	}
	prefix := folderPath[len("gs://"+s.bucketName+"/"):] + "/"
	var urls []string
	var names []string
	for name := range s.objects {
		if len(name) > len(prefix) && name[:len(prefix)] == prefix {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		urls = append(urls, "https://signed.example.com/"+name)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("no objects found under %s", folderPath)
	}
	return urls, nil
}

// fakeVerifier accepts a single known token.
type fakeVerifier struct {
	token string
	uid   string
}

func (v *fakeVerifier) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	if idToken != v.token {
		return nil, fmt.Errorf("invalid token")
	}
	return &auth.Token{UID: v.uid}, nil
}

// newTestHandlers builds a Handlers wired entirely to fakes.
func newTestHandlers() (*Handlers, *fakeStore) {
	store := newFakeStore()
	return &Handlers{
		Cfg:       Config{ProjectID: "test", StorageBucket: "test-bucket"},
		DB:        store,
		Images:    newFakeImageStore(),
		Predictor: &fakePredictor{},
		Auth:      &fakeVerifier{token: "good-token", uid: "user-1"},
	}, store
}
