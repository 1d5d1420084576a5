package main

import (
	"log"
	"net/http"
)

// SavePatientHandler implements POST /api/patient/savePatient.
//
// The body is the full patient document (patientId, fullName, dob, gender,
// contactInfo, knownConditions, previousTreatments). Saves are whole-record
// overwrites keyed by patientId.
func (h *Handlers) SavePatientHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse("method not allowed"))
		return
	}

	var patient map[string]interface{}
	if err := decodeJSONBody(r, &patient); err != nil {
		log.Printf("SavePatientHandler decode error: %v", err)
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}

	updateTime, err := h.DB.SavePatient(r.Context(), patient)
	if err != nil {
		log.Printf("SavePatientHandler SavePatient error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "success",
		"updateTime": updateTime,
	})
}

// SearchPatientHandler implements GET /api/patient/search.
//
// Takes either ?patientId= or ?fullName=; patientId wins when both are
// present. Responds 404 with no body when nothing matches.
func (h *Handlers) SearchPatientHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse("method not allowed"))
		return
	}

	patientID := r.URL.Query().Get("patientId")
	fullName := r.URL.Query().Get("fullName")

	var (
		result map[string]interface{}
		err    error
	)
	switch {
	case patientID != "":
		result, err = h.DB.SearchPatientByID(r.Context(), patientID)
	case fullName != "":
		result, err = h.DB.SearchPatientByName(r.Context(), fullName)
	}

	if err != nil {
		log.Printf("SearchPatientHandler search error: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if result == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CheckPatientHandler implements GET /api/patient/checkPatient?patientId=.
//
// Unlike /search this never 404s: absence is data here, reported as
// {"exists": false}.
func (h *Handlers) CheckPatientHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse("method not allowed"))
		return
	}

	patientID := r.URL.Query().Get("patientId")
	result, err := h.DB.SearchPatientByID(r.Context(), patientID)
	if err != nil {
		log.Printf("CheckPatientHandler SearchPatientByID error: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if result == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"exists": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"exists":      true,
		"patientData": result,
	})
}

// PatientReportsHandler implements GET /api/patient/reports?patientId=.
// A patient with no reports gets an empty list, not a 404.
func (h *Handlers) PatientReportsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse("method not allowed"))
		return
	}

	patientID := r.URL.Query().Get("patientId")
	reports, err := h.DB.PatientReports(r.Context(), patientID)
	if err != nil {
		log.Printf("PatientReportsHandler PatientReports error: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// GetReportHandler implements GET /api/patient/getReport?patientId=&reportName=.
// Returns the full report document; a missing report surfaces as a 500
// with {"error": "Report not found."} since callers only ask for reports
// they just listed.
func (h *Handlers) GetReportHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse("method not allowed"))
		return
	}

	patientID := r.URL.Query().Get("patientId")
	reportName := r.URL.Query().Get("reportName")

	reportData, err := h.DB.ReportData(r.Context(), patientID, reportName)
	if err != nil {
		log.Printf("GetReportHandler ReportData error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}
	if reportData == nil {
		log.Printf("GetReportHandler: no report %s for patient %s", reportName, patientID)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "Report not found."})
		return
	}
	writeJSON(w, http.StatusOK, reportData)
}

// SaveReportHandler implements POST /api/patient/saveReport?patientId=&reportId=.
// The body is the finalized report document.
func (h *Handlers) SaveReportHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse("method not allowed"))
		return
	}

	patientID := r.URL.Query().Get("patientId")
	reportID := r.URL.Query().Get("reportId")

	var reportData map[string]interface{}
	if err := decodeJSONBody(r, &reportData); err != nil {
		log.Printf("SaveReportHandler decode error: %v", err)
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}

	if err := h.DB.SaveReport(r.Context(), patientID, reportID, reportData); err != nil {
		log.Printf("SaveReportHandler SaveReport error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success"})
}

// CheckPreliminaryFindingsHandler implements
// GET /api/patient/checkPreliminaryFindings?patientId=&reportId=.
func (h *Handlers) CheckPreliminaryFindingsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse("method not allowed"))
		return
	}

	patientID := r.URL.Query().Get("patientId")
	reportID := r.URL.Query().Get("reportId")

	result, err := h.DB.CheckPreliminaryFindings(r.Context(), patientID, reportID)
	if err != nil {
		log.Printf("CheckPreliminaryFindingsHandler error: %v", err)
		writeJSON(w, http.StatusInternalServerError, "An error occurred while checking preliminary findings")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SavePreliminaryFindingsHandler implements POST /api/patient/savePreliminaryFindings.
//
// The body carries patientId and reportId plus the findings fields; the
// identifiers are stripped before the findings are merged onto the
// in-progress report.
func (h *Handlers) SavePreliminaryFindingsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse("method not allowed"))
		return
	}

	var request map[string]interface{}
	if err := decodeJSONBody(r, &request); err != nil {
		log.Printf("SavePreliminaryFindingsHandler decode error: %v", err)
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}

	patientID, _ := request["patientId"].(string)
	reportID, _ := request["reportId"].(string)
	delete(request, "patientId")
	delete(request, "reportId")

	if err := h.DB.SavePreliminaryFindings(r.Context(), patientID, reportID, request); err != nil {
		log.Printf("SavePreliminaryFindingsHandler error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success"})
}

// GetPreliminaryFindingsHandler implements
// GET /api/patient/getPreliminaryFindings?patientId=&reportId=.
func (h *Handlers) GetPreliminaryFindingsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse("method not allowed"))
		return
	}

	patientID := r.URL.Query().Get("patientId")
	reportID := r.URL.Query().Get("reportId")

	findings, err := h.DB.PreliminaryFindings(r.Context(), patientID, reportID)
	if err != nil {
		log.Printf("GetPreliminaryFindingsHandler error: %v", err)
		writeJSON(w, http.StatusInternalServerError,
			"An error occurred while fetching the preliminary findings: "+err.Error())
		return
	}
	if findings == nil {
		writeJSON(w, http.StatusNotFound, "Preliminary findings not found for the specified report ID.")
		return
	}
	writeJSON(w, http.StatusOK, findings)
}

// StartAnalysisHandler implements POST /api/patient/startAnalysis.
//
// Creates the in-progress report and registers it in the user's pending
// index atomically, then hands the generated reportId back to the client.
func (h *Handlers) StartAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse("method not allowed"))
		return
	}

	var request struct {
		PatientID       string `json:"patientId"`
		PatientName     string `json:"patientName"`
		ReportStartDate string `json:"reportStartDate"`
		RadiologistName string `json:"radiologistName"`
		StudyType       string `json:"studyType"`
		SessionNotes    string `json:"sessionNotes"`
		UserID          string `json:"userId"`
	}
	if err := decodeJSONBody(r, &request); err != nil {
		log.Printf("StartAnalysisHandler decode error: %v", err)
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}

	reportID, err := h.DB.StartAnalysis(r.Context(), &InProgressReport{
		PatientID:       request.PatientID,
		PatientName:     request.PatientName,
		ReportStartDate: request.ReportStartDate,
		RadiologistName: request.RadiologistName,
		StudyType:       request.StudyType,
		SessionNotes:    request.SessionNotes,
		UserID:          request.UserID,
	})
	if err != nil {
		log.Printf("StartAnalysisHandler StartAnalysis error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "success",
		"reportId": reportID,
	})
}

// FinalizeInProgressReportHandler implements POST /api/patient/finalizeInProgressReport.
func (h *Handlers) FinalizeInProgressReportHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse("method not allowed"))
		return
	}

	var request struct {
		PatientID string `json:"patientId"`
		ReportID  string `json:"reportId"`
		UserID    string `json:"userId"`
	}
	if err := decodeJSONBody(r, &request); err != nil {
		log.Printf("FinalizeInProgressReportHandler decode error: %v", err)
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}

	err := h.DB.FinalizeInProgressReport(r.Context(), request.PatientID, request.ReportID, request.UserID)
	if err != nil {
		log.Printf("FinalizeInProgressReportHandler error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success"})
}
