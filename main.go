package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"docvision-rest/predictor"
)

func main() {
	cfg := LoadConfig()

	ctx := context.Background()
	fsdb, err := NewFirestoreDB(ctx, cfg.ProjectID)
	if err != nil {
		log.Fatalf("failed to init Firestore: %v", err)
	}
	defer func() {
		if err := fsdb.Close(); err != nil {
			log.Printf("error closing Firestore client: %v", err)
		}
	}()

	fb, err := NewFirebase(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to init Firebase: %v", err)
	}

	h := &Handlers{
		Cfg:       cfg,
		DB:        fsdb,
		Images:    NewGCSImageStore(fb.Bucket, cfg),
		Predictor: predictor.NewClient(cfg.PredictURL),
		Auth:      fb.Auth,
	}

	mux := http.NewServeMux()

	// Patient and report routes
	mux.HandleFunc("/api/patient/savePatient", h.SavePatientHandler)
	mux.HandleFunc("/api/patient/search", h.SearchPatientHandler)
	mux.HandleFunc("/api/patient/checkPatient", h.CheckPatientHandler)
	mux.HandleFunc("/api/patient/reports", h.PatientReportsHandler)
	mux.HandleFunc("/api/patient/getReport", h.GetReportHandler)
	mux.HandleFunc("/api/patient/saveReport", h.SaveReportHandler)

	// In-progress report lifecycle
	mux.HandleFunc("/api/patient/startAnalysis", h.StartAnalysisHandler)
	mux.HandleFunc("/api/patient/checkPreliminaryFindings", h.CheckPreliminaryFindingsHandler)
	mux.HandleFunc("/api/patient/savePreliminaryFindings", h.SavePreliminaryFindingsHandler)
	mux.HandleFunc("/api/patient/getPreliminaryFindings", h.GetPreliminaryFindingsHandler)
	mux.HandleFunc("/api/patient/finalizeInProgressReport", h.FinalizeInProgressReportHandler)

	// User routes. The bare /api/user/ prefix catches the
	// path-parameterized task endpoints.
	mux.HandleFunc("/api/user/login", h.LoginHandler)
	mux.HandleFunc("/api/user/saveUser", h.SaveUserHandler)
	mux.HandleFunc("/api/user/checkUser/", h.CheckUserHandler)
	mux.HandleFunc("/api/user/pendingReports", h.PendingReportsHandler)
	mux.HandleFunc("/api/user/profile/", h.ProfileHandler)
	mux.HandleFunc("/api/user/tasks", h.AddTaskHandler)
	mux.HandleFunc("/api/user/health", h.HealthHandler)
	mux.HandleFunc("/api/user/", h.UserSubtreeHandler)

	// Pneumonia detection relay
	mux.HandleFunc("/api/pneumonia-detection/upload", h.PneumoniaUploadHandler)

	// Image pair storage
	mux.HandleFunc("/api/uploads/save-images", h.SaveImagesHandler)
	mux.HandleFunc("/api/uploads/getImageUrls", h.GetImageUrlsHandler)

	addr := ":8080"
	server := &http.Server{
		Addr:    addr,
		Handler: withCORS(mux),
	}

	go func() {
		log.Printf("DocVision REST server listening on %s (project=%s)", addr, cfg.ProjectID)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down server...")
	if err := server.Shutdown(context.Background()); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
}
