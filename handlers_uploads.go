package main

import (
	"encoding/base64"
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"
)

// imagePairUpload is one original/heatmap pair in a save-images request.
// Image payloads arrive base64-encoded.
type imagePairUpload struct {
	OriginalImage   string `json:"originalImage"`
	HeatmapData     string `json:"heatmapData"`
	CustomFileName  string `json:"customFileName"`
	HeatmapFileName string `json:"heatmapFileName"`
}

// SaveImagesHandler implements POST /api/uploads/save-images?patientId=.
//
// One report name (UUID) is generated per request and each pair gets its
// own pair ID, so objects land at
// {patientId}/{reportName}/{pairId}/{fileName}. The response lists the
// gs:// folder path of every pair plus the shared reportName; any failure
// aborts the request with a 400.
func (h *Handlers) SaveImagesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse("method not allowed"))
		return
	}

	patientID := r.URL.Query().Get("patientId")
	if patientID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "missing patientId"})
		return
	}

	var images []imagePairUpload
	if err := decodeJSONBody(r, &images); err != nil {
		log.Printf("SaveImagesHandler decode error: %v", err)
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "invalid request body"})
		return
	}

	reportName := uuid.NewString()
	folderPaths := make([]string, 0, len(images))
	seen := make(map[string]bool)

	for _, pair := range images {
		pairID := uuid.NewString()

		originalBytes, err := base64.StdEncoding.DecodeString(pair.OriginalImage)
		if err != nil {
			log.Printf("SaveImagesHandler: bad original image data (%s): %v", pair.CustomFileName, err)
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
			return
		}
		heatmapBytes, err := base64.StdEncoding.DecodeString(pair.HeatmapData)
		if err != nil {
			log.Printf("SaveImagesHandler: bad heatmap data (%s): %v", pair.HeatmapFileName, err)
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
			return
		}

		prefix := fmt.Sprintf("%s/%s/%s", patientID, reportName, pairID)

		folderPath, err := h.Images.UploadImage(r.Context(), prefix+"/"+pair.CustomFileName, originalBytes)
		if err != nil {
			log.Printf("SaveImagesHandler upload original error: %v", err)
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
			return
		}
		if _, err := h.Images.UploadImage(r.Context(), prefix+"/"+pair.HeatmapFileName, heatmapBytes); err != nil {
			log.Printf("SaveImagesHandler upload heatmap error: %v", err)
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
			return
		}

		if !seen[folderPath] {
			seen[folderPath] = true
			folderPaths = append(folderPaths, folderPath)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reportName":  reportName,
		"folderPaths": folderPaths,
	})
}

// GetImageUrlsHandler implements POST /api/uploads/getImageUrls.
//
// The body is a list of gs:// folder paths; the response maps each path
// to the signed read URLs of the objects under it.
func (h *Handlers) GetImageUrlsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse("method not allowed"))
		return
	}

	var folderPaths []string
	if err := decodeJSONBody(r, &folderPaths); err != nil {
		log.Printf("GetImageUrlsHandler decode error: %v", err)
		writeJSON(w, http.StatusBadRequest, map[string][]string{"error": {"invalid request body"}})
		return
	}

	imageURLs := make(map[string][]string, len(folderPaths))
	for _, folderPath := range folderPaths {
		urls, err := h.Images.SignedURLsForFolder(r.Context(), folderPath)
		if err != nil {
			log.Printf("GetImageUrlsHandler SignedURLsForFolder(%s) error: %v", folderPath, err)
			writeJSON(w, http.StatusBadRequest, map[string][]string{"error": {err.Error()}})
			return
		}
		imageURLs[folderPath] = urls
	}

	writeJSON(w, http.StatusOK, imageURLs)
}
