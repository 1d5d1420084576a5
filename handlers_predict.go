package main

import (
	"image/jpeg"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"

	"docvision-rest/xray"
)

// maxUploadMemory bounds the in-memory portion of multipart parsing;
// larger parts spill to disk.
const maxUploadMemory = 32 << 20

// PneumoniaUploadHandler implements POST /api/pneumonia-detection/upload.
//
// Accepts one or more X-ray images in the multipart field "images". Each
// file is validated as grayscale, re-encoded to JPEG and relayed to the
// prediction model. The response is a list with one entry per file, in
// upload order: the model's prediction document on success, or
// {"error": msg} for that file alone. Failures never abort the batch.
func (h *Handlers) PneumoniaUploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse("method not allowed"))
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		log.Printf("PneumoniaUploadHandler ParseMultipartForm error: %v", err)
		writeJSON(w, http.StatusBadRequest,
			[]map[string]interface{}{{"error": "File list is empty"}})
		return
	}

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		writeJSON(w, http.StatusBadRequest,
			[]map[string]interface{}{{"error": "File list is empty"}})
		return
	}

	results := make([]map[string]interface{}, 0, len(files))
	for _, fh := range files {
		results = append(results, h.processUpload(r, fh))
	}
	writeJSON(w, http.StatusOK, results)
}

// processUpload runs one file through the validate/re-encode/predict
// pipeline and returns either the prediction document or an error entry.
func (h *Handlers) processUpload(r *http.Request, fh *multipart.FileHeader) map[string]interface{} {
	if fh.Size == 0 {
		return map[string]interface{}{"error": "One of the files is empty"}
	}

	f, err := fh.Open()
	if err != nil {
		log.Printf("processUpload open %s error: %v", fh.Filename, err)
		return map[string]interface{}{"error": "An error occurred: " + err.Error()}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		log.Printf("processUpload read %s error: %v", fh.Filename, err)
		return map[string]interface{}{"error": "An error occurred: " + err.Error()}
	}
	if len(data) == 0 {
		return map[string]interface{}{"error": "One of the files is empty"}
	}

	img, err := xray.Decode(data)
	if err != nil {
		log.Printf("processUpload: %s rejected: %v", fh.Filename, err)
		return map[string]interface{}{"error": "Uploaded file is not a grayscale image"}
	}

	// The model only accepts JPEG, so everything (PNG, BMP, TIFF, DICOM
	// frames) is re-encoded through a temp file before the relay call.
	tempFile, err := os.CreateTemp("", "uploaded-*.jpg")
	if err != nil {
		log.Printf("processUpload CreateTemp error: %v", err)
		return map[string]interface{}{"error": "An error occurred: " + err.Error()}
	}
	tempPath := tempFile.Name()
	defer func() {
		if err := os.Remove(tempPath); err != nil {
			log.Printf("processUpload: failed to remove temp file %s: %v", tempPath, err)
		}
	}()

	if err := jpeg.Encode(tempFile, img, nil); err != nil {
		_ = tempFile.Close()
		log.Printf("processUpload jpeg.Encode error: %v", err)
		return map[string]interface{}{"error": "An error occurred: " + err.Error()}
	}
	if err := tempFile.Close(); err != nil {
		log.Printf("processUpload close temp file error: %v", err)
		return map[string]interface{}{"error": "An error occurred: " + err.Error()}
	}

	prediction, err := h.Predictor.Predict(r.Context(), tempPath)
	if err != nil {
		log.Printf("processUpload Predict error for %s: %v", fh.Filename, err)
		return map[string]interface{}{"error": "An error occurred: " + err.Error()}
	}
	return prediction
}
