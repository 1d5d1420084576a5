package main

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSaveImages(t *testing.T) {
	h, _ := newTestHandlers()
	images := h.Images.(*fakeImageStore)

	pairs := []map[string]string{
		{
			"originalImage":   base64.StdEncoding.EncodeToString([]byte("original-1")),
			"heatmapData":     base64.StdEncoding.EncodeToString([]byte("heatmap-1")),
			"customFileName":  "xray_1.jpg",
			"heatmapFileName": "heatmap_1.jpg",
		},
		{
			"originalImage":   base64.StdEncoding.EncodeToString([]byte("original-2")),
			"heatmapData":     base64.StdEncoding.EncodeToString([]byte("heatmap-2")),
			"customFileName":  "xray_2.jpg",
			"heatmapFileName": "heatmap_2.jpg",
		},
	}

	rec := postJSON(t, h.SaveImagesHandler, "/api/uploads/save-images?patientId=12345", pairs)
	if rec.Code != http.StatusOK {
		t.Fatalf("save-images status = %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeMap(t, rec)
	reportName, _ := resp["reportName"].(string)
	if reportName == "" {
		t.Fatal("save-images response missing reportName")
	}

	folders, _ := resp["folderPaths"].([]interface{})
	if len(folders) != 2 {
		t.Fatalf("folderPaths = %v, want 2 entries", resp["folderPaths"])
	}
	for _, f := range folders {
		path, _ := f.(string)
		if !strings.HasPrefix(path, "gs://test-bucket/12345/"+reportName+"/") {
			t.Errorf("folder path %q not under gs://test-bucket/12345/%s/", path, reportName)
		}
	}
	if folders[0] == folders[1] {
		t.Error("pairs share a folder path, want one pairId per pair")
	}

	// Four objects: original + heatmap per pair, each under
	// patientId/reportName/pairId/fileName.
	if len(images.objects) != 4 {
		t.Fatalf("stored objects = %d, want 4", len(images.objects))
	}
	for name, data := range images.objects {
		parts := strings.Split(name, "/")
		if len(parts) != 4 || parts[0] != "12345" || parts[1] != reportName {
			t.Errorf("object path %q does not match patientId/reportName/pairId/fileName", name)
		}
		if len(data) == 0 {
			t.Errorf("object %q is empty", name)
		}
	}
}

func TestSaveImagesRejectsBadBase64(t *testing.T) {
	h, _ := newTestHandlers()

	pairs := []map[string]string{{
		"originalImage":   "%%% not base64 %%%",
		"heatmapData":     base64.StdEncoding.EncodeToString([]byte("heatmap")),
		"customFileName":  "xray.jpg",
		"heatmapFileName": "heatmap.jpg",
	}}

	rec := postJSON(t, h.SaveImagesHandler, "/api/uploads/save-images?patientId=12345", pairs)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("save-images with bad base64 status = %d, want 400", rec.Code)
	}
	if resp := decodeMap(t, rec); resp["error"] == nil {
		t.Fatalf("save-images error body = %v", resp)
	}
}

func TestSaveImagesRequiresPatientID(t *testing.T) {
	h, _ := newTestHandlers()

	rec := postJSON(t, h.SaveImagesHandler, "/api/uploads/save-images", []map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("save-images without patientId status = %d, want 400", rec.Code)
	}
}

func TestGetImageUrls(t *testing.T) {
	h, _ := newTestHandlers()
	images := h.Images.(*fakeImageStore)

	images.objects["12345/rep-1/pair-1/xray.jpg"] = []byte("original")
	images.objects["12345/rep-1/pair-1/heatmap.jpg"] = []byte("heatmap")
	images.objects["12345/rep-1/pair-2/xray.jpg"] = []byte("original")

	folder1 := "gs://test-bucket/12345/rep-1/pair-1"
	folder2 := "gs://test-bucket/12345/rep-1/pair-2"

	rec := postJSON(t, h.GetImageUrlsHandler, "/api/uploads/getImageUrls", []string{folder1, folder2})
	if rec.Code != http.StatusOK {
		t.Fatalf("getImageUrls status = %d: %s", rec.Code, rec.Body.String())
	}

	var urlMap map[string][]string
	if err := json.Unmarshal(rec.Body.Bytes(), &urlMap); err != nil {
		t.Fatalf("decode getImageUrls response: %v", err)
	}
	if len(urlMap[folder1]) != 2 {
		t.Errorf("urls for %s = %v, want 2", folder1, urlMap[folder1])
	}
	if len(urlMap[folder2]) != 1 {
		t.Errorf("urls for %s = %v, want 1", folder2, urlMap[folder2])
	}
}

func TestGetImageUrlsFailure(t *testing.T) {
	h, _ := newTestHandlers()
	h.Images.(*fakeImageStore).failSign = true

	rec := postJSON(t, h.GetImageUrlsHandler, "/api/uploads/getImageUrls",
		[]string{"gs://test-bucket/12345/rep-1/pair-1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("getImageUrls failure status = %d, want 400", rec.Code)
	}

	var errMap map[string][]string
	if err := json.Unmarshal(rec.Body.Bytes(), &errMap); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if len(errMap["error"]) == 0 {
		t.Fatalf("error body = %v", errMap)
	}
}

func TestUploadsRejectGet(t *testing.T) {
	h, _ := newTestHandlers()

	for name, handler := range map[string]http.HandlerFunc{
		"save-images":  h.SaveImagesHandler,
		"getImageUrls": h.GetImageUrlsHandler,
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/uploads/"+name, nil)
		rec := httptest.NewRecorder()
		handler(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s GET status = %d, want 405", name, rec.Code)
		}
	}
}
