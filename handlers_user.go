package main

import (
	"log"
	"net/http"
	"strings"
)

// SaveUserHandler implements POST /api/user/saveUser. The body is the full
// user document keyed by userId.
func (h *Handlers) SaveUserHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse("method not allowed"))
		return
	}

	var user map[string]interface{}
	if err := decodeJSONBody(r, &user); err != nil {
		log.Printf("SaveUserHandler decode error: %v", err)
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}

	updateTime, err := h.DB.SaveUser(r.Context(), user)
	if err != nil {
		log.Printf("SaveUserHandler SaveUser error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse("An error occurred while saving the user profile."))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "success",
		"updateTime": updateTime,
	})
}

// CheckUserHandler implements GET /api/user/checkUser/{userId}.
func (h *Handlers) CheckUserHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse("method not allowed"))
		return
	}

	userID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/user/checkUser/"), "/")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("missing userId"))
		return
	}

	exists, err := h.DB.UserExists(r.Context(), userID)
	if err != nil {
		log.Printf("CheckUserHandler UserExists error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse("An error occurred while checking the user profile."))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"exists": exists})
}

// PendingReportsHandler implements GET /api/user/pendingReports?userId=.
func (h *Handlers) PendingReportsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse("method not allowed"))
		return
	}

	userID := r.URL.Query().Get("userId")
	pending, err := h.DB.PendingReports(r.Context(), userID)
	if err != nil {
		log.Printf("PendingReportsHandler PendingReports error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse("An error occurred while fetching pending reports."))
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

// ProfileHandler implements GET and PUT /api/user/profile/{userId}.
//
// PUT is a partial update: the stored profile is read, the incoming fields
// are merged over it, and the merged document is written back whole.
func (h *Handlers) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/user/profile/"), "/")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("missing userId"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		profile, err := h.DB.UserProfile(r.Context(), userID)
		if err != nil {
			log.Printf("ProfileHandler UserProfile error: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if profile == nil {
			writeJSON(w, http.StatusNotFound, map[string]interface{}{"message": "User not found"})
			return
		}
		writeJSON(w, http.StatusOK, profile)

	case http.MethodPut:
		var updatedFields map[string]interface{}
		if err := decodeJSONBody(r, &updatedFields); err != nil {
			log.Printf("ProfileHandler decode error: %v", err)
			writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
			return
		}

		existing, err := h.DB.UserProfile(r.Context(), userID)
		if err != nil {
			log.Printf("ProfileHandler UserProfile error: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"message": "An error occurred while updating the profile."})
			return
		}
		if existing == nil {
			writeJSON(w, http.StatusNotFound, map[string]interface{}{"message": "User not found"})
			return
		}

		for k, v := range updatedFields {
			existing[k] = v
		}
		if err := h.DB.SaveUserProfile(r.Context(), userID, existing); err != nil {
			log.Printf("ProfileHandler SaveUserProfile error: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"message": "An error occurred while updating the profile."})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "Profile updated successfully"})

	default:
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse("method not allowed"))
	}
}

// AddTaskHandler implements POST /api/user/tasks. The body carries the
// owning userId plus the task fields (title, completed).
func (h *Handlers) AddTaskHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse("method not allowed"))
		return
	}

	var task map[string]interface{}
	if err := decodeJSONBody(r, &task); err != nil {
		log.Printf("AddTaskHandler decode error: %v", err)
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}

	userID, _ := task["userId"].(string)
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("missing userId"))
		return
	}
	delete(task, "userId")

	taskID, err := h.DB.SaveTask(r.Context(), userID, task)
	if err != nil {
		log.Printf("AddTaskHandler SaveTask error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse("Failed to save task."))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "success",
		"taskId":    taskID,
		"title":     task["title"],
		"completed": task["completed"],
	})
}

// UserSubtreeHandler routes the path-parameterized user endpoints that
// share the /api/user/ prefix:
//
//	GET /api/user/{userId}/tasks
//	PUT /api/user/{userId}/tasks/{taskId}
func (h *Handlers) UserSubtreeHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/user/"), "/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 2 && parts[1] == "tasks":
		h.userTasks(w, r, parts[0])
	case len(parts) == 3 && parts[1] == "tasks":
		h.updateTask(w, r, parts[0], parts[2])
	default:
		http.NotFound(w, r)
	}
}

func (h *Handlers) userTasks(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse("method not allowed"))
		return
	}

	tasks, err := h.DB.UserTasks(r.Context(), userID)
	if err != nil {
		log.Printf("UserTasksHandler UserTasks error: %v", err)
		writeJSON(w, http.StatusInternalServerError,
			[]map[string]interface{}{errorResponse("Failed to fetch tasks.")})
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handlers) updateTask(w http.ResponseWriter, r *http.Request, userID, taskID string) {
	if r.Method != http.MethodPut {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse("method not allowed"))
		return
	}

	var changes map[string]interface{}
	if err := decodeJSONBody(r, &changes); err != nil {
		log.Printf("UpdateTaskHandler decode error: %v", err)
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}

	if err := h.DB.UpdateTask(r.Context(), userID, taskID, changes); err != nil {
		log.Printf("UpdateTaskHandler UpdateTask error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"message": "An error occurred while updating the task"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "Task marked as done successfully"})
}

// LoginHandler implements POST /api/user/login.
//
// Requires Authorization: Bearer <Firebase ID token>. The token is
// verified with the Firebase Admin SDK; on success the response reports
// the UID and whether a user document already exists for it, so the
// frontend knows whether to route to profile setup.
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse("method not allowed"))
		return
	}

	token := bearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"ok": false, "error": "missing bearer token"})
		return
	}
	if h.Auth == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"ok": false, "error": "auth not configured"})
		return
	}

	decoded, err := h.Auth.VerifyIDToken(r.Context(), token)
	if err != nil {
		log.Printf("LoginHandler VerifyIDToken error: %v", err)
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"ok": false, "error": "unauthorized"})
		return
	}

	exists, err := h.DB.UserExists(r.Context(), decoded.UID)
	if err != nil {
		log.Printf("LoginHandler UserExists error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"ok": false, "error": "lookup failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":     true,
		"userId": decoded.UID,
		"exists": exists,
	})
}

// HealthHandler implements GET /api/user/health.
func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse("method not allowed"))
		return
	}
	writeJSON(w, http.StatusOK, "Service is running!")
}
