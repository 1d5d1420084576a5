package main

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/google/uuid"
)

func (db *FirestoreDB) taskRef(userID, taskID string) *firestore.DocumentRef {
	return db.userRef(userID).Collection(colTasks).Doc(taskID)
}

// SaveUser writes the full user document keyed by its userId field. Like
// patients, user saves are whole-document overwrites.
func (db *FirestoreDB) SaveUser(ctx context.Context, user map[string]interface{}) (time.Time, error) {
	userID, _ := user["userId"].(string)
	if userID == "" {
		return time.Time{}, fmt.Errorf("missing userId")
	}
	wr, err := db.userRef(userID).Set(ctx, user)
	if err != nil {
		return time.Time{}, fmt.Errorf("save user (%s): %w", userID, err)
	}
	return wr.UpdateTime, nil
}

// UserExists reports whether Users/{userId} exists.
func (db *FirestoreDB) UserExists(ctx context.Context, userID string) (bool, error) {
	_, err := db.userRef(userID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("get user (%s): %w", userID, err)
	}
	return true, nil
}

// UserProfile returns the full user document, or nil if absent.
func (db *FirestoreDB) UserProfile(ctx context.Context, userID string) (map[string]interface{}, error) {
	snap, err := db.userRef(userID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user (%s): %w", userID, err)
	}
	return snap.Data(), nil
}

// SaveUserProfile overwrites the user document with the merged profile the
// handler built from the existing record plus the incoming changes.
func (db *FirestoreDB) SaveUserProfile(ctx context.Context, userID string, profile map[string]interface{}) error {
	_, err := db.userRef(userID).Set(ctx, profile)
	if err != nil {
		return fmt.Errorf("save user profile (%s): %w", userID, err)
	}
	return nil
}

// SaveTask stores a new task under Users/{userId}/Tasks with a generated
// task ID and creation timestamp, and returns the task ID.
func (db *FirestoreDB) SaveTask(ctx context.Context, userID string, task map[string]interface{}) (string, error) {
	taskID := uuid.NewString()
	task["taskId"] = taskID
	task["createdAt"] = time.Now().UnixMilli()

	if _, err := db.taskRef(userID, taskID).Set(ctx, task); err != nil {
		return "", fmt.Errorf("save task for user %s: %w", userID, err)
	}
	return taskID, nil
}

// UserTasks lists all tasks for the user, newest first.
func (db *FirestoreDB) UserTasks(ctx context.Context, userID string) ([]map[string]interface{}, error) {
	q := db.userRef(userID).Collection(colTasks).
		OrderBy("createdAt", firestore.Desc)

	docs, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list tasks for user %s: %w", userID, err)
	}

	tasks := make([]map[string]interface{}, 0, len(docs))
	for _, snap := range docs {
		tasks = append(tasks, snap.Data())
	}
	return tasks, nil
}

// UpdateTask applies a partial update to an existing task. The update
// fails if the task does not exist.
func (db *FirestoreDB) UpdateTask(ctx context.Context, userID, taskID string, changes map[string]interface{}) error {
	updates := make([]firestore.Update, 0, len(changes))
	for k, v := range changes {
		if k == "taskId" || k == "createdAt" {
			continue
		}
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	if len(updates) == 0 {
		return fmt.Errorf("no updatable fields for task %s", taskID)
	}

	if _, err := db.taskRef(userID, taskID).Update(ctx, updates); err != nil {
		return fmt.Errorf("update task (%s/%s): %w", userID, taskID, err)
	}
	return nil
}
