// Package scheduler runs imports on a fixed daily schedule through an
// asynq queue: periodic entries enqueue sync tasks, a worker executes them.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskImportSync = "import.sync"

type ImportSyncPayload struct {
	TriggeredBy string `json:"triggeredBy"`
	Incremental bool   `json:"incremental"`
	Notes       string `json:"notes,omitempty"`
}

func NewImportSyncTask(payload ImportSyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskImportSync, data), nil
}

func ParseImportSyncPayload(task *asynq.Task) (ImportSyncPayload, error) {
	var payload ImportSyncPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ImportSyncPayload{}, err
	}
	return payload, nil
}
