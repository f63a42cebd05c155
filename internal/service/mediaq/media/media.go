// Package media holds the task handlers worker processes run.
package media

import (
	"fmt"

	"mediaq/internal/pkg/worker"

	"github.com/go-playground/validator/v10"
)

const (
	TypeThumbnail = "thumbnail"
	TypeHash      = "hash"
)

// ProgressType tags progress messages so listeners can filter on it
const ProgressType = "progress"

// Progress is the message handlers send while working
type Progress struct {
	Type    string `json:"type"`
	Stage   string `json:"stage"`
	Percent int    `json:"percent"`
}

func sendProgress(task *worker.Task, stage string, percent int) error {
	return task.SendMessage(Progress{Type: ProgressType, Stage: stage, Percent: percent})
}

// bind decodes and validates a task payload
func bind(task *worker.Task, validate *validator.Validate, v any) error {
	if err := task.Bind(v); err != nil {
		return err
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", task.Type, err)
	}
	return nil
}
