package queue

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

type TaskType string

const (
	// TaskRepair realigns one (image, user) pair after a failed compensation.
	TaskRepair TaskType = "repair"
	// TaskReconcile sweeps every image and its reactors.
	TaskReconcile TaskType = "reconcile"
)

type Task struct {
	Type    TaskType
	ImageID string
	UserID  string
	Reason  string
}

func (t Task) values() map[string]any {
	values := map[string]any{"type": string(t.Type)}
	if t.ImageID != "" {
		values["imageId"] = t.ImageID
	}
	if t.UserID != "" {
		values["userId"] = t.UserID
	}
	if t.Reason != "" {
		values["reason"] = t.Reason
	}
	return values
}

func decodeTask(msg redis.XMessage) (Task, error) {
	field := func(name string) string {
		v, _ := msg.Values[name].(string)
		return v
	}

	task := Task{
		Type:    TaskType(field("type")),
		ImageID: field("imageId"),
		UserID:  field("userId"),
		Reason:  field("reason"),
	}
	switch task.Type {
	case TaskReconcile:
	case TaskRepair:
		if task.ImageID == "" || task.UserID == "" {
			return Task{}, fmt.Errorf("repair task %s missing imageId or userId", msg.ID)
		}
	default:
		return Task{}, fmt.Errorf("message %s has unknown task type %q", msg.ID, task.Type)
	}
	return task, nil
}
