package queue

import (
	"encoding/json"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

// EnqueuePost puts one post on the publish queue. A zero delay enqueues for
// immediate processing, which is what the due-post sweep uses.
func EnqueuePost(asynqClient *asynq.Client, payload SchedulePostPayload, delay time.Duration) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeSchedulePost, taskPayload)

	opts := []asynq.Option{asynq.MaxRetry(3)}
	if delay > 0 {
		opts = append(opts, asynq.ProcessIn(delay))
	}

	if _, err := asynqClient.Enqueue(task, opts...); err != nil {
		return err
	}

	log.Printf("Publish task enqueued: %+v", payload)
	return nil
}
