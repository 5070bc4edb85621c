package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postbridge/internal/models"
)

func (q *Queue) HandleSchedulePostTask(ctx context.Context, task *asynq.Task) error {
	var payload SchedulePostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	return q.PublishPost(ctx, payload.PostID)
}

// PublishPost fans one post out to all its target accounts. Accounts run
// independently so one slow upload or poll does not stall the rest; each
// outcome lands on its own post-account relation.
func (q *Queue) PublishPost(ctx context.Context, postID int64) error {
	post, err := q.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil {
		return errors.New("post not found")
	}

	accountIDs, err := q.posts.ListAccountIDs(ctx, postID)
	if err != nil {
		return err
	}
	if len(accountIDs) == 0 {
		return errors.New("no accounts selected for publishing")
	}

	var wg sync.WaitGroup
	var failures atomic.Int64
	semaphore := make(chan struct{}, 10)

	for _, accountID := range accountIDs {
		account, err := q.accounts.GetByID(ctx, accountID)
		if err != nil || account == nil {
			log.Printf("Error loading account %d for PostID %d: %v", accountID, postID, err)
			failures.Add(1)
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(account *models.Account) {
			defer wg.Done()
			defer func() { <-semaphore }()

			resp := q.pub.Publish(ctx, account, post)
			if resp.HasError() {
				log.Printf("Error posting to %s for PostID %d: %s", account.Provider, postID, resp.ErrorMessage())
				failures.Add(1)
			}
		}(account)
	}

	wg.Wait()

	status := models.PostStatusPublished
	if int(failures.Load()) == len(accountIDs) {
		status = models.PostStatusFailed
	}
	if err := q.posts.UpdateStatus(ctx, postID, status); err != nil {
		log.Printf("Error updating status for PostID %d: %v", postID, err)
	}

	return nil
}
