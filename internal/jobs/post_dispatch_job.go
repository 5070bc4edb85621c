package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postbridge/internal/models"
	"github.com/maheshrc27/postbridge/internal/queue"
	"github.com/maheshrc27/postbridge/internal/repository"
)

// PostDispatchJob moves due posts onto the worker queue. Marking a post as
// publishing before the enqueue keeps the next sweep from picking it up
// again.
type PostDispatchJob struct {
	posts  repository.PostRepository
	client *asynq.Client
}

func NewPostDispatchJob(posts repository.PostRepository, client *asynq.Client) *PostDispatchJob {
	return &PostDispatchJob{
		posts:  posts,
		client: client,
	}
}

func (j *PostDispatchJob) DispatchDuePosts(ctx context.Context) {
	due, err := j.posts.ListDue(ctx)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	for _, post := range due {
		if err := j.posts.UpdateStatus(ctx, post.ID, models.PostStatusPublishing); err != nil {
			slog.Info(err.Error())
			continue
		}

		if err := queue.EnqueuePost(j.client, queue.SchedulePostPayload{PostID: post.ID}, 0); err != nil {
			slog.Info(err.Error())
			if err := j.posts.UpdateStatus(ctx, post.ID, models.PostStatusScheduled); err != nil {
				slog.Info(err.Error())
			}
		}
	}
}
