package queue

import (
	"github.com/maheshrc27/postbridge/internal/repository"
	"github.com/maheshrc27/postbridge/internal/service"
)

type Queue struct {
	posts    repository.PostRepository
	accounts repository.AccountRepository
	pub      service.PublishService
}

func NewQueue(posts repository.PostRepository, accounts repository.AccountRepository, pub service.PublishService) *Queue {
	return &Queue{
		posts:    posts,
		accounts: accounts,
		pub:      pub,
	}
}

const TaskTypeSchedulePost = "schedule:post"

type SchedulePostPayload struct {
	PostID int64 `json:"post_id"`
}
