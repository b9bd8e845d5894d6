package store

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"copilot/internal/tasks"
)

// AsynqJobClient enqueues background tasks on Redis via asynq.
// Ensure it implements JobClient.
var _ JobClient = (*AsynqJobClient)(nil)

type AsynqJobClient struct {
	client *asynq.Client
}

func NewAsynqJobClient(redisAddr string) (*AsynqJobClient, error) {
	if redisAddr == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}
	cli := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	return &AsynqJobClient{client: cli}, nil
}

func (jc *AsynqJobClient) Close() error {
	if jc == nil || jc.client == nil {
		return nil
	}
	return jc.client.Close()
}

// EnqueueSummarizeDocument queues a summary generation task for the given
// document. A nil client is a no-op so ingestion works without Redis.
func (jc *AsynqJobClient) EnqueueSummarizeDocument(ctx context.Context, documentID string) error {
	if jc == nil || jc.client == nil {
		log.WithField("document_id", documentID).Debug("No job client configured, skipping summarize enqueue")
		return nil
	}
	task, err := tasks.NewSummarizeTask(documentID)
	if err != nil {
		return err
	}
	info, err := jc.client.EnqueueContext(ctx, task, asynq.Queue("default"))
	if err != nil {
		return fmt.Errorf("enqueue summarize job for document %s: %w", documentID, err)
	}
	log.WithFields(log.Fields{
		"task_id":     info.ID,
		"queue":       info.Queue,
		"document_id": documentID,
	}).Debug("Enqueued summarize task")
	return nil
}
