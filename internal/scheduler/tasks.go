package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskFollowupSweep = "followups.sweep"

const TaskFollowupSweepClient = "followups.sweep_client"

const TaskMailboxPoll = "mailbox.poll"

type SweepClientPayload struct {
	ClientSlug string `json:"clientSlug"`
}

func NewFollowupSweepTask() *asynq.Task {
	return asynq.NewTask(TaskFollowupSweep, nil)
}

func NewFollowupSweepClientTask(payload SweepClientPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFollowupSweepClient, data), nil
}

func ParseSweepClientPayload(task *asynq.Task) (SweepClientPayload, error) {
	var payload SweepClientPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SweepClientPayload{}, err
	}
	return payload, nil
}

func NewMailboxPollTask() *asynq.Task {
	return asynq.NewTask(TaskMailboxPoll, nil)
}
