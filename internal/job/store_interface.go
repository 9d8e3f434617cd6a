package job

import "context"

// JobStore is the job persistence contract used by the logistics service.
type JobStore interface {
	List(ctx context.Context, limit int) ([]Job, error)
	Get(ctx context.Context, id string) (Job, error)
	Upsert(ctx context.Context, j Job) (Result, error)
	Transition(ctx context.Context, id string, status Status, o Overrides) (Result, error)
	Policy() *Policy
}
