package batch

import (
	"fmt"
	"sort"

	"github.com/deppfellow/itembatch/internal/lib/workerpool"
)

// TaskError is the failure of a single item within a run.
type TaskError struct {
	ID  int64
	Err error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("item %d: %v", e.ID, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// BatchError reports a failed run. Cause is the first task failure observed;
// Failures lists every failed id so callers can tell what was left undone.
type BatchError struct {
	Total    int
	Failures map[int64]error
	Cause    error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch run failed: %d of %d items failed: %v", len(e.Failures), e.Total, e.Cause)
}

func (e *BatchError) Unwrap() error {
	return e.Cause
}

// FailedIDs returns the failed ids in ascending order.
func (e *BatchError) FailedIDs() []int64 {
	ids := make([]int64, 0, len(e.Failures))
	for id := range e.Failures {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// newBatchError builds the manifest. Every task has settled by now, so Get
// does not block.
func newBatchError(ids []int64, tasks []*workerpool.Future[struct{}], cause error) *BatchError {
	failures := make(map[int64]error)
	for i, task := range tasks {
		if _, err := task.Get(); err != nil {
			failures[ids[i]] = err
		}
	}

	return &BatchError{
		Total:    len(ids),
		Failures: failures,
		Cause:    cause,
	}
}
