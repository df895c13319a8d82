package workerpool

import "context"

// Map applies fn to every item using at most workerCount goroutines and returns
// the results in input order. The first error cancels the remaining work.
func Map[T, R any](ctx context.Context, workerCount int, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	type job struct {
		idx  int
		item T
	}
	jobs := make([]job, len(items))
	for i, item := range items {
		jobs[i] = job{idx: i, item: item}
	}
	workerCount = min(workerCount, len(items))

	results := make([]R, len(items))
	err := Process(ctx, workerCount, jobs, func(ctx context.Context, j job) error {
		r, err := fn(ctx, j.item)
		if err != nil {
			return err
		}
		results[j.idx] = r
		return nil
	}, nil)
	if err != nil {
		return nil, err
	}
	return results, nil
}
