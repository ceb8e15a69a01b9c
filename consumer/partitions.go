package consumer

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunPartitions runs every consumer in its own goroutine. The first failing consumer cancels the others,
// its error is returned once all of them stopped.
func RunPartitions(ctx context.Context, consumers ...*PartitionConsumer) error {
	group, groupCtx := errgroup.WithContext(ctx)

	for _, consumer := range consumers {
		group.Go(func() error {
			return consumer.Run(groupCtx)
		})
	}

	return group.Wait()
}
