package pipe

import "context"

// SendRecords forwards records to outCh until ctx is done.
func SendRecords[R any](ctx context.Context, records []R, outCh chan<- R) {
	for _, record := range records {
		select {
		case <-ctx.Done():
			return
		case outCh <- record:
		}
	}
}
