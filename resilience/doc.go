// Package resilience retries operations against flaky destinations.
//
// Retry runs an operation until it succeeds, the attempts are used up,
// the context ends or the operation returns a Permanent error:
//
//	err := resilience.Retry(ctx, cfg, func(ctx context.Context, attempt int) error {
//	    if err := store.Upload(ctx, path, bytes.NewReader(data)); err != nil {
//	        if store.Ping(ctx) != nil {
//	            return resilience.Permanent(err)
//	        }
//	        return err
//	    }
//	    return nil
//	})
package resilience
