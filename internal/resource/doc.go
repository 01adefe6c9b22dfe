// Package resource implements the Controller for process-wide limits.
//
// The Controller manages two resource types:
//
//   - Concurrency: Limit background workers (snapshot frame compression)
//   - IO: Rate-limit cluster transfers against the backing medium
//
// # Background Worker Limits
//
//	rc := resource.NewController(resource.Config{
//	    MaxBackgroundWorkers: 4,
//	})
//
//	if err := rc.AcquireBackground(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseBackground()
//
// # IO Rate Limiting
//
// Token bucket rate limiter (golang.org/x/time/rate):
//
//	rc := resource.NewController(resource.Config{
//	    IOLimitBytesPerSec: 8 * 1024 * 1024,
//	})
//
//	if err := rc.AcquireIO(ctx, clusterSize); err != nil {
//	    return err
//	}
//
// # Nil Safety
//
// All methods handle nil Controller gracefully - they become no-ops.
// This allows optional resource limiting without nil checks everywhere.
package resource
