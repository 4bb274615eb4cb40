// Package resource governs the process-wide budgets shared by buffers,
// workspaces and checkpoint IO.
//
//   - Memory: every self-owned buffer and every arena chunk reserves its bytes
//     before mapping them. Reservation never blocks; a full budget surfaces as
//     ErrMemoryLimitExceeded and the caller reports an allocation failure.
//   - Background slots: bound the fan-out of bulk operations such as closing
//     every registered workspace.
//   - IO: a token bucket throttling checkpoint reads and writes.
//
// A nil *Controller is valid and imposes no limits, so components can accept
// an optional controller without nil checks.
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes:   1 << 30,
//	    IOLimitBytesPerSec: 64 << 20,
//	})
//	if err := rc.AcquireMemory(4096); err != nil {
//	    return err
//	}
//	defer rc.ReleaseMemory(4096)
package resource
