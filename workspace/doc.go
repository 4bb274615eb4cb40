// Package workspace implements arena workspaces and their registry.
//
// A workspace is a bump-pointer arena reused across training iterations.
// Allocations hand out borrowed buffers tagged with the current generation;
// Reset rewinds the cursor and bumps the generation so every buffer from the
// previous iteration fails with buffer.ErrStaleGeneration on its next access
// (unless Config.UnsafeSkipGenerationCheck is set).
//
// State machine:
//
//	UNINITIALIZED --Allocate--> ACTIVE --Reset--> ACTIVE
//	      |                        |
//	      +--------Close-----------+-------> CLOSED
//
// Requests that do not fit the arena follow the overflow policy: Spill
// (default) returns an independent self-owned buffer, Grow maps an extra
// chunk without moving earlier ones, Fail returns ErrWorkspaceOverflow.
//
// Workspaces are owned by one goroutine at a time. The Manager keys them by
// an explicit OwnerID (carried in a context.Context via WithOwner) and a
// workspace id:
//
//	mgr := workspace.NewManager()
//	ws, err := mgr.GetOrCreate("worker-0", "forward", workspace.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	for iter := 0; iter < n; iter++ {
//	    err := workspace.ScopeOut(ws, func(ws workspace.Workspace) error {
//	        buf, err := ws.Allocate(buffer.Float32, 1024)
//	        ...
//	    })
//	}
package workspace
