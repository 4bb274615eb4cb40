package workspace

import "errors"

// ScopeOut runs fn inside the current generation of ws and resets ws
// afterwards, even if fn fails. It marks one iteration of a training loop.
func ScopeOut(ws Workspace, fn func(Workspace) error) error {
	err := fn(ws)
	return errors.Join(err, ws.Reset())
}
