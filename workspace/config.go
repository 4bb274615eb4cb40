package workspace

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/hupe1980/ndgo/buffer"
)

// DefaultAlignment is the allocation alignment used when Config.Alignment is
// zero.
const DefaultAlignment = 8

// DefaultInitialSize is the arena size of DefaultConfig.
const DefaultInitialSize = 16 << 20

// OverflowPolicy decides what happens when a request does not fit the arena.
type OverflowPolicy uint8

const (
	// Spill serves the request with an independent self-owned buffer.
	Spill OverflowPolicy = iota
	// Grow maps an additional chunk. Earlier chunks never move.
	Grow
	// Fail returns ErrWorkspaceOverflow.
	Fail
)

func (p OverflowPolicy) String() string {
	switch p {
	case Spill:
		return "spill"
	case Grow:
		return "grow"
	case Fail:
		return "fail"
	default:
		return fmt.Sprintf("OverflowPolicy(%d)", uint8(p))
	}
}

// ParseOverflowPolicy parses "spill", "grow" or "fail".
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spill", "":
		return Spill, nil
	case "grow":
		return Grow, nil
	case "fail":
		return Fail, nil
	default:
		return Spill, fmt.Errorf("workspace: unknown overflow policy %q", s)
	}
}

// LearningPolicy decides whether the arena resizes itself from observed demand.
type LearningPolicy uint8

const (
	// LearningNone keeps the configured size.
	LearningNone LearningPolicy = iota
	// LearningFirstLoop resizes the arena at the first reset to the peak
	// demand of the first generation, spilled and grown bytes included.
	LearningFirstLoop
)

func (p LearningPolicy) String() string {
	switch p {
	case LearningNone:
		return "none"
	case LearningFirstLoop:
		return "first_loop"
	default:
		return fmt.Sprintf("LearningPolicy(%d)", uint8(p))
	}
}

// ParseLearningPolicy parses "none" or "first_loop".
func ParseLearningPolicy(s string) (LearningPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return LearningNone, nil
	case "first_loop", "firstloop":
		return LearningFirstLoop, nil
	default:
		return LearningNone, fmt.Errorf("workspace: unknown learning policy %q", s)
	}
}

// DebugMode changes allocation behavior for diagnosing memory bugs.
type DebugMode uint8

const (
	// DebugDisabled is normal operation.
	DebugDisabled DebugMode = iota
	// DebugEnabled logs every allocation and forces generation checks even
	// when UnsafeSkipGenerationCheck is set.
	DebugEnabled
	// DebugBypassEverything replaces arenas with pass-through workspaces that
	// return an independent self-owned buffer for every request, ruling out
	// reuse-related aliasing.
	DebugBypassEverything
)

func (m DebugMode) String() string {
	switch m {
	case DebugDisabled:
		return "disabled"
	case DebugEnabled:
		return "enabled"
	case DebugBypassEverything:
		return "bypass_everything"
	default:
		return fmt.Sprintf("DebugMode(%d)", uint8(m))
	}
}

// ParseDebugMode parses "disabled", "enabled" or "bypass_everything".
func ParseDebugMode(s string) (DebugMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "disabled", "":
		return DebugDisabled, nil
	case "enabled":
		return DebugEnabled, nil
	case "bypass_everything", "bypass":
		return DebugBypassEverything, nil
	default:
		return DebugDisabled, fmt.Errorf("workspace: unknown debug mode %q", s)
	}
}

// State is the lifecycle state of a workspace.
type State int32

const (
	StateUninitialized State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Config describes a workspace.
type Config struct {
	// InitialSize is the arena size in bytes, mapped on first allocation.
	InitialSize int
	// Alignment of every allocation's start offset. Must be a power of two;
	// zero means DefaultAlignment. Chunk bases are at least 64-byte aligned.
	// Each allocation consumes its size padded to Alignment, so a
	// generation fits without overflow iff the sum of padded sizes (the last
	// one unpadded) fits InitialSize.
	Alignment int
	Overflow  OverflowPolicy
	Learning  LearningPolicy
	Backing   buffer.Backing
	// UnsafeSkipGenerationCheck lets buffers from a previous generation keep
	// reading and writing arena memory after Reset. They then alias whatever
	// the arena hands out next. Closed arenas are always checked.
	UnsafeSkipGenerationCheck bool
	DebugMode                 DebugMode
}

// DefaultConfig returns a 16 MiB off-heap arena that spills on overflow.
func DefaultConfig() Config {
	return Config{
		InitialSize: DefaultInitialSize,
		Alignment:   DefaultAlignment,
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if c.InitialSize < 0 {
		return fmt.Errorf("workspace: negative initial size %d", c.InitialSize)
	}
	if c.Alignment < 0 || (c.Alignment > 0 && bits.OnesCount(uint(c.Alignment)) != 1) {
		return fmt.Errorf("workspace: alignment %d is not a power of two", c.Alignment)
	}
	if c.Overflow > Fail {
		return fmt.Errorf("workspace: invalid overflow policy %d", c.Overflow)
	}
	if c.Learning > LearningFirstLoop {
		return fmt.Errorf("workspace: invalid learning policy %d", c.Learning)
	}
	if c.Backing > buffer.Heap {
		return fmt.Errorf("workspace: invalid backing %d", c.Backing)
	}
	if c.DebugMode > DebugBypassEverything {
		return fmt.Errorf("workspace: invalid debug mode %d", c.DebugMode)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Alignment == 0 {
		c.Alignment = DefaultAlignment
	}
	return c
}
