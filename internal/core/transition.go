package core

import (
	"context"
	"time"
)

// Transition is a single entity state change.
type Transition struct {
	EntityID string
	From     string
	To       string
	Context  *Context
	At       time.Time
}

// WatchMetadata tags a transition watch with who registered it.
type WatchMetadata struct {
	// PlatformType is the trigger platform that owns the watch (e.g. "device").
	PlatformType string

	// Name is the automation name, used for logging only.
	Name string
}

// TransitionHandler is called for every matching transition.
type TransitionHandler func(ctx context.Context, t Transition)
