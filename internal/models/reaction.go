package models

import "fmt"

type ReactionKind string

const (
	ReactionLike    ReactionKind = "like"
	ReactionDislike ReactionKind = "dislike"
)

func ParseReactionKind(raw string) (ReactionKind, error) {
	switch ReactionKind(raw) {
	case ReactionLike, ReactionDislike:
		return ReactionKind(raw), nil
	}
	return "", fmt.Errorf("unknown reaction kind %q", raw)
}

// Reversed returns the mutually exclusive counterpart of k.
func (k ReactionKind) Reversed() ReactionKind {
	if k == ReactionLike {
		return ReactionDislike
	}
	return ReactionLike
}

// ReactionState is what a single user currently expresses toward a single image.
type ReactionState string

const (
	ReactionNone     ReactionState = "none"
	ReactionLiked    ReactionState = "liked"
	ReactionDisliked ReactionState = "disliked"
)

func (k ReactionKind) State() ReactionState {
	if k == ReactionLike {
		return ReactionLiked
	}
	return ReactionDisliked
}

// Next applies a toggle of kind k to the current state:
// reacting twice with the same kind clears it, the other kind switches.
func (s ReactionState) Next(k ReactionKind) ReactionState {
	if s == k.State() {
		return ReactionNone
	}
	return k.State()
}
