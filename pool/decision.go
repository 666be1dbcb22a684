package pool

import "fmt"

// Action is what the scheduler does with one envelope.
type Action int

const (
	// Forward to a free executor that already holds the app.
	Forward Action = iota
	// SpawnNew appends an executor for the app.
	SpawnNew
	// Replace evicts the code of a free executor and loads the app into it.
	Replace
	// PutAway queues the envelope until an executor frees up.
	PutAway
)

func (a Action) String() string {
	switch a {
	case Forward:
		return "forward"
	case SpawnNew:
		return "spawn"
	case Replace:
		return "replace"
	case PutAway:
		return "put_away"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Decision is an Action and, for Forward and Replace, the executor position.
type Decision struct {
	Action Action
	Index  int
}

type slot interface {
	Free() bool
	Matches(owner, app string) bool
}

// decide picks the action for (owner, app) in strict priority order: the
// lowest-positioned free match, a new executor while there is room, the
// lowest-positioned free executor of any identity, and the queue last.
// Free flags must be refreshed by the caller.
func decide[S slot](slots []S, limit int, owner, app string) Decision {
	for i, s := range slots {
		if s.Free() && s.Matches(owner, app) {
			return Decision{Action: Forward, Index: i}
		}
	}
	if len(slots) < limit {
		return Decision{Action: SpawnNew, Index: len(slots)}
	}
	for i, s := range slots {
		if s.Free() {
			return Decision{Action: Replace, Index: i}
		}
	}
	return Decision{Action: PutAway, Index: -1}
}
