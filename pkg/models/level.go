package models

// Level represents the depth of a node in the work-breakdown hierarchy.
// Levels are strictly ordered from Initiative (1) down to AtomicUnit (7).
type Level int

const (
	// LevelInitiative is the top-level strategic objective.
	LevelInitiative Level = iota + 1
	// LevelEpic is a large body of work under an initiative.
	LevelEpic
	// LevelStory is a user-facing slice of an epic.
	LevelStory
	// LevelTask is a concrete engineering task within a story.
	LevelTask
	// LevelSubtask is a step within a task.
	LevelSubtask
	// LevelComponent is an implementation component of a subtask.
	LevelComponent
	// LevelAtomicUnit is the smallest unit of work; it is never expanded.
	LevelAtomicUnit
)

// MaxLevel is the deepest level in the hierarchy.
const MaxLevel = LevelAtomicUnit

// String returns a human-readable name for the level.
func (l Level) String() string {
	switch l {
	case LevelInitiative:
		return "initiative"
	case LevelEpic:
		return "epic"
	case LevelStory:
		return "story"
	case LevelTask:
		return "task"
	case LevelSubtask:
		return "subtask"
	case LevelComponent:
		return "component"
	case LevelAtomicUnit:
		return "atomic_unit"
	default:
		return "unknown"
	}
}

// Valid returns true if the level is within the 1-7 range.
func (l Level) Valid() bool {
	return l >= LevelInitiative && l <= LevelAtomicUnit
}

// Next returns the level one step deeper, and false if the level is
// already atomic.
func (l Level) Next() (Level, bool) {
	if l >= LevelAtomicUnit {
		return l, false
	}
	return l + 1, true
}

// Atomic returns true if nodes at this level are never expanded further.
func (l Level) Atomic() bool {
	return l == LevelAtomicUnit
}

// ParseLevel converts a level name back to a Level.
// Returns false if the name is not a known level.
func ParseLevel(s string) (Level, bool) {
	for l := LevelInitiative; l <= LevelAtomicUnit; l++ {
		if l.String() == s {
			return l, true
		}
	}
	return 0, false
}
