// Package host abstracts the embedding game process: the single-threaded
// game-thread executor, the in-game calendar, spell grants, and the script
// event broadcast. Background workers never touch engine state directly;
// they post closures to the TaskQueue.
package host

// TaskQueue schedules a closure onto the game thread. Post must be safe to
// call from any goroutine; execution order of posted tasks is preserved.
type TaskQueue interface {
	Post(task func())
}

// Calendar reads coarse in-game time. Must only be read on the game thread.
type Calendar interface {
	GameHours() float64
}

// Spells is the slice of the host form system the engine needs: existence
// checks and granting a spell to the player.
type Spells interface {
	SpellExists(formID uint32) bool
	SchoolOf(formID uint32) string
	AddToPlayer(formID uint32) bool
}

// Events broadcasts a mod event to host script listeners.
type Events interface {
	SendModEvent(name, strArg string, numArg float64)
}

// NopEvents discards all mod events. Used when no script layer is attached.
type NopEvents struct{}

func (NopEvents) SendModEvent(string, string, float64) {}
