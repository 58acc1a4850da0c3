package memsys

// A ProfileRange maps one carve-out of the flat address space to the cache
// of one peripheral stream.
type ProfileRange struct {
	Lo, Hi uint64
	Stream string
}

// A Profile holds the configuration-dependent part of the address map: the
// per-stream arbiter offsets and the router's range table. A profile is
// loaded between sessions and stays fixed while a session runs.
type Profile struct {
	Name string

	// Offsets relocate each stream's bursts within its backend's flat
	// space, keyed by stream name.
	Offsets map[string]uint64

	Ranges []ProfileRange
}
