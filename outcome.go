package tsgate

// AddStatus tags the result of Coordinator.AddClient so callers cannot
// mistake a rejected duplicate for a zero client count.
type AddStatus int

const (
	// AddStatusAdded means the client was registered on this worker.
	AddStatusAdded AddStatus = iota
	// AddStatusAlreadyRegistered means the id was seen before and nothing
	// changed.
	AddStatusAlreadyRegistered
)

// String returns a human representation of AddStatus.
func (s AddStatus) String() string {
	if s == AddStatusAlreadyRegistered {
		return "already_registered"
	}
	return "added"
}

// AddOutcome is the result of Coordinator.AddClient.
type AddOutcome struct {
	Status AddStatus
	// LocalClients is this worker's client count after the call.
	LocalClients int
}
