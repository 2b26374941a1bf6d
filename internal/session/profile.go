package session

// Profile identifies a player. The PIN credential is deliberately not part
// of it and is never persisted.
type Profile struct {
	ID          string `json:"id"`
	TrainerName string `json:"trainer_name"`
}

// Snapshot is the profile/session pair cached on the device.
type Snapshot struct {
	Profile Profile `json:"profile"`
	Session Session `json:"session"`
}
