package treestore

// GuestUserID is the id of the anonymous identity.
const GuestUserID int64 = 1

// SystemUserID is the id used when running as system.
const SystemUserID int64 = 0

// ActorContext identifies the caller of a mutating operation. It replaces any
// ambient "current user" and is passed explicitly through every call.
type ActorContext struct {
	UserID             int64  `json:"userId"`
	Name               string `json:"name,omitempty"`
	GlobalSupervisor   bool   `json:"globalSupervisor,omitempty"`
	MandatorSupervisor bool   `json:"mandatorSupervisor,omitempty"`
	Guest              bool   `json:"guest,omitempty"`
	// RunAsSystem skips permission checks.
	RunAsSystem bool `json:"runAsSystem,omitempty"`
}

// System returns the actor used by maintenance tasks such as the lock sweep.
func System() ActorContext {
	return ActorContext{UserID: SystemUserID, Name: "system", GlobalSupervisor: true, RunAsSystem: true}
}

// Guest returns the anonymous actor.
func Guest() ActorContext {
	return ActorContext{UserID: GuestUserID, Name: "guest", Guest: true}
}

// IsSupervisor reports global or mandator supervisor privilege.
func (a ActorContext) IsSupervisor() bool {
	return a.GlobalSupervisor || a.MandatorSupervisor || a.RunAsSystem
}

// IsGuest reports whether the actor is the anonymous identity.
func (a ActorContext) IsGuest() bool {
	return a.Guest || (a.UserID == GuestUserID && !a.RunAsSystem)
}
