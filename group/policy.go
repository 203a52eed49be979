package group

// Policy controls who may join a group.
type Policy uint8

const (
	PolicyUndefined Policy = iota
	PolicyPrivate
	PolicyRestricted
	PolicyShared
)

func (p Policy) String() string {
	switch p {
	case PolicyPrivate:
		return "private"
	case PolicyRestricted:
		return "restricted"
	case PolicyShared:
		return "shared"
	default:
		return "undefined"
	}
}

// accessCheck implements the table-driven evaluation from "join":
// - private: joinable only if id already a member
// - restricted: joinable only if creatorPID == callerPID and requested == restricted
// - shared: joinable iff requested == shared
// - undefined: any policy accepted; group adopts the requested policy
//
// isMember reports whether `id` is already a member of the group under any
// class. Returns the policy the group should end up with, and whether the
// join is allowed.
func accessCheck(current Policy, requested Policy, isMember bool, creatorPID, callerPID int32) (result Policy, ok bool) {
	// Open Question resolution: requesting `undefined` explicitly
	// is only ever honored on a fresh group; on an already-initialized
	// group it is rejected outright rather than left ambiguous.
	if requested == PolicyUndefined && current != PolicyUndefined {
		return current, false
	}
	switch current {
	case PolicyPrivate:
		return current, isMember
	case PolicyRestricted:
		return current, creatorPID == callerPID && requested == PolicyRestricted
	case PolicyShared:
		return current, requested == PolicyShared
	default: // PolicyUndefined: fresh group, any policy accepted and adopted
		if requested == PolicyUndefined {
			return current, true // stays undefined; caller deliberately deferred the choice
		}
		return requested, true
	}
}
