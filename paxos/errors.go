package paxos

import "fmt"

// These constructors back the error kinds that originate inside the
// role state machines. Decode failures are raised by the mailbox/issue
// layers, not here; ExpiredProposal, ProtocolViolation, NotEnoughVotes,
// and UnknownProposal are raised here and are always non-fatal — logged
// at warn and dropped, never surfaced past the driver loop.

type protocolViolationError struct {
	role string
	kind fmt.Stringer
}

func (e *protocolViolationError) Error() string {
	return fmt.Sprintf("protocol violation: received %v from role %q", e.kind, e.role)
}

func errProtocolViolation(role string, kind fmt.Stringer) error {
	return &protocolViolationError{role: role, kind: kind}
}

type expiredProposalError struct {
	id, lastID uint64
}

func (e *expiredProposalError) Error() string {
	return fmt.Sprintf("expired proposal: received id %d, last accepted id %d", e.id, e.lastID)
}

func errExpiredProposal(id, lastID uint64) error {
	return &expiredProposalError{id: id, lastID: lastID}
}

type wrongKindForRoleError struct {
	role string
	kind fmt.Stringer
}

func (e *wrongKindForRoleError) Error() string {
	return fmt.Sprintf("%s does not process kind %v", e.role, e.kind)
}

func errWrongKindForRole(role string, kind fmt.Stringer) error {
	return &wrongKindForRoleError{role: role, kind: kind}
}

type unknownProposalError struct {
	id uint64
}

func (e *unknownProposalError) Error() string {
	return fmt.Sprintf("unknown or finished proposal: id %d", e.id)
}

func errUnknownProposal(id uint64) error {
	return &unknownProposalError{id: id}
}

type notEnoughVotesError struct {
	id, count, quorum uint64
}

func (e *notEnoughVotesError) Error() string {
	return fmt.Sprintf("not enough votes for id %d: %d/%d", e.id, e.count, e.quorum)
}

func errNotEnoughVotes(id, count, quorum uint64) error {
	return &notEnoughVotesError{id: id, count: count, quorum: quorum}
}
