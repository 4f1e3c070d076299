// Package issue implements the single on-wire and in-memory message
// type of the replication protocol: a Proposal, a Vote, or a Resolution,
// each carrying a monotonic proposal id and opaque content.
package issue

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Kind distinguishes the three stages of a single decree's lifecycle.
type Kind byte

const (
	// Proposal is emitted by the Master to all Workers.
	Proposal Kind = iota
	// Vote is emitted by a Worker back to the Master.
	Vote
	// Resolution marks a committed decree. In this design it is never
	// sent over the wire — it exists only as a LogBackend write — but
	// the type is still needed by the codec and by tests exercising the
	// wire format directly (see the round-trip tests).
	Resolution
)

func (k Kind) letter() byte {
	switch k {
	case Proposal:
		return 'p'
	case Vote:
		return 'v'
	case Resolution:
		return 'r'
	default:
		panic(fmt.Sprintf("issue: invalid Kind %d", k))
	}
}

func (k Kind) String() string {
	switch k {
	case Proposal:
		return "Proposal"
	case Vote:
		return "Vote"
	case Resolution:
		return "Resolution"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

func kindFromLetter(b byte) (Kind, error) {
	switch b {
	case 'p':
		return Proposal, nil
	case 'v':
		return Vote, nil
	case 'r':
		return Resolution, nil
	default:
		return 0, fmt.Errorf("issue: %q is not a valid kind letter", b)
	}
}

// Issue is the single message type exchanged between Master and Worker
// and held by the LogBackend. id is stable across a decree's
// Proposal -> Vote -> Resolution lifecycle, as is content; kind is the
// only field that transitions.
type Issue struct {
	Kind    Kind
	ID      uint64
	Content []byte
}

// New builds an Issue. Content above MaxContentLen will not round-trip
// through Encode/Decode within a single 512-byte datagram. New does not
// check the length (Issue itself is just a value type), and neither does
// the admin HTTP submit handler.
func New(kind Kind, id uint64, content []byte) Issue {
	return Issue{Kind: kind, ID: id, Content: content}
}

// MaxContentLen is the largest content that is guaranteed to fit in one
// DatagramBufferSize-sized UDP datagram after kind/id framing overhead,
// assuming a worst-case (20-digit) decimal id.
const MaxContentLen = 512 - 1 - 1 - 20 - 1

// Encode renders i in the wire format "<kind>|<id_base10>|<content>".
func Encode(i Issue) []byte {
	var b strings.Builder
	b.Grow(len(i.Content) + 22)
	b.WriteByte(i.Kind.letter())
	b.WriteByte('|')
	b.WriteString(strconv.FormatUint(i.ID, 10))
	b.WriteByte('|')
	b.Write(i.Content)
	return []byte(b.String())
}

// Decode parses the wire format back into an Issue. It fails if b is not
// valid UTF-8, if it does not split into exactly 3 '|'-delimited parts
// (kind, id, content — content itself is never re-split, so it may
// safely contain '|'), if the kind letter is unrecognised, or if the id
// does not parse as base-10 unsigned.
func Decode(b []byte) (Issue, error) {
	if !utf8.Valid(b) {
		return Issue{}, fmt.Errorf("issue: payload is not valid UTF-8")
	}
	s := string(b)
	parts := strings.SplitN(s, "|", 3)
	if len(parts) != 3 {
		return Issue{}, fmt.Errorf("issue: expected 3 '|'-delimited parts, got %d", len(parts))
	}
	if len(parts[0]) != 1 {
		return Issue{}, fmt.Errorf("issue: kind field must be a single letter, got %q", parts[0])
	}
	kind, err := kindFromLetter(parts[0][0])
	if err != nil {
		return Issue{}, err
	}
	id, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return Issue{}, fmt.Errorf("issue: invalid id %q: %w", parts[1], err)
	}
	return Issue{Kind: kind, ID: id, Content: []byte(parts[2])}, nil
}
