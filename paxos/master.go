package paxos

import (
	"fmt"
	"sync"

	"github.com/go-kit/kit/log"

	"github.com/quorumlog/quorumd/configuration"
	"github.com/quorumlog/quorumd/issue"
	"github.com/quorumlog/quorumd/logbackend"
	"github.com/quorumlog/quorumd/mailbox"
	"github.com/quorumlog/quorumd/utils/status"
)

// Master collapses three sub-roles — tallying votes, assigning
// proposal ids, and writing resolutions — into one state machine; they
// are internal methods, not separate types.
//
// Master is the sole mutator of counter and voteTable and the sole
// caller of backend.Write/Query; this single-writer discipline is what
// makes the monotone-counter and single-commit-per-id invariants hold
// without any locking beyond the driver loop's ownership boundary. The
// mutex guards counter and voteTable for readers outside the driver
// loop, such as Status called from the /status handler or the SIGUSR1
// dump. GetLog takes no lock; admin.CmdBus routes queries through the
// driver loop's own command processing.
type Master struct {
	logger      log.Logger
	address     string
	addressBook configuration.AddressBook
	mailbox     *mailbox.Mailbox
	backend     logbackend.LogBackend

	mu        sync.Mutex
	counter   uint64
	voteTable map[uint64]uint64

	metrics Metrics
}

// Metrics receives counts of proposal/vote/commit/drop events as the
// Master's driver loop makes progress. stats.Recorder implements this;
// a nil Metrics is valid and simply means "don't record".
type Metrics interface {
	ProposalEmitted()
	VoteProcessed()
	Committed()
	Dropped(reason string)
}

type noopMetrics struct{}

func (noopMetrics) ProposalEmitted() {}
func (noopMetrics) VoteProcessed()   {}
func (noopMetrics) Committed()       {}
func (noopMetrics) Dropped(string)   {}

// NewMaster builds a Master with counter starting at 0 and an empty
// vote table.
func NewMaster(address string, addressBook configuration.AddressBook, mb *mailbox.Mailbox, backend logbackend.LogBackend, logger log.Logger) *Master {
	return &Master{
		logger:      logger,
		address:     address,
		addressBook: addressBook,
		mailbox:     mb,
		backend:     backend,
		voteTable:   make(map[uint64]uint64),
		metrics:     noopMetrics{},
	}
}

// SetMetrics installs a Metrics recorder (see stats.Recorder).
func (m *Master) SetMetrics(metrics Metrics) {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	m.metrics = metrics
}

// quorum returns floor(senators/2)+1: strict majority of the configured
// Workers. A hardcoded constant that would let a single vote commit
// regardless of cluster size is deliberately not used here.
func (m *Master) quorum() uint64 {
	senators := uint64(len(m.addressBook.Workers()))
	return senators/2 + 1
}

// EmitNewProposal assigns the next counter value, registers it in the
// vote table with count 0, and enqueues a Proposal to every worker
// endpoint. Returns the assigned id.
func (m *Master) EmitNewProposal(content []byte) uint64 {
	m.mu.Lock()
	m.counter++
	id := m.counter
	m.voteTable[id] = 0
	m.mu.Unlock()

	m.mailbox.PutOutbound(mailbox.Mail{
		From: m.address,
		To:   m.addressBook.Workers(),
		Body: issue.New(issue.Proposal, id, content),
	})
	m.metrics.ProposalEmitted()
	return id
}

// ProcessVote pops one inbound mail. If it is a Vote for an id present
// in the vote table, tallies it; at quorum, removes the id from the
// table and writes the content to the log backend — the first and only
// commit for that id. Returns ok=false ("empty") when the inbound queue
// has nothing to process.
func (m *Master) ProcessVote() (ok bool, err error) {
	mail, ok := m.mailbox.TakeInbound()
	if !ok {
		return false, nil
	}

	role := m.addressBook.Resolve(mail.From)
	body := mail.Body

	if body.Kind != issue.Vote {
		m.logger.Log("msg", "Master dropped non-vote body", "kind", body.Kind, "from", mail.From)
		m.metrics.Dropped("wrong_kind")
		return true, errWrongKindForRole("Master.ProcessVote", body.Kind)
	}
	if role != "senator" && role != "worker" {
		m.logger.Log("msg", "protocol violation", "role", role, "kind", body.Kind)
		m.metrics.Dropped("protocol_violation")
		return true, errProtocolViolation(role, body.Kind)
	}

	m.mu.Lock()
	count, present := m.voteTable[body.ID]
	if !present {
		m.mu.Unlock()
		m.metrics.Dropped("unknown_proposal")
		return true, errUnknownProposal(body.ID)
	}
	count++
	quorum := m.quorum()
	if count >= quorum {
		delete(m.voteTable, body.ID)
		m.mu.Unlock()

		if err := m.backend.Write(body.ID, body.Content); err != nil {
			m.logger.Log("msg", "backend write failed", "id", body.ID, "error", err)
			m.metrics.Dropped("backend_failure")
			return true, err
		}
		m.metrics.VoteProcessed()
		m.metrics.Committed()
		m.logger.Log("msg", "committed", "id", body.ID)
		return true, nil
	}
	m.voteTable[body.ID] = count
	m.mu.Unlock()
	m.metrics.VoteProcessed()
	return true, errNotEnoughVotes(body.ID, count, quorum)
}

// PendingCount reports the number of proposals awaiting quorum, for the
// driver loop's gauge sampling (see stats.Recorder.SetPending).
func (m *Master) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voteTable)
}

// GetLog queries the log backend for id's most recent accepted content.
func (m *Master) GetLog(id uint64) ([]byte, error) {
	return m.backend.Query(id)
}

// Flush drains the outbound mailbox.
func (m *Master) Flush() error {
	return m.mailbox.Flush()
}

// DrainVotes repeatedly calls ProcessVote until the inbound mailbox
// reports empty.
func (m *Master) DrainVotes() {
	for {
		ok, err := m.ProcessVote()
		if err != nil {
			m.logger.Log("msg", "vote processing", "error", err)
		}
		if !ok {
			return
		}
	}
}

// Status renders the Master's counter and pending-vote-table size onto
// sc as a small indented status tree.
func (m *Master) Status(sc *status.StatusConsumer) {
	m.mu.Lock()
	counter := m.counter
	pending := len(m.voteTable)
	m.mu.Unlock()

	sc.Emit("Master")
	sc.Emit(fmt.Sprintf("- Address: %v", m.address))
	sc.Emit(fmt.Sprintf("- Counter: %v", counter))
	sc.Emit(fmt.Sprintf("- Quorum: %v", m.quorum()))
	sc.Emit(fmt.Sprintf("- Pending proposals: %v", pending))
}
