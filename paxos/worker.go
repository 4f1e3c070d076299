// Package paxos implements the two role state machines of the
// replication engine: Worker, which votes on proposals, and Master,
// which collapses proposal assignment, vote tallying, and commit into
// one type. These are two concrete types, not members of a role
// hierarchy with dynamic dispatch.
package paxos

import (
	"github.com/go-kit/kit/log"

	"github.com/quorumlog/quorumd/configuration"
	"github.com/quorumlog/quorumd/issue"
	"github.com/quorumlog/quorumd/mailbox"
)

// Worker is the "Senator" role: it votes on Proposals from the Master
// and never votes twice for the same or an older proposal id.
type Worker struct {
	logger      log.Logger
	address     string
	addressBook configuration.AddressBook
	mailbox     *mailbox.Mailbox

	lastProposalID uint64
}

// NewWorker builds a Worker with lastProposalID starting at 0.
func NewWorker(address string, addressBook configuration.AddressBook, mb *mailbox.Mailbox, logger log.Logger) *Worker {
	return &Worker{
		logger:      logger,
		address:     address,
		addressBook: addressBook,
		mailbox:     mb,
	}
}

// LastProposalID reports the highest proposal id this Worker has voted
// for. Exposed for status reporting and tests.
func (w *Worker) LastProposalID() uint64 {
	return w.lastProposalID
}

// ProcessInbound pops one inbound mail and applies the Worker's
// transitions:
//
//   - Proposal from the master, id > lastProposalID: emit a Vote, bump
//     lastProposalID.
//   - Proposal, id <= lastProposalID: drop, ExpiredProposal.
//   - Proposal from any other role: drop, ProtocolViolation.
//   - Vote or Resolution, from anyone: drop — "Worker does not process
//     kind".
//
// Returns ok=false ("empty") when the inbound queue has nothing to
// process; all other outcomes are reported via the returned error for
// logging, and are never fatal.
func (w *Worker) ProcessInbound() (ok bool, err error) {
	mail, ok := w.mailbox.TakeInbound()
	if !ok {
		return false, nil
	}

	role := w.addressBook.Resolve(mail.From)
	body := mail.Body

	switch body.Kind {
	case issue.Proposal:
		if role != "president" && role != "master" {
			w.logger.Log("msg", "protocol violation", "role", role, "kind", body.Kind)
			return true, errProtocolViolation(role, body.Kind)
		}
		if body.ID <= w.lastProposalID {
			w.logger.Log("msg", "expired proposal", "id", body.ID, "lastProposalID", w.lastProposalID)
			return true, errExpiredProposal(body.ID, w.lastProposalID)
		}
		w.lastProposalID = body.ID
		w.mailbox.PutOutbound(mailbox.Mail{
			From: w.address,
			To:   w.addressBook.Masters(),
			Body: issue.New(issue.Vote, body.ID, body.Content),
		})
		return true, nil

	case issue.Vote, issue.Resolution:
		w.logger.Log("msg", "Worker does not process kind", "kind", body.Kind, "from", mail.From)
		return true, errWrongKindForRole("Worker", body.Kind)

	default:
		return true, errWrongKindForRole("Worker", body.Kind)
	}
}

// Run drains the inbound mailbox until empty, applying ProcessInbound
// repeatedly.
func (w *Worker) Run() {
	for {
		ok, err := w.ProcessInbound()
		if err != nil {
			w.logger.Log("msg", "drop", "error", err)
		}
		if !ok {
			return
		}
	}
}
