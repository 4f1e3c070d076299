// Package mailbox decouples transport from role logic: every role
// (Master or Worker) owns exactly one Mailbox, an ordered pair of FIFO
// queues (inbound, outbound) backed by a shared transport.Transport
// handle. The handle is the small Transport interface below, so both the
// UDP transport and an in-process test transport can back a Mailbox;
// addresses are strings in both cases.
package mailbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-kit/kit/log"

	"github.com/quorumlog/quorumd/issue"
	"github.com/quorumlog/quorumd/utils"
)

// Transport is the minimal capability Mailbox needs from a transport: an
// addressed send and a blocking receive. transport.Transport satisfies
// this for string addresses.
type Transport interface {
	Send(dst string, b []byte) (local, remote string, n int, err error)
	Recv(ctx context.Context) (local, remote string, b []byte, err error)
}

// Mail is an envelope carrying a From address, a fan-out list of To
// addresses, and an Issue body. A Mailbox's Flush expands To into one
// datagram per recipient.
type Mail struct {
	From string
	To   []string
	Body issue.Issue
}

// Mailbox holds a role's exclusive inbound and outbound FIFOs. Both
// queues are mutex-guarded because the outbound queue is drained by the
// role's driver loop while the inbound queue is filled by a background
// receiver goroutine reading from the same Transport (see transport.New)
// — these are the only shared-mutable structures a role touches.
type Mailbox struct {
	logger    log.Logger
	transport Transport

	mu       sync.Mutex
	inbound  []Mail
	outbound []Mail
}

// New builds a Mailbox over the given transport.
func New(t Transport, logger log.Logger) *Mailbox {
	return &Mailbox{transport: t, logger: logger}
}

// PutOutbound appends mail to the outbound queue.
func (mb *Mailbox) PutOutbound(mail Mail) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.outbound = append(mb.outbound, mail)
}

// TakeInbound pops the head of the inbound queue. Returns ok=false when
// the queue is empty.
func (mb *Mailbox) TakeInbound() (mail Mail, ok bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if len(mb.inbound) == 0 {
		return Mail{}, false
	}
	mail, mb.inbound = mb.inbound[0], mb.inbound[1:]
	return mail, true
}

// Flush drains the outbound queue in FIFO order, sending one datagram
// per recipient per mail. A per-recipient send failure is logged and
// aggregated into the returned error but does not stop the flush of
// later recipients or later mails.
func (mb *Mailbox) Flush() error {
	mb.mu.Lock()
	pending := mb.outbound
	mb.outbound = nil
	mb.mu.Unlock()

	var errs []error
	for _, mail := range pending {
		payload := issue.Encode(mail.Body)
		for _, to := range mail.To {
			if _, _, _, err := mb.transport.Send(to, payload); err != nil {
				mb.logger.Log("msg", "failed to send mail", "to", to, "error", err)
				errs = append(errs, fmt.Errorf("send to %s: %w", to, err))
				continue
			}
			utils.DebugLog(mb.logger, "msg", "flushed mail", "to", to, "kind", mail.Body.Kind, "id", mail.Body.ID)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("mailbox: %d send failures, first: %w", len(errs), errs[0])
	}
	return nil
}

// Fill blocks on the transport's Recv, decodes the datagram into an
// Issue, and pushes it onto the inbound queue. A decode failure drops
// the datagram (it is never admitted to the inbound queue) and is
// returned to the caller for logging.
func (mb *Mailbox) Fill(ctx context.Context) error {
	local, remote, raw, err := mb.transport.Recv(ctx)
	if err != nil {
		return fmt.Errorf("mailbox: recv: %w", err)
	}
	body, err := issue.Decode(raw)
	if err != nil {
		return fmt.Errorf("mailbox: decode from %s (local %s): %w", remote, local, err)
	}
	mb.mu.Lock()
	mb.inbound = append(mb.inbound, Mail{From: remote, To: []string{local}, Body: body})
	mb.mu.Unlock()
	utils.DebugLog(mb.logger, "msg", "admitted mail", "from", remote, "kind", body.Kind, "id", body.ID)
	return nil
}
