package paxos

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/go-kit/kit/log"

	"github.com/quorumlog/quorumd/configuration"
	"github.com/quorumlog/quorumd/issue"
	"github.com/quorumlog/quorumd/logbackend"
	"github.com/quorumlog/quorumd/mailbox"
)

// fakeTransport routes mail directly between named nodes in-process, so
// tests can exercise the Master/Worker state machines without binding
// real UDP sockets.
type fakeTransport struct {
	mu    sync.Mutex
	boxes map[string]chan frame
}

type frame struct {
	from string
	data []byte
}

func newFakeNetwork(names ...string) *fakeTransport {
	ft := &fakeTransport{boxes: make(map[string]chan frame)}
	for _, n := range names {
		ft.boxes[n] = make(chan frame, 64)
	}
	return ft
}

func (ft *fakeTransport) endpoint(name string) *fakeEndpoint {
	return &fakeEndpoint{net: ft, self: name}
}

type fakeEndpoint struct {
	net  *fakeTransport
	self string
}

func (e *fakeEndpoint) Send(dst string, b []byte) (string, string, int, error) {
	e.net.mu.Lock()
	ch, ok := e.net.boxes[dst]
	e.net.mu.Unlock()
	if !ok {
		return "", "", 0, errors.New("no such endpoint: " + dst)
	}
	ch <- frame{from: e.self, data: b}
	return e.self, dst, len(b), nil
}

func (e *fakeEndpoint) Recv(ctx context.Context) (string, string, []byte, error) {
	e.net.mu.Lock()
	ch := e.net.boxes[e.self]
	e.net.mu.Unlock()
	select {
	case f := <-ch:
		return e.self, f.from, f.data, nil
	case <-ctx.Done():
		return "", "", nil, ctx.Err()
	}
}

func drainOne(t *testing.T, mb *mailbox.Mailbox) {
	t.Helper()
	if err := mb.Fill(context.Background()); err != nil {
		t.Fatalf("Fill: %v", err)
	}
}

// TestSingleNodeMajority covers senators=1: a submitted proposal
// commits immediately and is queryable.
func TestSingleNodeMajority(t *testing.T) {
	net := newFakeNetwork("master", "w1")
	book := configuration.AddressBook{"worker": {"w1"}, "master": {"master"}}

	masterMB := mailbox.New(net.endpoint("master"), log.NewNopLogger())
	workerMB := mailbox.New(net.endpoint("w1"), log.NewNopLogger())

	backend := logbackend.NewHeap()
	master := NewMaster("master", book, masterMB, backend, log.NewNopLogger())
	worker := NewWorker("w1", book, workerMB, log.NewNopLogger())

	id := master.EmitNewProposal([]byte("hello"))
	if id != 1 {
		t.Fatalf("expected id 1, got %d", id)
	}
	if err := master.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	drainOne(t, workerMB)
	worker.Run()
	if err := workerMB.Flush(); err != nil {
		t.Fatalf("worker Flush: %v", err)
	}

	drainOne(t, masterMB)
	master.DrainVotes()

	got, err := master.GetLog(1)
	if err != nil {
		t.Fatalf("GetLog: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

// TestTwoOfThreeQuorum covers a 3-worker cluster where only 2 vote:
// quorum is reached and a late third vote is rejected as unknown.
func TestTwoOfThreeQuorum(t *testing.T) {
	net := newFakeNetwork("master", "w1", "w2", "w3")
	book := configuration.AddressBook{"worker": {"w1", "w2", "w3"}, "master": {"master"}}

	masterMB := mailbox.New(net.endpoint("master"), log.NewNopLogger())
	backend := logbackend.NewHeap()
	master := NewMaster("master", book, masterMB, backend, log.NewNopLogger())

	workers := map[string]*Worker{}
	workerMBs := map[string]*mailbox.Mailbox{}
	for _, w := range []string{"w1", "w2", "w3"} {
		mb := mailbox.New(net.endpoint(w), log.NewNopLogger())
		workerMBs[w] = mb
		workers[w] = NewWorker(w, book, mb, log.NewNopLogger())
	}

	id := master.EmitNewProposal([]byte("x"))
	if err := master.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	// Deliver the proposal to all three, but only w1 and w2 vote back.
	for _, w := range []string{"w1", "w2", "w3"} {
		drainOne(t, workerMBs[w])
		workers[w].Run()
	}
	for _, w := range []string{"w1", "w2"} {
		if err := workerMBs[w].Flush(); err != nil {
			t.Fatalf("%s Flush: %v", w, err)
		}
	}

	drainOne(t, masterMB)
	drainOne(t, masterMB)
	master.DrainVotes()

	got, err := master.GetLog(id)
	if err != nil || string(got) != "x" {
		t.Fatalf("expected commit of (%d, x), got %q, %v", id, got, err)
	}

	// A late vote from w3 should now be dropped as UnknownProposal.
	if err := workerMBs["w3"].Flush(); err != nil {
		t.Fatalf("w3 Flush: %v", err)
	}
	drainOne(t, masterMB)
	ok, err := master.ProcessVote()
	if !ok {
		t.Fatal("expected a mail to process")
	}
	var unknown *unknownProposalError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownProposal, got %v", err)
	}
}

// TestDuplicateSubmit covers two rounds submitting identical content:
// each gets a distinct id and both commit independently.
func TestDuplicateSubmit(t *testing.T) {
	net := newFakeNetwork("master", "w1")
	book := configuration.AddressBook{"worker": {"w1"}, "master": {"master"}}
	masterMB := mailbox.New(net.endpoint("master"), log.NewNopLogger())
	workerMB := mailbox.New(net.endpoint("w1"), log.NewNopLogger())
	backend := logbackend.NewHeap()
	master := NewMaster("master", book, masterMB, backend, log.NewNopLogger())
	worker := NewWorker("w1", book, workerMB, log.NewNopLogger())

	runRound := func(content string) uint64 {
		id := master.EmitNewProposal([]byte(content))
		master.Flush()
		drainOne(t, workerMB)
		worker.Run()
		workerMB.Flush()
		drainOne(t, masterMB)
		master.DrainVotes()
		return id
	}

	id1 := runRound("a")
	id2 := runRound("a")
	if id1 == id2 {
		t.Fatalf("expected distinct ids, got %d and %d", id1, id2)
	}
	for _, id := range []uint64{id1, id2} {
		got, err := master.GetLog(id)
		if err != nil || string(got) != "a" {
			t.Fatalf("GetLog(%d) = %q, %v", id, got, err)
		}
	}
}

// TestWorkerAntiReplay covers a worker that has already voted for id=7:
// a replayed or stale proposal id=7 is dropped, a fresh id=8 is accepted.
func TestWorkerAntiReplay(t *testing.T) {
	net := newFakeNetwork("master", "w1")
	book := configuration.AddressBook{"master": {"master"}}
	workerMB := mailbox.New(net.endpoint("w1"), log.NewNopLogger())
	worker := NewWorker("w1", book, workerMB, log.NewNopLogger())
	worker.lastProposalID = 7

	// Deliver proposal id=7: dropped, no vote emitted.
	if _, _, _, err := net.endpoint("master").Send("w1", issue.Encode(issue.New(issue.Proposal, 7, []byte("x")))); err != nil {
		t.Fatalf("send: %v", err)
	}
	drainOne(t, workerMB)
	ok, err := worker.ProcessInbound()
	if !ok {
		t.Fatal("expected a mail to process")
	}
	var expired *expiredProposalError
	if !errors.As(err, &expired) {
		t.Fatalf("expected ExpiredProposal, got %v", err)
	}
	if worker.LastProposalID() != 7 {
		t.Fatalf("lastProposalID changed unexpectedly: %d", worker.LastProposalID())
	}

	// Deliver proposal id=8: vote emitted, lastProposalID becomes 8.
	if _, _, _, err := net.endpoint("master").Send("w1", issue.Encode(issue.New(issue.Proposal, 8, []byte("x")))); err != nil {
		t.Fatalf("send: %v", err)
	}
	drainOne(t, workerMB)
	ok, err = worker.ProcessInbound()
	if !ok || err != nil {
		t.Fatalf("expected a clean vote, got ok=%v err=%v", ok, err)
	}
	if worker.LastProposalID() != 8 {
		t.Fatalf("expected lastProposalID=8, got %d", worker.LastProposalID())
	}
}

// TestWrongRoleMessage covers a Vote datagram delivered to a Worker,
// which never processes Vote or Resolution regardless of sender.
func TestWrongRoleMessage(t *testing.T) {
	net := newFakeNetwork("master", "w1")
	book := configuration.AddressBook{"master": {"master"}}
	workerMB := mailbox.New(net.endpoint("w1"), log.NewNopLogger())
	worker := NewWorker("w1", book, workerMB, log.NewNopLogger())

	// A Vote datagram arriving at a Worker, purportedly from the Master,
	// should be dropped outright (Worker never processes Vote/Resolution
	// regardless of sender).
	net.endpoint("master").Send("w1", issue.Encode(issue.New(issue.Vote, 1, []byte("x"))))
	drainOne(t, workerMB)
	ok, err := worker.ProcessInbound()
	if !ok || err == nil {
		t.Fatalf("expected a drop error, got ok=%v err=%v", ok, err)
	}
	if worker.LastProposalID() != 0 {
		t.Fatalf("worker state should be unchanged, got lastProposalID=%d", worker.LastProposalID())
	}
}

// TestBoundaryQuorum asserts quorum() for a few cluster sizes.
func TestBoundaryQuorum(t *testing.T) {
	cases := []struct {
		senators int
		quorum   uint64
	}{
		{1, 1},
		{2, 2},
		{3, 2},
	}
	for _, c := range cases {
		workers := make([]string, c.senators)
		for i := range workers {
			workers[i] = "w"
		}
		book := configuration.AddressBook{"worker": workers}
		m := NewMaster("master", book, mailbox.New(nil, log.NewNopLogger()), logbackend.NewHeap(), log.NewNopLogger())
		if got := m.quorum(); got != c.quorum {
			t.Fatalf("senators=%d: quorum = %d, want %d", c.senators, got, c.quorum)
		}
	}
}
