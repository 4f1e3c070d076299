// Package admin is the HTTP ingress: it turns submit/query requests
// into commands on a single-producer, single-consumer bus feeding the
// Master's driver loop, and exposes a status and metrics surface
// alongside it.
//
// CmdBus uses chancell's actor-cell plumbing: a
// chancell.ChanCellTail/ChanCellHead pair gives many HTTP-handler
// goroutines a non-blocking enqueue onto a channel that only the driver
// loop's single goroutine ever ranges over, with a clean close-and-drain
// on shutdown.
package admin

import (
	cc "github.com/msackman/chancell"
)

// CmdKind tags the two commands the bus carries: Log (a submit) and
// Query (a point lookup).
type CmdKind int

const (
	Log CmdKind = iota
	Query
)

// Cmd is one entry on the bus. For Query, Reply carries the synchronous
// result channel the admin HTTP handler blocks on until the driver loop
// answers.
type Cmd struct {
	Kind    CmdKind
	Content []byte
	ID      uint64
	Reply   chan QueryResult
}

// QueryResult is sent back on Cmd.Reply exactly once for a Query command.
type QueryResult struct {
	Content []byte
	Err     error
}

type cmdBusMsg interface {
	isCmdBusMsg()
}

type cmdBusMsgCmd struct{ cmd Cmd }
type cmdBusMsgShutdown struct{}

func (cmdBusMsgCmd) isCmdBusMsg()      {}
func (cmdBusMsgShutdown) isCmdBusMsg() {}

// CmdBus is the single-producer(many)/single-consumer(one) queue from
// HTTP handler goroutines to the Master's driver loop.
type CmdBus struct {
	cellTail          *cc.ChanCellTail
	enqueueQueryInner func(cmdBusMsg, *cc.ChanCell, cc.CurCellConsumer) (bool, cc.CurCellConsumer)
	msgChan           <-chan cmdBusMsg
}

type cmdBusQueryCapture struct {
	bus *CmdBus
	msg cmdBusMsg
}

func (c *cmdBusQueryCapture) ccc(cell *cc.ChanCell) (bool, cc.CurCellConsumer) {
	return c.bus.enqueueQueryInner(c.msg, cell, c.ccc)
}

func (bus *CmdBus) enqueue(msg cmdBusMsg) bool {
	c := &cmdBusQueryCapture{bus: bus, msg: msg}
	return bus.cellTail.WithCell(c.ccc)
}

// NewCmdBus builds an empty bus and its ChanCell head.
func NewCmdBus() (*CmdBus, *cc.ChanCellHead) {
	bus := &CmdBus{}
	var head *cc.ChanCellHead
	head, bus.cellTail = cc.NewChanCellTail(
		func(n int, cell *cc.ChanCell) {
			msgChan := make(chan cmdBusMsg, n)
			cell.Open = func() { bus.msgChan = msgChan }
			cell.Close = func() { close(msgChan) }
			bus.enqueueQueryInner = func(msg cmdBusMsg, curCell *cc.ChanCell, cont cc.CurCellConsumer) (bool, cc.CurCellConsumer) {
				if curCell == cell {
					select {
					case msgChan <- msg:
						return true, nil
					default:
						return false, nil
					}
				}
				return false, cont
			}
		})
	return bus, head
}

// Submit enqueues a command for the driver loop to pick up. Returns
// false if the bus is shutting down.
func (bus *CmdBus) Submit(cmd Cmd) bool {
	return bus.enqueue(cmdBusMsgCmd{cmd: cmd})
}

// Shutdown enqueues a terminal message; the driver loop's Drain call
// returns once it is processed.
func (bus *CmdBus) Shutdown() {
	bus.enqueue(cmdBusMsgShutdown{})
}

// Drain is called from the Master's single driver-loop goroutine: it
// non-blockingly pops at most one pending command. Returns ok=false
// when nothing is queued, and terminate=true once Shutdown has been
// processed.
func (bus *CmdBus) Drain(head *cc.ChanCellHead) (cmd Cmd, ok bool, terminate bool) {
	var msgChan <-chan cmdBusMsg
	head.WithCell(func(cell *cc.ChanCell) { msgChan = bus.msgChan })
	select {
	case msg, open := <-msgChan:
		if !open {
			return Cmd{}, false, true
		}
		switch m := msg.(type) {
		case cmdBusMsgCmd:
			return m.cmd, true, false
		case cmdBusMsgShutdown:
			return Cmd{}, false, true
		}
	default:
	}
	return Cmd{}, false, false
}
