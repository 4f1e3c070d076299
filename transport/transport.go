// Package transport implements datagram-level message exchange: a bound
// UDP endpoint with a background receiver goroutine feeding a
// single-consumer channel, and an explicit, non-retrying Send.
package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/go-kit/kit/log"

	quorum "github.com/quorumlog/quorumd"
	"github.com/quorumlog/quorumd/utils"
)

// datagram is one (source address, payload) pair handed off by the
// receiver goroutine.
type datagram struct {
	from net.Addr
	data []byte
}

// Transport is a best-effort UDP datagram pipe. The protocol built on
// top of it tolerates loss by relying on monotone proposal ids to
// override stale tallies and on the idempotence of Resolution writes
// keyed by id.
type Transport struct {
	logger log.Logger
	conn   *net.UDPConn

	recvCh chan datagram

	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
}

// New binds localAddr and starts the background receiver. Returns an
// error if the bind fails; this is the only fatal transport error.
func New(localAddr string, logger log.Logger) (*Transport, error) {
	addr, err := net.ResolveUDPAddr("udp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %q: %w", localAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: bind %q: %w", localAddr, err)
	}

	t := &Transport{
		logger: logger,
		conn:   conn,
		recvCh: make(chan datagram, 64),
		closed: make(chan struct{}),
	}
	t.wg.Add(1)
	go t.receiveLoop()
	return t, nil
}

func (t *Transport) receiveLoop() {
	defer t.wg.Done()
	buf := make([]byte, quorum.DatagramBufferSize)
	for {
		n, from, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-t.closed:
				return
			default:
				t.logger.Log("msg", "transport recv error", "error", err)
				return
			}
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		utils.DebugLog(t.logger, "msg", "received datagram", "from", from.String(), "n", n)
		select {
		case t.recvCh <- datagram{from: from, data: payload}:
		case <-t.closed:
			return
		}
	}
}

// Send transmits one datagram to dst. No retry: per-call failures (a
// refusing OS, an unparseable address) are returned to the caller.
func (t *Transport) Send(dst string, b []byte) (local, remote string, n int, err error) {
	addr, err := net.ResolveUDPAddr("udp", dst)
	if err != nil {
		return "", "", 0, fmt.Errorf("transport: resolve destination %q: %w", dst, err)
	}
	n, err = t.conn.WriteToUDP(b, addr)
	if err != nil {
		return "", "", 0, fmt.Errorf("transport: send to %q: %w", dst, err)
	}
	utils.DebugLog(t.logger, "msg", "sent datagram", "dst", dst, "n", n)
	return t.conn.LocalAddr().String(), addr.String(), n, nil
}

// Recv blocks until the receiver goroutine hands off one datagram, the
// transport is closed, or ctx is cancelled.
func (t *Transport) Recv(ctx context.Context) (local, remote string, b []byte, err error) {
	select {
	case d, ok := <-t.recvCh:
		if !ok {
			return "", "", nil, fmt.Errorf("transport: closed")
		}
		return t.conn.LocalAddr().String(), d.from.String(), d.data, nil
	case <-t.closed:
		return "", "", nil, fmt.Errorf("transport: closed")
	case <-ctx.Done():
		return "", "", nil, ctx.Err()
	}
}

// Address returns the transport's bound local endpoint.
func (t *Transport) Address() string {
	return t.conn.LocalAddr().String()
}

// Close tears down the transport. Closing the socket unblocks the
// receiver goroutine's blocking ReadFromUDP, which is the only way to
// interrupt it from user code; Close then joins that goroutine before
// returning.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		err = t.conn.Close()
		t.wg.Wait()
	})
	return err
}
