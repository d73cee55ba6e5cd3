package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
)

// eventBufferSize bounds the per-subscriber event channel. A lagging
// subscriber observes a Lagged event rather than blocking the coordinator.
const eventBufferSize = 128

// Event is one server-pushed, non-response frame, or a lag notification in
// place of the events a slow subscriber missed.
type Event struct {
	Words    []string
	Lagged   bool
	LagCount uint64
}

type replyOrErr struct {
	words []string
	err   error
}

type queryReq struct {
	words []string
	reply chan replyOrErr
}

type frameOrErr struct {
	frame Frame
	err   error
}

type subscriber struct {
	ch      chan Event
	dropped uint64
}

// Transport owns one TCP connection to the game server: it frames and
// deframes bytes, multiplexes concurrent queries by sequence number, and
// fans out server-pushed frames to event subscribers.
//
// Transport internal maps (pending, nextSeq) are owned exclusively by the
// coordinator goroutine; no external lock guards them.
type Transport struct {
	conn   net.Conn
	logger *slog.Logger

	queryCh chan queryReq
	cancel  context.CancelFunc

	subMu sync.Mutex
	subs  []*subscriber

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  atomic.Value

	// coordinator-owned
	pending map[uint32]chan replyOrErr
	nextSeq uint32
}

// Connect opens a TCP connection to addr, starts the read loop and
// coordinator, and performs the plaintext authentication handshake required
// before any other query may be sent.
func Connect(ctx context.Context, addr, password string, logger *slog.Logger) (*Transport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect: %w: %w", ErrIo, err)
	}

	t := newTransport(conn, logger)
	t.start()

	_, err = t.Query(ctx, []string{"login.plainText", password})
	if err != nil {
		t.Shutdown()
		var other *OtherError
		if errors.As(err, &other) && other.Code == "InvalidPassword" {
			return nil, fmt.Errorf("connect: %w", ErrWrongPassword)
		}
		return nil, fmt.Errorf("connect: %w", err)
	}
	return t, nil
}

func newTransport(conn net.Conn, logger *slog.Logger) *Transport {
	return &Transport{
		conn:    conn,
		logger:  logger.With("component", "transport"),
		queryCh: make(chan queryReq),
		closed:  make(chan struct{}),
		pending: make(map[uint32]chan replyOrErr),
	}
}

func (t *Transport) start() {
	cctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	frames := make(chan frameOrErr, 16)
	go t.readLoop(frames)
	go t.coordinate(cctx, frames)
}

// Query sends a request frame with a freshly allocated sequence number and
// awaits the matching response. The first reply word is discriminated
// generically (OK / UnknownCommand / InvalidArguments / other); on OK the
// remaining words are returned, otherwise a typed error is returned —
// command-specific interpretation of OtherError.Code is the rcon package's
// job.
func (t *Transport) Query(ctx context.Context, words []string) ([]string, error) {
	for _, w := range words {
		if !isASCII(w) {
			return nil, fmt.Errorf("query: %w", ErrNotAscii)
		}
	}

	reply := make(chan replyOrErr, 1)
	select {
	case t.queryCh <- queryReq{words: words, reply: reply}:
	case <-t.closed:
		return nil, fmt.Errorf("query: %w", ErrConnectionClosed)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-reply:
		if r.err != nil {
			return nil, r.err
		}
		return discriminate(r.words)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func discriminate(words []string) ([]string, error) {
	if len(words) == 0 {
		return nil, fmt.Errorf("query: %w", ErrProtocolError)
	}
	switch words[0] {
	case "OK":
		return words[1:], nil
	case "UnknownCommand":
		return nil, fmt.Errorf("query: %w", ErrUnknownCommand)
	case "InvalidArguments":
		return nil, fmt.Errorf("query: %w", ErrInvalidArguments)
	default:
		return nil, &OtherError{Code: words[0], Rest: words[1:]}
	}
}

// Events returns a channel of server-pushed, non-response frames and an
// unsubscribe function. The channel must be drained promptly: a lagging
// subscriber observes an Event with Lagged set rather than blocking every
// other subscriber and the coordinator.
func (t *Transport) Events() (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, eventBufferSize)}
	t.subMu.Lock()
	t.subs = append(t.subs, sub)
	t.subMu.Unlock()

	unsubscribe := func() {
		t.subMu.Lock()
		defer t.subMu.Unlock()
		for i, s := range t.subs {
			if s == sub {
				t.subs = append(t.subs[:i], t.subs[i+1:]...)
				close(sub.ch)
				return
			}
		}
	}
	return sub.ch, unsubscribe
}

func (t *Transport) broadcast(ev Event) {
	t.subMu.Lock()
	subs := make([]*subscriber, len(t.subs))
	copy(subs, t.subs)
	t.subMu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- ev:
		default:
			s.dropped++
			select {
			case <-s.ch:
			default:
			}
			select {
			case s.ch <- Event{Lagged: true, LagCount: s.dropped}:
			default:
			}
			t.logger.Warn("subscriber lagging, dropped event", "dropped", s.dropped)
		}
	}
}

// Shutdown initiates graceful termination. Pending queries fail with
// ErrConnectionClosed and the underlying socket is closed.
func (t *Transport) Shutdown() {
	if t.cancel != nil {
		t.cancel()
	}
	t.conn.Close()
	<-t.closed
}

// Err returns the error that caused the transport to close, if any.
func (t *Transport) Err() error {
	if v := t.closeErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

func (t *Transport) setCloseErr(err error) {
	if err != nil {
		t.closeErr.CompareAndSwap(nil, err)
	}
}

func (t *Transport) coordinate(ctx context.Context, frames <-chan frameOrErr) {
	defer t.finish()
	for {
		select {
		case q := <-t.queryCh:
			seq := t.nextSeq
			t.nextSeq = (t.nextSeq + 1) & sequenceMask
			t.pending[seq] = q.reply

			buf, err := EncodeFrame(Frame{Origin: OriginClient, Sequence: seq, Words: q.words})
			if err != nil {
				delete(t.pending, seq)
				q.reply <- replyOrErr{err: err}
				continue
			}
			if _, err := t.conn.Write(buf); err != nil {
				delete(t.pending, seq)
				werr := fmt.Errorf("query: %w: %w", ErrIo, err)
				q.reply <- replyOrErr{err: werr}
				t.setCloseErr(err)
				return
			}

		case fe := <-frames:
			if fe.err != nil {
				t.setCloseErr(fe.err)
				return
			}
			f := fe.frame
			if f.IsResponse {
				if ch, ok := t.pending[f.Sequence]; ok {
					delete(t.pending, f.Sequence)
					ch <- replyOrErr{words: f.Words}
				} else {
					t.logger.Warn("unmatched response, dropping", "sequence", f.Sequence)
				}
			} else {
				t.broadcast(Event{Words: f.Words})
			}

		case <-ctx.Done():
			return
		}
	}
}

func (t *Transport) finish() {
	t.closeOnce.Do(func() { close(t.closed) })
	for seq, ch := range t.pending {
		ch <- replyOrErr{err: fmt.Errorf("query: %w", ErrConnectionClosed)}
		delete(t.pending, seq)
	}
	t.conn.Close()

	t.subMu.Lock()
	subs := t.subs
	t.subs = nil
	t.subMu.Unlock()
	for _, s := range subs {
		close(s.ch)
	}
}

func (t *Transport) readLoop(out chan<- frameOrErr) {
	defer close(out)
	for {
		header := make([]byte, HeaderSize)
		if _, err := io.ReadFull(t.conn, header); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				out <- frameOrErr{err: fmt.Errorf("read header: %w", ErrConnectionClosed)}
			} else {
				out <- frameOrErr{err: fmt.Errorf("read header: %w: %w", ErrIo, err)}
			}
			return
		}
		total := binary.LittleEndian.Uint32(header[4:8])
		if total < HeaderSize {
			out <- frameOrErr{err: fmt.Errorf("read frame: %w", ErrProtocolError)}
			return
		}
		buf := make([]byte, total)
		copy(buf, header)
		if _, err := io.ReadFull(t.conn, buf[HeaderSize:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				out <- frameOrErr{err: fmt.Errorf("read body: %w", ErrConnectionClosed)}
			} else {
				out <- frameOrErr{err: fmt.Errorf("read body: %w: %w", ErrIo, err)}
			}
			return
		}

		frame, _, err := DecodeFrame(buf)
		if err != nil {
			out <- frameOrErr{err: fmt.Errorf("read frame: %w", ErrProtocolError)}
			return
		}
		out <- frameOrErr{frame: frame}
	}
}
