package bridge

import (
	"io"
	"sync"
)

// fakePort is an in-memory SerialPort. Every Write is recorded and, via
// onWrite, can synthesize the bytes that would follow on the wire (the
// write's own echo, plus whatever the addressed slave replies with),
// keeping exchange tests free of real serial hardware or timing.
type fakePort struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []byte
	closed  bool
	writes  [][]byte
	onWrite func(frame []byte) []byte
}

func newFakePort() *fakePort {
	p := &fakePort{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame := append([]byte{}, b...)
	p.writes = append(p.writes, frame)
	p.pending = append(p.pending, frame...)

	if p.onWrite != nil {
		p.pending = append(p.pending, p.onWrite(frame)...)
	}
	p.cond.Broadcast()
	return len(b), nil
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.pending) == 0 && !p.closed {
		p.cond.Wait()
	}
	if len(p.pending) == 0 && p.closed {
		return 0, io.EOF
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cond.Broadcast()
	return nil
}

func (p *fakePort) writeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.writes)
}

// fakeTxLine is a no-op TxEnableLine.
type fakeTxLine struct {
	closed bool
}

func (l *fakeTxLine) SetLow() error { return nil }
func (l *fakeTxLine) Close() error  { l.closed = true; return nil }

// fakeHost records DispatchResponse/AddRecipient calls for assertions.
type fakeHost struct {
	mu         sync.Mutex
	responses  [][]byte
	recipients map[uint32]byte
}

func newFakeHost() *fakeHost {
	return &fakeHost{recipients: make(map[uint32]byte)}
}

func (h *fakeHost) DispatchResponse(packet []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.responses = append(h.responses, append([]byte{}, packet...))
	return nil
}

func (h *fakeHost) AddRecipient(uid uint32, slaveAddress byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recipients[uid] = slaveAddress
	return nil
}

func (h *fakeHost) responseCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.responses)
}
