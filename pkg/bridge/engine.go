package bridge

import (
	"log"
	"sync"
	"time"
)

// Engine is the RS485 master polling engine (spec §3 "Extension state").
// All protocol state is owned by a single value, passed by reference to
// every operation and mutated only from the engine's own run loop
// goroutine — the systems-rewrite of the original's file-scope globals
// (spec §9 "Global mutable state").
type Engine struct {
	serial SerialPort
	txLine TxEnableLine
	host   Host
	cfg    Config

	slaves            []*slave
	currentSlaveIndex int

	receiveBuffer []byte
	receiveCursor int

	lastSentSnapshot    []byte
	sendVerifyFlag      bool
	sentAckOfDataPacket bool

	computedTimeout  time.Duration
	deadlineTimer    *time.Timer
	deadlineArmedAt  time.Time
	deadlineGen      uint64

	readCh     chan []byte
	deadlineCh chan uint64
	dispatchCh chan dispatchRequest
	stopCh     chan struct{}
	wg         sync.WaitGroup

	initialized bool
	stopOnce    sync.Once
}

type dispatchRequest struct {
	application []byte
	recipient   *Recipient
	result      chan error
}

// New constructs an Engine. Call Start to validate configuration and
// begin polling.
func New(cfg Config, serial SerialPort, txLine TxEnableLine, host Host) *Engine {
	return &Engine{
		serial:            serial,
		txLine:            txLine,
		host:              host,
		cfg:               cfg,
		currentSlaveIndex: -1,
		receiveBuffer:     make([]byte, 1<<20), // 1 MiB, spec §3
		readCh:            make(chan []byte),
		deadlineCh:        make(chan uint64),
		dispatchCh:        make(chan dispatchRequest),
		stopCh:            make(chan struct{}),
	}
}

// Start validates the configuration, builds the slave table, drives the
// GPIO receive-enable line low, and begins the round-robin polling loop.
// On any failure every resource acquired so far is released in reverse
// order before the error is returned (spec §9 "goto-based init
// unwinding" -> scoped acquisition with guaranteed release).
func (e *Engine) Start() (err error) {
	if e.cfg.OwnAddress != 0 {
		return ErrOwnAddressNotMaster
	}
	if e.cfg.BaudRate < 8 {
		return ErrBaudTooLow
	}

	for _, addr := range e.cfg.SlaveAddresses {
		if addr == 0 {
			break
		}
		if len(e.slaves) >= MaxSlaves {
			break
		}
		e.slaves = append(e.slaves, newSlave(addr))
	}
	if len(e.slaves) == 0 {
		return ErrNoSlavesConfigured
	}

	e.computedTimeout = ComputeTimeout(e.cfg.BaudRate)

	if err := e.txLine.SetLow(); err != nil {
		return err
	}
	cleanupTxLine := true
	defer func() {
		if err != nil && cleanupTxLine {
			e.txLine.Close()
		}
	}()

	e.wg.Add(1)
	go e.readLoop()
	cleanupTxLine = false // read goroutine now owns unwind via Shutdown path

	e.initialized = true

	e.wg.Add(1)
	go e.run()

	log.Printf("RS485: initialized as master with %d slave(s), timeout=%s", len(e.slaves), e.computedTimeout)
	return nil
}

// Shutdown stops polling, removes both event sources, and releases the
// serial port and GPIO line. Safe to call more than once and safe to call
// on an Engine whose Start never completed (spec §3 Lifecycle, §9).
//
// The serial port is closed before waiting on the goroutines: readLoop's
// blocking Read only returns once the port itself is closed, so closing
// it after the wait would deadlock Shutdown forever.
func (e *Engine) Shutdown() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
		e.disableDeadline()
		if e.serial != nil {
			e.serial.Close()
		}
		e.wg.Wait()
		if e.txLine != nil {
			e.txLine.Close()
		}
		log.Printf("RS485: shut down")
	})
}

// run is the engine's single-threaded event loop: exactly one of serial
// data, a deadline firing, or a dispatch-in request is handled at a time,
// matching spec §5's concurrency model.
func (e *Engine) run() {
	defer e.wg.Done()

	e.pollNext()

	for {
		select {
		case <-e.stopCh:
			return
		case chunk := <-e.readCh:
			e.onSerialData(chunk)
		case gen := <-e.deadlineCh:
			e.onDeadlineFired(gen)
		case req := <-e.dispatchCh:
			req.result <- e.handleDispatchIn(req.application, req.recipient)
		}
	}
}

// readLoop performs blocking reads off the serial port from a dedicated
// goroutine and forwards chunks to the run loop, the same shape as the
// teacher's usock.readLoop.
func (e *Engine) readLoop() {
	defer e.wg.Done()

	buf := make([]byte, 4096)
	for {
		n, err := e.serial.Read(buf)
		if err != nil {
			select {
			case <-e.stopCh:
				return
			default:
			}
			log.Printf("RS485: serial read error: %v", err)
			continue
		}
		if n == 0 {
			continue
		}
		chunk := make([]byte, n)
		copy(chunk, buf[:n])
		select {
		case e.readCh <- chunk:
		case <-e.stopCh:
			return
		}
	}
}

// DispatchIn enqueues an outbound application packet for transmission,
// per spec §4.7. It may be called from any goroutine; the enqueue itself
// is serialized onto the engine's run loop.
func (e *Engine) DispatchIn(application []byte, recipient *Recipient) error {
	if !e.initialized {
		return ErrNotInitialized
	}
	result := make(chan error, 1)
	select {
	case e.dispatchCh <- dispatchRequest{application: application, recipient: recipient, result: result}:
	case <-e.stopCh:
		return ErrNotInitialized
	}
	select {
	case err := <-result:
		return err
	case <-e.stopCh:
		return ErrNotInitialized
	}
}

func (e *Engine) currentSlave() *slave {
	if e.currentSlaveIndex < 0 || e.currentSlaveIndex >= len(e.slaves) {
		return nil
	}
	return e.slaves[e.currentSlaveIndex]
}
