package shade

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/powerview-ble/internal/logging"
	"github.com/muurk/powerview-ble/internal/protocol"
)

// DefaultResponseTimeout bounds the wait for a command confirmation
const DefaultResponseTimeout = 5 * time.Second

// initialSequence is the first sequence number used by a new dispatcher
const initialSequence = 1

type pendingCommand struct {
	cmd             protocol.Command
	disconnectAfter bool
}

// Dispatcher sends one command at a time to a shade.
//
// A command submitted while another is in flight replaces any command still
// waiting and is sent when the current cycle completes. Replaced commands are
// dropped without being sent.
type Dispatcher struct {
	conn    *Connection
	waiter  *responseWaiter
	cipher  *protocol.Cipher
	name    string
	timeout time.Duration
	logger  *zap.Logger

	// base is used for follow-up cycles that outlive the submitting call
	base   context.Context
	cancel context.CancelFunc
	drains sync.WaitGroup

	// sem is the dispatch lock: holding its single slot means a cycle owns
	// the connection and the sequence counter.
	sem chan struct{}

	mu      sync.Mutex
	pending *pendingCommand
	seq     uint8
	sent    int
}

func newDispatcher(conn *Connection, waiter *responseWaiter, cipher *protocol.Cipher, name string, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultResponseTimeout
	}
	base, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		conn:    conn,
		waiter:  waiter,
		cipher:  cipher,
		name:    name,
		timeout: timeout,
		logger:  logger,
		base:    base,
		cancel:  cancel,
		sem:     make(chan struct{}, 1),
		seq:     initialSequence,
	}
}

// Submit sends cmd, or queues it behind the cycle in flight.
//
// When the shade is busy Submit stores cmd as the next command and returns
// nil right away. Otherwise it runs a full cycle and returns its error:
// a transport failure or a response timeout. A response that fails
// verification is logged and does not fail the call.
func (d *Dispatcher) Submit(ctx context.Context, cmd protocol.Command, disconnectAfter bool) error {
	d.mu.Lock()
	d.pending = &pendingCommand{cmd: cmd, disconnectAfter: disconnectAfter}
	select {
	case d.sem <- struct{}{}:
	default:
		d.mu.Unlock()
		d.logger.Debug("Device busy, queuing command", zap.Stringer("command", cmd))
		return nil
	}
	d.mu.Unlock()

	defer d.release()
	return d.cycle(ctx)
}

// Sequence returns the sequence number the next transmitted command will use
func (d *Dispatcher) Sequence() uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seq
}

// Sent returns the number of frames written so far
func (d *Dispatcher) Sent() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sent
}

// Close stops follow-up cycles and waits for any in progress to finish
func (d *Dispatcher) Close() {
	d.cancel()
	d.drains.Wait()
}

// acquire takes the dispatch lock, blocking until it is free or ctx ends
func (d *Dispatcher) acquire(ctx context.Context) error {
	select {
	case d.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// release hands the dispatch lock to a follow-up cycle if a command is
// waiting, and frees it otherwise.
func (d *Dispatcher) release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending != nil && d.base.Err() == nil {
		d.drains.Add(1)
		go d.drain()
		return
	}
	d.pending = nil
	<-d.sem
}

func (d *Dispatcher) drain() {
	defer d.drains.Done()
	defer d.release()

	if err := d.cycle(d.base); err != nil {
		d.logger.Error("Queued command failed", zap.Error(err))
	}
}

// cycle runs one connect/send/await round. The caller holds the dispatch lock.
//
// The pending command is read after connecting, so a command stored during
// the handshake replaces the one that started the cycle. A failed cycle
// clears the slot and nothing is retried in the background.
func (d *Dispatcher) cycle(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			d.mu.Lock()
			d.pending = nil
			d.mu.Unlock()
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.conn.Connect(ctx); err != nil {
		return err
	}

	d.mu.Lock()
	p := d.pending
	d.pending = nil
	seq := d.seq
	d.mu.Unlock()

	if p == nil {
		return nil
	}
	op := p.cmd.Opcode().String()

	frame, err := p.cmd.Frame(seq)
	if err != nil {
		return newError(ErrTypeFrame, d.name, op, err)
	}
	logging.LogFrame(d.name, "tx", frame)

	wire := frame
	if d.cipher != nil {
		wire = d.cipher.Encrypt(frame)
		logging.LogFrame(d.name, "tx_encrypted", wire)
	}

	d.waiter.Clear()
	if err := d.conn.Write(ctx, wire); err != nil {
		return err
	}

	d.mu.Lock()
	d.seq++
	d.sent++
	d.mu.Unlock()

	d.logger.Debug("Command sent, waiting for response",
		zap.String("command", op),
		zap.Uint8("seq", seq),
	)

	waitCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	data, err := d.waiter.Wait(waitCtx)
	if err != nil {
		if p.disconnectAfter {
			d.conn.Disconnect()
		}
		return newError(ErrTypeTimeout, d.name, op,
			fmt.Errorf("no confirmation within %s: %w", d.timeout, err))
	}

	if _, err := protocol.Decode(data, seq, p.cmd.Opcode()); err != nil {
		d.logger.Warn("Response verification failed",
			zap.String("command", op),
			zap.Uint8("seq", seq),
			zap.Error(err),
		)
	} else {
		d.logger.Debug("Command confirmed", zap.String("command", op), zap.Uint8("seq", seq))
	}

	if p.disconnectAfter {
		d.conn.Disconnect()
	}
	return nil
}
