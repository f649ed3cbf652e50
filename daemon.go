// Package thermline reads temperature readings that a board prints over a
// serial line and echoes them to an output sink.
package thermline

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"golang.org/x/sync/errgroup"
	"libdb.so/thermline/internal/broadcast"
	"libdb.so/thermline/internal/reading"
	"libdb.so/thermline/linereader"
)

// Port is the part of a serial port the daemon uses. serial.Port satisfies
// it.
type Port interface {
	io.ReadCloser
	SetReadTimeout(t time.Duration) error
}

// Opener opens the serial device at path.
type Opener func(path string, baud int) (Port, error)

// OpenSerial opens a serial port using go.bug.st/serial.
func OpenSerial(path string, baud int) (Port, error) {
	return serial.Open(path, &serial.Mode{BaudRate: baud})
}

// State is the state of the daemon.
type State uint32

const (
	// Connecting is the state until the device is open and ready.
	Connecting State = iota
	// Reading is the state once records are being read.
	Reading
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Reading:
		return "reading"
	default:
		return "unknown"
	}
}

// Daemon is the main thermline daemon.
type Daemon struct {
	cfg    *Config
	logger *slog.Logger
	out    io.Writer
	open   Opener
	listen func(network, addr string) (net.Listener, error)
	now    func() time.Time
	hub    *broadcast.Hub
	state  atomic.Uint32
}

// NewDaemon creates a new daemon that writes readings to out.
func NewDaemon(cfg *Config, logger *slog.Logger, out io.Writer) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return &Daemon{
		cfg:    cfg,
		logger: logger,
		out:    out,
		open:   OpenSerial,
		listen: net.Listen,
		now:    time.Now,
	}, nil
}

// State returns the current state of the daemon.
func (d *Daemon) State() State {
	return State(d.state.Load())
}

func (d *Daemon) setState(s State) {
	d.logger.Debug("daemon state changed", "state", s)
	d.state.Store(uint32(s))
}

// Run starts the daemon. It blocks until the given context is canceled or a
// fault occurs. Faults are returned as *Error.
func (d *Daemon) Run(ctx context.Context) error {
	d.setState(Connecting)

	errg, ctx := errgroup.WithContext(ctx)

	if d.cfg.Listen != "" {
		l, err := d.listen("tcp", d.cfg.Listen)
		if err != nil {
			return errors.Wrap(err, "failed to listen for broadcast clients")
		}

		d.hub = broadcast.NewHub(d.logger)
		errg.Go(func() error {
			return d.hub.Serve(ctx, l)
		})
	}

	errg.Go(func() error {
		if d.cfg.Mock {
			return d.runMock(ctx)
		}
		return d.runSerial(ctx)
	})

	return errg.Wait()
}

func (d *Daemon) runSerial(ctx context.Context) error {
	d.logger.Info(
		"opening serial port",
		"device", d.cfg.Device,
		"baud", d.cfg.Baud)

	port, err := d.open(d.cfg.Device, d.cfg.Baud)
	if err != nil {
		return &Error{DeviceUnavailable, errors.Wrap(err, "failed to open serial port")}
	}
	defer port.Close()

	timeout := serial.NoTimeout
	if d.cfg.ReadTimeout > 0 {
		timeout = time.Duration(d.cfg.ReadTimeout)
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		return &Error{IOFailure, errors.Wrap(err, "failed to set read timeout")}
	}

	errg, ctx := errgroup.WithContext(ctx)
	errg.Go(func() error {
		<-ctx.Done()
		d.logger.Debug("closing serial port")
		if err := port.Close(); err != nil {
			d.logger.Warn("failed to close serial port", "error", err)
		}
		return ctx.Err()
	})
	errg.Go(func() error {
		if err := d.awaitDeviceReady(ctx); err != nil {
			return err
		}
		return d.readLoop(ctx, port)
	})

	return errg.Wait()
}

// awaitDeviceReady gives the board time to reset, since opening the port
// usually toggles DTR and reboots it.
func (d *Daemon) awaitDeviceReady(ctx context.Context) error {
	delay := time.Duration(d.cfg.ReadyDelay)
	d.logger.Debug("waiting for device to become ready", "delay", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	d.setState(Reading)
	return nil
}

func (d *Daemon) readLoop(ctx context.Context, r io.Reader) error {
	lr := linereader.NewReader(r)

	for {
		record, err := lr.ReadRecord()
		if err != nil {
			// Closing the port on cancellation fails the pending read.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, linereader.ErrTimeout) {
				return &Error{IOFailure, errors.Wrap(err, "no record within read timeout")}
			}
			return &Error{IOFailure, errors.Wrap(err, "failed to read record")}
		}

		if err := d.handleRecord(record); err != nil {
			return err
		}
	}
}

func (d *Daemon) handleRecord(record []byte) error {
	text, err := linereader.Decode(record)
	if err != nil {
		return &Error{DecodeFailure, err}
	}

	d.logger.Debug("received record", "text", text)

	if text == "" {
		return nil
	}

	if err := linereader.WriteReading(d.out, d.cfg.Label, text); err != nil {
		return &Error{IOFailure, errors.Wrap(err, "failed to write reading")}
	}

	if d.hub != nil {
		if r, ok := reading.Parse(text, d.now()); ok {
			d.hub.Broadcast(r)
		}
	}

	return nil
}
