//go:build linux

package thermline

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaemonOverPTY(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	port, err := OpenSerial(slave.Name(), 9600)
	if err != nil {
		t.Skipf("cannot open pty as serial port: %v", err)
	}
	port.Close()

	cfg := DefaultConfig()
	cfg.Device = slave.Name()
	cfg.ReadyDelay = TOMLDuration(10 * time.Millisecond)

	out := &lockedBuffer{}
	d, err := NewDaemon(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), out)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := runDaemon(ctx, d)

	require.Eventually(t, func() bool {
		return d.State() == Reading
	}, 2*time.Second, 5*time.Millisecond)

	_, err = master.Write([]byte("  23.5\r\n"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return out.String() == "Temperatura: 23.5\n"
	}, 2*time.Second, 5*time.Millisecond, "got %q", out.String())

	cancel()
	assert.ErrorIs(t, waitErr(t, errCh), context.Canceled)
}

func TestOpenSerialMissingDevice(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Device = "/dev/thermline-does-not-exist"

	d, err := NewDaemon(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), io.Discard)
	require.NoError(t, err)

	err = d.Run(context.Background())
	assert.ErrorIs(t, err, DeviceUnavailable)
}
