package thermline

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"
	"libdb.so/thermline/linereader"
)

// runMock feeds the read loop with generated records instead of a device.
func (d *Daemon) runMock(ctx context.Context) error {
	d.logger.Info(
		"generating simulated readings",
		"interval", time.Duration(d.cfg.MockInterval))

	pr, pw := io.Pipe()

	errg, ctx := errgroup.WithContext(ctx)
	errg.Go(func() error {
		err := simulate(ctx, pw, time.Duration(d.cfg.MockInterval))
		pw.CloseWithError(err)
		return err
	})
	errg.Go(func() error {
		d.setState(Reading)
		err := d.readLoop(ctx, pr)
		pr.CloseWithError(err)
		return err
	})

	return errg.Wait()
}

// simulate writes a record with a temperature between 24 and 28 °C every
// interval until ctx is canceled.
func simulate(ctx context.Context, w io.Writer, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		tempC := 24 + rand.Float64()*4
		if err := linereader.WriteRecord(w, fmt.Sprintf("%.2f", tempC)); err != nil {
			return err
		}
	}
}
