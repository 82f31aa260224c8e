package dialer

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/logger"
)

// Plan describes a load run: Sequential awaited round trips followed by
// Concurrent round trips that are each started without waiting for the others.
type Plan struct {
	Target     Target
	Message    []byte
	Sequential int
	Concurrent int
	// MaxInFlight caps the concurrent phase; 0 starts every round trip at once.
	MaxInFlight int
	// ExpectAck, when set, must equal every reply.
	ExpectAck []byte
}

// Report summarizes a Drive run.
type Report struct {
	Succeeded int
	Failed    int
	Errors    []error
	Duration  time.Duration
}

type collector struct {
	mu     sync.Mutex
	report Report
}

func (c *collector) record(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.report.Failed++
		c.report.Errors = append(c.report.Errors, err)
		return
	}
	c.report.Succeeded++
}

// Drive executes plan against its target. It returns an error when any round
// trip failed; the Report is complete either way.
func (d *Dialer) Drive(ctx context.Context, plan Plan) (Report, error) {
	started := time.Now()
	var c collector

	for i := 0; i < plan.Sequential; i++ {
		if ctx.Err() != nil {
			break
		}
		err := d.exchange(ctx, plan, "sequential", i)
		c.record(err)
	}

	var g errgroup.Group
	if plan.MaxInFlight > 0 {
		g.SetLimit(plan.MaxInFlight)
	}
	for i := 0; i < plan.Concurrent; i++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			c.record(d.exchange(ctx, plan, "concurrent", i))
			return nil
		})
	}
	_ = g.Wait()

	c.report.Duration = time.Since(started)
	report := c.report

	logger.Info("Drive finished",
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"duration", report.Duration)

	if report.Failed > 0 {
		return report, fmt.Errorf("%d of %d round trips failed: %w",
			report.Failed, report.Failed+report.Succeeded, report.Errors[0])
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (d *Dialer) exchange(ctx context.Context, plan Plan, phase string, i int) error {
	reply, err := d.RoundTrip(ctx, plan.Target, plan.Message)
	if err != nil {
		logger.Warn("Round trip failed", "phase", phase, "index", i, "error", err)
		return fmt.Errorf("%s #%d: %w", phase, i, err)
	}
	if plan.ExpectAck != nil && !bytes.Equal(reply, plan.ExpectAck) {
		return fmt.Errorf("%s #%d: unexpected acknowledgement %q", phase, i, reply)
	}
	logger.Debug("Round trip complete", "phase", phase, "index", i, "reply_bytes", len(reply))
	return nil
}
