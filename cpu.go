package noncehunt

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// Copyright © 2022 Matthew R Bonnette. Licensed under the Apache-2.0 license.
// A Backend running work items on a fixed pool of goroutines.

const defaultSpan = 1 << 14

var threads = runtime.NumCPU()

// CPUOptions configures NewCPU. Zero values select runtime.NumCPU() workers and spans of
// 16384 work items.
type CPUOptions struct {
	Workers int
	Span    uint32
	Pin     bool /* Lock every worker to its own OS thread and processor. */
}

// CPU dispatches contiguous spans of a batch to its workers. A single worker scans a batch
// in ascending order, so it always claims the smallest satisfying candidate.
type CPU struct {
	workers int
	span    uint32
	to      chan span
	running sync.WaitGroup
	mu      sync.RWMutex /* Guards to against Close. */
	closed  bool
}

type span struct {
	ctx   context.Context
	job   *Job
	lo, n uint32
	wg    *sync.WaitGroup
}

// NewCPU starts the worker pool. The pool lives until Close.
func NewCPU(opts CPUOptions) (*CPU, error) {
	if opts.Workers < 0 {
		return nil, fmt.Errorf("noncehunt: %d workers", opts.Workers)
	}
	c := &CPU{workers: opts.Workers, span: opts.Span}
	if c.workers == 0 {
		c.workers = threads
	}
	if c.span == 0 {
		c.span = defaultSpan
	}
	c.to = make(chan span, c.workers*2)

	errs := make(chan error, c.workers)
	c.running.Add(c.workers)
	for i := 0; i < c.workers; i++ {
		go c.work(i, opts.Pin, errs)
	}
	for i := 0; i < c.workers; i++ {
		if err := <-errs; err != nil {
			c.Close()
			return nil, fmt.Errorf("noncehunt: pinning workers: %w", err)
		}
	}
	log.Debugw("cpu backend started", "workers", c.workers, "span", c.span, "pin", opts.Pin)
	return c, nil
}

// Workers returns the size of the pool.
func (c *CPU) Workers() int { return c.workers }

func (c *CPU) work(id int, pin bool, errs chan<- error) {
	defer c.running.Done()
	if pin {
		runtime.LockOSThread()
		errs <- pinThread(id)
	} else {
		errs <- nil
	}
	for s := range c.to {
		/* Spans queued behind a claim or a cancellation are drained without being run. */
		if !s.job.Claim.Found() && s.ctx.Err() == nil {
			s.job.run(s.lo, s.n)
		}
		s.wg.Done()
	}
}

// Dispatch splits job into spans, queues them in ascending order and waits for all of them.
func (c *CPU) Dispatch(ctx context.Context, job Job) error {
	if err := job.check(); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}

	wg := new(sync.WaitGroup)
	var err error
queue:
	for lo := uint64(0); lo < uint64(job.Size); lo += uint64(c.span) {
		n := uint64(c.span)
		if rem := uint64(job.Size) - lo; rem < n {
			n = rem
		}
		wg.Add(1)
		select {
		case c.to <- span{ctx, &job, uint32(lo), uint32(n), wg}:
		case <-ctx.Done():
			wg.Done()
			err = ctx.Err()
			break queue
		}
	}
	wg.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return err
}

// Close stops the workers once queued spans have drained. It is safe to call more than once.
func (c *CPU) Close() error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.to)
	}
	c.mu.Unlock()
	c.running.Wait()
	log.Debugw("cpu backend stopped", "workers", c.workers)
	return nil
}
