package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/soocke/pixel-finder-go/domain/capture"
	"github.com/soocke/pixel-finder-go/domain/finder"
	"github.com/soocke/pixel-finder-go/domain/observer"
	"github.com/soocke/pixel-finder-go/domain/vision"
)

type cli struct {
	opts     *options
	finder   finder.Finder
	capturer capture.Capturer
	logger   *slog.Logger
	out      io.Writer
}

func (c *cli) dispatch(ctx context.Context) (int, error) {
	switch c.opts.command {
	case "find":
		return c.find()
	case "findall":
		return c.findAll()
	case "wait":
		return c.wait()
	case "exists":
		return c.exists()
	case "vanish":
		return c.vanish()
	case "change":
		return c.change()
	case "observe":
		return c.observe(ctx)
	default:
		return exitError, fmt.Errorf("unknown command %q", c.opts.command)
	}
}

func (c *cli) timeoutOr(d time.Duration) time.Duration {
	if c.opts.hasTimeout {
		return c.opts.timeout
	}
	return d
}

func (c *cli) pattern() (vision.Pattern, error) {
	if len(c.opts.args) != 1 {
		return vision.Pattern{}, errors.New("expected exactly one pattern file")
	}
	p, err := vision.PatternFromFile(c.opts.args[0])
	if err != nil {
		return vision.Pattern{}, err
	}
	return p.Similar(c.opts.similarity), nil
}

func (c *cli) printMatch(m vision.Match) {
	t := m.Target()
	fmt.Fprintf(c.out, "%s target=%d,%d\n", m, t.X, t.Y)
}

func (c *cli) find() (int, error) {
	p, err := c.pattern()
	if err != nil {
		return exitError, err
	}
	m, ok, err := c.finder.Find(p)
	if err != nil {
		return exitError, err
	}
	if !ok {
		fmt.Fprintln(c.out, "not found")
		return exitNegative, nil
	}
	c.printMatch(m)
	return exitOK, nil
}

func (c *cli) findAll() (int, error) {
	p, err := c.pattern()
	if err != nil {
		return exitError, err
	}
	matches, err := c.finder.FindAll(p)
	if err != nil {
		return exitError, err
	}
	for _, m := range matches {
		c.printMatch(m)
	}
	if len(matches) == 0 {
		fmt.Fprintln(c.out, "not found")
		return exitNegative, nil
	}
	return exitOK, nil
}

func (c *cli) wait() (int, error) {
	p, err := c.pattern()
	if err != nil {
		return exitError, err
	}
	m, err := c.finder.Wait(p, c.timeoutOr(c.opts.cfg.WaitTimeout()))
	if errors.Is(err, finder.ErrNotFound) {
		fmt.Fprintln(c.out, err)
		return exitNegative, nil
	}
	if err != nil {
		return exitError, err
	}
	c.printMatch(m)
	return exitOK, nil
}

func (c *cli) exists() (int, error) {
	p, err := c.pattern()
	if err != nil {
		return exitError, err
	}
	m, ok, err := c.finder.Exists(p, c.timeoutOr(c.opts.cfg.ExistsTimeout()))
	if err != nil {
		return exitError, err
	}
	if !ok {
		fmt.Fprintln(c.out, "not found")
		return exitNegative, nil
	}
	c.printMatch(m)
	return exitOK, nil
}

func (c *cli) vanish() (int, error) {
	p, err := c.pattern()
	if err != nil {
		return exitError, err
	}
	gone, err := c.finder.WaitVanish(p, c.timeoutOr(c.opts.cfg.WaitTimeout()))
	if err != nil {
		return exitError, err
	}
	fmt.Fprintf(c.out, "vanished=%t\n", gone)
	if !gone {
		return exitNegative, nil
	}
	return exitOK, nil
}

func (c *cli) change() (int, error) {
	changed, err := c.finder.OnChange(c.opts.region, c.timeoutOr(c.opts.cfg.WaitTimeout()), c.opts.percent)
	if err != nil {
		return exitError, err
	}
	fmt.Fprintf(c.out, "changed=%t\n", changed)
	if !changed {
		return exitNegative, nil
	}
	return exitOK, nil
}

// observe registers appear and vanish handlers for every pattern plus one
// change handler, and runs in the background until the timeout or an
// interrupt.
func (c *cli) observe(ctx context.Context) (int, error) {
	cfg := c.opts.cfg
	o := observer.New(c.capturer, c.opts.region, c.logger)
	o.SetInterval(cfg.ObserveInterval())
	o.SetMinSimilarity(cfg.MinSimilarity)
	o.SetWorkers(cfg.Workers)
	o.SetPixelDiffThreshold(cfg.PixelDiffThreshold)

	for _, path := range c.opts.args {
		p, err := vision.PatternFromFile(path)
		if err != nil {
			return exitError, err
		}
		p = p.Similar(c.opts.similarity)
		name := p.Name()
		o.OnAppear(p, func(m vision.Match) {
			fmt.Fprintf(c.out, "appear %s %s\n", name, m)
		})
		o.OnVanish(p, func() {
			fmt.Fprintf(c.out, "vanish %s\n", name)
		})
	}
	o.OnChange(c.opts.percent/100, func(amount float64) {
		fmt.Fprintf(c.out, "change %.1f%%\n", amount*100)
	})

	h, err := o.ObserveInBackground()
	if err != nil {
		return exitError, err
	}
	var deadline <-chan time.Time
	if d := c.timeoutOr(0); d > 0 {
		deadline = time.After(d)
	}
	select {
	case <-ctx.Done():
	case <-deadline:
	case <-h.Done():
	}
	o.Stop()
	h.Wait()
	return exitOK, nil
}
