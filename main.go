package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/soocke/pixel-finder-go/config"
	"github.com/soocke/pixel-finder-go/debug"
	"github.com/soocke/pixel-finder-go/domain/cancel"
	"github.com/soocke/pixel-finder-go/domain/capture"
	"github.com/soocke/pixel-finder-go/domain/finder"
	"github.com/soocke/pixel-finder-go/domain/vision"
)

// Exit codes.
const (
	exitOK        = 0
	exitNegative  = 1 // not found, not vanished, no change
	exitError     = 2
	exitCancelled = 130
)

const usage = `usage: pixel-finder [flags] <command> [args]

commands:
  find <pattern>        best match in one capture
  findall <pattern>     every non-overlapping match in one capture
  wait <pattern>        poll until the pattern appears (fails on timeout)
  exists <pattern>      poll until the pattern appears (no failure on timeout)
  vanish <pattern>      poll until the pattern disappears
  change                poll until -percent of -region changes
  observe <pattern>...  report appear/vanish/change events until timeout or ^C

flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// options are the parsed command line after config overrides.
type options struct {
	cfg        *config.Config
	input      string
	region     vision.Region
	timeout    time.Duration
	hasTimeout bool
	similarity float64
	percent    float64
	command    string
	args       []string
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("pixel-finder", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	configPath := fs.String("config", "pixel-finder.json", "JSON config file")
	dbg := fs.Bool("debug", false, "debug logging and runtime diagnostics")
	input := fs.String("input", "", "image file used instead of the live screen")
	region := fs.String("region", "", "restrict to x,y,w,h")
	timeout := fs.Duration("timeout", 0, "polling timeout (defaults from config)")
	similarity := fs.Float64("similarity", vision.DefaultSimilarity, "pattern similarity 0..1")
	minSim := fs.Float64("min-similarity", -1, "matcher floor 0..1 (overrides config)")
	interval := fs.Duration("interval", 0, "scan interval (overrides config)")
	percent := fs.Float64("percent", 5, "change: minimum percent of changed pixels; observe: change handler percent")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", *configPath, err)
	}
	opts := &options{cfg: cfg, input: *input, similarity: *similarity, percent: *percent}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "debug":
			cfg.Debug = *dbg
		case "min-similarity":
			cfg.MinSimilarity = *minSim
		case "interval":
			cfg.ScanIntervalMS = int(interval.Milliseconds())
			cfg.ObserveIntervalMS = cfg.ScanIntervalMS
		case "timeout":
			opts.timeout, opts.hasTimeout = *timeout, true
		}
	})
	_ = cfg.Validate()

	if *region != "" {
		r, err := parseRegion(*region)
		if err != nil {
			return nil, err
		}
		opts.region = r
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return nil, errors.New("missing command")
	}
	opts.command, opts.args = fs.Arg(0), fs.Args()[1:]
	return opts, nil
}

// parseRegion reads "x,y,w,h".
func parseRegion(s string) (vision.Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return vision.Region{}, fmt.Errorf("region %q: want x,y,w,h", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return vision.Region{}, fmt.Errorf("region %q: %w", s, err)
		}
		v[i] = n
	}
	if v[2] <= 0 || v[3] <= 0 {
		return vision.Region{}, fmt.Errorf("region %q: width and height must be positive", s)
	}
	return vision.NewRegion(v[0], v[1], v[2], v[3]), nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitError
	}

	level := slog.LevelInfo
	if opts.cfg.Debug {
		level = slog.LevelDebug
	}
	logger := NewLogger(stderr, level)

	ctx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	if opts.cfg.Debug {
		debug.StartGoroutineLogger(ctx, opts.cfg.StatsInterval(), logger)
		debug.StartMemLogger(ctx, opts.cfg.StatsInterval(), logger)
	}

	var src capture.Capturer
	if opts.input != "" {
		ic, err := capture.OpenImageCapturer(opts.input)
		if err != nil {
			fmt.Fprintf(stderr, "open input: %v\n", err)
			return exitError
		}
		src = ic
	} else {
		src = capture.NewScreen()
	}
	capturer := capture.NewInstrumented(src, logger, opts.cfg.StatsInterval())
	defer capturer.LogStats()

	tok := cancel.New()
	defer tok.CancelOnDone(ctx)()

	f := finder.NewFinder(capturer, logger).
		WithMinSimilarity(opts.cfg.MinSimilarity).
		WithScanInterval(opts.cfg.ScanInterval()).
		WithWorkers(opts.cfg.Workers).
		WithPixelDiffThreshold(opts.cfg.PixelDiffThreshold).
		WithCancel(tok)
	if !opts.region.Empty() {
		f = f.In(opts.region)
	}

	c := &cli{opts: opts, finder: f, capturer: capturer, logger: logger, out: stdout}
	code, err := c.dispatch(ctx)
	if err != nil {
		if errors.Is(err, cancel.ErrCancelled) {
			logger.Warn("cancelled", slog.String("command", opts.command), slog.Any("err", err))
			return exitCancelled
		}
		fmt.Fprintf(stderr, "%s: %v\n", opts.command, err)
		return exitError
	}
	return code
}
