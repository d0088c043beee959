// Command touchreplay feeds a recorded or synthetic touch session through the
// contact classifier and prints every label change.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/google/uuid"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/palmreject/internal/config"
	"github.com/banshee-data/palmreject/internal/fsutil"
	"github.com/banshee-data/palmreject/internal/monitoring"
	"github.com/banshee-data/palmreject/internal/timeutil"
	"github.com/banshee-data/palmreject/internal/touch"
	"github.com/banshee-data/palmreject/internal/touch/classifier"
	"github.com/banshee-data/palmreject/internal/touch/recorder"
	"github.com/banshee-data/palmreject/internal/touch/report"
	"github.com/banshee-data/palmreject/internal/touch/storage/sqlite"
	"github.com/banshee-data/palmreject/internal/touch/synth"
	"github.com/banshee-data/palmreject/internal/version"
)

// envConfig holds defaults that flags override.
type envConfig struct {
	Tuning string  `env:"PALMREJECT_TUNING"`
	DB     string  `env:"PALMREJECT_DB"`
	Speed  float64 `env:"PALMREJECT_SPEED" envDefault:"1"`
	Settle float64 `env:"PALMREJECT_SETTLE" envDefault:"1"`
	Trace  bool    `env:"PALMREJECT_TRACE"`
}

type options struct {
	in       string
	scenario string
	seed     int64
	tuning   string
	db       string
	timeline string
	plot     string
	realtime bool
	speed    float64
	settle   float64
	trace    bool
	quiet    bool
	version  bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var ec envConfig
	if err := config.ParseEnv(&ec); err != nil {
		return options{}, err
	}

	var o options
	fs := flag.NewFlagSet("touchreplay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.in, "in", "", "Session log to replay (JSON lines)")
	fs.StringVar(&o.scenario, "scenario", "", "Synthetic scenario to replay instead of -in")
	fs.Int64Var(&o.seed, "seed", 1, "Seed for -scenario")
	fs.StringVar(&o.tuning, "tuning", ec.Tuning, "Tuning config JSON (defaults built in when empty)")
	fs.StringVar(&o.db, "db", ec.DB, "SQLite database to record the run in")
	fs.StringVar(&o.timeline, "timeline", "", "Write an HTML pen-probability timeline here")
	fs.StringVar(&o.plot, "plot", "", "Write a PNG of strokes coloured by label here")
	fs.BoolVar(&o.realtime, "realtime", false, "Pace records by their timestamps")
	fs.Float64Var(&o.speed, "speed", ec.Speed, "Playback speed multiplier for -realtime")
	fs.Float64Var(&o.settle, "settle", ec.Settle, "Seconds to advance past the last record")
	fs.BoolVar(&o.trace, "trace", ec.Trace, "Log every classification pass")
	fs.BoolVar(&o.quiet, "quiet", false, "Only print the summary")
	fs.BoolVar(&o.version, "version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if o.version {
		return o, nil
	}
	if (o.in == "") == (o.scenario == "") {
		return options{}, errors.New("exactly one of -in or -scenario is required")
	}
	return o, nil
}

// loadSession returns the header and records named by -in or -scenario.
func loadSession(fsys fsutil.FileSystem, o options) (recorder.Header, []recorder.Record, error) {
	if o.in != "" {
		f, err := fsys.Open(o.in)
		if err != nil {
			return recorder.Header{}, nil, err
		}
		defer f.Close()
		r, err := recorder.NewReader(f)
		if err != nil {
			return recorder.Header{}, nil, fmt.Errorf("%s: %w", o.in, err)
		}
		recs, err := r.ReadAll()
		if err != nil {
			return recorder.Header{}, nil, fmt.Errorf("%s: %w", o.in, err)
		}
		return r.Header(), recs, nil
	}
	sc, err := synth.ParseScenario(o.scenario)
	if err != nil {
		return recorder.Header{}, nil, err
	}
	s, err := synth.Generate(sc, synth.Options{Seed: o.seed})
	if err != nil {
		return recorder.Header{}, nil, err
	}
	return s.Header, s.Records, nil
}

// classifierConfig applies the tuning file and the session header's screen
// geometry. The returned JSON is the tuning file as loaded, nil for defaults.
func classifierConfig(o options, h recorder.Header) (classifier.Config, json.RawMessage, error) {
	cfg := classifier.DefaultConfig()
	var raw json.RawMessage
	if o.tuning != "" {
		tc, err := config.LoadTuningConfig(o.tuning)
		if err != nil {
			return cfg, nil, err
		}
		cfg = classifier.ConfigFromTuning(tc)
		if raw, err = json.Marshal(tc); err != nil {
			return cfg, nil, fmt.Errorf("encode tuning: %w", err)
		}
	}
	if h.ScreenWidth > 0 {
		cfg.Cluster.ScreenWidth = h.ScreenWidth
		cfg.Cluster.ScreenHeight = h.ScreenHeight
	}
	if h.DumbStylus {
		cfg.DumbStylus = true
	}
	return cfg, raw, nil
}

func run(ctx context.Context, fsys fsutil.FileSystem, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if o.version {
		fmt.Fprintln(stdout, version.String("touchreplay"))
		return nil
	}
	monitoring.SetTraceEnabled(o.trace)

	h, recs, err := loadSession(fsys, o)
	if err != nil {
		return err
	}
	if h.SessionID == "" {
		h.SessionID = uuid.NewString()
	}
	cfg, rawCfg, err := classifierConfig(o, h)
	if err != nil {
		return err
	}
	c := classifier.New(cfg)

	ropts := recorder.Options{Speed: o.speed, Settle: o.settle}
	if o.realtime {
		ropts.Clock = timeutil.RealClock{}
	}
	if !o.quiet {
		ropts.OnStep = func(st recorder.Step) { printStep(stdout, st) }
	}
	res, err := recorder.Replay(ctx, recorder.NewSliceSource(recs), c, ropts)
	if err != nil {
		return err
	}
	printSummary(stdout, h, res)

	if o.db != "" {
		db, err := sqlite.Open(o.db)
		if err != nil {
			return err
		}
		defer db.Close()
		store, err := sqlite.NewRunStore(db)
		if err != nil {
			return err
		}
		r, err := store.SaveResult(h, rawCfg, res)
		if err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		fmt.Fprintf(stdout, "run %s saved to %s\n", r.RunID, o.db)
	}

	title := h.Source
	if title == "" {
		title = h.SessionID
	}
	if o.timeline != "" {
		if err := writeFile(fsys, o.timeline, func(w io.Writer) error {
			return report.RenderTimeline(w, res, report.TimelineOptions{
				Title:     title,
				Subtitle:  "session " + h.SessionID,
				Threshold: cfg.HardwareCutoff,
			})
		}); err != nil {
			return err
		}
	}
	if o.plot != "" {
		if err := writeFile(fsys, o.plot, func(w io.Writer) error {
			return report.WriteStrokesPNG(w, res, title, 8*vg.Inch, 6*vg.Inch)
		}); err != nil {
			return err
		}
	}
	return nil
}

func printStep(w io.Writer, st recorder.Step) {
	if len(st.Changes) == 0 {
		return
	}
	for _, id := range recorder.SortedIDs(st.Changes) {
		fmt.Fprintf(w, "t=%.3f %-7s contact %d -> %s\n", st.Record.T, st.Record.Kind, id, st.Changes[id])
	}
}

func printSummary(w io.Writer, h recorder.Header, res *recorder.Result) {
	fmt.Fprintf(w, "session %s: %d records, %d passes with changes, %d label changes, %d glitches, %d offscreen presses\n",
		h.SessionID, res.Steps, res.Passes, res.LabelChanges, res.Glitches, res.OffscreenHits)
	counts := res.LabelCounts()
	labels := make([]touch.Label, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	for _, l := range labels {
		fmt.Fprintf(w, "  %-20s %d\n", l, counts[l])
	}
}

func writeFile(fsys fsutil.FileSystem, path string, fn func(io.Writer) error) error {
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, fsutil.OSFileSystem{}, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("touchreplay: %v", err)
	}
}
