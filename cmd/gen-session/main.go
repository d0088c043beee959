// Command gen-session writes synthetic touch session logs for touchreplay.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/banshee-data/palmreject/internal/fsutil"
	"github.com/banshee-data/palmreject/internal/touch/recorder"
	"github.com/banshee-data/palmreject/internal/touch/synth"
	"github.com/banshee-data/palmreject/internal/version"
)

func generate(w io.Writer, sc synth.Scenario, opts synth.Options) (recorder.Header, error) {
	s, err := synth.Generate(sc, opts)
	if err != nil {
		return recorder.Header{}, err
	}
	return recorder.WriteSession(w, s.Header, s.Records)
}

func writeScenario(fsys fsutil.FileSystem, path string, sc synth.Scenario, opts synth.Options) error {
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := generate(f, sc, opts); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", sc, err)
	}
	return f.Close()
}

func run(fsys fsutil.FileSystem, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("gen-session", flag.ContinueOnError)
	fs.SetOutput(stderr)
	scenario := fs.String("scenario", string(synth.PenAndPalm), "Scenario to generate")
	seed := fs.Int64("seed", 1, "Random seed")
	jitter := fs.Float64("jitter", 0, "Position jitter in pixels")
	rate := fs.Float64("rate", 60, "Contact frames per second")
	out := fs.String("out", "", "Output file (stdout when empty)")
	all := fs.String("all", "", "Write every scenario into this directory")
	list := fs.Bool("list", false, "List scenarios and exit")
	showVersion := fs.Bool("version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case *showVersion:
		fmt.Fprintln(stdout, version.String("gen-session"))
		return nil
	case *list:
		for _, sc := range synth.Scenarios() {
			fmt.Fprintln(stdout, sc)
		}
		return nil
	}

	opts := synth.Options{Seed: *seed, Jitter: *jitter, FrameRate: *rate}
	if *all != "" {
		if err := fsys.MkdirAll(*all, 0o755); err != nil {
			return err
		}
		for _, sc := range synth.Scenarios() {
			path := filepath.Join(*all, string(sc)+".jsonl")
			if err := writeScenario(fsys, path, sc, opts); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "wrote %s\n", path)
		}
		return nil
	}

	sc, err := synth.ParseScenario(*scenario)
	if err != nil {
		return err
	}
	if *out == "" {
		_, err := generate(stdout, sc, opts)
		return err
	}
	return writeScenario(fsys, *out, sc, opts)
}

func main() {
	if err := run(fsutil.OSFileSystem{}, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("gen-session: %v", err)
	}
}
