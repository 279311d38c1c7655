package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"concordiacal/internal/config"
	"concordiacal/internal/ics"
	appLog "concordiacal/internal/log"
	"concordiacal/internal/pipeline"
	"concordiacal/internal/source"
	"concordiacal/internal/watch"
	"concordiacal/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	input      string
	output     string
	remove     string
	listen     string
	serve      bool
	watch      bool
	dump       bool
	preview    bool
	inspect    string
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Debug("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"semester_start", conf.Semester.Start,
		"semester_end", conf.Semester.End,
		"reading_week_start", conf.ReadingWeek.Start,
		"refresh", conf.RefreshCron,
		"serve", flags.serve,
		"watch", flags.watch,
	)

	if flags.inspect != "" {
		if err := inspect(flags.inspect, os.Stdout); err != nil {
			appLog.Error("inspect failed", err, "path", flags.inspect)
			os.Exit(1)
		}
		return
	}

	conv, err := pipeline.New(conf, nil)
	if err != nil {
		appLog.Error("failed to build converter", err)
		os.Exit(1)
	}
	remove := splitList(flags.remove)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	loader := source.NewLoader(nil, os.Stdin)

	if flags.listen != "" {
		flags.serve = true
	}
	if !flags.serve && !flags.watch {
		if err := runOnce(ctx, conv, conf, loader, flags, remove); err != nil {
			appLog.Error("conversion failed", err, "input", flags.input)
			os.Exit(1)
		}
		return
	}

	var (
		wg     sync.WaitGroup
		failed bool
		mu     sync.Mutex
	)
	fail := func(msg string, err error) {
		appLog.Error(msg, err)
		mu.Lock()
		failed = true
		mu.Unlock()
		cancel()
	}

	if flags.watch {
		in := firstNonEmpty(conf.Watch.Input, flags.input)
		out := firstNonEmpty(conf.Watch.Output, flags.output)
		if in == source.Stdin {
			appLog.Error("watch mode needs a file or URL input", errors.New("input is stdin"))
			os.Exit(2)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := watch.Run(ctx, conf.RefreshCron, func(ctx context.Context) error {
				_, err := conv.Run(ctx, loader, in, out, remove)
				return err
			})
			if err != nil {
				fail("watch stopped", err)
			}
		}()
	}

	if flags.serve {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := web.NewServer(conf, conv).Serve(ctx); err != nil {
				fail("HTTP server stopped", err)
			}
		}()
	}

	wg.Wait()
	if failed {
		os.Exit(1)
	}
	appLog.Info("concordiacal exiting")
}

// runOnce converts a single input and writes the calendar, the parsed
// records (-dump) or the expanded meetings (-preview).
func runOnce(ctx context.Context, conv *pipeline.Converter, conf *config.Config, loader *source.Loader, flags flagConfig, remove []string) error {
	if !flags.dump && !flags.preview {
		_, err := conv.Run(ctx, loader, flags.input, flags.output, remove)
		return err
	}

	in, err := loader.Load(ctx, flags.input)
	if err != nil {
		return err
	}
	res := conv.Convert(in.Text, remove)

	if flags.dump {
		return writeIndented(os.Stdout, res)
	}

	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", conf.Timezone, err)
	}
	expanded, err := ics.Expand(res.Events, ics.ExpandConfig{Location: loc})
	if err != nil {
		appLog.Warn("some events failed to expand", "err", err)
	}
	for _, o := range expanded.Occurrences {
		fmt.Fprintf(os.Stdout, "%s  %s-%s  %s  %s\n",
			o.Start.Format("Mon 2006-01-02"),
			o.Start.Format("15:04"),
			o.End.Format("15:04"),
			o.Title,
			o.Location,
		)
	}
	return nil
}

// inspect reads an .ics file and prints its events as JSON.
func inspect(path string, w io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	events, err := ics.ParseCalendar(f)
	if err != nil {
		return err
	}
	return writeIndented(w, events)
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "concordiacal.yaml", "Path to config file (created with defaults if missing)")
	flag.StringVar(&cfg.input, "input", source.Stdin, "Schedule text: file path, http(s) URL, or - for stdin")
	flag.StringVar(&cfg.output, "output", "-", "Output .ics path, or - for stdout")
	flag.StringVar(&cfg.remove, "remove", "", "Comma separated UIDs or course names to leave out")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.serve, "serve", false, "Serve the HTTP API")
	flag.BoolVar(&cfg.watch, "watch", false, "Re-convert watch.input on the refresh schedule")
	flag.BoolVar(&cfg.dump, "dump", false, "Print parsed records, report and events as JSON instead of writing .ics")
	flag.BoolVar(&cfg.preview, "preview", false, "Print every meeting of the semester instead of writing .ics")
	flag.StringVar(&cfg.inspect, "inspect", "", "Read an .ics file and print its events as JSON")

	flag.Parse()

	return cfg
}
