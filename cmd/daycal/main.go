package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"daycal/internal/capture"
	"daycal/internal/config"
	"daycal/internal/convert"
	"daycal/internal/ics"
	appLog "daycal/internal/log"
	"daycal/internal/report"
	"daycal/internal/store"
	"daycal/internal/web"
)

const version = "0.3.0"

// flagConfig holds CLI flag values; they override the config file.
type flagConfig struct {
	configPath string
	icsPath    string
	calendarID string
	date       string
	month      string
	format     string
	timezone   string
	logLevel   string
	pngPath    string
	palette    string
	listen     string
	serve      bool
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		if err := runHashPassword(os.Args[2:], os.Stdin, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "hash-password: %v\n", err)
			os.Exit(1)
		}
		return
	}

	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

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

	if err := run(ctx, flags, os.Stdout); err != nil {
		appLog.Error("daycal failed", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (flagConfig, error) {
	var cfg flagConfig

	fs := flag.NewFlagSet("daycal", flag.ContinueOnError)
	fs.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file (created with defaults if missing)")
	fs.StringVar(&cfg.icsPath, "ics", "", "Report on this .ics file instead of the configured calendars")
	fs.StringVar(&cfg.calendarID, "calendar", "", "Calendar ID (default: first configured calendar)")
	fs.StringVar(&cfg.date, "date", "", "Report a single day, YYYY-MM-DD (default: today)")
	fs.StringVar(&cfg.month, "month", "", "Report every day of a month, YYYY-MM")
	fs.StringVar(&cfg.format, "format", "", "Output format: text or csv (overrides config)")
	fs.StringVar(&cfg.timezone, "timezone", "", "IANA timezone (overrides config)")
	fs.StringVar(&cfg.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	fs.StringVar(&cfg.pngPath, "png", "", "Capture the month report as a PNG to this path (needs Chromium)")
	fs.StringVar(&cfg.palette, "palette", "", "Reduce the PNG to mono or tricolor")
	fs.StringVar(&cfg.listen, "listen", "", "HTTP listen address for -serve (overrides config)")
	fs.BoolVar(&cfg.serve, "serve", false, "Run the web server and scheduled refresh until interrupted")
	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "Usage: daycal [flags]\n       daycal hash-password [-config path] [-user name]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if cfg.date != "" && cfg.month != "" {
		err := errors.New("-date and -month are mutually exclusive")
		fmt.Fprintln(fs.Output(), err)
		return cfg, err
	}
	if cfg.pngPath != "" && cfg.date != "" {
		err := errors.New("-png captures a month report; use -month")
		fmt.Fprintln(fs.Output(), err)
		return cfg, err
	}
	return cfg, nil
}

// loadConfig reads the config file and applies flag overrides. With -ics
// the file is only read if it exists and the calendars are replaced.
func loadConfig(flags flagConfig) (*config.Config, error) {
	var (
		conf *config.Config
		err  error
	)
	if flags.icsPath != "" {
		conf = config.DefaultConfig()
		if _, statErr := os.Stat(flags.configPath); statErr == nil {
			if conf, err = config.Load(flags.configPath); err != nil {
				return nil, err
			}
		}
		conf.Calendars = []config.CalendarConfig{{ID: "ics", Path: flags.icsPath}}
	} else if conf, err = config.Load(flags.configPath); err != nil {
		return nil, err
	}

	if flags.timezone != "" {
		conf.Timezone = flags.timezone
	}
	if flags.format != "" {
		switch flags.format {
		case config.FormatText, config.FormatCSV:
			conf.Format = flags.format
		default:
			return nil, fmt.Errorf("unknown format %q (want text or csv)", flags.format)
		}
	}
	if flags.logLevel != "" {
		conf.LogLevel = flags.logLevel
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if err := convert.ValidPalette(flags.palette); err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if len(conf.Calendars) == 0 {
		return nil, fmt.Errorf("no calendars configured in %s", flags.configPath)
	}
	return conf, nil
}

func run(ctx context.Context, flags flagConfig, stdout io.Writer) error {
	conf, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if lvl, err := appLog.ParseLevel(conf.LogLevel); err == nil {
		appLog.SetLevel(lvl)
	}

	appLog.Info("daycal starting", "version", version)
	appLog.Debug("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"cache_dir", conf.CacheDir,
		"format", conf.Format,
		"calendar_count", len(conf.Calendars),
		"serve", flags.serve,
	)

	st, err := store.New(conf, ics.NewFetcher(conf.CacheDir, nil))
	if err != nil {
		return err
	}

	if flags.serve {
		return serve(ctx, conf, st)
	}

	// One-shot reports still work with whichever calendars loaded.
	if err := st.Refresh(ctx); err != nil {
		appLog.Warn("some calendars failed to load", "err", err)
	}
	entry, err := pickEntry(st, flags.calendarID)
	if err != nil {
		return err
	}

	loc := st.Location()
	now := time.Now().In(loc)
	if flags.month != "" || flags.pngPath != "" {
		month := now
		if flags.month != "" {
			if month, err = time.ParseInLocation("2006-01", flags.month, loc); err != nil {
				return fmt.Errorf("-month %q: want YYYY-MM", flags.month)
			}
		}
		m := report.Month(entry.Calendar, month)
		m.Rejected = report.Rejections(entry.Rejected)
		if flags.pngPath != "" {
			return capturePNG(ctx, m, flags)
		}
		return write(stdout, conf.Format, m.Days...)
	}

	day := now
	if flags.date != "" {
		if day, err = time.ParseInLocation("2006-01-02", flags.date, loc); err != nil {
			return fmt.Errorf("-date %q: want YYYY-MM-DD", flags.date)
		}
	}
	return write(stdout, conf.Format, report.Day(entry.Calendar, day))
}

func pickEntry(st *store.Store, id string) (*store.Entry, error) {
	if id == "" {
		if e, ok := st.Default(); ok {
			return e, nil
		}
		return nil, errors.New("no calendar could be loaded")
	}
	if e, ok := st.Entry(id); ok {
		return e, nil
	}
	return nil, fmt.Errorf("calendar %q is not configured or failed to load", id)
}

func write(w io.Writer, format string, days ...report.DayReport) error {
	if format == config.FormatCSV {
		return report.WriteCSV(w, days...)
	}
	return report.WriteText(w, days...)
}

func capturePNG(ctx context.Context, m report.MonthReport, flags flagConfig) error {
	var page bytes.Buffer
	if err := report.WriteHTML(&page, m); err != nil {
		return err
	}
	return capture.CaptureHTML(ctx, page.Bytes(), capture.Options{
		OutputPath: flags.pngPath,
		Palette:    flags.palette,
	})
}

// serve runs the scheduled refresh and the web server until ctx is
// canceled.
func serve(ctx context.Context, conf *config.Config, st *store.Store) error {
	if err := st.Refresh(ctx); err != nil {
		appLog.Warn("initial refresh finished with errors", "err", err)
	}
	if err := st.Start(ctx, conf.RefreshCron); err != nil {
		return err
	}
	defer st.Stop()

	if err := web.StartServer(ctx, conf, st); err != nil {
		return err
	}
	appLog.Info("daycal exiting")
	return nil
}
