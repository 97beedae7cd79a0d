package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"cyclecal/internal/config"
	"cyclecal/internal/feeds"
	"cyclecal/internal/ics"
	appLog "cyclecal/internal/log"
	"cyclecal/internal/model"
	"cyclecal/internal/render"
	"cyclecal/internal/schedule"
	"cyclecal/internal/web"
)

const version = "0.1.0"

const usage = `usage: cyclecal [--config path] <command> [flags]

commands:
  show     print the generated schedule
  export   write the schedule as an .ics file
  import   import configured holiday feeds into the project
  serve    run the HTTP API
`

// globalFlags are accepted before the command name.
type globalFlags struct {
	configPath string
	logLevel   string
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		appLog.Error("cyclecal failed", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	var g globalFlags
	fs := pflag.NewFlagSet("cyclecal", pflag.ContinueOnError)
	fs.StringVarP(&g.configPath, "config", "c", "./cyclecal.yaml", "path to the project file")
	fs.StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	fs.SetInterspersed(false)
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return errors.New("missing command")
	}
	cmd, cmdArgs := rest[0], rest[1:]
	if cmd == "version" {
		fmt.Fprintln(stdout, "cyclecal", version)
		return nil
	}

	conf, err := config.Load(g.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", g.configPath, err)
	}
	level := conf.LogLevel
	if g.logLevel != "" {
		level = g.logLevel
	}
	appLog.SetLevel(appLog.ParseLevel(level))

	p, err := schedule.FromConfig(conf)
	if err != nil {
		return err
	}

	switch cmd {
	case "show":
		return runShow(cmdArgs, stdout, p)
	case "export":
		return runExport(cmdArgs, stdout, conf, p)
	case "import":
		return runImport(cmdArgs, stdout, g.configPath, conf, p)
	case "serve":
		return runServe(cmdArgs, g.configPath, conf, p)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runShow(args []string, stdout io.Writer, p *schedule.Planner) error {
	var from, to string
	fs := pflag.NewFlagSet("show", pflag.ContinueOnError)
	fs.StringVar(&from, "from", "", "first date to print (YYYY-MM-DD)")
	fs.StringVar(&to, "to", "", "last date to print (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	lo, hi, err := parseRange(from, to)
	if err != nil {
		return err
	}

	days, err := p.Generated()
	if err != nil {
		return err
	}
	shown := make([]model.GeneratedDay, 0, len(days))
	for _, d := range days {
		if (!lo.IsZero() && d.Date.Before(lo)) || (!hi.IsZero() && d.Date.After(hi)) {
			continue
		}
		shown = append(shown, d)
	}
	return render.Table(stdout, shown)
}

func runExport(args []string, stdout io.Writer, conf *config.Config, p *schedule.Planner) error {
	var out string
	fs := pflag.NewFlagSet("export", pflag.ContinueOnError)
	fs.StringVarP(&out, "output", "o", "", `output path, "-" for stdout (default: export_name from config)`)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if out == "" {
		out = conf.ExportName
	}
	if out == "-" {
		return p.Export(stdout)
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := p.Export(f); err != nil {
		f.Close()
		os.Remove(out)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	appLog.Info("schedule exported", "path", out, "version", p.Version())
	return nil
}

func runImport(args []string, stdout io.Writer, configPath string, conf *config.Config, p *schedule.Planner) error {
	var dryRun bool
	fs := pflag.NewFlagSet("import", pflag.ContinueOnError)
	fs.BoolVar(&dryRun, "dry-run", false, "print the dates that would change without saving")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(conf.Feeds) == 0 {
		appLog.Warn("no feeds configured", "config_path", configPath)
		return nil
	}

	ctx, cancel := signalContext()
	defer cancel()

	col := feeds.NewCollector(ics.NewFetcher(conf.CacheDir, nil))
	cal := p.Config()
	marks, collectErr := col.Collect(ctx, conf.Feeds, cal.StartDate, cal.EndDate)
	if collectErr != nil {
		appLog.Error("some feeds failed", collectErr)
	}
	if dryRun {
		for _, m := range marks {
			if p.Exceptions().Get(m.Date) != m.Type {
				fmt.Fprintf(stdout, "%s %s %s (%s)\n", m.Date, m.Type, m.Summary, m.FeedID)
			}
		}
		return collectErr
	}

	changed, err := feeds.Apply(p, marks)
	if err != nil {
		return err
	}
	if changed > 0 {
		p.WriteTo(conf)
		if err := config.Save(configPath, conf); err != nil {
			return err
		}
	}
	appLog.Info("feeds imported", "marks", len(marks), "changed", changed)
	return collectErr
}

func runServe(args []string, configPath string, conf *config.Config, p *schedule.Planner) error {
	var listen string
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if listen != "" {
		conf.Listen = listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"config_path", configPath,
		"cycle_length", conf.Calendar.CycleLength,
		"periods", conf.Calendar.PeriodsPerDay,
		"mode", conf.Calendar.Mode,
		"feeds", len(conf.Feeds),
		"refresh", conf.RefreshCron,
	)

	ctx, cancel := signalContext()
	defer cancel()

	srv := web.NewServer(conf, configPath, p, feeds.NewCollector(ics.NewFetcher(conf.CacheDir, nil)))

	refreshSpec := conf.RefreshCron
	if len(conf.Feeds) == 0 {
		refreshSpec = "off"
	}
	refresher, err := feeds.StartRefresher(ctx, refreshSpec, 2*time.Minute, func(ctx context.Context) error {
		_, err := srv.RefreshFeeds(ctx)
		return err
	})
	if err != nil {
		return err
	}
	defer refresher.Stop()

	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}
	appLog.Info("cyclecal exiting")
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func parseRange(from, to string) (model.Date, model.Date, error) {
	var lo, hi model.Date
	var err error
	if from != "" {
		if lo, err = model.ParseDate(from); err != nil {
			return lo, hi, err
		}
	}
	if to != "" {
		if hi, err = model.ParseDate(to); err != nil {
			return lo, hi, err
		}
	}
	return lo, hi, nil
}
