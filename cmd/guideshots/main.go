package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ivlev/guideshots/internal/analyzer"
	"github.com/ivlev/guideshots/internal/config"
	"github.com/ivlev/guideshots/internal/engine"
	"github.com/ivlev/guideshots/internal/guide"
	"github.com/ivlev/guideshots/internal/host"
	"github.com/ivlev/guideshots/internal/host/hosttest"
	"github.com/ivlev/guideshots/internal/logger"
	"github.com/ivlev/guideshots/internal/system"
	"github.com/ivlev/guideshots/internal/tools"
	"github.com/ivlev/guideshots/internal/tracer"
)

// Set with -ldflags "-X main.version=...".
var version = "dev"

const usage = `guideshots refreshes the screenshots and animations of the settings guide.

Usage:
  guideshots refresh [flags] ARTICLE...   refresh the instructions of the given articles
  guideshots refresh-all [flags]          refresh every article under articles_dir
  guideshots list [flags] [ARTICLE...]    print the instructions found in articles
  guideshots doctor [flags]               check external tools, host and resources
  guideshots mock-host [flags]            serve a fake scene for dry runs

Run "guideshots <command> -h" for the flags of a command.
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, rest := args[0], args[1:]
	var err error
	switch cmd {
	case "refresh":
		err = cmdRefresh(ctx, rest, false)
	case "refresh-all":
		err = cmdRefresh(ctx, rest, true)
	case "list":
		err = cmdList(rest)
	case "doctor":
		err = cmdDoctor(ctx, rest)
	case "mock-host":
		err = cmdMockHost(ctx, rest)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "[-] unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintf(os.Stderr, "[-] %v\n", err)
		return 2
	default:
		fmt.Fprintf(os.Stderr, "[-] %v\n", err)
		return 1
	}
}

var errUsage = errors.New("usage")

// common holds the flags every command shares.
type common struct {
	configPath string
	hostURL    string
	logLevel   string
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "config file (default: "+config.DefaultFile+" if present)")
	fs.StringVar(&c.hostURL, "host", "", "websocket URL of the slicer bridge (overrides host_url)")
	fs.StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error (overrides log.level)")
}

func (c *common) load() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.hostURL != "" {
		cfg.HostURL = c.hostURL
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	cfg.BuildVersion = version
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func cmdRefresh(ctx context.Context, args []string, all bool) error {
	name := "refresh"
	if all {
		name = "refresh-all"
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	var c common
	c.register(fs)
	stats := fs.Bool("stats", false, "print a performance and resource report")
	keep := fs.Bool("keep-scratch", false, "keep scratch meshes and frames for inspection")
	legacy := fs.Bool("legacy-frame-names", false, "name animation frames image_path+N.png next to the output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := c.load()
	if err != nil {
		return err
	}
	cfg.ShowStats = cfg.ShowStats || *stats
	cfg.KeepScratch = cfg.KeepScratch || *keep
	cfg.LegacyFrameNames = cfg.LegacyFrameNames || *legacy

	var paths []string
	if all {
		if fs.NArg() > 0 {
			return fmt.Errorf("%w: refresh-all takes no arguments", errUsage)
		}
		if paths, err = guide.FindArticles(cfg.Resolve(cfg.ArticlesDir)); err != nil {
			return err
		}
	} else {
		if fs.NArg() == 0 {
			return fmt.Errorf("%w: refresh needs at least one article", errUsage)
		}
		paths = fs.Args()
	}

	articles, err := readArticles(cfg, paths)
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	shutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	table, err := tools.NewTable(cfg.Commands)
	if err != nil {
		return fmt.Errorf("invalid commands: %w", err)
	}
	if _, err := tools.Preflight(ctx, table); err != nil {
		return fmt.Errorf("external tools missing (run guideshots doctor): %w", err)
	}
	checker, err := analyzer.NewChecker(cfg.BlankCheck)
	if err != nil {
		return err
	}

	fmt.Printf("[*] Connecting to slicer bridge at %s\n", cfg.HostURL)
	dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	remote, err := host.Dial(dialCtx, cfg.HostURL, cfg.HostTimeout)
	cancel()
	if err != nil {
		return err
	}
	defer remote.Close()

	fmt.Printf("[*] Articles: %d | Models: %s | Images: %s\n",
		len(articles), cfg.Resolve(cfg.ModelsDir), cfg.Resolve(cfg.ImagesDir))

	refresher := engine.NewRefresher(cfg, remote, tools.NewRunner(table, cfg.ToolTimeout, log), checker, log)
	report, runErr := refresher.RefreshAll(ctx, articles)

	for _, out := range report.Refreshed {
		fmt.Printf("[>] %s (%d frames, %.1fs)\n", out.Image, out.Frames, out.Elapsed.Seconds())
	}
	for _, failure := range report.Failures {
		fmt.Printf("[!] %v\n", failure)
	}
	if cfg.ShowStats {
		report.Print(os.Stdout, cfg.BuildVersion)
	}
	if cfg.StatsLog != "" {
		if err := report.AppendLog(cfg.StatsLog, cfg.BuildVersion, time.Now()); err != nil {
			fmt.Printf("[!] Could not write %s: %v\n", cfg.StatsLog, err)
		}
	}

	if runErr != nil {
		return fmt.Errorf("%d failures, see above", len(report.Failures))
	}
	fmt.Printf("[+++] Done! Refreshed %d images\n", len(report.Refreshed))
	return nil
}

func readArticles(cfg *config.Config, paths []string) ([]guide.Article, error) {
	base := cfg.Resolve(cfg.ArticlesDir)
	articles := make([]guide.Article, 0, len(paths))
	for _, p := range paths {
		a, err := guide.ReadArticle(base, p)
		if err != nil {
			return nil, fmt.Errorf("read article: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, nil
}

func cmdList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	var c common
	c.register(fs)
	notation := fs.Bool("notation", false, "print each instruction in its normalized embedded notation")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := c.load()
	if err != nil {
		return err
	}

	paths := fs.Args()
	if len(paths) == 0 {
		if paths, err = guide.FindArticles(cfg.Resolve(cfg.ArticlesDir)); err != nil {
			return err
		}
	}
	articles, err := readArticles(cfg, paths)
	if err != nil {
		return err
	}

	var bad int
	for _, a := range articles {
		for inst, err := range a.Instructions() {
			if err != nil {
				bad++
				fmt.Printf("[!] %v\n", err)
				continue
			}
			if *notation {
				text, err := guide.Format(inst)
				if err != nil {
					return err
				}
				fmt.Printf("%s\n%s\n\n", inst.Location, text)
				continue
			}
			frames, _ := inst.Frames()
			kind := "still"
			if inst.IsAnimation() {
				kind = "animation"
			}
			fmt.Printf("%s\t%s\t%s\t%d frames\t%dx%d\n", inst.Location, inst.ImagePath, kind, len(frames), inst.Width, inst.Height)
		}
	}

	if bad > 0 {
		return fmt.Errorf("%d malformed instructions", bad)
	}
	return nil
}

func cmdDoctor(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	var c common
	c.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := c.load()
	if err != nil {
		return err
	}

	var problems []error

	table, err := tools.NewTable(cfg.Commands)
	if err != nil {
		return fmt.Errorf("invalid commands: %w", err)
	}
	fmt.Println("--- [TOOLS] ---")
	statuses, err := tools.Preflight(ctx, table)
	for _, s := range statuses {
		if s.Err != nil {
			fmt.Printf("[!] %-10s not found\n", s.Name)
			continue
		}
		fmt.Printf("[+] %-10s %s\n", s.Name, s.Path)
	}
	if err != nil {
		problems = append(problems, err)
	}
	for _, op := range tools.Operations {
		fmt.Printf("    %-15s %s\n", op, table[op])
	}

	fmt.Println("--- [HOST] ---")
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	remote, err := host.Dial(dialCtx, cfg.HostURL, cfg.HostTimeout)
	cancel()
	if err != nil {
		fmt.Printf("[!] %v\n", err)
		problems = append(problems, err)
	} else {
		fmt.Printf("[+] bridge reachable at %s\n", cfg.HostURL)
		remote.Close()
	}

	fmt.Println("--- [RESOURCES] ---")
	for _, dir := range []string{cfg.Resolve(cfg.ModelsDir), cfg.Resolve(cfg.ImagesDir)} {
		if _, err := os.Stat(dir); err != nil {
			fmt.Printf("[!] %v\n", err)
			problems = append(problems, err)
		}
	}
	res, err := system.Sample(ctx, cfg.ScratchDir)
	if err != nil {
		fmt.Printf("[!] %v\n", err)
	} else {
		fmt.Printf("[*] %s\n", res)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%d problems found", len(problems))
	}
	fmt.Println("[+++] All checks passed")
	return nil
}

// cmdMockHost serves a scene that records calls and renders a checkerboard,
// so articles can be refreshed end to end without a running slicer.
const mockHistory = 1000

func cmdMockHost(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mock-host", flag.ContinueOnError)
	var c common
	c.register(fs)
	listen := fs.String("listen", "127.0.0.1:8765", "address to listen on")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := c.load()
	if err != nil {
		return err
	}
	log, closeLog, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	// A long-running bridge only needs recent history.
	rec := hosttest.New()
	rec.Limit = mockHistory
	mux := http.NewServeMux()
	mux.Handle("/host", host.NewHandler(rec, log))
	srv := &http.Server{
		Addr:              *listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info("mock host listening", slog.String("url", "ws://"+*listen+"/host"))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
