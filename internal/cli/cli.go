// Package cli provides the command-line interface with injectable io.Writer for testing.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/mcdonaldj/xboxftp/internal/config"
	"github.com/mcdonaldj/xboxftp/internal/history"
	"github.com/mcdonaldj/xboxftp/internal/ports"
	"github.com/mcdonaldj/xboxftp/internal/tui"
	"github.com/mcdonaldj/xboxftp/internal/upload"
)

// historyLimit is how many entries the history file keeps.
const historyLimit = 500

// ConfigService provides configuration operations for the CLI.
type ConfigService interface {
	Load() (*config.Config, error)
	Save(cfg *config.Config) error
	ConfigPath() string
	DefaultConfig() *config.Config
}

// UploadRequest describes one upload run.
type UploadRequest struct {
	Archives []string
	// Strategy overrides the configured resume strategy when set.
	Strategy string
	// Notifier receives progress events next to the log. May be nil.
	Notifier ports.ProgressNotifier
	// Quiet keeps log output off the console, e.g. while the UI is up.
	Quiet bool
}

// UploadService runs uploads and resume checks.
type UploadService interface {
	Upload(ctx context.Context, cfg *config.Config, req UploadRequest) ([]upload.GameResult, error)
	Check(ctx context.Context, cfg *config.Config, archive string) (upload.CheckResult, error)
}

// HistoryService persists upload results.
type HistoryService interface {
	Load() (*history.History, error)
	Save(h *history.History) error
}

// RunUIFunc shows progress while run executes and returns its results.
type RunUIFunc func(ctx context.Context, run func(context.Context, ports.ProgressNotifier) []upload.GameResult) ([]upload.GameResult, error)

// CLI represents the command-line interface with injectable dependencies.
type CLI struct {
	Out     io.Writer // Standard output
	Err     io.Writer // Standard error
	Version string    // Application version
	Args    []string  // Command arguments (like os.Args)

	// Exit function for testability (defaults to os.Exit)
	Exit func(code int)

	// Injectable dependencies (nil means use defaults)
	ConfigSvc  ConfigService
	UploadSvc  UploadService
	HistorySvc HistoryService
	RunUI      RunUIFunc

	// Color functions (can be disabled for testing)
	green  func(a ...interface{}) string
	yellow func(a ...interface{}) string
	cyan   func(a ...interface{}) string
	gray   func(a ...interface{}) string
	red    func(a ...interface{}) string
}

// New creates a new CLI with default settings.
func New(version string) *CLI {
	return &CLI{
		Out:     os.Stdout,
		Err:     os.Stderr,
		Version: version,
		Args:    os.Args,
		Exit:    os.Exit,
		RunUI:   tui.Run,
		green:   color.New(color.FgGreen, color.Bold).SprintFunc(),
		yellow:  color.New(color.FgYellow).SprintFunc(),
		cyan:    color.New(color.FgCyan).SprintFunc(),
		gray:    color.New(color.FgHiBlack).SprintFunc(),
		red:     color.New(color.FgRed).SprintFunc(),
	}
}

// NewForTesting creates a CLI configured for testing (no colors, captured output).
func NewForTesting(out, errOut io.Writer, args []string) *CLI {
	noColor := func(a ...interface{}) string { return fmt.Sprint(a...) }
	return &CLI{
		Out:     out,
		Err:     errOut,
		Version: "test",
		Args:    args,
		Exit:    func(code int) {},
		green:   noColor,
		yellow:  noColor,
		cyan:    noColor,
		gray:    noColor,
		red:     noColor,
	}
}

// Helper methods to get the service or default
func (c *CLI) configSvc() ConfigService {
	if c.ConfigSvc != nil {
		return c.ConfigSvc
	}
	return &defaultConfigService{}
}

func (c *CLI) uploadSvc() UploadService {
	if c.UploadSvc != nil {
		return c.UploadSvc
	}
	return &defaultUploadService{}
}

func (c *CLI) historySvc() HistoryService {
	if c.HistorySvc != nil {
		return c.HistorySvc
	}
	return &defaultHistoryService{}
}

// Run executes the CLI with the configured arguments.
func (c *CLI) Run() {
	if len(c.Args) < 2 {
		c.PrintUsage()
		return
	}

	switch c.Args[1] {
	case "upload":
		c.RunUpload()
	case "check":
		c.RunCheck()
	case "history":
		c.ShowHistory()
	case "init":
		c.InitConfig()
	case "config":
		c.ShowConfig()
	case "version", "-v", "--version":
		fmt.Fprintf(c.Out, "xboxftp v%s\n", c.Version)
	case "help", "-h", "--help":
		c.PrintUsage()
	default:
		fmt.Fprintf(c.Err, "Unknown command: %s\n", c.Args[1])
		c.PrintUsage()
		c.Exit(1)
	}
}

// PrintUsage prints the help message.
func (c *CLI) PrintUsage() {
	fmt.Fprintln(c.Out, `xboxftp - Upload zipped games to an Xbox over FTP

Usage:
  xboxftp upload [archive...] [--ui] [--strategy=binary|sequential] [--list=FILE]
                                           Upload archives (or the configured ones), resuming
                                           interrupted uploads
  xboxftp check <archive>                  Show what an upload would still transfer
  xboxftp history [game]                   Show past uploads
  xboxftp init                             Create default config file
  xboxftp config                           Show the effective configuration
  xboxftp version, -v                      Show version
  xboxftp help, -h                         Show this help

Exit status:
  upload exits 1 if any archive failed, even when the others were uploaded.
  Skipped archives (after Ctrl-C) do not change the exit status.

Config: ~/.xboxftp/config.yaml`)
}

// InitConfig creates the default config file.
func (c *CLI) InitConfig() {
	svc := c.configSvc()
	if err := svc.Save(svc.DefaultConfig()); err != nil {
		fmt.Fprintf(c.Err, "Error saving config: %v\n", err)
		c.Exit(1)
		return
	}
	fmt.Fprintf(c.Out, "Created config at %s\n", svc.ConfigPath())
}

// ShowConfig prints the settings after environment overrides.
func (c *CLI) ShowConfig() {
	svc := c.configSvc()
	cfg, err := svc.Load()
	if err != nil {
		fmt.Fprintf(c.Err, "Error loading config: %v\n", err)
		c.Exit(1)
		return
	}

	fmt.Fprintln(c.Out, "xboxftp config:")
	fmt.Fprintf(c.Out, "  File:     %s\n", svc.ConfigPath())
	fmt.Fprintf(c.Out, "  Backend:  %s\n", cfg.EffectiveBackend())
	switch cfg.EffectiveBackend() {
	case config.BackendFTP:
		fmt.Fprintf(c.Out, "  Server:   %s@%s:%d\n", cfg.User, cfg.Host, cfg.Port)
		fmt.Fprintf(c.Out, "  Password: %s\n", mask(cfg.Password))
		fmt.Fprintf(c.Out, "  Root:     %s\n", cfg.GameRootDirectory)
	case config.BackendS3:
		fmt.Fprintf(c.Out, "  Bucket:   s3://%s/%s\n", cfg.S3.Bucket, cfg.S3.Prefix)
		if cfg.S3.Endpoint != "" {
			fmt.Fprintf(c.Out, "  Endpoint: %s\n", cfg.S3.Endpoint)
		}
	case config.BackendMemory:
		fmt.Fprintf(c.Out, "  Delay:    %s\n", cfg.MemoryUploadDelay)
	}
	fmt.Fprintf(c.Out, "  Resume:   %s\n", cfg.ResumeStrategy)
	fmt.Fprintf(c.Out, "  Temp:     %s\n", cfg.TempDir)
	fmt.Fprintf(c.Out, "  Logs:     %s\n", cfg.LogDir)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(c.Out, "\n%s %v\n", c.red("Invalid:"), err)
		c.Exit(1)
	}
}

// uploadArgs holds the parsed flags of the upload command.
type uploadArgs struct {
	archives []string
	list     string
	strategy string
	ui       bool
}

func parseUploadArgs(args []string) (uploadArgs, error) {
	var ua uploadArgs
	for _, arg := range args {
		switch {
		case arg == "--ui":
			ua.ui = true
		case strings.HasPrefix(arg, "--strategy="):
			ua.strategy = strings.TrimPrefix(arg, "--strategy=")
		case strings.HasPrefix(arg, "--list="):
			ua.list = strings.TrimPrefix(arg, "--list=")
		case strings.HasPrefix(arg, "--"):
			return ua, fmt.Errorf("unknown flag %s", arg)
		default:
			ua.archives = append(ua.archives, arg)
		}
	}
	return ua, nil
}

// RunUpload uploads the archives named on the command line, or the
// configured ones when none are given.
func (c *CLI) RunUpload() {
	ua, err := parseUploadArgs(c.Args[2:])
	if err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		c.Exit(1)
		return
	}

	cfg, err := c.configSvc().Load()
	if err != nil {
		fmt.Fprintf(c.Err, "Error loading config: %v\n", err)
		c.Exit(1)
		return
	}
	if ua.strategy != "" {
		cfg.ResumeStrategy = ua.strategy
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(c.Err, "Invalid config: %v\n", err)
		c.Exit(1)
		return
	}

	archives, err := c.archivesToUpload(cfg, ua)
	if err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		c.Exit(1)
		return
	}
	if len(archives) == 0 {
		fmt.Fprintln(c.Out, "Nothing to upload. Pass archives or set games_to_upload in the config.")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := history.NewRun(cfg.EffectiveBackend(), time.Now())
	req := UploadRequest{Archives: archives, Strategy: ua.strategy}

	var results []upload.GameResult
	if ua.ui && c.RunUI != nil {
		var setupErr error
		results, err = c.RunUI(ctx, func(ctx context.Context, n ports.ProgressNotifier) []upload.GameResult {
			req.Notifier = n
			req.Quiet = true
			var r []upload.GameResult
			r, setupErr = c.uploadSvc().Upload(ctx, cfg, req)
			return r
		})
		err = errors.Join(err, setupErr)
	} else {
		fmt.Fprintf(c.Out, "%s Uploading %d game(s) via %s...\n", c.cyan("=>"), len(archives), cfg.EffectiveBackend())
		results, err = c.uploadSvc().Upload(ctx, cfg, req)
	}
	if err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		c.Exit(1)
		return
	}

	c.recordHistory(run, results)
	if failed := c.printResults(results); failed > 0 {
		c.Exit(1)
	}
}

func (c *CLI) archivesToUpload(cfg *config.Config, ua uploadArgs) ([]string, error) {
	archives := make([]string, 0, len(ua.archives))
	for _, a := range ua.archives {
		archives = append(archives, config.ExpandPath(a))
	}
	if ua.list != "" {
		listed, err := config.ReadArchiveList(config.ExpandPath(ua.list))
		if err != nil {
			return nil, err
		}
		for _, a := range listed {
			archives = append(archives, config.ExpandPath(a))
		}
	}
	if len(archives) > 0 {
		return archives, nil
	}
	return cfg.ArchivePaths()
}

func (c *CLI) recordHistory(run history.Run, results []upload.GameResult) {
	svc := c.historySvc()
	h, err := svc.Load()
	if err != nil {
		fmt.Fprintf(c.Err, "Warning: could not load history: %v\n", err)
		return
	}
	for _, r := range results {
		h.Add(run.Entry(r))
	}
	h.Prune(historyLimit)
	if err := svc.Save(h); err != nil {
		fmt.Fprintf(c.Err, "Warning: could not save history: %v\n", err)
	}
}

// printResults writes the per-game summary and returns the failure count.
func (c *CLI) printResults(results []upload.GameResult) int {
	uploaded, skipped, failed := 0, 0, 0

	fmt.Fprintln(c.Out)
	for _, r := range results {
		switch r.State {
		case upload.StateFinished:
			fmt.Fprintf(c.Out, "  %s %s %s %s %d/%d files\n",
				c.green("*"),
				r.Game,
				c.yellow(formatSize(r.BytesTransferred)),
				c.gray(r.Elapsed.Round(time.Second).String()),
				r.FilesTransferred,
				r.FilesTotal)
			if r.BytesAlreadyUploaded > 0 {
				fmt.Fprintf(c.Out, "    %s\n", c.gray("resumed, "+formatSize(r.BytesAlreadyUploaded)+" already uploaded"))
			}
			uploaded++
		case upload.StateSkipped:
			fmt.Fprintf(c.Out, "  %s %s %s\n", c.gray("-"), c.gray(r.Game), c.gray("(skipped)"))
			skipped++
		default:
			fmt.Fprintf(c.Out, "  %s %s: %v\n", c.red("x"), r.Game, r.Err)
			failed++
		}
	}

	fmt.Fprintln(c.Out)
	fmt.Fprintf(c.Out, "Done: %s uploaded, %s skipped",
		c.green(fmt.Sprintf("%d", uploaded)),
		c.gray(fmt.Sprintf("%d", skipped)))
	if failed > 0 {
		fmt.Fprintf(c.Out, ", %s failed", c.red(fmt.Sprintf("%d", failed)))
	}
	fmt.Fprintln(c.Out)
	return failed
}

// RunCheck reports how much of an archive is already on the remote side.
func (c *CLI) RunCheck() {
	if len(c.Args) < 3 {
		fmt.Fprintln(c.Out, "Usage: xboxftp check <archive>")
		c.Exit(1)
		return
	}

	cfg, err := c.configSvc().Load()
	if err != nil {
		fmt.Fprintf(c.Err, "Error loading config: %v\n", err)
		c.Exit(1)
		return
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(c.Err, "Invalid config: %v\n", err)
		c.Exit(1)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	archive := config.ExpandPath(c.Args[2])
	res, err := c.uploadSvc().Check(ctx, cfg, archive)
	if err != nil {
		fmt.Fprintf(c.Err, "Check failed: %v\n", err)
		c.Exit(1)
		return
	}

	remaining := len(res.Report.RemainingFiles)
	switch {
	case remaining == 0:
		fmt.Fprintf(c.Out, "%s %s is fully uploaded (%d files, %s)\n",
			c.green("*"), res.Game, res.FilesTotal, formatSize(res.BytesTotal))
	case remaining == res.FilesTotal:
		fmt.Fprintf(c.Out, "%s %s has not been uploaded (%d files, %s)\n",
			c.yellow("-"), res.Game, res.FilesTotal, formatSize(res.BytesTotal))
	default:
		fmt.Fprintf(c.Out, "%s %s: %d of %d files remaining, %s of %s already uploaded\n",
			c.cyan("~"), res.Game, remaining, res.FilesTotal,
			formatSize(res.Report.SizeUploaded), formatSize(res.BytesTotal))
	}
}

// ShowHistory lists recorded uploads, optionally for one game.
func (c *CLI) ShowHistory() {
	h, err := c.historySvc().Load()
	if err != nil {
		fmt.Fprintf(c.Err, "Error loading history: %v\n", err)
		c.Exit(1)
		return
	}

	entries := h.Entries
	if len(c.Args) > 2 {
		entries = h.ForGame(c.Args[2])
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.Out, "No uploads recorded")
		return
	}

	fmt.Fprintf(c.Out, "  %-16s %-28s %-9s %10s %8s %s\n", "DATE", "GAME", "STATE", "SENT", "TIME", "BACKEND")
	fmt.Fprintf(c.Out, "  %-16s %-28s %-9s %10s %8s %s\n", "----", "----", "-----", "----", "----", "-------")
	for _, e := range entries {
		var state string
		switch e.State {
		case string(upload.StateFinished):
			state = c.green(fmt.Sprintf("%-9s", e.State))
		case string(upload.StateFailed):
			state = c.red(fmt.Sprintf("%-9s", e.State))
		default:
			state = c.gray(fmt.Sprintf("%-9s", e.State))
		}
		fmt.Fprintf(c.Out, "  %-16s %-28s %s %10s %8s %s\n",
			e.StartedAt.Local().Format("2006-01-02 15:04"),
			truncate(e.Game, 28),
			state,
			formatSize(e.BytesTransferred),
			(time.Duration(e.ElapsedMS) * time.Millisecond).Round(time.Second),
			e.Backend)
		if e.Error != "" {
			fmt.Fprintf(c.Out, "    %s\n", c.gray(e.Error))
		}
	}
}

func mask(s string) string {
	if s == "" {
		return "(none)"
	}
	return strings.Repeat("*", len(s))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

// formatSize formats bytes into human-readable size
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
