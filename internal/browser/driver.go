// internal/browser/driver.go

// Package browser implements the engine's Driver contract on chromedp. Each
// Launch spawns a dedicated Chrome process (via ExecAllocator) with a single
// tab, a network monitor attached to its CDP event stream, and optionally a
// screencast recorder.
package browser

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/mjbeckett/stepflow/internal/config"
	"github.com/mjbeckett/stepflow/internal/engine"
)

const defaultLaunchTimeout = 60 * time.Second

// channelBinaries maps a named release channel to candidate binaries on
// PATH, in preference order.
var channelBinaries = map[string][]string{
	"chrome":      {"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"},
	"chrome-beta": {"google-chrome-beta"},
	"chrome-dev":  {"google-chrome-unstable"},
	"chromium":    {"chromium", "chromium-browser"},
	"msedge":      {"microsoft-edge", "microsoft-edge-stable"},
}

// Driver launches chromedp-backed browser sessions.
type Driver struct {
	cfg    config.BrowserConfig
	logger *zap.Logger
}

var _ engine.Driver = (*Driver)(nil)

// NewDriver creates a driver. Per-launch options override the config where
// they overlap.
func NewDriver(cfg config.BrowserConfig, logger *zap.Logger) *Driver {
	return &Driver{cfg: cfg, logger: logger.Named("browser")}
}

// Launch starts a browser process, opens a tab, verifies it responds, and
// attaches the network monitor. The returned session owns the process; its
// Close tears everything down.
func (d *Driver) Launch(ctx context.Context, opts engine.LaunchOptions) (engine.Session, error) {
	allocOpts, err := d.buildAllocatorOptions(opts)
	if err != nil {
		return nil, err
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	launchTimeout := d.cfg.LaunchTimeout
	if launchTimeout <= 0 {
		launchTimeout = defaultLaunchTimeout
	}

	// Confirm the browser starts and responds before handing the session out.
	probeCtx, cancelProbe := combineContext(tabCtx, ctx)
	probeCtx, cancelDeadline := context.WithTimeout(probeCtx, launchTimeout)
	err = chromedp.Run(probeCtx, chromedp.Navigate("about:blank"))
	cancelDeadline()
	cancelProbe()
	if err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	s := &Session{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		logger:      d.logger,
	}

	s.monitor = NewMonitor(tabCtx, d.logger)
	if err := s.monitor.Start(tabCtx); err != nil {
		s.teardown()
		return nil, fmt.Errorf("failed to start network monitor: %w", err)
	}

	if opts.RecordVideo {
		s.recorder = NewRecorder(tabCtx, opts.ArtifactDir, d.logger)
		if err := s.recorder.Start(tabCtx); err != nil {
			// Recording is best-effort; the run proceeds without video.
			d.logger.Warn("Failed to start screencast recorder.", zap.Error(err))
			s.recorder = nil
		}
	}

	d.logger.Info("Browser session launched.",
		zap.Bool("headless", opts.Headless),
		zap.String("channel", opts.Channel))
	return s, nil
}

// buildAllocatorOptions assembles the browser process flags: chromedp's
// defaults, the enable-automation banner switched back off,
// container-stability flags, then the launch options layered on top.
func (d *Driver) buildAllocatorOptions(opts engine.LaunchOptions) ([]chromedp.ExecAllocatorOption, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)

	// Later flags win, so this overrides the default enable-automation.
	allocOpts = append(allocOpts,
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}

	channel := opts.Channel
	if channel == "" {
		channel = d.cfg.Channel
	}
	if channel != "" {
		execPath, err := resolveChannelBinary(channel)
		if err != nil {
			return nil, err
		}
		allocOpts = append(allocOpts, chromedp.ExecPath(execPath))
	}

	args := append(append([]string(nil), d.cfg.Args...), opts.Args...)
	for _, arg := range args {
		parts := strings.SplitN(arg, "=", 2)
		flagName := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			allocOpts = append(allocOpts, chromedp.Flag(flagName, parts[1]))
		} else {
			allocOpts = append(allocOpts, chromedp.Flag(flagName, true))
		}
	}

	return allocOpts, nil
}

// resolveChannelBinary finds the first binary on PATH for the channel.
func resolveChannelBinary(channel string) (string, error) {
	candidates, ok := channelBinaries[channel]
	if !ok {
		return "", fmt.Errorf("unknown browser channel %q", channel)
	}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no binary found on PATH for browser channel %q", channel)
}
