// internal/browser/screencast.go
package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Recorder captures the tab's screencast as a sequence of JPEG frames under
// <artifactDir>/video/. Frames are numbered in arrival order; assembling
// them into a container format is left to post-processing.
type Recorder struct {
	sessionCtx context.Context
	dir        string
	logger     *zap.Logger

	listenCtx    context.Context
	cancelListen context.CancelFunc
	frameCount   atomic.Int64

	mu        sync.Mutex
	isStarted bool
}

// NewRecorder creates a recorder storing frames under artifactDir/video.
func NewRecorder(sessionCtx context.Context, artifactDir string, logger *zap.Logger) *Recorder {
	return &Recorder{
		sessionCtx: sessionCtx,
		dir:        filepath.Join(artifactDir, "video"),
		logger:     logger.Named("screencast"),
	}
}

// Dir returns the frame directory.
func (r *Recorder) Dir() string {
	return r.dir
}

// Start begins the screencast. Every frame must be acknowledged or the
// browser stops sending them.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isStarted {
		return nil
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create video directory: %w", err)
	}

	r.listenCtx, r.cancelListen = context.WithCancel(r.sessionCtx)
	chromedp.ListenTarget(r.listenCtx, func(ev interface{}) {
		if frame, ok := ev.(*page.EventScreencastFrame); ok {
			r.handleFrame(frame)
		}
	})

	err := chromedp.Run(ctx,
		page.StartScreencast().
			WithFormat(page.ScreencastFormatJpeg).
			WithQuality(70).
			WithEveryNthFrame(2),
	)
	if err != nil {
		r.cancelListen()
		return err
	}

	r.isStarted = true
	r.logger.Debug("Screencast recording started.", zap.String("dir", r.dir))
	return nil
}

func (r *Recorder) handleFrame(frame *page.EventScreencastFrame) {
	// Ack first so the browser keeps streaming even if the write is slow.
	ackCtx, cancel := context.WithTimeout(detach(r.sessionCtx), 5*time.Second)
	defer cancel()
	if err := chromedp.Run(ackCtx, page.ScreencastFrameAck(frame.SessionID)); err != nil {
		r.logger.Debug("Failed to ack screencast frame.", zap.Error(err))
	}

	data, err := base64.StdEncoding.DecodeString(string(frame.Data))
	if err != nil {
		r.logger.Warn("Failed to decode screencast frame.", zap.Error(err))
		return
	}

	n := r.frameCount.Add(1)
	path := filepath.Join(r.dir, fmt.Sprintf("frame-%06d.jpeg", n))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		r.logger.Warn("Failed to write screencast frame.", zap.Error(err))
	}
}

// Stop ends the screencast. Idempotent.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.isStarted {
		return nil
	}
	r.isStarted = false

	if r.cancelListen != nil {
		r.cancelListen()
		r.cancelListen = nil
	}

	stopCtx, cancel := combineContext(r.sessionCtx, ctx)
	defer cancel()
	stopCtx, cancelTimeout := context.WithTimeout(stopCtx, 5*time.Second)
	defer cancelTimeout()

	err := chromedp.Run(stopCtx, page.StopScreencast())
	r.logger.Debug("Screencast recording stopped.", zap.Int64("frames", r.frameCount.Load()))
	return err
}
