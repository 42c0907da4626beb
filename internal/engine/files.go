// internal/engine/files.go
package engine

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mjbeckett/stepflow/api/schemas"
)

// mimeByExt covers the image formats the paste handler accepts; anything
// else falls back to a generic octet stream.
var mimeByExt = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".svg":  "image/svg+xml",
}

func mimeForPath(path string) string {
	if m, ok := mimeByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return m
	}
	return "application/octet-stream"
}

// resolveFilePath turns the step's file reference into an on-disk path.
// A "resource:<id>" token is looked up in the project's resource catalog;
// anything else is treated as a literal path. The file must exist.
func (e *Engine) resolveFilePath(rc *runContext, raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("file path is required")
	}
	path := raw
	if e.resources != nil {
		resolved, err := e.resources.ResolveResource(raw, rc.projectID)
		if err != nil {
			return "", err
		}
		if resolved != "" {
			path = resolved
		}
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("file not found: %s", path)
	}
	return path, nil
}

// doUploadFile attaches a local file to a form. Direct assignment is used
// when the target resolves to an <input type=file>; otherwise the click is
// expected to open a native chooser which the driver intercepts.
func (e *Engine) doUploadFile(rc *runContext, step schemas.Step, stepTarget, stepValue string, timeout time.Duration, logs *stepLogs) (string, error) {
	raw := step.FilePath
	if raw == "" {
		raw = stepValue
	}
	path, err := e.resolveFilePath(rc, raw)
	if err != nil {
		return "", err
	}

	selectors := ResolveSelectors(stepTarget, rc.uiMap, rc.uiMapsByName)
	if len(selectors) == 0 {
		return "", fmt.Errorf("upload_file action requires 'target' parameter")
	}

	used, err := performWithSelectors(rc.ctx, step.Action, selectors, timeout,
		func(ctx context.Context, sel string, to time.Duration) error {
			direct, err := rc.session.IsFileInput(ctx, sel, to)
			if err != nil {
				return err
			}
			if direct {
				logs.logf("Setting file input %q directly", sel)
				return rc.session.SetInputFiles(ctx, sel, path, to)
			}
			logs.logf("Uploading %q via file chooser on %q", filepath.Base(path), sel)
			return rc.session.UploadViaChooser(ctx, sel, path, to)
		})
	if err != nil {
		return "", err
	}
	logs.logf("Uploaded %s via %s", filepath.Base(path), used)
	return "upload:" + filepath.Base(path), nil
}

// doPasteImage simulates pasting an image from the clipboard by dispatching
// a synthetic paste event carrying the file bytes at the active element.
func (e *Engine) doPasteImage(rc *runContext, step schemas.Step, stepValue string, logs *stepLogs) (string, error) {
	raw := step.FilePath
	if raw == "" {
		raw = stepValue
	}
	path, err := e.resolveFilePath(rc, raw)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	mime := mimeForPath(path)
	name := filepath.Base(path)

	logs.logf("Pasting image %s (%s, %d bytes)", name, mime, len(data))

	script := fmt.Sprintf(`(() => {
		const bin = atob(%q);
		const bytes = new Uint8Array(bin.length);
		for (let i = 0; i < bin.length; i++) bytes[i] = bin.charCodeAt(i);
		const file = new File([bytes], %q, { type: %q });
		const dt = new DataTransfer();
		dt.items.add(file);
		const target = document.activeElement || document.body;
		target.dispatchEvent(new ClipboardEvent('paste', {
			clipboardData: dt, bubbles: true, cancelable: true,
		}));
	})()`, encoded, name, mime)

	if err := rc.session.Evaluate(rc.ctx, script); err != nil {
		return "", fmt.Errorf("dispatch paste event: %w", err)
	}
	return "paste:" + name, nil
}
