package browserpool

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// Engine is one live browser instance. Exactly one task holds it at a time;
// nothing outside the pool may keep a reference across task boundaries.
type Engine interface {
	// Page opens a fresh page on the engine.
	Page(ctx context.Context) (*rod.Page, error)
	Close() error
}

type chromiumEngine struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
}

func launchChromium(ctx context.Context) (Engine, error) {
	l := launcher.New().Headless(true).Set(flags.NoSandbox)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connect to chromium: %w", err)
	}

	return &chromiumEngine{browser: browser, launcher: l}, nil
}

func (e *chromiumEngine) Page(ctx context.Context) (*rod.Page, error) {
	page, err := e.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		// failing to even open a page means the browser itself is broken
		return nil, EngineFault{Err: err}
	}
	return page.Context(ctx), nil
}

func (e *chromiumEngine) Close() error {
	err := e.browser.Close()
	e.launcher.Cleanup()
	return err
}

// protocol-level failure signatures that indicate the browser process is
// gone or wedged, as opposed to a selector simply not matching.
var faultSignatures = []string{
	"websocket: close",
	"use of closed network connection",
	"cdp connection closed",
	"browser has been closed",
}

// ClassifyPageError wraps infrastructure-level page errors in EngineFault so
// the pool relaunches, and leaves ordinary task errors untouched.
func ClassifyPageError(err error) error {
	if err == nil {
		return nil
	}
	if IsEngineFault(err) {
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range faultSignatures {
		if strings.Contains(msg, sig) {
			return EngineFault{Err: err}
		}
	}
	return err
}
