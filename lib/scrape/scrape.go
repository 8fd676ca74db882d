// Package scrape provides the generic page-level vocabulary that stateful
// scraping sessions are built from: bounded waits, safe lookups, input
// filling and validated navigation. It knows nothing about any particular
// site.
package scrape

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

const (
	DefaultAwaitTimeout    = 5 * time.Second
	DefaultNavigateTimeout = 10 * time.Second
)

// Session wraps a single page borrowed from the browser pool.
type Session struct {
	Page *rod.Page
}

// AwaitElement waits up to timeout for selector to appear. It never returns
// an error: a missing element is an expected outcome, not a failure.
func (s Session) AwaitElement(ctx context.Context, selector string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultAwaitTimeout
	}
	page := s.Page.Context(ctx).Timeout(timeout)
	defer page.CancelTimeout()

	_, err := page.Element(selector)
	return err == nil
}

type GetOptions struct {
	// Parent scopes the lookup to a subtree instead of the whole document.
	Parent *rod.Element
	// Safe degrades a missing element to (nil, nil) instead of an error.
	Safe bool
}

// GetOne resolves at most one element matching selector without waiting for
// it to appear.
func (s Session) GetOne(ctx context.Context, selector string, opts GetOptions) (*rod.Element, error) {
	var (
		has bool
		el  *rod.Element
		err error
	)
	if opts.Parent != nil {
		has, el, err = opts.Parent.Has(selector)
	} else {
		has, el, err = s.Page.Context(ctx).Has(selector)
	}
	if err != nil {
		return nil, err
	}
	if !has {
		if opts.Safe {
			return nil, nil
		}
		return nil, fmt.Errorf("no element matches selector %q", selector)
	}
	return el, nil
}

type GetAllOptions struct {
	// Limit caps the number of returned elements, zero means no cap.
	Limit int
	// Timeout bounds the wait for the selector to appear at all.
	Timeout time.Duration
}

// GetAll waits for selector to appear at least once and resolves every
// match. It fails if the selector never appears.
func (s Session) GetAll(ctx context.Context, selector string, opts GetAllOptions) ([]*rod.Element, error) {
	if !s.AwaitElement(ctx, selector, opts.Timeout) {
		return nil, fmt.Errorf("selector %q never appeared", selector)
	}

	elements, err := s.Page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	out := make([]*rod.Element, 0, len(elements))
	for _, el := range elements {
		out = append(out, el)
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// FillInput writes value into the form field at selector and blocks until
// the document reflects the written value. Some rendering layers re-render
// inputs asynchronously, so setting the value alone is not enough.
func (s Session) FillInput(ctx context.Context, selector, value string) error {
	page := s.Page.Context(ctx)

	el, err := page.Timeout(DefaultAwaitTimeout).Element(selector)
	if err != nil {
		return fmt.Errorf("input %q never appeared: %w", selector, err)
	}

	_, err = el.Eval(`(value) => {
		this.value = value
		this.dispatchEvent(new Event("input", { bubbles: true }))
		this.dispatchEvent(new Event("change", { bubbles: true }))
	}`, value)
	if err != nil {
		return err
	}

	wait := page.Timeout(DefaultAwaitTimeout)
	defer wait.CancelTimeout()
	return wait.Wait(rod.Eval(`(selector, expected) => {
		const input = document.querySelector(selector)
		return input !== null && input.value === expected
	}`, selector, value))
}

type NavigateOptions struct {
	// Exactly one of URL or Click must be set.
	URL   string
	Click string

	Timeout time.Duration
	// Validate asserts on the post-navigation location; returning false
	// turns the call into a navigation failure.
	Validate func(location string) bool
	// Safe reports navigation failure as (false, nil) instead of an error.
	Safe bool
}

// Navigate performs a navigation by URL or by clicking a trigger element,
// waits for the navigation to settle and optionally validates the resulting
// location.
func (s Session) Navigate(ctx context.Context, opts NavigateOptions) (bool, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultNavigateTimeout
	}

	ok, err := s.navigate(ctx, opts, timeout)
	if err != nil && opts.Safe {
		return false, nil
	}
	return ok, err
}

func (s Session) navigate(ctx context.Context, opts NavigateOptions, timeout time.Duration) (bool, error) {
	page := s.Page.Context(ctx).Timeout(timeout)
	defer page.CancelTimeout()

	switch {
	case opts.URL != "":
		if err := page.Navigate(opts.URL); err != nil {
			return false, fmt.Errorf("navigate to %q: %w", opts.URL, err)
		}
		if err := page.WaitLoad(); err != nil {
			return false, fmt.Errorf("navigation to %q did not settle: %w", opts.URL, err)
		}
	case opts.Click != "":
		el, err := page.Element(opts.Click)
		if err != nil {
			return false, fmt.Errorf("navigation trigger %q never appeared: %w", opts.Click, err)
		}
		wait := page.WaitNavigation(proto.PageLifecycleEventNameNetworkAlmostIdle)
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return false, fmt.Errorf("click %q: %w", opts.Click, err)
		}
		wait()
		if err := page.GetContext().Err(); err != nil {
			return false, fmt.Errorf("navigation via %q timed out: %w", opts.Click, err)
		}
	default:
		return false, fmt.Errorf("navigate needs either a url or a click selector")
	}

	if opts.Validate != nil {
		info, err := s.Page.Info()
		if err != nil {
			return false, err
		}
		if !opts.Validate(info.URL) {
			return false, fmt.Errorf("navigation ended on unexpected location %q", info.URL)
		}
	}
	return true, nil
}
