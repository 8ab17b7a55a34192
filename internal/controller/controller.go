// Package controller owns the fetch-and-present lifecycle of one mounted map
// view: loading/error/data state, per-fetch cancellation, the hard timeout and
// optional periodic refresh.
//
// State moves idle -> loading -> ready|errored and re-enters loading on every
// trigger (Start, Refresh, timer tick, change notification). Only the newest
// fetch may write state; older ones are cancelled and their results dropped.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joeblew999/propmap/internal/geo"
	"github.com/joeblew999/propmap/internal/service"
)

// DefaultTimeout bounds a single properties fetch.
const DefaultTimeout = 10 * time.Second

// Status is the controller's lifecycle state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusErrored Status = "errored"
)

// State is a snapshot of what a map view should show. Snapshots share their
// Properties slice with the controller and must be treated as read-only.
type State struct {
	Status     Status                    `json:"status"`
	Properties []service.MapPropertyData `json:"properties"`
	Bounds     *geo.MapBounds            `json:"bounds"`
	Loading    bool                      `json:"loading"`
	Error      *service.MapError         `json:"error"`
	IsEmpty    bool                      `json:"isEmpty"`
	UpdatedAt  time.Time                 `json:"updatedAt"`
}

// Fetcher is the slice of the map data service the controller uses.
type Fetcher interface {
	GetMapProperties(ctx context.Context) ([]service.MapPropertyData, error)
	CalculateBounds(props []service.MapPropertyData) *geo.MapBounds
}

// Options configures a Controller.
type Options struct {
	// Timeout cancels a fetch that has not finished; zero means DefaultTimeout.
	Timeout time.Duration
	// RefreshInterval re-fetches on this cadence while active; zero disables.
	RefreshInterval time.Duration
	// MaxProperties keeps only the first N properties; zero keeps all.
	MaxProperties int
	// RetainOnError keeps the last good properties and bounds when a fetch
	// fails instead of clearing them.
	RetainOnError bool
	// OnSuccess and OnError run once per fetch attempt that was not cancelled.
	OnSuccess func(props []service.MapPropertyData)
	OnError   func(err *service.MapError)
	// Changes, when set, triggers a refresh for every property change event.
	Changes *service.EventBus
	Logger  *slog.Logger
}

// Controller drives one map view.
type Controller struct {
	fetcher Fetcher
	opts    Options
	logger  *slog.Logger

	mu          sync.Mutex
	state       State
	active      bool
	generation  uint64
	cancelFetch context.CancelFunc
	parent      context.Context
	stopParent  context.CancelFunc
	wg          sync.WaitGroup

	subsMu sync.Mutex
	subs   map[chan State]struct{}
}

// New creates an idle controller.
func New(fetcher Fetcher, opts Options) *Controller {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		fetcher: fetcher,
		opts:    opts,
		logger:  logger.With("component", "map_controller"),
		state:   State{Status: StatusIdle, Properties: []service.MapPropertyData{}},
		subs:    make(map[chan State]struct{}),
	}
}

// Start activates the controller and immediately begins the first fetch.
// The controller stays active until Stop or until ctx is done.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return
	}
	c.active = true
	c.parent, c.stopParent = context.WithCancel(ctx)
	parent := c.parent
	c.mu.Unlock()

	if c.opts.RefreshInterval > 0 {
		c.wg.Add(1)
		go c.tick(parent, c.opts.RefreshInterval)
	}
	if c.opts.Changes != nil {
		ch := c.opts.Changes.Subscribe()
		c.wg.Add(1)
		go c.watchChanges(parent, ch)
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		<-parent.Done()
		c.deactivate()
	}()

	c.Refresh()
}

// Refresh starts a new fetch, cancelling any fetch still in flight. It is a
// no-op on an inactive controller.
func (c *Controller) Refresh() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	if c.cancelFetch != nil {
		c.cancelFetch()
	}
	c.generation++
	gen := c.generation
	ctx, cancel := context.WithTimeout(c.parent, c.opts.Timeout)
	c.cancelFetch = cancel

	c.state.Status = StatusLoading
	c.state.Loading = true
	c.state.Error = nil
	c.state.IsEmpty = false
	snapshot := c.state
	c.wg.Add(1)
	c.mu.Unlock()

	c.publish(snapshot)
	go c.run(ctx, cancel, gen)
}

// Stop deactivates the controller: the in-flight fetch is cancelled, timers
// are cleared and subscriptions are closed. Results arriving afterwards are
// discarded.
func (c *Controller) Stop() {
	c.mu.Lock()
	stop := c.stopParent
	c.mu.Unlock()
	if stop == nil {
		return
	}
	stop()
	c.deactivate()
	c.wg.Wait()
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Active reports whether the controller is started.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Subscribe returns a channel that receives the latest snapshot after every
// state change. Slow readers only see the newest snapshot. The channel is
// closed when the controller stops.
func (c *Controller) Subscribe() <-chan State {
	ch := make(chan State, 1)
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe stops delivery to ch and closes it.
func (c *Controller) Unsubscribe(ch <-chan State) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for sub := range c.subs {
		if sub == ch {
			delete(c.subs, sub)
			close(sub)
			return
		}
	}
}

func (c *Controller) deactivate() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
	c.stopParent = nil
	// A fetch cut short by deactivation never completes, so the view is not
	// loading anymore. Earlier data stays.
	if c.state.Loading {
		c.state.Loading = false
		c.state.Status = StatusIdle
	}
	c.mu.Unlock()

	c.subsMu.Lock()
	for ch := range c.subs {
		close(ch)
	}
	c.subs = make(map[chan State]struct{})
	c.subsMu.Unlock()
}

type fetchResult struct {
	props []service.MapPropertyData
	err   error
}

func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, gen uint64) {
	defer c.wg.Done()
	defer cancel()

	fetchID := uuid.NewString()
	started := time.Now()
	c.logger.Debug("fetching map properties", "fetch_id", fetchID, "generation", gen)

	// The fetch runs apart so a source that ignores ctx still cannot hold the
	// view past the timeout.
	done := make(chan fetchResult, 1)
	go func() {
		props, err := c.fetcher.GetMapProperties(ctx)
		done <- fetchResult{props: props, err: err}
	}()

	var res fetchResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = fetchResult{err: ctx.Err()}
	}

	if res.err != nil && errors.Is(ctx.Err(), context.Canceled) {
		c.logger.Debug("map fetch cancelled", "fetch_id", fetchID, "generation", gen)
		return
	}

	c.apply(gen, res, fetchID, time.Since(started))
}

func (c *Controller) apply(gen uint64, res fetchResult, fetchID string, elapsed time.Duration) {
	c.mu.Lock()
	if !c.active || gen != c.generation {
		c.mu.Unlock()
		c.logger.Debug("discarding superseded map fetch", "fetch_id", fetchID, "generation", gen)
		return
	}
	c.cancelFetch = nil

	var mapErr *service.MapError
	props := res.props
	if res.err != nil {
		mapErr = c.toMapError(res.err)
		c.state.Status = StatusErrored
		c.state.Error = mapErr
		if !c.opts.RetainOnError {
			c.state.Properties = []service.MapPropertyData{}
			c.state.Bounds = nil
		}
	} else {
		if props == nil {
			props = []service.MapPropertyData{}
		}
		if c.opts.MaxProperties > 0 && len(props) > c.opts.MaxProperties {
			props = props[:c.opts.MaxProperties]
		}
		c.state.Status = StatusReady
		c.state.Error = nil
		c.state.Properties = props
		c.state.Bounds = c.fetcher.CalculateBounds(props)
	}
	c.state.Loading = false
	c.state.IsEmpty = c.state.Error == nil && len(c.state.Properties) == 0
	c.state.UpdatedAt = time.Now()
	snapshot := c.state
	c.mu.Unlock()

	c.publish(snapshot)

	if mapErr != nil {
		c.logger.Warn("map fetch failed",
			"fetch_id", fetchID,
			"error_type", mapErr.Kind,
			"error", mapErr.Error(),
			"duration_ms", elapsed.Milliseconds(),
		)
		if c.opts.OnError != nil {
			c.opts.OnError(mapErr)
		}
		return
	}

	c.logger.Info("map properties loaded",
		"fetch_id", fetchID,
		"count", len(props),
		"duration_ms", elapsed.Milliseconds(),
	)
	if c.opts.OnSuccess != nil {
		c.opts.OnSuccess(props)
	}
}

func (c *Controller) toMapError(err error) *service.MapError {
	var me *service.MapError
	if errors.As(err, &me) {
		return me
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return service.NewMapError(service.NetworkError,
			fmt.Sprintf("properties request timed out after %s", c.opts.Timeout), err)
	}
	return service.NewMapError(service.NetworkError, "failed to load properties", err)
}

func (c *Controller) publish(s State) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for ch := range c.subs {
		select {
		case ch <- s:
		default:
			// replace the unread snapshot with the newer one
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

func (c *Controller) tick(ctx context.Context, interval time.Duration) {
	defer c.wg.Done()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Refresh()
		}
	}
}

func (c *Controller) watchChanges(ctx context.Context, ch chan service.ChangeEvent) {
	defer c.wg.Done()
	defer c.opts.Changes.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			c.logger.Debug("property changed, refreshing", "property_id", ev.PropertyID, "action", ev.Action)
			c.Refresh()
		}
	}
}
