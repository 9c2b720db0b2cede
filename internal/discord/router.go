package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/service"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// Trigger is a platform-neutral view of a command or button press.
type Trigger struct {
	Actor     domain.Actor
	ChannelID string
	Options   map[string]string
}

// Option returns a string option, or nil when absent or blank.
func (t Trigger) Option(name string) *string {
	v, ok := t.Options[name]
	if !ok || v == "" {
		return nil
	}
	return &v
}

// HandlerFunc serves one trigger.
type HandlerFunc func(ctx context.Context, t Trigger) (*service.Result, error)

// Route binds a handler to an action key. Deferred routes are acknowledged
// before the handler runs.
type Route struct {
	Handler   HandlerFunc
	Defer     bool
	Ephemeral bool
}

// Reply is the rendered outcome of a trigger.
type Reply struct {
	Notice    platform.Notice
	Ephemeral bool
}

// Router maps stable action keys (command paths and button ids) to handlers.
type Router struct {
	mu      sync.RWMutex
	routes  map[string]Route
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewRouter creates an empty dispatch table.
func NewRouter(logger *zap.Logger, metrics *observability.Metrics) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		routes:  make(map[string]Route),
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Handle registers route under key, replacing any previous binding.
func (r *Router) Handle(key string, route Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[key] = route
}

// Lookup returns the route bound to key.
func (r *Router) Lookup(key string) (Route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	route, ok := r.routes[key]
	return route, ok
}

// Keys lists the registered action keys.
func (r *Router) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.routes))
	for k := range r.routes {
		keys = append(keys, k)
	}
	return keys
}

// Resolve runs the handler bound to key and renders its outcome. Errors and
// panics become error replies; they never escape.
func (r *Router) Resolve(ctx context.Context, key string, t Trigger) (reply Reply) {
	started := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("trigger handler panicked", zap.String("action", key), zap.Any("panic", rec), zap.Stack("stack"))
			r.metrics.RecordError(key, apperrors.CodeInternal)
			reply = r.errorReply(apperrors.NewInternalError(fmt.Errorf("panic: %v", rec)))
		}
		r.metrics.RecordTrigger(key, time.Since(started))
	}()

	route, ok := r.Lookup(key)
	if !ok {
		r.logger.Warn("no handler for action", zap.String("action", key))
		return r.errorReply(apperrors.NewNotFound("This action is no longer available.", nil))
	}

	res, err := route.Handler(ctx, t)
	if err != nil {
		domainErr := apperrors.ToDomainError(err)
		r.metrics.RecordError(key, domainErr.Code)
		fields := []zap.Field{
			zap.String("action", key),
			zap.String("code", domainErr.Code),
			zap.String("user_id", t.Actor.UserID),
			zap.String("channel_id", t.ChannelID),
			zap.Error(err),
		}
		if domainErr.Code == apperrors.CodeInternal {
			r.logger.Error("trigger failed", fields...)
		} else {
			r.logger.Info("trigger rejected", fields...)
		}
		return r.errorReply(err)
	}
	if res == nil {
		return Reply{Notice: platform.Notice{Content: "Done."}, Ephemeral: true}
	}
	return Reply{Notice: res.Reply, Ephemeral: res.Ephemeral}
}

func (r *Router) errorReply(err error) Reply {
	return Reply{
		Notice:    service.ErrorNotice(r.now(), apperrors.ToDomainError(err).Message),
		Ephemeral: true,
	}
}
