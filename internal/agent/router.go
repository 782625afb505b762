package agent

import (
	"context"

	"github.com/rahul/saarthi/internal/observability"
	"github.com/tmc/langchaingo/llms"
)

// Route categories.
const (
	RouteBilling   = "billing"
	RouteTechnical = "technical"
	RouteGeneral   = "general"
)

// Router classifies the query before planning. The route is advisory
// metadata only; classification failures fail open to "general" and
// never block the pipeline.
type Router struct {
	Model   llms.Model
	Prompts *PromptManager
	Logger  *observability.Logger
}

func NewRouter(model llms.Model, prompts *PromptManager, logger *observability.Logger) *Router {
	return &Router{Model: model, Prompts: prompts, Logger: logger}
}

type routeOutput struct {
	Destination string `json:"destination"`
}

func (r *Router) Route(ctx context.Context, userQuery, requestID string) string {
	out, err := generateJSON[routeOutput](ctx, r.Model, "router", r.Prompts.Get("router"), userQuery)
	if err != nil {
		r.Logger.LogError(requestID, "routing", err)
		return RouteGeneral
	}
	switch out.Destination {
	case RouteBilling, RouteTechnical, RouteGeneral:
		return out.Destination
	default:
		return RouteGeneral
	}
}
