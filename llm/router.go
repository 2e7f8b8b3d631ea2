package llm

import (
	"context"
	"errors"
	"fmt"
)

// RoutePolicy decides which client/model to use for a given request
type RoutePolicy interface {
	// Select returns the target client and an optional model override
	Select(req *ChatRequest) (Client, string, error)
}

// ProviderPolicy routes a request to the client of the provider that serves
// req.Model. Requests without a model, or for an unknown model, use Default.
type ProviderPolicy struct {
	Default    Client
	ByProvider map[Provider]Client
}

func (p ProviderPolicy) Select(req *ChatRequest) (Client, string, error) {
	if req != nil && req.Model != "" {
		if prov, ok := ProviderForModel(req.Model); ok {
			if c, ok := p.ByProvider[prov]; ok && c != nil {
				return c, req.Model, nil
			}
			if p.Default != nil && p.Default.Provider() != prov {
				return nil, "", fmt.Errorf("no client configured for provider %s (model %s)", prov, req.Model)
			}
		}
	}
	if p.Default == nil {
		return nil, "", errors.New("no default client configured")
	}
	if req != nil {
		return p.Default, req.Model, nil
	}
	return p.Default, "", nil
}

// RouterClient implements Client and delegates to inner clients via RoutePolicy
type RouterClient struct {
	policy RoutePolicy
}

func NewRouterClient(policy RoutePolicy) *RouterClient { return &RouterClient{policy: policy} }

func (r *RouterClient) Chat(ctx context.Context, req *ChatRequest) (*Response, error) {
	c, req, err := r.route(req)
	if err != nil {
		return nil, err
	}
	return c.Chat(ctx, req)
}

func (r *RouterClient) Completion(ctx context.Context, prompt string) (*Response, error) {
	c, _, err := r.policy.Select(&ChatRequest{})
	if err != nil {
		return nil, err
	}
	return c.Completion(ctx, prompt)
}

func (r *RouterClient) Stream(ctx context.Context, req *ChatRequest, output chan<- *Response) error {
	c, req, err := r.route(req)
	if err != nil {
		close(output)
		return err
	}
	return c.Stream(ctx, req, output)
}

func (r *RouterClient) route(req *ChatRequest) (Client, *ChatRequest, error) {
	c, model, err := r.policy.Select(req)
	if err != nil {
		return nil, nil, err
	}
	if model != "" && (req == nil || req.Model != model) {
		cp := ChatRequest{}
		if req != nil {
			cp = *req
		}
		cp.Model = model
		req = &cp
	}
	return c, req, nil
}

// Model reports the default client's model.
func (r *RouterClient) Model() string {
	if c, _, err := r.policy.Select(&ChatRequest{}); err == nil {
		return c.Model()
	}
	return "router"
}

func (r *RouterClient) Provider() Provider {
	if c, _, err := r.policy.Select(&ChatRequest{}); err == nil {
		return c.Provider()
	}
	return Provider("router")
}

func (r *RouterClient) Validate() error {
	if r.policy == nil {
		return errors.New("nil route policy")
	}
	return nil
}
