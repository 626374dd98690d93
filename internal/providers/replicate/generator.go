package replicate

import (
	"context"
	"fmt"

	"easel/internal/config"
	"easel/internal/providers"
	"easel/internal/services"
)

// Model binds a client to a single variation so it satisfies
// providers.Generator.
type Model struct {
	client    *Client
	variation string
}

// NewModel wraps the client for one catalog variation.
func NewModel(client *Client, variation string) (*Model, error) {
	if !Supports(variation) {
		return nil, services.Wrap(services.ErrConfiguration, stageGenerating, "new model", fmt.Sprintf("variation %q is not in the replicate catalog", variation), nil)
	}
	return &Model{client: client, variation: variation}, nil
}

func (m *Model) Generate(ctx context.Context, req providers.Request) (*providers.Result, error) {
	return m.client.Generate(ctx, m.variation, req)
}

// NewRegistry builds a generator registry covering every configured
// variation, all backed by one shared client.
func NewRegistry(cfg config.Replicate, variations []string, opts ...Option) (providers.Registry, *Client, error) {
	client, err := NewClient(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	registry := providers.Registry{}
	for _, variation := range variations {
		model, err := NewModel(client, variation)
		if err != nil {
			return nil, nil, err
		}
		registry[variation] = model
	}
	return registry, client, nil
}
