package settings

import (
	"context"
)

type Settings struct {
	ID            int    `json:"-"`
	ModelProvider string `json:"model_provider"`
	ModelName     string `json:"model_name"`
	EmbedModel    string `json:"embed_model"`
	GeminiAPIKey  string `json:"gemini_api_key"`
}

type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, s *Settings) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context) (*Settings, error) {
	return s.repo.Get(ctx)
}

func (s *Service) Update(ctx context.Context, set *Settings) error {
	return s.repo.Update(ctx, set)
}
