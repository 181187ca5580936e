package handlers

import (
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/FoxRefire/SpiceDL/internal/config"
	"github.com/FoxRefire/SpiceDL/internal/core/download"
)

type SettingsHandler struct {
	store *config.Store
	orch  *download.Orchestrator
}

func NewSettingsHandler(store *config.Store, orch *download.Orchestrator) *SettingsHandler {
	return &SettingsHandler{store: store, orch: orch}
}

type SettingKeyInput struct {
	Key string `path:"key" doc:"Setting key, e.g. downloads.folder"`
}

type UpdateSettingInput struct {
	Key  string `path:"key" doc:"Setting key"`
	Body struct {
		Value any `json:"value" doc:"New value"`
	}
}

type SettingDTO struct {
	Key   string `json:"key" doc:"Setting key"`
	Value any    `json:"value" doc:"Setting value"`
}

func (h *SettingsHandler) List(ctx context.Context, _ *struct{}) (*DataOutput[map[string]any], error) {
	return OK(h.store.All()), nil
}

func (h *SettingsHandler) Get(ctx context.Context, input *SettingKeyInput) (*DataOutput[SettingDTO], error) {
	val, ok := h.store.Get(input.Key)
	if !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("setting %q not found", input.Key))
	}
	return OK(SettingDTO{Key: input.Key, Value: val}), nil
}

func (h *SettingsHandler) Update(ctx context.Context, input *UpdateSettingInput) (*DataOutput[SettingDTO], error) {
	if err := h.store.Set(input.Key, input.Body.Value); err != nil {
		return nil, huma.Error500InternalServerError(err.Error())
	}

	// A folder change applies to subsequent downloads without a restart.
	if input.Key == config.KeyDownloadFolder {
		if dir, ok := input.Body.Value.(string); ok && dir != "" {
			h.orch.SetDownloadDir(dir)
		}
	}

	return OK(SettingDTO{Key: input.Key, Value: input.Body.Value}), nil
}
