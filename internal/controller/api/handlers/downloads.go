package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/FoxRefire/SpiceDL/internal/core/download"
	"github.com/FoxRefire/SpiceDL/internal/core/job"
)

type DownloadsHandler struct {
	orch *download.Orchestrator
}

func NewDownloadsHandler(orch *download.Orchestrator) *DownloadsHandler {
	return &DownloadsHandler{orch: orch}
}

// --- Input types ---

type AddDownloadInput struct {
	Body struct {
		URL string `json:"url" minLength:"1" doc:"Spotify track, album, playlist or artist URL"`
	}
}

type DownloadIDInput struct {
	ID string `path:"id" doc:"Download ID"`
}

// --- DTO types ---

type AddDownloadDTO struct {
	DownloadID string `json:"download_id" doc:"Download ID"`
	Message    string `json:"message" doc:"Submission status"`
}

type DownloadDTO struct {
	ID              string   `json:"id" doc:"Download ID"`
	URL             string   `json:"url" doc:"Source URL"`
	Status          string   `json:"status" doc:"Job status"`
	Progress        int      `json:"progress" doc:"Progress 0-100"`
	CompletedTracks int      `json:"completed_tracks" doc:"Tracks finished so far"`
	TotalTracks     int      `json:"total_tracks" doc:"Total tracks (0 until reported)"`
	Message         string   `json:"message" doc:"Latest status line"`
	Error           string   `json:"error,omitempty" doc:"Accumulated error output"`
	StartedAt       string   `json:"started_at" doc:"Submission time"`
	CompletedAt     *string  `json:"completed_at,omitempty" doc:"Terminal transition time"`
	Files           []string `json:"downloaded_files,omitempty" doc:"Files produced (completed only)"`
}

type DownloadListDTO struct {
	Downloads []DownloadDTO `json:"downloads" doc:"All known downloads"`
	Total     int           `json:"total" doc:"Number of downloads"`
}

func toDownloadDTO(rec job.Record) DownloadDTO {
	dto := DownloadDTO{
		ID:              rec.ID,
		URL:             rec.URL,
		Status:          string(rec.State),
		Progress:        rec.Progress,
		CompletedTracks: rec.CompletedUnits,
		TotalTracks:     rec.TotalUnits,
		Message:         rec.Message,
		Error:           rec.ErrorText,
		StartedAt:       rec.StartedAt.Format(time.RFC3339),
		Files:           rec.OutputFiles,
	}
	if rec.CompletedAt != nil {
		t := rec.CompletedAt.Format(time.RFC3339)
		dto.CompletedAt = &t
	}
	return dto
}

// --- Handlers ---

func (h *DownloadsHandler) Add(ctx context.Context, input *AddDownloadInput) (*DataOutput[AddDownloadDTO], error) {
	id, err := h.orch.Submit(input.Body.URL)
	if err != nil {
		if errors.Is(err, download.ErrInvalidURL) {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return nil, huma.Error500InternalServerError(err.Error())
	}
	return OK(AddDownloadDTO{DownloadID: id, Message: "Download started"}), nil
}

func (h *DownloadsHandler) List(ctx context.Context, _ *struct{}) (*DataOutput[DownloadListDTO], error) {
	recs := h.orch.StatusAll()
	dtos := make([]DownloadDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = toDownloadDTO(rec)
	}
	return OK(DownloadListDTO{Downloads: dtos, Total: len(dtos)}), nil
}

func (h *DownloadsHandler) Get(ctx context.Context, input *DownloadIDInput) (*DataOutput[DownloadDTO], error) {
	rec, ok := h.orch.Status(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("download not found")
	}
	return OK(toDownloadDTO(rec)), nil
}

func (h *DownloadsHandler) Cancel(ctx context.Context, input *DownloadIDInput) (*MsgOutput, error) {
	if !h.orch.Cancel(input.ID) {
		return nil, huma.Error404NotFound("download not found or cannot be cancelled")
	}
	return Msg("Download cancelled"), nil
}
