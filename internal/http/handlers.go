package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentd/internal/assets"
	"github.com/fyrsmithlabs/agentd/internal/experience"
	"github.com/fyrsmithlabs/agentd/internal/orchestrator"
	"github.com/fyrsmithlabs/agentd/internal/vault"
	"github.com/fyrsmithlabs/agentd/pkg/providers"
)

// TaskResponse is the response body for POST /api/v1/tasks. On structural
// failures the persisted failure experience is returned alongside the
// error, matching the orchestrator's persist-then-resignal contract.
type TaskResponse struct {
	Experience *experience.Experience `json:"experience,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

func (s *Server) handleExecuteTask(c echo.Context) error {
	var req orchestrator.TaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	exp, err := s.runner.Execute(c.Request().Context(), req)
	if err == nil {
		return c.JSON(http.StatusOK, TaskResponse{Experience: exp})
	}

	resp := TaskResponse{Experience: exp, Error: err.Error()}
	switch {
	case errors.Is(err, experience.ErrEmptyTask), errors.Is(err, experience.ErrInvalidMode):
		return c.JSON(http.StatusBadRequest, resp)
	case errors.Is(err, vault.ErrMissingCredential):
		return c.JSON(http.StatusPreconditionFailed, resp)
	default:
		var remote *providers.RemoteCallError
		if errors.As(err, &remote) {
			return c.JSON(http.StatusBadGateway, resp)
		}
		s.logger.Error("task execution failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, resp)
	}
}

func (s *Server) handleListExperiences(c echo.Context) error {
	ctx := c.Request().Context()

	if model := c.QueryParam("model"); model != "" {
		return c.JSON(http.StatusOK, emptyAsList(s.store.FilterByModel(ctx, model)))
	}
	if mode := c.QueryParam("mode"); mode != "" {
		m := experience.Mode(mode)
		if !m.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "mode must be 'offline' or 'cloud'")
		}
		return c.JSON(http.StatusOK, emptyAsList(s.store.FilterByMode(ctx, m)))
	}
	return c.JSON(http.StatusOK, emptyAsList(s.store.GetAll(ctx)))
}

func (s *Server) handleSearchExperiences(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q parameter is required")
	}
	return c.JSON(http.StatusOK, emptyAsList(s.store.Search(c.Request().Context(), query)))
}

// StatsResponse is the response body for GET /api/v1/experiences/stats.
type StatsResponse struct {
	Stats      experience.Stats `json:"stats"`
	Successful int              `json:"successful"`
	Failed     int              `json:"failed"`
	// SuccessRate is a percentage, 0 when the store is empty.
	SuccessRate float64 `json:"success_rate"`
}

func (s *Server) handleExperienceStats(c echo.Context) error {
	ctx := c.Request().Context()
	successful, failed, rate := s.store.SuccessRate(ctx)
	return c.JSON(http.StatusOK, StatsResponse{
		Stats:       s.store.Stats(ctx),
		Successful:  successful,
		Failed:      failed,
		SuccessRate: rate,
	})
}

func (s *Server) handleExportExperiences(c echo.Context) error {
	data, err := s.store.Export(c.Request().Context())
	if err != nil {
		s.logger.Error("experience export failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "export failed")
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, []byte(data))
}

func (s *Server) handleGetExperience(c echo.Context) error {
	exp, err := s.store.GetByID(c.Request().Context(), c.Param("id"))
	if errors.Is(err, experience.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "experience not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "lookup failed")
	}
	return c.JSON(http.StatusOK, exp)
}

func (s *Server) handleDeleteExperience(c echo.Context) error {
	if err := s.store.Delete(c.Request().Context(), c.Param("id")); err != nil {
		s.logger.Error("experience delete failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "delete failed")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleClearExperiences(c echo.Context) error {
	if err := s.store.ClearAll(c.Request().Context()); err != nil {
		s.logger.Error("experience clear failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "clear failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// CredentialsResponse is the response body for GET /api/v1/credentials. It
// lists provider names only; secrets never leave the vault.
type CredentialsResponse struct {
	Providers []string `json:"providers"`
}

func (s *Server) handleListCredentials(c echo.Context) error {
	names := s.vault.Providers()
	if names == nil {
		names = []string{}
	}
	return c.JSON(http.StatusOK, CredentialsResponse{Providers: names})
}

// CredentialRequest is the request body for credential store and verify
// calls.
type CredentialRequest struct {
	Secret string `json:"secret"`
}

func (s *Server) handleStoreCredential(c echo.Context) error {
	var req CredentialRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Secret == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "secret field is required")
	}
	if err := s.vault.Store(c.Param("provider"), req.Secret); err != nil {
		s.logger.Error("credential store failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "credential store failed")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDeleteCredential(c echo.Context) error {
	if err := s.vault.Delete(c.Param("provider")); err != nil {
		s.logger.Error("credential delete failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "credential delete failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// VerifyResponse is the response body for credential verification.
type VerifyResponse struct {
	Provider string `json:"provider"`
	Valid    bool   `json:"valid"`
}

func (s *Server) handleVerifyCredential(c echo.Context) error {
	var req CredentialRequest
	if err := c.Bind(&req); err != nil && c.Request().ContentLength > 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	provider := c.Param("provider")
	valid, err := s.vault.Verify(c.Request().Context(), provider, req.Secret)
	if errors.Is(err, vault.ErrMissingCredential) {
		return echo.NewHTTPError(http.StatusNotFound, "no credential stored for provider")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, VerifyResponse{Provider: provider, Valid: valid})
}

// DownloadRequest is the request body for POST /api/v1/models.
type DownloadRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

func (s *Server) handleListModels(c echo.Context) error {
	if s.assets == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "asset manager not configured")
	}
	records := s.assets.ListAll(c.Request().Context())
	if records == nil {
		records = []assets.AssetRecord{}
	}
	return c.JSON(http.StatusOK, records)
}

func (s *Server) handleDownloadModel(c echo.Context) error {
	if s.assets == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "asset manager not configured")
	}

	var req DownloadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.URL == "" || req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url and name fields are required")
	}

	rec, err := s.assets.Download(c.Request().Context(), req.URL, req.Name, func(u assets.ProgressUpdate) {
		s.logger.Debug("model download progress",
			zap.String("name", req.Name),
			zap.Int64("downloaded_bytes", u.DownloadedBytes),
			zap.Int64("total_bytes", u.TotalBytes),
			zap.Float64("percentage", u.Percentage))
	})
	if err != nil {
		var dlErr *assets.DownloadError
		if errors.As(err, &dlErr) {
			return echo.NewHTTPError(http.StatusBadGateway, dlErr.Error())
		}
		s.logger.Error("model download failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "download failed")
	}
	return c.JSON(http.StatusCreated, rec)
}

func (s *Server) handleActivateModel(c echo.Context) error {
	if s.assets == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "asset manager not configured")
	}
	err := s.assets.SetActive(c.Request().Context(), c.Param("id"))
	if errors.Is(err, assets.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "asset not found")
	}
	if err != nil {
		s.logger.Error("model activation failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "activation failed")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDeleteModel(c echo.Context) error {
	if s.assets == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "asset manager not configured")
	}
	if err := s.assets.Delete(c.Request().Context(), c.Param("id")); err != nil {
		s.logger.Error("model delete failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "delete failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// emptyAsList keeps list responses as [] instead of null.
func emptyAsList(in []experience.Experience) []experience.Experience {
	if in == nil {
		return []experience.Experience{}
	}
	return in
}
