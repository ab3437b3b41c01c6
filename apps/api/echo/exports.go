package echoapi

import (
	"context"
	"mime"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/quizmaster/backend/storage/artifacts"
)

type exportAPI struct {
	deps *Deps
}

type attemptsExportRequest struct {
	UserID int `param:"id" json:"user_id" validate:"required,min=1"`
}

func registerExportAPI(g *echo.Group, deps *Deps) {
	api := exportAPI{deps: deps}

	eg := g.Group("/exports")
	eg.POST("/users", api.exportUsers)
	eg.POST("/quizzes", api.exportQuizzes)
	eg.POST("/users/:id/attempts", api.exportUserAttempts)
	eg.GET("/:filename", api.download)
}

func (api *exportAPI) exportUsers(ctx echo.Context) error {
	return submit(ctx, api.deps.Runner, KindUsersExport, func(ctx context.Context) (interface{}, error) {
		return api.deps.Exports.ExportUsers(ctx)
	})
}

func (api *exportAPI) exportQuizzes(ctx echo.Context) error {
	return submit(ctx, api.deps.Runner, KindQuizzesExport, func(ctx context.Context) (interface{}, error) {
		return api.deps.Exports.ExportQuizzes(ctx)
	})
}

func (api *exportAPI) exportUserAttempts(ctx echo.Context) error {
	data := new(attemptsExportRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := ctx.Validate(data); err != nil {
		return err
	}
	userID := data.UserID
	return submit(ctx, api.deps.Runner, KindAttemptsExport, func(ctx context.Context) (interface{}, error) {
		return api.deps.Exports.ExportUserAttempts(ctx, userID)
	})
}

func (api *exportAPI) download(ctx echo.Context) error {
	filename := ctx.Param("filename")
	if err := artifacts.CheckFilename(filename); err != nil {
		return err
	}
	rc, err := api.deps.Artifacts.Open(ctx.Request().Context(), filename)
	if err != nil {
		if errors.Cause(err) == artifacts.ErrNotFound {
			return errHttpNotFound
		}
		return err
	}
	defer func() { _ = rc.Close() }()

	ctx.Response().Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	return ctx.Stream(http.StatusOK, "text/csv; charset=utf-8", rc)
}
