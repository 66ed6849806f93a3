package admin

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/lepinkainen/subreddit-ingest/internal/schedule"
	"github.com/lepinkainen/subreddit-ingest/pkg/feed"
)

const (
	expiredLinkMessage = "The link you followed has expired."
	savedMessage       = "Settings saved."
	invalidCronMessage = "Please choose Hourly, Twice Daily or Daily."
)

type optionsForm struct {
	Nonce    string `form:"_wpnonce"`
	CronTime string `form:"cron_time" validate:"required,oneof=hourly twicedaily daily"`
}

type selectOption struct {
	Value    string
	Label    string
	Selected bool
}

type optionsPage struct {
	Title     string
	Action    string
	FieldName string
	Nonce     string
	Message   string
	Error     string
	NextRun   string
	Options   []selectOption
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFeed(feedType feed.FeedType) echo.HandlerFunc {
	return func(c echo.Context) error {
		var buf bytes.Buffer
		if err := s.deps.Feed.Write(c.Request().Context(), &buf, feedType); err != nil {
			slog.Error("Failed to render feed", "type", feedType, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "feed unavailable")
		}
		return c.Blob(http.StatusOK, feedType.ContentType(), buf.Bytes())
	}
}

func (s *Server) handleOptionsPage(c echo.Context) error {
	page := optionsPage{}
	if c.QueryParam("settings-updated") == "true" {
		page.Message = savedMessage
	}
	return s.renderOptions(c, http.StatusOK, page)
}

func (s *Server) handleOptionsUpdate(c echo.Context) error {
	ctx := c.Request().Context()

	var form optionsForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}

	ok, err := s.deps.Nonces.Verify(ctx, form.Nonce, NonceAction)
	if err != nil {
		return err
	}
	if !ok {
		slog.Warn("Rejected options update with invalid nonce", "ip", c.RealIP())
		return c.String(http.StatusForbidden, expiredLinkMessage)
	}

	if err := c.Validate(&form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			slog.Warn("Rejected options update", "cron_time", form.CronTime)
			return s.renderOptions(c, http.StatusBadRequest, optionsPage{Error: invalidCronMessage})
		}
		return err
	}

	if err := s.deps.Scheduler.SetRecurrence(ctx, form.CronTime); err != nil {
		if errors.Is(err, schedule.ErrInvalidRecurrence) {
			return s.renderOptions(c, http.StatusBadRequest, optionsPage{Error: invalidCronMessage})
		}
		return err
	}

	slog.Info("Cron time updated", "cron_time", form.CronTime)
	return c.Redirect(http.StatusSeeOther, "/options?settings-updated=true")
}

// renderOptions fills in the parts of the page that come from storage
func (s *Server) renderOptions(c echo.Context, status int, page optionsPage) error {
	ctx := c.Request().Context()

	nonce, err := s.deps.Nonces.Create(ctx, NonceAction)
	if err != nil {
		return err
	}
	stored, err := s.deps.Options.Get(ctx, schedule.RecurrenceOption, "")
	if err != nil {
		return err
	}
	next, err := s.deps.Scheduler.Next(ctx)
	if err != nil {
		return err
	}

	page.Title = s.cfg.Title
	page.Action = "/options"
	page.FieldName = schedule.RecurrenceOption
	page.Nonce = nonce
	for _, r := range schedule.Recurrences() {
		page.Options = append(page.Options, selectOption{
			Value:    string(r),
			Label:    r.Label(),
			Selected: string(r) == stored,
		})
	}
	if next != nil {
		page.NextRun = next.NextRunTime().In(s.cfg.Location).Format("2006-01-02 15:04:05 MST")
	}

	var buf bytes.Buffer
	if err := s.page.Execute(&buf, page); err != nil {
		return err
	}
	return c.HTMLBlob(status, buf.Bytes())
}
