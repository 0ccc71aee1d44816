package server

import (
	"errors"
	"log/slog"
	"strings"
	"unicode"

	"chirp/internal/middleware"
	"chirp/internal/models"
	"chirp/internal/service"
	"chirp/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

const maxPaginationLimit = 100

// parsePagination reads limit and skip (or its alias offset). The limit falls
// back to defaultLimit when absent or not positive and is capped at 100.
func parsePagination(c *fiber.Ctx, defaultLimit int) service.Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("skip", c.QueryInt("offset", 0))
	if offset < 0 {
		offset = 0
	}

	return service.Pagination{Limit: limit, Offset: offset}
}

// parseID extracts a route parameter that must be a UUID.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func parseID(c *fiber.Ctx, param string) (string, error) {
	id := c.Params(param)
	if err := validation.ObjectID(id, humanizeParam(param)); err != nil {
		_ = respondError(c, err)
		return "", errResponseWritten
	}
	return id, nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "postId" -> "post ID", "commentId" -> "comment ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	prefix, ok := strings.CutSuffix(param, "Id")
	if !ok {
		return param
	}
	return strings.ToLower(strings.Join(splitCamel(prefix), " ")) + " ID"
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	return append(words, s[start:])
}

// respondError logs err with the request context and writes the error
// envelope with the status mapped from its code.
func respondError(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)

	level := slog.LevelInfo
	switch {
	case status >= fiber.StatusInternalServerError:
		level = slog.LevelError
	case status == fiber.StatusUnauthorized || status == fiber.StatusForbidden:
		level = slog.LevelWarn
	}
	middleware.Logger.Log(c.UserContext(), level, "request error",
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"error", err.Error(),
	)

	return models.RespondWithError(c, status, err)
}

// bindJSON parses the request body into dst, answering 400 on malformed JSON.
func bindJSON(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		_ = respondError(c, models.NewValidationError("invalid request body"))
		return errResponseWritten
	}
	return nil
}

// websocketUpgradeRequired rejects plain HTTP requests to websocket routes.
func websocketUpgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return c.Status(fiber.StatusUpgradeRequired).JSON(models.Response{
		Success: false,
		Message: "websocket upgrade required",
	})
}
