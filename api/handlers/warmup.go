package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/inboxlab/warmstack/dto"
	"github.com/inboxlab/warmstack/interfaces"
	customerrors "github.com/inboxlab/warmstack/internal/errors"
	"github.com/inboxlab/warmstack/internal/tracing"
)

var errInvalidLimit = errors.New("limit must be a non-negative integer")

// StartWarmup launches (or resumes) a warm-up session for a domain account.
func StartWarmup(warmup interfaces.WarmupService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "StartWarmup", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		var request dto.WarmupRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			tracing.TraceErr(span, err)
			respondBadRequest(c, err)
			return
		}
		tracing.TagEntity(span, request.DomainAccountID)

		session, err := warmup.Start(ctx, request.DomainAccountID)
		if err != nil {
			tracing.TraceErr(span, err)
			respondError(c, err)
			return
		}

		respondMessage(c, http.StatusOK, "warmup started", session)
	}
}

func PauseWarmup(warmup interfaces.WarmupService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "PauseWarmup", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		var request dto.WarmupRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			tracing.TraceErr(span, err)
			respondBadRequest(c, err)
			return
		}
		tracing.TagEntity(span, request.DomainAccountID)

		session, err := warmup.Pause(ctx, request.DomainAccountID)
		if err != nil {
			tracing.TraceErr(span, err)
			respondError(c, err)
			return
		}

		respondMessage(c, http.StatusOK, "warmup paused", session)
	}
}

func ResumeWarmup(warmup interfaces.WarmupService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "ResumeWarmup", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		var request dto.WarmupRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			tracing.TraceErr(span, err)
			respondBadRequest(c, err)
			return
		}
		tracing.TagEntity(span, request.DomainAccountID)

		session, err := warmup.Resume(ctx, request.DomainAccountID)
		if err != nil {
			tracing.TraceErr(span, err)
			respondError(c, err)
			return
		}

		respondMessage(c, http.StatusOK, "warmup resumed", session)
	}
}

// StopWarmup force-fails the session; stopping an already-stopped session
// is a no-op returning success.
func StopWarmup(warmup interfaces.WarmupService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "StopWarmup", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		var request dto.WarmupRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			tracing.TraceErr(span, err)
			respondBadRequest(c, err)
			return
		}
		tracing.TagEntity(span, request.DomainAccountID)

		session, err := warmup.Stop(ctx, request.DomainAccountID)
		if err != nil {
			tracing.TraceErr(span, err)
			respondError(c, err)
			return
		}

		respondMessage(c, http.StatusOK, "warmup stopped", session)
	}
}

func WarmupStatus(warmup interfaces.WarmupService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "WarmupStatus", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		domainAccountID := c.Param("domainAccountId")
		tracing.TagEntity(span, domainAccountID)

		status, err := warmup.Status(ctx, domainAccountID)
		if err != nil {
			tracing.TraceErr(span, err)
			respondError(c, err)
			return
		}

		respondOK(c, http.StatusOK, status)
	}
}

func ListSessions(sessions interfaces.WarmupSessionRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "ListSessions", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		rows, err := sessions.List(ctx, c.Query("domain_account_id"))
		if err != nil {
			tracing.TraceErr(span, err)
			respondError(c, err)
			return
		}

		respondOK(c, http.StatusOK, rows)
	}
}

func SessionLogs(sessions interfaces.WarmupSessionRepository, mailLog interfaces.MailLogRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "SessionLogs", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		sessionID := c.Param("id")
		tracing.TagEntity(span, sessionID)

		session, err := sessions.GetByID(ctx, sessionID)
		if err != nil {
			tracing.TraceErr(span, err)
			respondError(c, err)
			return
		}
		if session == nil {
			respondError(c, customerrors.ErrSessionNotFound)
			return
		}

		entries, err := mailLog.GetBySession(ctx, sessionID)
		if err != nil {
			tracing.TraceErr(span, err)
			respondError(c, err)
			return
		}

		respondOK(c, http.StatusOK, entries)
	}
}

func RecentLogs(mailLog interfaces.MailLogRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "RecentLogs", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		limit := 0
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				respondBadRequest(c, errInvalidLimit)
				return
			}
			limit = parsed
		}

		entries, err := mailLog.GetRecent(ctx, limit)
		if err != nil {
			tracing.TraceErr(span, err)
			respondError(c, err)
			return
		}

		respondOK(c, http.StatusOK, entries)
	}
}
