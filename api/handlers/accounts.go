package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/inboxlab/warmstack/dto"
	"github.com/inboxlab/warmstack/interfaces"
	customerrors "github.com/inboxlab/warmstack/internal/errors"
	"github.com/inboxlab/warmstack/internal/tracing"
)

// CreateDomainAccount registers a mailbox for warm-up. Duplicate addresses
// answer 409.
func CreateDomainAccount(domains interfaces.DomainAccountRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "CreateDomainAccount", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		var request dto.CreateDomainAccountRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			tracing.TraceErr(span, err)
			respondBadRequest(c, err)
			return
		}

		account := request.ToModel()
		if err := domains.Create(ctx, account); err != nil {
			tracing.TraceErr(span, err)
			respondError(c, err)
			return
		}

		respondOK(c, http.StatusCreated, account)
	}
}

func ListDomainAccounts(domains interfaces.DomainAccountRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "ListDomainAccounts", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		accounts, err := domains.List(ctx)
		if err != nil {
			tracing.TraceErr(span, err)
			respondError(c, err)
			return
		}

		respondOK(c, http.StatusOK, accounts)
	}
}

func GetDomainAccount(domains interfaces.DomainAccountRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "GetDomainAccount", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		id := c.Param("id")
		tracing.TagEntity(span, id)

		account, err := domains.GetByID(ctx, id)
		if err != nil {
			tracing.TraceErr(span, err)
			respondError(c, err)
			return
		}
		if account == nil {
			respondError(c, customerrors.ErrDomainAccountNotFound)
			return
		}

		respondOK(c, http.StatusOK, account)
	}
}

func DeleteDomainAccount(domains interfaces.DomainAccountRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "DeleteDomainAccount", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		id := c.Param("id")
		tracing.TagEntity(span, id)

		account, err := domains.GetByID(ctx, id)
		if err != nil {
			tracing.TraceErr(span, err)
			respondError(c, err)
			return
		}
		if account == nil {
			respondError(c, customerrors.ErrDomainAccountNotFound)
			return
		}

		if err := domains.Delete(ctx, id); err != nil {
			tracing.TraceErr(span, err)
			respondError(c, err)
			return
		}

		respondMessage(c, http.StatusOK, "domain account deleted", gin.H{"id": id})
	}
}

// CreateLeadAccount appends a responder mailbox to the end of the stable
// lead ordering; existing indexes never shift.
func CreateLeadAccount(leads interfaces.LeadAccountRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "CreateLeadAccount", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		var request dto.CreateLeadAccountRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			tracing.TraceErr(span, err)
			respondBadRequest(c, err)
			return
		}

		account := request.ToModel()
		if err := leads.Create(ctx, account); err != nil {
			tracing.TraceErr(span, err)
			respondError(c, err)
			return
		}

		respondOK(c, http.StatusCreated, account)
	}
}

func ListLeadAccounts(leads interfaces.LeadAccountRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "ListLeadAccounts", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		accounts, err := leads.List(ctx)
		if err != nil {
			tracing.TraceErr(span, err)
			respondError(c, err)
			return
		}

		respondOK(c, http.StatusOK, accounts)
	}
}

func DeleteLeadAccount(leads interfaces.LeadAccountRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "DeleteLeadAccount", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		id := c.Param("id")
		tracing.TagEntity(span, id)

		account, err := leads.GetByID(ctx, id)
		if err != nil {
			tracing.TraceErr(span, err)
			respondError(c, err)
			return
		}
		if account == nil {
			respondError(c, customerrors.ErrLeadAccountNotFound)
			return
		}

		if err := leads.Delete(ctx, id); err != nil {
			tracing.TraceErr(span, err)
			respondError(c, err)
			return
		}

		respondMessage(c, http.StatusOK, "lead account deleted", gin.H{"id": id})
	}
}
