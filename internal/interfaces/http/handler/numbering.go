package handler

import (
	"fmt"

	appnumbering "github.com/aglc/backoffice/internal/application/numbering"
	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/aglc/backoffice/internal/domain/shared"
	"github.com/aglc/backoffice/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// NumberingHandler serves allocation, parsing and counter maintenance.
type NumberingHandler struct {
	BaseHandler
	allocator *appnumbering.Allocator
	histories map[numbering.RecordType]appnumbering.NumberHistory
	counters  numbering.CounterReader
}

// NewNumberingHandler creates the handler. histories supplies issued numbers
// for backfill by record type; counters may be nil, in which case the
// listing route is not registered.
func NewNumberingHandler(
	allocator *appnumbering.Allocator,
	histories map[numbering.RecordType]appnumbering.NumberHistory,
	counters numbering.CounterReader,
) *NumberingHandler {
	return &NumberingHandler{allocator: allocator, histories: histories, counters: counters}
}

// RegisterRoutes mounts the handler under rg.
func (h *NumberingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/numbers", h.Allocate)
	rg.POST("/numbers/parse", h.Parse)
	rg.POST("/sequences/bootstrap", h.Bootstrap)
	rg.POST("/sequences/backfill", h.Backfill)
	if h.counters != nil {
		rg.GET("/sequences", h.ListCounters)
	}
}

// Allocate godoc
// @ID           allocateNumber
//
//	@Summary		Allocate a record number
//	@Description	Issues the next number in the current period for a record type. Payment requests also need request_type.
//	@Tags			numbering
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.AllocateRequest	true	"Allocation request"
//	@Success		201		{object}	dto.Response{data=dto.NumberResponse}
//	@Failure		400		{object}	dto.Response
//	@Failure		409		{object}	dto.Response
//	@Failure		503		{object}	dto.Response
//	@Router			/internal/v1/numbers [post]
func (h *NumberingHandler) Allocate(c *gin.Context) {
	var req dto.AllocateRequest
	if !h.BindJSON(c, &req) {
		return
	}

	n, err := h.allocator.Allocate(c.Request.Context(), numbering.RecordType(req.RecordType), req.Fields())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.ToNumberResponse(n))
}

// Parse godoc
// @ID           parseNumber
//
//	@Summary		Parse a display number
//	@Description	Splits a display number into prefix, period and counter
//	@Tags			numbering
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.ParseRequest	true	"Display number"
//	@Success		200		{object}	dto.Response{data=dto.NumberResponse}
//	@Failure		400		{object}	dto.Response
//	@Router			/internal/v1/numbers/parse [post]
func (h *NumberingHandler) Parse(c *gin.Context) {
	var req dto.ParseRequest
	if !h.BindJSON(c, &req) {
		return
	}

	key, counter, err := h.allocator.Formatter().Parse(req.Display)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NumberResponse{Prefix: key.Prefix, Period: key.Period, Counter: counter})
}

// Bootstrap godoc
// @ID           bootstrapSequence
//
//	@Summary		Bootstrap a partition counter
//	@Description	Raises a partition's counter to at least max_observed. Counters never decrease.
//	@Tags			sequences
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.BootstrapRequest	true	"Bootstrap request"
//	@Success		200		{object}	dto.Response{data=dto.BootstrapResponse}
//	@Failure		400		{object}	dto.Response
//	@Failure		409		{object}	dto.Response
//	@Failure		503		{object}	dto.Response
//	@Router			/internal/v1/sequences/bootstrap [post]
func (h *NumberingHandler) Bootstrap(c *gin.Context) {
	var req dto.BootstrapRequest
	if !h.BindJSON(c, &req) {
		return
	}

	last, err := h.allocator.Bootstrap(c.Request.Context(), req.Key(), req.MaxObserved)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.BootstrapResponse{Prefix: req.Prefix, Period: req.Period, LastValue: last})
}

// Backfill godoc
// @ID           backfillSequence
//
//	@Summary		Backfill a partition counter
//	@Description	Seeds a partition from the numbers already stored on records and reports the ones that do not parse
//	@Tags			sequences
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.BackfillRequest	true	"Backfill request"
//	@Success		200		{object}	dto.Response{data=dto.BackfillResponse}
//	@Failure		400		{object}	dto.Response
//	@Failure		409		{object}	dto.Response
//	@Failure		503		{object}	dto.Response
//	@Router			/internal/v1/sequences/backfill [post]
func (h *NumberingHandler) Backfill(c *gin.Context) {
	var req dto.BackfillRequest
	if !h.BindJSON(c, &req) {
		return
	}

	recordType := numbering.RecordType(req.RecordType)
	prefix, err := h.allocator.Registry().PrefixFor(recordType, req.Fields())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	history, ok := h.histories[recordType]
	if !ok || history == nil {
		h.HandleError(c, fmt.Errorf("%w: no number history for %s", shared.ErrInvalidState, recordType))
		return
	}

	report, err := h.allocator.BackfillFrom(c.Request.Context(), numbering.PartitionKey{Prefix: prefix, Period: req.Period}, history)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToBackfillResponse(report))
}

// ListCounters godoc
// @ID           listSequences
//
//	@Summary		List partition counters
//	@Description	Returns stored counters ordered by prefix and period
//	@Tags			sequences
//	@Produce		json
//	@Param			prefix	query		string	false	"Only counters with this prefix"	example(CR)
//	@Success		200		{object}	dto.Response{data=[]dto.BootstrapResponse}
//	@Failure		503		{object}	dto.Response
//	@Router			/internal/v1/sequences [get]
func (h *NumberingHandler) ListCounters(c *gin.Context) {
	counters, err := h.counters.ListCounters(c.Request.Context(), c.Query("prefix"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := make([]dto.BootstrapResponse, 0, len(counters))
	for _, sc := range counters {
		resp = append(resp, dto.BootstrapResponse{Prefix: sc.Key.Prefix, Period: sc.Key.Period, LastValue: sc.LastValue})
	}
	h.Success(c, resp)
}
