package handler

import (
	"context"
	"net/http"

	"auction-engine/internal/lifecycle"
	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

// SweepRunner runs one lifecycle pass on demand
type SweepRunner interface {
	Sweep(ctx context.Context) (lifecycle.Result, error)
}

type AdminHandler struct {
	service BiddingServiceInterface
	sweeper SweepRunner
}

func NewAdminHandler(service BiddingServiceInterface, sweeper SweepRunner) *AdminHandler {
	return &AdminHandler{service: service, sweeper: sweeper}
}

// ApproveListingHandler handles POST /admin/listings/:listing_id/approve
func (h *AdminHandler) ApproveListingHandler(c *gin.Context) {
	listingID := c.Param("listing_id")
	listing, err := h.service.ApproveListing(c.Request.Context(), listingID)
	if err != nil {
		helpers.RespondError(c, "ApproveListingHandler", err, map[string]any{"listing_id": listingID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, listing, "listing approved")
	helpers.LogSuccess("ApproveListingHandler", "listing approved", map[string]any{"listing_id": listingID})
}

// RejectListingHandler handles POST /admin/listings/:listing_id/reject
func (h *AdminHandler) RejectListingHandler(c *gin.Context) {
	listingID := c.Param("listing_id")
	listing, err := h.service.RejectListing(c.Request.Context(), listingID)
	if err != nil {
		helpers.RespondError(c, "RejectListingHandler", err, map[string]any{"listing_id": listingID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, listing, "listing rejected")
	helpers.LogSuccess("RejectListingHandler", "listing rejected", map[string]any{"listing_id": listingID})
}

// SweepHandler handles POST /admin/sweep
func (h *AdminHandler) SweepHandler(c *gin.Context) {
	res, err := h.sweeper.Sweep(c.Request.Context())
	if err != nil {
		helpers.RespondError(c, "SweepHandler", err, nil)
		return
	}
	utils.JSONResponse(c, http.StatusOK, res, "sweep completed")
}
