package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/calcfunding/publishing-backend/internal/publishing"
	"github.com/calcfunding/publishing-backend/internal/repos"
)

type PublishedFundingHandler struct {
	repo         repos.PublishedFundingRepo
	queryBuilder *publishing.PublishedFundingQueryBuilder
}

func NewPublishedFundingHandler(repo repos.PublishedFundingRepo, queryBuilder *publishing.PublishedFundingQueryBuilder) *PublishedFundingHandler {
	return &PublishedFundingHandler{repo: repo, queryBuilder: queryBuilder}
}

type publishedFundingSearchRequest struct {
	FundingStreamIDs []string `json:"fundingStreamIds"`
	FundingPeriodIDs []string `json:"fundingPeriodIds"`
	GroupingReasons  []string `json:"groupingReasons"`
	Top              int      `json:"top"`
	PageRef          *int     `json:"pageRef,omitempty"`
}

// POST /api/publishedfunding/search
func (h *PublishedFundingHandler) Search(c *gin.Context) {
	var request publishedFundingSearchRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_search_request", err)
		return
	}
	if request.Top <= 0 {
		request.Top = 50
	}

	countQuery := h.queryBuilder.BuildCountQuery(request.FundingStreamIDs, request.FundingPeriodIDs, request.GroupingReasons)
	totalCount, err := h.repo.QueryCount(c.Request.Context(), countQuery)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "publishedfunding_count_failed", err)
		return
	}

	query := h.queryBuilder.BuildQuery(request.FundingStreamIDs, request.FundingPeriodIDs, request.GroupingReasons, request.Top, request.PageRef)
	rows, err := h.repo.DynamicQuery(c.Request.Context(), query)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "publishedfunding_query_failed", err)
		return
	}

	RespondOK(c, gin.H{
		"totalCount": totalCount,
		"results":    rows,
	})
}
