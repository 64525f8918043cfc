package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/calcfunding/publishing-backend/internal/services"
)

type BuildProjectsHandler struct {
	buildProjects services.BuildProjectsService
}

func NewBuildProjectsHandler(buildProjects services.BuildProjectsService) *BuildProjectsHandler {
	return &BuildProjectsHandler{buildProjects: buildProjects}
}

// GET /api/buildprojects?specificationId=...
func (h *BuildProjectsHandler) GetBuildProjectBySpecificationID(c *gin.Context) {
	specificationID := c.Query("specificationId")
	if specificationID == "" {
		RespondError(c, http.StatusBadRequest, "missing_specification_id", errors.New("Null or empty specification Id provided"))
		return
	}
	buildProject, err := h.buildProjects.GetBuildProjectBySpecificationID(c.Request.Context(), specificationID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "buildproject_lookup_failed", err)
		return
	}
	if buildProject == nil {
		RespondError(c, http.StatusNotFound, "buildproject_not_found", errors.New("Build project not found for specification id: "+specificationID))
		return
	}
	RespondOK(c, gin.H{"buildProject": buildProject})
}
