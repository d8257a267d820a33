package job

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/leadstack/outreach/common"
	"github.com/leadstack/outreach/internal/dto"
	"github.com/leadstack/outreach/middleware"
)

type JobHandler struct {
	service JobServiceInterface
}

func NewJobHandler(s JobServiceInterface) *JobHandler {
	return &JobHandler{service: s}
}

var _ JobHandlerInterface = (*JobHandler)(nil)

// Create handles POST /jobs. It validates and binds the request body,
// delegates to the JobService, and returns the created job.
func (h *JobHandler) Create(c *gin.Context) {
	var req dto.JobCreateDTO

	if !middleware.Bind(c, &req) {
		c.Abort()
		return
	}

	resp, err := h.service.CreateJob(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Get handles GET /jobs/:id.
func (h *JobHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id < 1 {
		c.Error(common.Errf(http.StatusBadRequest, "invalid ID"))
		return
	}

	resp, err := h.service.GetJobByID(c.Request.Context(), uint(id))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// List handles GET /jobs with an optional status filter.
func (h *JobHandler) List(c *gin.Context) {
	jobs, err := h.service.ListJobs(c.Request.Context(), c.Query("status"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, jobs)
}

// Stats handles GET /jobs/stats: aggregated job counts by status.
func (h *JobHandler) Stats(c *gin.Context) {
	stats, err := h.service.QueueStats(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
