package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/food_go_server/internal/model/dto"
	"github.com/qs3c/food_go_server/internal/pkg/imagesource"
	"github.com/qs3c/food_go_server/internal/pkg/response"
	"github.com/qs3c/food_go_server/internal/service"
)

type JobHandler struct {
	jobService *service.JobService
}

func NewJobHandler(jobService *service.JobService) *JobHandler {
	return &JobHandler{
		jobService: jobService,
	}
}

// Submit 提交分析任务
// POST /api/v1/jobs
func (h *JobHandler) Submit(c *gin.Context) {
	var req dto.SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.jobService.Submit(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, imagesource.ErrInvalidSource),
			errors.Is(err, imagesource.ErrMissingFilename):
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "任务已提交", resp)
}

// Get 查询任务状态和结果
// GET /api/v1/jobs/:id
func (h *JobHandler) Get(c *gin.Context) {
	jobID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的任务ID")
		return
	}

	detail, err := h.jobService.Get(jobID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			response.NotFoundError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, detail)
}

// List 分页查询任务列表
// GET /api/v1/jobs
func (h *JobHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	items, total, err := h.jobService.List(page, pageSize)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, total, page, pageSize, items)
}
