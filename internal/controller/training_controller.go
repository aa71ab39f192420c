package controller

import (
	"time"

	"nbl_training_backend/internal/model"
	"nbl_training_backend/internal/service"
	"nbl_training_backend/internal/util"

	"github.com/gin-gonic/gin"
)

const systemVersion = "1.0.0"

type TrainingController struct {
	Service   *service.TrainingService
	Publisher service.Publisher
}

func NewTrainingController(svc *service.TrainingService, publisher service.Publisher) *TrainingController {
	return &TrainingController{Service: svc, Publisher: publisher}
}

// publish HTTP 提交的结果同步推送给会话观察者
func (c *TrainingController) publish(sessionID string, msg service.WSMessage) {
	if c.Publisher != nil {
		c.Publisher.Publish(service.SessionTopic(sessionID), msg)
	}
}

func checkOwner(ctx *gin.Context, userID string) bool {
	if err := util.CheckOwner(util.GetUserFromContext(ctx), userID); err != nil {
		util.HandleServiceError(ctx, err)
		return false
	}
	return true
}

// bindPhase 校验路径中的会话 ID 并绑定请求体
func bindPhase(ctx *gin.Context, req interface{}) (string, bool) {
	sessionID := ctx.Param("sessionId")
	if err := util.ValidSessionID(sessionID); err != nil {
		util.BadRequest(ctx, err.Error())
		return "", false
	}
	if err := ctx.ShouldBindJSON(req); err != nil {
		util.BadRequest(ctx, err.Error())
		return "", false
	}
	if err := util.CheckRequest(req); err != nil {
		util.BadRequest(ctx, err.Error())
		return "", false
	}
	return sessionID, true
}

func sessionParam(ctx *gin.Context) (string, bool) {
	sessionID := ctx.Param("sessionId")
	if err := util.ValidSessionID(sessionID); err != nil {
		util.BadRequest(ctx, err.Error())
		return "", false
	}
	return sessionID, true
}

// Status godoc
// @Summary 系统状态
// @Tags NBL
// @Produce json
// @Success 200 {object} util.Response
// @Router /api/nbl/status [get]
func (c *TrainingController) Status(ctx *gin.Context) {
	util.Success(ctx, gin.H{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"system": gin.H{
			"status":  "operational",
			"version": systemVersion,
			"modules": gin.H{
				"buoyancy":     "ready",
				"hatch":        "ready",
				"repair":       "ready",
				"installation": "ready",
			},
		},
	})
}

// Start godoc
// @Summary 开始训练
// @Tags NBL
// @Accept json
// @Produce json
// @Param body body model.StartTrainingRequest true "训练者信息"
// @Success 201 {object} util.Response{data=model.StartResult}
// @Failure 400 {object} util.Response
// @Router /api/nbl/start [post]
func (c *TrainingController) Start(ctx *gin.Context) {
	var req model.StartTrainingRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if !checkOwner(ctx, req.UserID) {
		return
	}

	result, err := c.Service.Start(ctx.Request.Context(), req.UserID, req.Profile())
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Created(ctx, result)
}

// AdjustBuoyancy godoc
// @Summary 浮力调整
// @Tags NBL
// @Accept json
// @Produce json
// @Param sessionId path string true "会话ID"
// @Param body body model.BuoyancyRequest true "浮力数据"
// @Success 200 {object} util.Response{data=model.BuoyancyOutcome}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/nbl/session/{sessionId}/buoyancy [post]
func (c *TrainingController) AdjustBuoyancy(ctx *gin.Context) {
	var req model.BuoyancyRequest
	sessionID, ok := bindPhase(ctx, &req)
	if !ok {
		return
	}

	out, err := c.Service.ApplyBuoyancy(ctx.Request.Context(), sessionID, req.Input())
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	c.publish(sessionID, service.PhaseResultMessage(service.EventBuoyancyResult, out.BuoyancyResult, out.PhaseCompleted))
	util.Success(ctx, out)
}

// EnterHatch godoc
// @Summary 舱口进入
// @Tags NBL
// @Accept json
// @Produce json
// @Param sessionId path string true "会话ID"
// @Param body body model.HatchRequest true "握力数据"
// @Success 200 {object} util.Response{data=model.HatchOutcome}
// @Router /api/nbl/session/{sessionId}/hatch [post]
func (c *TrainingController) EnterHatch(ctx *gin.Context) {
	var req model.HatchRequest
	sessionID, ok := bindPhase(ctx, &req)
	if !ok {
		return
	}

	out, err := c.Service.ApplyHatch(ctx.Request.Context(), sessionID, req.Input())
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	c.publish(sessionID, service.PhaseResultMessage(service.EventHatchResult, out.ForceResult, out.PhaseCompleted))
	util.Success(ctx, out)
}

// RepairWall godoc
// @Summary 外壁维修
// @Tags NBL
// @Accept json
// @Produce json
// @Param sessionId path string true "会话ID"
// @Param body body model.RepairRequest true "扭矩数据"
// @Success 200 {object} util.Response{data=model.RepairOutcome}
// @Router /api/nbl/session/{sessionId}/repair [post]
func (c *TrainingController) RepairWall(ctx *gin.Context) {
	var req model.RepairRequest
	sessionID, ok := bindPhase(ctx, &req)
	if !ok {
		return
	}

	out, err := c.Service.ApplyRepair(ctx.Request.Context(), sessionID, req.Input())
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	c.publish(sessionID, service.PhaseResultMessage(service.EventRepairResult, out.RepairResult, out.PhaseCompleted))
	util.Success(ctx, out)
}

// InstallEquipment godoc
// @Summary 设备安装
// @Tags NBL
// @Accept json
// @Produce json
// @Param sessionId path string true "会话ID"
// @Param body body model.InstallationRequest true "安装误差"
// @Success 200 {object} util.Response{data=model.InstallationOutcome}
// @Router /api/nbl/session/{sessionId}/install [post]
func (c *TrainingController) InstallEquipment(ctx *gin.Context) {
	var req model.InstallationRequest
	sessionID, ok := bindPhase(ctx, &req)
	if !ok {
		return
	}

	out, err := c.Service.ApplyInstallation(ctx.Request.Context(), sessionID, req.Input())
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	c.publish(sessionID, service.PhaseResultMessage(service.EventInstallationResult, out.InstallationResult, out.PhaseCompleted))
	util.Success(ctx, out)
}

// Complete godoc
// @Summary 完成训练
// @Tags NBL
// @Produce json
// @Param sessionId path string true "会话ID"
// @Success 200 {object} util.Response{data=model.CompletionResult}
// @Failure 409 {object} util.Response "会话已结束"
// @Router /api/nbl/session/{sessionId}/complete [post]
func (c *TrainingController) Complete(ctx *gin.Context) {
	sessionID, ok := sessionParam(ctx)
	if !ok {
		return
	}

	result, err := c.Service.Complete(ctx.Request.Context(), sessionID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	c.publish(sessionID, service.CompletedMessage(result))
	util.Success(ctx, result)
}

// Abort godoc
// @Summary 中止训练
// @Tags NBL
// @Produce json
// @Param sessionId path string true "会话ID"
// @Success 200 {object} util.Response{data=model.TrainingSession}
// @Router /api/nbl/session/{sessionId}/abort [post]
func (c *TrainingController) Abort(ctx *gin.Context) {
	sessionID, ok := sessionParam(ctx)
	if !ok {
		return
	}

	session, err := c.Service.Abort(ctx.Request.Context(), sessionID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	c.publish(sessionID, service.AbortedMessage(sessionID))
	util.Success(ctx, session)
}

// GetSession godoc
// @Summary 查询训练会话
// @Tags NBL
// @Produce json
// @Param sessionId path string true "会话ID"
// @Success 200 {object} util.Response{data=model.TrainingSession}
// @Failure 404 {object} util.Response
// @Router /api/nbl/session/{sessionId} [get]
func (c *TrainingController) GetSession(ctx *gin.Context) {
	sessionID, ok := sessionParam(ctx)
	if !ok {
		return
	}

	session, err := c.Service.GetSession(ctx.Request.Context(), sessionID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, session)
}

// GetHistory godoc
// @Summary 训练记录
// @Description 最近 10 次训练，按创建时间倒序
// @Tags NBL
// @Produce json
// @Param userId path string true "用户ID"
// @Success 200 {object} util.Response{data=[]model.TrainingSession}
// @Router /api/nbl/history/{userId} [get]
func (c *TrainingController) GetHistory(ctx *gin.Context) {
	userID := ctx.Param("userId")
	if err := util.ValidUserID(userID); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if !checkOwner(ctx, userID) {
		return
	}

	sessions, err := c.Service.GetHistory(ctx.Request.Context(), userID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	if sessions == nil {
		sessions = []model.TrainingSession{}
	}
	util.Success(ctx, sessions)
}
