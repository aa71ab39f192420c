package controller

import (
	"strings"
	"time"

	"nbl_training_backend/internal/config"
	"nbl_training_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AuthController struct {
	Config *config.JWTConfig
}

func NewAuthController(cfg *config.JWTConfig) *AuthController {
	return &AuthController{Config: cfg}
}

// GuestLoginRequest userId 为空时生成访客 ID
// swagger:model GuestLoginRequest
type GuestLoginRequest struct {
	UserID string `json:"userId" binding:"omitempty,min=5,max=64"`
}

type GuestLoginResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// GuestLogin godoc
// @Summary 访客登录
// @Description 签发访客令牌，训练接口以令牌中的 userId 作为身份
// @Tags 认证
// @Accept json
// @Produce json
// @Param body body GuestLoginRequest false "可选的用户ID"
// @Success 200 {object} util.Response{data=GuestLoginResponse}
// @Failure 400 {object} util.Response
// @Router /api/auth/guest [post]
func (c *AuthController) GuestLogin(ctx *gin.Context) {
	var req GuestLoginRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			util.BadRequest(ctx, err.Error())
			return
		}
	}

	userID := req.UserID
	if userID == "" {
		// 取 uuid 前缀作为访客 ID
		short := uuid.NewString()
		if i := strings.IndexByte(short, '-'); i > 0 {
			short = short[:i]
		}
		userID = "guest-" + short
	}

	token, err := util.GenerateJWT(userID, util.RoleGuest, c.Config.Secret, c.Config.ExpireTime)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, GuestLoginResponse{
		Token:     token,
		UserID:    userID,
		ExpiresAt: time.Now().Add(c.Config.ExpireTime),
	})
}
