package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"nbl_training_backend/internal/model"
	"nbl_training_backend/internal/util"
	"nbl_training_backend/pkg/logger"

	"go.uber.org/zap"
)

// 上行与下行事件名
const (
	EventStartTraining      = "start-training"
	EventTrainingStarted    = "training-started"
	EventBuoyancyUpdate     = "buoyancy-update"
	EventBuoyancyResult     = "buoyancy-result"
	EventHatchUpdate        = "hatch-update"
	EventHatchResult        = "hatch-result"
	EventRepairUpdate       = "repair-update"
	EventRepairResult       = "repair-result"
	EventInstallationUpdate = "installation-update"
	EventInstallationResult = "installation-result"
	EventCompleteTraining   = "complete-training"
	EventTrainingCompleted  = "training-completed"
	EventAbortTraining      = "abort-training"
	EventTrainingAborted    = "training-aborted"
	EventJoinSession        = "join-session"
	EventSessionJoined      = "session-joined"
	EventError              = "error"
)

// Publisher 向会话主题推送消息
type Publisher interface {
	Publish(topic string, msg WSMessage)
}

// PhaseResultMessage 阶段结果的下行消息
func PhaseResultMessage(event string, data interface{}, phaseCompleted bool) WSMessage {
	return WSMessage{Type: event, Data: map[string]interface{}{
		"success":        true,
		"data":           data,
		"phaseCompleted": phaseCompleted,
	}}
}

func CompletedMessage(result *model.CompletionResult) WSMessage {
	return WSMessage{Type: EventTrainingCompleted, Data: map[string]interface{}{
		"success": true,
		"data":    result,
		"message": "training completed",
	}}
}

func AbortedMessage(sessionID string) WSMessage {
	return WSMessage{Type: EventTrainingAborted, Data: map[string]interface{}{
		"success":   true,
		"sessionId": sessionID,
		"message":   "training aborted",
	}}
}

type sessionPayload struct {
	SessionID        string                     `json:"sessionId"`
	BuoyancyData     *model.BuoyancyRequest     `json:"buoyancyData"`
	HatchData        *model.HatchRequest        `json:"hatchData"`
	RepairData       *model.RepairRequest       `json:"repairData"`
	InstallationData *model.InstallationRequest `json:"installationData"`
}

// TrainingEvents 把 WebSocket 事件转成 TrainingService 调用。
// 结果广播到会话主题，错误只回给发送方
type TrainingEvents struct {
	svc *TrainingService
	hub *TrainingHub
}

func NewTrainingEvents(svc *TrainingService, hub *TrainingHub) *TrainingEvents {
	return &TrainingEvents{svc: svc, hub: hub}
}

func (e *TrainingEvents) HandleEvent(ctx context.Context, c *Client, msg InboundMessage) {
	var err error
	switch msg.Type {
	case EventStartTraining:
		err = e.start(ctx, c, msg.Data)
	case EventBuoyancyUpdate, EventHatchUpdate, EventRepairUpdate, EventInstallationUpdate:
		err = e.applyPhase(ctx, msg.Type, msg.Data)
	case EventCompleteTraining:
		err = e.complete(ctx, c, msg.Data)
	case EventAbortTraining:
		err = e.abort(ctx, c, msg.Data)
	case EventJoinSession:
		err = e.join(ctx, c, msg.Data)
	default:
		err = fmt.Errorf("%w: unknown event %q", util.ErrInvalidInput, msg.Type)
	}

	if err != nil {
		e.hub.SendTo(c, errorMessage(clientMessage(err)))
		if !isClientError(err) {
			logger.Log.Error("training event failed",
				zap.String("event", msg.Type),
				zap.String("clientId", c.ID),
				zap.Error(err))
		}
	}
}

func isClientError(err error) bool {
	return errors.Is(err, util.ErrInvalidInput) ||
		errors.Is(err, util.ErrSessionNotFound) ||
		errors.Is(err, util.ErrSessionNotActive) ||
		errors.Is(err, util.ErrUserNotFound) ||
		errors.Is(err, util.ErrPermissionDenied)
}

// clientMessage 内部错误不回传细节
func clientMessage(err error) string {
	if isClientError(err) {
		return err.Error()
	}
	return "internal server error"
}

func decodeSession(raw json.RawMessage) (*sessionPayload, error) {
	var p sessionPayload
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: missing data", util.ErrInvalidInput)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidInput, err)
	}
	if err := util.ValidSessionID(p.SessionID); err != nil {
		return nil, err
	}
	return &p, nil
}

func (e *TrainingEvents) start(ctx context.Context, c *Client, raw json.RawMessage) error {
	var req model.StartTrainingRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("%w: %v", util.ErrInvalidInput, err)
	}
	if err := util.ValidateRequest(&req); err != nil {
		return err
	}
	if err := util.CheckOwner(c.Claims, req.UserID); err != nil {
		return err
	}

	result, err := e.svc.Start(ctx, req.UserID, req.Profile())
	if err != nil {
		return err
	}

	e.hub.Join(c, SessionTopic(result.SessionID))
	e.hub.SendTo(c, WSMessage{Type: EventTrainingStarted, Data: map[string]interface{}{
		"success":   true,
		"sessionId": result.SessionID,
		"data":      result,
		"message":   "training started",
	}})
	return nil
}

func (e *TrainingEvents) applyPhase(ctx context.Context, event string, raw json.RawMessage) error {
	p, err := decodeSession(raw)
	if err != nil {
		return err
	}

	var (
		resultEvent string
		data        interface{}
		completed   bool
	)
	switch event {
	case EventBuoyancyUpdate:
		if err := requirePayload(p.BuoyancyData, "buoyancyData"); err != nil {
			return err
		}
		out, err := e.svc.ApplyBuoyancy(ctx, p.SessionID, p.BuoyancyData.Input())
		if err != nil {
			return err
		}
		resultEvent, data, completed = EventBuoyancyResult, out.BuoyancyResult, out.PhaseCompleted
	case EventHatchUpdate:
		if err := requirePayload(p.HatchData, "hatchData"); err != nil {
			return err
		}
		out, err := e.svc.ApplyHatch(ctx, p.SessionID, p.HatchData.Input())
		if err != nil {
			return err
		}
		resultEvent, data, completed = EventHatchResult, out.ForceResult, out.PhaseCompleted
	case EventRepairUpdate:
		if err := requirePayload(p.RepairData, "repairData"); err != nil {
			return err
		}
		out, err := e.svc.ApplyRepair(ctx, p.SessionID, p.RepairData.Input())
		if err != nil {
			return err
		}
		resultEvent, data, completed = EventRepairResult, out.RepairResult, out.PhaseCompleted
	case EventInstallationUpdate:
		if err := requirePayload(p.InstallationData, "installationData"); err != nil {
			return err
		}
		out, err := e.svc.ApplyInstallation(ctx, p.SessionID, p.InstallationData.Input())
		if err != nil {
			return err
		}
		resultEvent, data, completed = EventInstallationResult, out.InstallationResult, out.PhaseCompleted
	}

	e.hub.Publish(SessionTopic(p.SessionID), PhaseResultMessage(resultEvent, data, completed))
	return nil
}

func requirePayload[T any](req *T, field string) error {
	if req == nil {
		return fmt.Errorf("%w: missing %s", util.ErrInvalidInput, field)
	}
	return util.ValidateRequest(req)
}

func (e *TrainingEvents) complete(ctx context.Context, c *Client, raw json.RawMessage) error {
	p, err := decodeSession(raw)
	if err != nil {
		return err
	}
	result, err := e.svc.Complete(ctx, p.SessionID)
	if err != nil {
		return err
	}

	topic := SessionTopic(p.SessionID)
	e.hub.Publish(topic, CompletedMessage(result))
	e.hub.Leave(c, topic)
	return nil
}

func (e *TrainingEvents) abort(ctx context.Context, c *Client, raw json.RawMessage) error {
	p, err := decodeSession(raw)
	if err != nil {
		return err
	}
	if _, err := e.svc.Abort(ctx, p.SessionID); err != nil {
		return err
	}

	topic := SessionTopic(p.SessionID)
	e.hub.Publish(topic, AbortedMessage(p.SessionID))
	e.hub.Leave(c, topic)
	return nil
}

// join 观察者订阅已存在的会话
func (e *TrainingEvents) join(ctx context.Context, c *Client, raw json.RawMessage) error {
	p, err := decodeSession(raw)
	if err != nil {
		return err
	}
	session, err := e.svc.GetSession(ctx, p.SessionID)
	if err != nil {
		return err
	}
	if err := util.CheckOwner(c.Claims, session.UserID); err != nil {
		return err
	}

	e.hub.Join(c, SessionTopic(p.SessionID))
	e.hub.SendTo(c, WSMessage{Type: EventSessionJoined, Data: map[string]interface{}{
		"success":   true,
		"sessionId": session.SessionID,
		"status":    session.Status,
		"phaseData": session.Phases(),
	}})
	return nil
}
