package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"nbl_training_backend/internal/model"
	"nbl_training_backend/internal/scoring"
	"nbl_training_backend/internal/util"
	"nbl_training_backend/pkg/logger"
	"nbl_training_backend/pkg/monitoring"
	"nbl_training_backend/pkg/tracing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HistoryLimit 训练记录查询返回的最大条数
const HistoryLimit = 10

type SessionStore interface {
	Create(ctx context.Context, session *model.TrainingSession) error
	Update(ctx context.Context, session *model.TrainingSession) error
	FindBySessionID(ctx context.Context, sessionID string) (*model.TrainingSession, error)
	ListRecentByUser(ctx context.Context, userID string, limit int) ([]model.TrainingSession, error)
}

type UserStore interface {
	FirstOrCreate(ctx context.Context, user *model.User) (*model.User, error)
}

// ReportArchiver 训练结束后归档报告
type ReportArchiver interface {
	Archive(ctx context.Context, session *model.TrainingSession) error
}

// TrainingService 训练会话生命周期：开始、四个阶段评分、完成、中止、查询
type TrainingService struct {
	sessions SessionStore
	users    UserStore
	archiver ReportArchiver
	params   atomic.Pointer[scoring.Params]
	locks    *keyedMutex
	now      func() time.Time
}

func NewTrainingService(sessions SessionStore, users UserStore, params scoring.Params) *TrainingService {
	s := &TrainingService{
		sessions: sessions,
		users:    users,
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
	s.SetParams(params)
	return s
}

// SetParams 替换评分参数，正在执行的操作使用旧参数
func (s *TrainingService) SetParams(p scoring.Params) {
	p = p.Normalize()
	s.params.Store(&p)
}

func (s *TrainingService) Params() scoring.Params {
	return *s.params.Load()
}

func (s *TrainingService) SetArchiver(a ReportArchiver) {
	s.archiver = a
}

func newSessionID() string {
	return "nbl_" + uuid.NewString()
}

func (s *TrainingService) Start(ctx context.Context, userID string, profile *model.TrainingProfile) (*model.StartResult, error) {
	ctx, span := tracing.StartSpan(ctx, "TrainingService.Start")
	defer span.End()

	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", util.ErrInvalidInput)
	}

	candidate := &model.User{
		UserID:          userID,
		Username:        "User_" + userID,
		Weight:          model.DefaultUserWeight,
		Height:          model.DefaultUserHeight,
		ExperienceLevel: model.Beginner,
	}
	if profile != nil {
		if profile.Username != "" {
			candidate.Username = profile.Username
		}
		if profile.UserWeight > 0 {
			candidate.Weight = profile.UserWeight
		}
		if profile.UserHeight > 0 {
			candidate.Height = profile.UserHeight
		}
		if profile.ExperienceLevel != "" {
			candidate.ExperienceLevel = profile.ExperienceLevel
		}
	}

	user, err := s.users.FirstOrCreate(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}

	now := s.now()
	session := &model.TrainingSession{
		SessionID:    newSessionID(),
		UserID:       userID,
		TrainingType: model.TrainingNBL,
		StartTime:    now,
		Grade:        string(scoring.GradeF),
		Status:       model.SessionActive,
	}
	session.CreatedAt = now
	session.SetPhases(model.NewPhaseData())
	session.SetPerformance(model.PerformanceMetrics{})

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	monitoring.SessionsStarted.WithLabelValues(string(session.TrainingType)).Inc()
	logger.Log.Info("training session started",
		zap.String("sessionId", session.SessionID),
		zap.String("userId", userID))

	return &model.StartResult{
		SessionID: session.SessionID,
		UserID:    userID,
		PhaseData: session.Phases(),
		UserData: model.UserData{
			Weight:          user.Weight,
			Height:          user.Height,
			ExperienceLevel: user.ExperienceLevel,
		},
	}, nil
}

// mutate 在会话锁内加载、修改并保存活动会话；保存失败时整个操作失败
func (s *TrainingService) mutate(ctx context.Context, sessionID string, fn func(*model.TrainingSession) error) (*model.TrainingSession, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.sessions.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive() {
		return nil, fmt.Errorf("%w: %s is %s", util.ErrSessionNotActive, sessionID, session.Status)
	}

	if err := fn(session); err != nil {
		return nil, err
	}

	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("save session %s: %w", sessionID, err)
	}
	return session, nil
}

func recordPhase(session *model.TrainingSession, phase model.Phase, score int, completed bool) {
	phases := session.Phases()
	phases.Record(phase, score, completed)
	session.SetPhases(phases)
	monitoring.PhaseScores.WithLabelValues(phase.String()).Observe(float64(score))
}

func (s *TrainingService) ApplyBuoyancy(ctx context.Context, sessionID string, in model.BuoyancyInput) (*model.BuoyancyOutcome, error) {
	ctx, span := tracing.StartSpan(ctx, "TrainingService.ApplyBuoyancy")
	defer span.End()

	if in.ElapsedMs < 0 {
		return nil, fmt.Errorf("%w: elapsed time must not be negative", util.ErrInvalidInput)
	}

	result := scoring.Buoyancy(s.Params(), in.UserWeight, in.SuitWeight, in.AdditionalWeight)
	_, err := s.mutate(ctx, sessionID, func(session *model.TrainingSession) error {
		recordPhase(session, model.PhaseBuoyancy, result.Score, result.Completed())
		perf := session.Performance()
		perf.TotalTimeMs += in.ElapsedMs
		session.SetPerformance(perf)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &model.BuoyancyOutcome{BuoyancyResult: result, PhaseCompleted: result.Completed()}, nil
}

func (s *TrainingService) ApplyHatch(ctx context.Context, sessionID string, in model.HatchInput) (*model.HatchOutcome, error) {
	ctx, span := tracing.StartSpan(ctx, "TrainingService.ApplyHatch")
	defer span.End()

	attempts := in.Attempts
	if attempts == 0 {
		attempts = 1
	}
	if attempts < 0 {
		return nil, fmt.Errorf("%w: attempts must be positive", util.ErrInvalidInput)
	}

	result := scoring.GripForce(s.Params(), in.Force)
	_, err := s.mutate(ctx, sessionID, func(session *model.TrainingSession) error {
		recordPhase(session, model.PhaseHatch, result.Score, result.IsOptimal)
		perf := session.Performance()
		perf.Attempts += attempts
		session.SetPerformance(perf)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &model.HatchOutcome{ForceResult: result, HoldTimeMs: in.HoldTimeMs, PhaseCompleted: result.IsOptimal}, nil
}

func (s *TrainingService) ApplyRepair(ctx context.Context, sessionID string, in model.RepairInput) (*model.RepairOutcome, error) {
	ctx, span := tracing.StartSpan(ctx, "TrainingService.ApplyRepair")
	defer span.End()

	if in.ScrewCount <= 0 {
		return nil, fmt.Errorf("%w: screwCount must be positive", util.ErrInvalidInput)
	}
	if in.CompletedScrews < 0 || in.ElapsedMs < 0 {
		return nil, fmt.Errorf("%w: completed screws and elapsed time must not be negative", util.ErrInvalidInput)
	}

	result := scoring.Repair(s.Params(), in.Torque, in.CompletedScrews, in.ScrewCount)
	_, err := s.mutate(ctx, sessionID, func(session *model.TrainingSession) error {
		recordPhase(session, model.PhaseRepair, result.Score, result.Completed)
		perf := session.Performance()
		perf.TotalTimeMs += in.ElapsedMs
		session.SetPerformance(perf)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &model.RepairOutcome{RepairResult: result, PhaseCompleted: result.Completed}, nil
}

func (s *TrainingService) ApplyInstallation(ctx context.Context, sessionID string, in model.InstallationInput) (*model.InstallationOutcome, error) {
	ctx, span := tracing.StartSpan(ctx, "TrainingService.ApplyInstallation")
	defer span.End()

	result := scoring.Installation(s.Params(), in.PositionError, in.AngleError)
	_, err := s.mutate(ctx, sessionID, func(session *model.TrainingSession) error {
		recordPhase(session, model.PhaseInstallation, result.Score, result.IsPrecise)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &model.InstallationOutcome{InstallationResult: result, PhaseCompleted: result.IsPrecise}, nil
}

// Complete 计算总分与等级。总耗时以开始到现在的时长覆盖各阶段累计值
func (s *TrainingService) Complete(ctx context.Context, sessionID string) (*model.CompletionResult, error) {
	ctx, span := tracing.StartSpan(ctx, "TrainingService.Complete")
	defer span.End()

	var overall scoring.OverallResult
	session, err := s.mutate(ctx, sessionID, func(session *model.TrainingSession) error {
		phases := session.Phases()
		overall = scoring.Overall(
			phases.Scores[model.PhaseBuoyancy],
			phases.Scores[model.PhaseHatch],
			phases.Scores[model.PhaseRepair],
			phases.Scores[model.PhaseInstallation],
		)

		now := s.now()
		session.OverallScore = overall.OverallScore
		session.Grade = string(overall.Grade)
		session.EndTime = &now
		session.Status = model.SessionCompleted

		perf := session.Performance()
		perf.TotalTimeMs = now.Sub(session.StartTime).Milliseconds()
		session.SetPerformance(perf)
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.SessionsFinished.WithLabelValues(string(model.SessionCompleted), session.Grade).Inc()
	logger.Log.Info("training session completed",
		zap.String("sessionId", sessionID),
		zap.Int("overallScore", overall.OverallScore),
		zap.String("grade", session.Grade))

	s.archive(ctx, session)

	phases := session.Phases()
	return &model.CompletionResult{
		SessionID:    sessionID,
		OverallScore: overall.OverallScore,
		Grade:        overall.Grade,
		PhaseScores:  phases.Scores,
		Completed:    phases.Completed,
		TotalTimeMs:  session.Performance().TotalTimeMs,
		Status:       session.Status,
	}, nil
}

// Abort 调用方放弃训练时将会话标记为 failed，不计算总分
func (s *TrainingService) Abort(ctx context.Context, sessionID string) (*model.TrainingSession, error) {
	ctx, span := tracing.StartSpan(ctx, "TrainingService.Abort")
	defer span.End()

	session, err := s.mutate(ctx, sessionID, func(session *model.TrainingSession) error {
		now := s.now()
		session.EndTime = &now
		session.Status = model.SessionFailed
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.SessionsFinished.WithLabelValues(string(model.SessionFailed), "").Inc()
	logger.Log.Info("training session aborted", zap.String("sessionId", sessionID))
	return session, nil
}

func (s *TrainingService) GetSession(ctx context.Context, sessionID string) (*model.TrainingSession, error) {
	return s.sessions.FindBySessionID(ctx, sessionID)
}

func (s *TrainingService) GetHistory(ctx context.Context, userID string) ([]model.TrainingSession, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", util.ErrInvalidInput)
	}
	sessions, err := s.sessions.ListRecentByUser(ctx, userID, HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("list sessions for %s: %w", userID, err)
	}
	return sessions, nil
}

// archive 报告归档失败不影响已完成的训练
func (s *TrainingService) archive(ctx context.Context, session *model.TrainingSession) {
	if s.archiver == nil {
		return
	}
	snapshot := *session
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := s.archiver.Archive(ctx, &snapshot); err != nil {
			logger.Log.Warn("failed to archive training report",
				zap.String("sessionId", snapshot.SessionID),
				zap.Error(err))
		}
	}()
}
