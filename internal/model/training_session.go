package model

import (
	"time"

	"gorm.io/datatypes"
)

type TrainingType string

const (
	TrainingNBL    TrainingType = "nbl"
	TrainingCupola TrainingType = "cupola" // 预留
)

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// PhaseCount 训练阶段数量
const PhaseCount = 4

// Phase 阶段在分数数组中的固定下标
type Phase int

const (
	PhaseBuoyancy Phase = iota
	PhaseHatch
	PhaseRepair
	PhaseInstallation
)

var phaseNames = [PhaseCount]string{"buoyancy", "hatch", "repair", "installation"}

func (p Phase) String() string {
	if p < 0 || int(p) >= PhaseCount {
		return "unknown"
	}
	return phaseNames[p]
}

// PhaseData 四个阶段的得分与完成标记，长度固定
type PhaseData struct {
	CurrentPhase int              `json:"currentPhase"`
	Scores       [PhaseCount]int  `json:"phaseScores"`
	Completed    [PhaseCount]bool `json:"phaseCompleted"`
}

func NewPhaseData() PhaseData {
	return PhaseData{CurrentPhase: 1}
}

// Record 覆盖写入某一阶段的得分。CurrentPhase 指向第一个未完成阶段（1 起），全部完成时为 PhaseCount
func (d *PhaseData) Record(p Phase, score int, completed bool) {
	d.Scores[p] = score
	d.Completed[p] = completed

	d.CurrentPhase = PhaseCount
	for i, done := range d.Completed {
		if !done {
			d.CurrentPhase = i + 1
			break
		}
	}
}

// PerformanceMetrics 累计耗时与尝试次数
type PerformanceMetrics struct {
	TotalTimeMs int64 `json:"totalTime"`
	Attempts    int   `json:"attempts"`
}

// TrainingSession 一次训练尝试
// swagger:model TrainingSession
type TrainingSession struct {
	BaseModel
	SessionID    string                                 `gorm:"size:64;uniqueIndex;not null" json:"sessionId"`
	UserID       string                                 `gorm:"size:64;index;not null" json:"userId"`
	TrainingType TrainingType                           `gorm:"size:20;default:'nbl'" json:"trainingType"`
	StartTime    time.Time                              `json:"startTime"`
	EndTime      *time.Time                             `json:"endTime"`
	PhaseData    datatypes.JSONType[PhaseData]          `json:"phaseData"`
	Metrics      datatypes.JSONType[PerformanceMetrics] `json:"performanceMetrics"`
	OverallScore int                                    `gorm:"default:0" json:"overallScore"`
	Grade        string                                 `gorm:"size:4;default:'F'" json:"grade"`
	Status       SessionStatus                          `gorm:"size:20;index;default:'active'" json:"status"`
}

func (TrainingSession) TableName() string {
	return "training_sessions"
}

func (s *TrainingSession) IsActive() bool {
	return s.Status == SessionActive
}

// Phases 返回阶段数据副本
func (s *TrainingSession) Phases() PhaseData {
	return s.PhaseData.Data()
}

func (s *TrainingSession) SetPhases(d PhaseData) {
	s.PhaseData = datatypes.NewJSONType(d)
}

func (s *TrainingSession) Performance() PerformanceMetrics {
	return s.Metrics.Data()
}

func (s *TrainingSession) SetPerformance(m PerformanceMetrics) {
	s.Metrics = datatypes.NewJSONType(m)
}
