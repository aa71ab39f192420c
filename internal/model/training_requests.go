package model

import (
	"fmt"
	"math"
)

// 请求体同时用于 HTTP 绑定与 WebSocket 事件校验。
// 允许为 0 的必填数值使用指针，否则 required 会拒绝 0

type StartProfileRequest struct {
	Username        string          `json:"username" binding:"omitempty,max=64"`
	UserWeight      float64         `json:"userWeight" binding:"required,min=30,max=200"`
	UserHeight      float64         `json:"userHeight" binding:"required,min=100,max=250"`
	ExperienceLevel ExperienceLevel `json:"experienceLevel" binding:"required,oneof=beginner intermediate advanced"`
}

type StartTrainingRequest struct {
	UserID       string               `json:"userId" binding:"required,min=5,max=64"`
	TrainingData *StartProfileRequest `json:"trainingData"`
}

func (r StartTrainingRequest) Profile() *TrainingProfile {
	if r.TrainingData == nil {
		return nil
	}
	return &TrainingProfile{
		Username:        r.TrainingData.Username,
		UserWeight:      r.TrainingData.UserWeight,
		UserHeight:      r.TrainingData.UserHeight,
		ExperienceLevel: r.TrainingData.ExperienceLevel,
	}
}

// WeightDistribution 配重在胸、腰、脚踝的分布 (kg)
type WeightDistribution struct {
	Chest  *float64 `json:"chest" binding:"required,min=0,max=20"`
	Belt   *float64 `json:"belt" binding:"required,min=0,max=15"`
	Ankles *float64 `json:"ankles" binding:"required,min=0,max=15"`
}

func (w WeightDistribution) Total() float64 {
	return deref(w.Chest) + deref(w.Belt) + deref(w.Ankles)
}

type BuoyancyRequest struct {
	UserWeight       float64             `json:"userWeight" binding:"required,min=30,max=200"`
	SuitWeight       float64             `json:"suitWeight" binding:"required,min=100,max=300"`
	AdditionalWeight *float64            `json:"additionalWeight" binding:"required,min=0,max=50"`
	AdjustmentTime   float64             `json:"adjustmentTime" binding:"min=0,max=300000"`
	Weights          *WeightDistribution `json:"weights"`
}

// Validate 配重分布存在时，其合计必须等于 additionalWeight
func (r BuoyancyRequest) Validate() error {
	if r.Weights == nil {
		return nil
	}
	total := r.Weights.Total()
	if math.Abs(total-deref(r.AdditionalWeight)) > 0.01 {
		return fmt.Errorf("weight distribution totals %.2f, additionalWeight is %.2f", total, deref(r.AdditionalWeight))
	}
	return nil
}

func (r BuoyancyRequest) Input() BuoyancyInput {
	return BuoyancyInput{
		UserWeight:       r.UserWeight,
		SuitWeight:       r.SuitWeight,
		AdditionalWeight: deref(r.AdditionalWeight),
		ElapsedMs:        millis(r.AdjustmentTime),
	}
}

type HatchRequest struct {
	CurrentForce    *float64 `json:"currentForce" binding:"required,min=0,max=200"`
	HoldTime        *float64 `json:"holdTime" binding:"required,min=0,max=10000"`
	CurrentAttempts int      `json:"currentAttempts" binding:"omitempty,min=1,max=10"`
}

func (r HatchRequest) Input() HatchInput {
	return HatchInput{Force: deref(r.CurrentForce), HoldTimeMs: millis(deref(r.HoldTime)), Attempts: r.CurrentAttempts}
}

type RepairRequest struct {
	ScrewTorque     *float64 `json:"screwTorque" binding:"required,min=0,max=50"`
	CompletedScrews *int     `json:"completedScrews" binding:"required,min=0,max=8"`
	ScrewCount      int      `json:"screwCount" binding:"required,eq=8"`
	RepairTime      float64  `json:"repairTime" binding:"min=0,max=300000"`
}

func (r RepairRequest) Input() RepairInput {
	var done int
	if r.CompletedScrews != nil {
		done = *r.CompletedScrews
	}
	return RepairInput{
		Torque:          deref(r.ScrewTorque),
		CompletedScrews: done,
		ScrewCount:      r.ScrewCount,
		ElapsedMs:       millis(r.RepairTime),
	}
}

type InstallationRequest struct {
	PositionError *float64 `json:"positionError" binding:"required,min=0,max=100"`
	AngleError    *float64 `json:"angleError" binding:"required,min=0,max=180"`
	StabilityTime *float64 `json:"stabilityTime" binding:"required,min=0,max=10000"`
}

func (r InstallationRequest) Input() InstallationInput {
	return InstallationInput{
		PositionError:   deref(r.PositionError),
		AngleError:      deref(r.AngleError),
		StabilityTimeMs: millis(deref(r.StabilityTime)),
	}
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// millis 客户端计时可能带小数，按毫秒取整
func millis(v float64) int64 {
	return int64(math.Round(v))
}
