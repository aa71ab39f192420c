package model

import "nbl_training_backend/internal/scoring"

// TrainingProfile 开始训练时可选的档案数据
type TrainingProfile struct {
	Username        string          `json:"username"`
	UserWeight      float64         `json:"userWeight"`
	UserHeight      float64         `json:"userHeight"`
	ExperienceLevel ExperienceLevel `json:"experienceLevel"`
}

type UserData struct {
	Weight          float64         `json:"weight"`
	Height          float64         `json:"height"`
	ExperienceLevel ExperienceLevel `json:"experienceLevel"`
}

type StartResult struct {
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	PhaseData PhaseData `json:"phaseData"`
	UserData  UserData  `json:"userData"`
}

type BuoyancyInput struct {
	UserWeight       float64
	SuitWeight       float64
	AdditionalWeight float64
	ElapsedMs        int64
}

type BuoyancyOutcome struct {
	scoring.BuoyancyResult
	PhaseCompleted bool `json:"phaseCompleted"`
}

type HatchInput struct {
	Force      float64
	HoldTimeMs int64
	Attempts   int
}

type HatchOutcome struct {
	scoring.ForceResult
	HoldTimeMs     int64 `json:"holdTime"`
	PhaseCompleted bool  `json:"phaseCompleted"`
}

type RepairInput struct {
	Torque          float64
	CompletedScrews int
	ScrewCount      int
	ElapsedMs       int64
}

type RepairOutcome struct {
	scoring.RepairResult
	PhaseCompleted bool `json:"phaseCompleted"`
}

type InstallationInput struct {
	PositionError   float64
	AngleError      float64
	StabilityTimeMs int64
}

type InstallationOutcome struct {
	scoring.InstallationResult
	PhaseCompleted bool `json:"phaseCompleted"`
}

type CompletionResult struct {
	SessionID    string           `json:"sessionId"`
	OverallScore int              `json:"overallScore"`
	Grade        scoring.Grade    `json:"grade"`
	PhaseScores  [PhaseCount]int  `json:"phaseScores"`
	Completed    [PhaseCount]bool `json:"phaseCompleted"`
	TotalTimeMs  int64            `json:"totalTime"`
	Status       SessionStatus    `json:"status"`
}
