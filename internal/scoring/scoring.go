// Package scoring 训练各阶段的评分计算，全部为无副作用的纯函数
package scoring

import "math"

type BuoyancyStatus string

const (
	Neutral  BuoyancyStatus = "neutral"
	Sinking  BuoyancyStatus = "sinking"
	Floating BuoyancyStatus = "floating"
)

type Grade string

const (
	GradeAPlus Grade = "A+"
	GradeA     Grade = "A"
	GradeB     Grade = "B"
	GradeC     Grade = "C"
	GradeD     Grade = "D"
	GradeF     Grade = "F"
)

// Params 评分参数
type Params struct {
	BuoyancyTarget    float64
	BuoyancyTolerance float64
	ForceMin          float64
	ForceMax          float64
	TorqueTarget      float64
	TorqueWindow      float64
	PositionTolerance float64
	AngleTolerance    float64
}

func DefaultParams() Params {
	return Params{
		BuoyancyTarget:    230.0,
		BuoyancyTolerance: 0.1,
		ForceMin:          30,
		ForceMax:          60,
		TorqueTarget:      3.0,
		TorqueWindow:      0.5,
		PositionTolerance: 10,
		AngleTolerance:    5,
	}
}

// Normalize 将非正值字段替换为默认值
func (p Params) Normalize() Params {
	d := DefaultParams()
	fill := func(v *float64, def float64) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&p.BuoyancyTarget, d.BuoyancyTarget)
	fill(&p.BuoyancyTolerance, d.BuoyancyTolerance)
	fill(&p.ForceMin, d.ForceMin)
	fill(&p.ForceMax, d.ForceMax)
	fill(&p.TorqueTarget, d.TorqueTarget)
	fill(&p.TorqueWindow, d.TorqueWindow)
	fill(&p.PositionTolerance, d.PositionTolerance)
	fill(&p.AngleTolerance, d.AngleTolerance)
	if p.ForceMax < p.ForceMin {
		p.ForceMin, p.ForceMax = d.ForceMin, d.ForceMax
	}
	return p
}

type BuoyancyResult struct {
	TotalWeight float64        `json:"totalWeight"`
	Error       float64        `json:"buoyancyError"`
	Status      BuoyancyStatus `json:"buoyancyStatus"`
	Score       int            `json:"buoyancyScore"`
}

// Completed 中性浮力时阶段完成
func (r BuoyancyResult) Completed() bool {
	return r.Status == Neutral
}

type ForceResult struct {
	Force     float64 `json:"currentForce"`
	Score     int     `json:"forceScore"`
	IsOptimal bool    `json:"isOptimal"`
}

type TorqueResult struct {
	Torque    float64 `json:"screwTorque"`
	Error     float64 `json:"torqueError"`
	Score     int     `json:"torqueScore"`
	IsInRange bool    `json:"isInRange"`
}

type RepairResult struct {
	TorqueResult
	Progress  int  `json:"repairProgress"`
	Score     int  `json:"repairScore"`
	Completed bool `json:"-"`
}

type InstallationResult struct {
	PositionError float64 `json:"positionError"`
	AngleError    float64 `json:"angleError"`
	PositionScore int     `json:"positionScore"`
	AngleScore    int     `json:"angleScore"`
	Score         int     `json:"installationScore"`
	IsPrecise     bool    `json:"isPrecise"`
}

type OverallResult struct {
	OverallScore int   `json:"overallScore"`
	Grade        Grade `json:"grade"`
}

// round 四舍五入，.5 远离零
func round(v float64) int {
	return int(math.Round(v))
}

func Buoyancy(p Params, userWeight, suitWeight, additionalWeight float64) BuoyancyResult {
	total := userWeight + suitWeight + additionalWeight
	diff := math.Abs(total - p.BuoyancyTarget)

	status := Floating
	switch {
	case diff <= p.BuoyancyTolerance:
		status = Neutral
	case total > p.BuoyancyTarget:
		status = Sinking
	}

	return BuoyancyResult{
		TotalWeight: total,
		Error:       diff,
		Status:      status,
		Score:       round(math.Max(0, 100-diff*100)),
	}
}

func GripForce(p Params, force float64) ForceResult {
	optimal := force >= p.ForceMin && force <= p.ForceMax

	var score float64
	switch {
	case optimal:
		score = 100
	case force < p.ForceMin:
		score = math.Max(0, force/p.ForceMin*50)
	default:
		score = math.Max(0, 100-(force-p.ForceMax)*2)
	}

	return ForceResult{Force: force, Score: round(score), IsOptimal: optimal}
}

func Torque(p Params, torque float64) TorqueResult {
	diff := math.Abs(torque - p.TorqueTarget)
	return TorqueResult{
		Torque:    torque,
		Error:     diff,
		Score:     round(math.Max(0, 100-diff*20)),
		IsInRange: diff <= p.TorqueWindow,
	}
}

// Repair 扭矩得分按螺丝完成比例折算。total 必须为正
func Repair(p Params, torque float64, completed, total int) RepairResult {
	t := Torque(p, torque)
	progress := float64(completed) / float64(total) * 100
	return RepairResult{
		TorqueResult: t,
		Progress:     round(progress),
		Score:        round(float64(t.Score) * progress / 100),
		Completed:    completed >= total,
	}
}

func Installation(p Params, positionError, angleError float64) InstallationResult {
	positionScore := math.Max(0, 100-positionError/p.PositionTolerance*100)
	angleScore := math.Max(0, 100-angleError/p.AngleTolerance*100)

	return InstallationResult{
		PositionError: positionError,
		AngleError:    angleError,
		PositionScore: round(positionScore),
		AngleScore:    round(angleScore),
		Score:         round((positionScore + angleScore) / 2),
		IsPrecise:     positionError <= p.PositionTolerance && angleError <= p.AngleTolerance,
	}
}

// Overall 等级按未取整的平均分判定
func Overall(buoyancy, force, repair, installation int) OverallResult {
	mean := float64(buoyancy+force+repair+installation) / 4
	return OverallResult{OverallScore: round(mean), Grade: GradeFor(mean)}
}

func GradeFor(score float64) Grade {
	switch {
	case score >= 95:
		return GradeAPlus
	case score >= 90:
		return GradeA
	case score >= 80:
		return GradeB
	case score >= 70:
		return GradeC
	case score >= 60:
		return GradeD
	default:
		return GradeF
	}
}
