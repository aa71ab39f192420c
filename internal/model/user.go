package model

type ExperienceLevel string

const (
	Beginner     ExperienceLevel = "beginner"
	Intermediate ExperienceLevel = "intermediate"
	Advanced     ExperienceLevel = "advanced"
)

const (
	DefaultUserWeight = 70.0
	DefaultUserHeight = 175.0
)

// User 训练者档案，首次开始训练时创建
// swagger:model User
type User struct {
	BaseModel
	UserID          string          `gorm:"size:64;uniqueIndex;not null" json:"userId"`
	Username        string          `gorm:"size:100;uniqueIndex;not null" json:"username"`
	Weight          float64         `gorm:"not null;default:70" json:"weight"`
	Height          float64         `gorm:"not null;default:175" json:"height"`
	ExperienceLevel ExperienceLevel `gorm:"size:20;default:'beginner'" json:"experienceLevel"`
}

func (User) TableName() string {
	return "users"
}
