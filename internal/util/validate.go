package util

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
)

// Validatable 字段标签之外的跨字段校验
type Validatable interface {
	Validate() error
}

// ValidateRequest 对非 HTTP 入口（WebSocket 事件）执行与 gin 绑定相同的校验
func ValidateRequest(req interface{}) error {
	if err := binding.Validator.ValidateStruct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return CheckRequest(req)
}

// CheckRequest 只执行 Validate()，供 ShouldBindJSON 之后调用
func CheckRequest(req interface{}) error {
	if v, ok := req.(Validatable); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	return nil
}

func ValidSessionID(id string) error {
	if len(id) < MinSessionIDLength {
		return fmt.Errorf("%w: invalid session id", ErrInvalidInput)
	}
	return nil
}

func ValidUserID(id string) error {
	if len(id) < MinUserIDLength {
		return fmt.Errorf("%w: invalid user id", ErrInvalidInput)
	}
	return nil
}
