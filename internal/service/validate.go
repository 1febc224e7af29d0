package service

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRequest 请求参数校验失败
var ErrInvalidRequest = errors.New("请求参数无效")

// 与 gin 共用 binding 标签，服务层被直接调用（定时任务、测试）时同样校验
var requestValidator = func() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	return v
}()

func validateRequest(req interface{}) error {
	if err := requestValidator.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}
