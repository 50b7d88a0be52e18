package utils

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var usernamePattern = regexp.MustCompile("^[a-zA-Z0-9_]+$")

// InitValidator 在 gin 的校验引擎上注册自定义规则，字段名使用 json 标签
func InitValidator() error {
	v := GetValidator()
	if v == nil {
		return errors.New("gin 校验引擎不是 validator/v10")
	}
	v.RegisterTagNameFunc(jsonTagName)
	return v.RegisterValidation("username", validateUsername)
}

// GetValidator 获取 gin 使用的验证器实例
func GetValidator() *validator.Validate {
	v, _ := binding.Validator.Engine().(*validator.Validate)
	return v
}

// validateUsername 验证用户名
func validateUsername(fl validator.FieldLevel) bool {
	username := fl.Field().String()
	if len(username) < 3 || len(username) > 50 {
		return false
	}
	return usernamePattern.MatchString(username)
}

// ValidateStruct 按 binding 标签验证结构体，用于批量上报中逐条校验
func ValidateStruct(s interface{}) error {
	if err := binding.Validator.ValidateStruct(s); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// BindError 将请求绑定错误转为可读信息
func BindError(err error) string {
	return formatValidationError(err).Error()
}

// formatValidationError 格式化验证错误
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		field := e.Field()
		param := e.Param()

		var message string
		switch e.Tag() {
		case "required":
			message = fmt.Sprintf("%s是必填字段", field)
		case "min":
			message = fmt.Sprintf("%s不能小于%s", field, param)
		case "max":
			message = fmt.Sprintf("%s不能大于%s", field, param)
		case "len":
			message = fmt.Sprintf("%s长度必须为%s", field, param)
		case "oneof":
			message = fmt.Sprintf("%s必须是以下之一: %s", field, param)
		case "latitude", "longitude":
			message = fmt.Sprintf("%s不是有效的坐标", field)
		case "username":
			message = fmt.Sprintf("%s只能包含字母、数字和下划线，长度3-50", field)
		default:
			message = fmt.Sprintf("%s验证失败: %s", field, e.Tag())
		}
		messages = append(messages, message)
	}

	return errors.New(strings.Join(messages, "; "))
}

// jsonTagName 错误信息中使用 json 字段名
func jsonTagName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" {
		return f.Name
	}
	name := strings.Split(tag, ",")[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}
