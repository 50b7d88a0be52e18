package dto

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username    string `json:"username" binding:"required,username"`
	Password    string `json:"password" binding:"required,min=6"`
	DisplayName string `json:"display_name" binding:"omitempty,max=100"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	User        UserInfo `json:"user"`
}

// UserInfo 用户信息
type UserInfo struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	IsActive    bool   `json:"is_active"`
	IsAdmin     bool   `json:"is_admin"`
}

// UpdateProfileRequest 修改个人资料
type UpdateProfileRequest struct {
	DisplayName string `json:"display_name" binding:"required,max=100"`
}
