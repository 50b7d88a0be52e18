package dto

// PaginatedResponse 分页响应
type PaginatedResponse struct {
	Items   interface{} `json:"data"`
	Total   int64       `json:"total"`
	Page    int         `json:"page"`
	PerPage int         `json:"per_page"`
}

// ModelListResponse 模型列表响应
type ModelListResponse struct {
	Success bool                  `json:"success"`
	Models  []ModelConfigResponse `json:"models"`
	Total   int64                 `json:"total"`
}

// ErrorBody 分析类接口的错误响应
type ErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// CursorQuery 游标分页参数
type CursorQuery struct {
	Cursor string `form:"cursor"`
	Limit  int    `form:"limit" binding:"omitempty,min=1"`
}
