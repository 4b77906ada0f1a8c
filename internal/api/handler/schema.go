package handler

// Page is the paginated list envelope.
type Page[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Total   int64  `json:"total"`
	Page    int    `json:"page"`
	Size    int    `json:"size"`
	Items   []*T   `json:"items"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type pageQuery struct {
	Skip  int `query:"skip"  validate:"gte=0"`
	Limit int `query:"limit" validate:"gte=0"`
}

type loginForm struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

// updateMeRequest is the self-service update. Role and status flags are not
// accepted here.
type updateMeRequest struct {
	Email    *string `json:"email"     validate:"omitempty,email"`
	Username *string `json:"username"  validate:"omitempty,min=1,max=64"`
	FullName *string `json:"full_name"`
	Password *string `json:"password"  validate:"omitempty,min=1,max=72"`
}

type taskResponse struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}

type exampleTaskRequest struct {
	Word string `json:"word" validate:"required"`
}

type processDataRequest struct {
	Data map[string]any `json:"data" validate:"required"`
}

type taskStatusResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

type adminActionResponse struct {
	Message string `json:"message"`
	UserID  int64  `json:"user_id"`
}
