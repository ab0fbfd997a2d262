package dtos

type UpdateProfileRequest struct {
	DisplayName string `json:"displayName" binding:"required"`
}

type UpdateEmailCodeRequest struct {
	EmailCode string `json:"emailCode" binding:"required"`
}
