package domain

// UpdateNotificationsRequest toggles daily checkpoint notifications
type UpdateNotificationsRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// RegisterDeviceTokenRequest binds a push device token to a user
type RegisterDeviceTokenRequest struct {
	DeviceToken string `json:"device_token" binding:"required"`
}

// SendCheckpointRequest triggers an immediate checkpoint send. The send is
// still subject to the owner gate and the device slot lock.
type SendCheckpointRequest struct {
	Email      string         `json:"email" binding:"required,email"`
	Checkpoint CheckpointType `json:"checkpoint" binding:"required"`
}

// GetNudgesRequest lists a user's goal-linked reminders
type GetNudgesRequest struct {
	Email    string      `form:"email" binding:"required"`
	Status   NudgeStatus `form:"status"`
	Page     int         `form:"page"`
	PageSize int         `form:"page_size"`
}

// GetHistoryRequest lists a user's checkpoint send history
type GetHistoryRequest struct {
	Email    string `form:"email" binding:"required"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}
