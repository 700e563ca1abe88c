package logger

// Standard field names for consistent logging.
const (
	FieldService   = "service"
	FieldComponent = "component"
	FieldOperation = "operation"
	FieldError     = "error"
	FieldUserID    = "user_id"
	FieldChatID    = "chat_id"
	FieldDialogue  = "dialogue"
	FieldStep      = "step"
	FieldAdminID   = "admin_id"
	FieldTargetID  = "target_id"
)
