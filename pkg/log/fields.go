package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor (matches pkg/middleware/auth.go keys)
	FieldSubject = "subject"
	FieldUserID  = "user_id"

	// Service
	FieldService  = "service"
	FieldInstance = "instance"

	// Hub
	FieldClientID = "client_id"
	FieldMsgType  = "msg_type"
	FieldStreamID = "stream_id"
	FieldViewerID = "viewer_id"
	FieldRoomID   = "room_id"
	FieldSession  = "prayer_session_id"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
