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
	FieldOperatorID = "operator_id"

	// Service
	FieldService  = "service"
	FieldInstance = "instance_id"

	// Overlay
	FieldSessionID   = "session_id"
	FieldContentID   = "content_id"
	FieldContentType = "content_type"
	FieldEventType   = "event_type"
	FieldShow        = "show"
	FieldVersion     = "version"
	FieldSubscriber  = "subscriber_id"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
