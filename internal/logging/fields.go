package logging

// Standard field names for consistent logging across the application.
const (
	FieldOperationID = "operation_id"
	FieldOperation   = "operation"
	FieldVPC         = "vpc"
	FieldSubnet      = "subnet"
	FieldPeering     = "peering"
	FieldResource    = "resource"
	FieldStep        = "step"
	FieldCommand     = "command"
	FieldExitCode    = "exit_code"
	FieldStderr      = "stderr"
	FieldDuration    = "duration"
	FieldPath        = "path"
	FieldMethod      = "method"
	FieldStatusCode  = "status_code"
	FieldRequestID   = "request_id"
	FieldRemoteAddr  = "remote_addr"
)
