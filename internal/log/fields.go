package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldPlanID      = "plan_id"
	FieldPlanDesc    = "plan_description"
	FieldFrequency   = "frequency"
	FieldAmountCents = "amount_cents"
	FieldCurrency    = "currency"
	FieldWalletID    = "wallet_id"
	FieldCategoryID  = "category_id"
	FieldAsOf        = "as_of"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentPlans     = "plans"
	ComponentExecutor  = "executor"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentScheduler = "scheduler"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpExecute  = "execute"
	OpValidate = "validate"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)
