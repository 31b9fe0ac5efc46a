package shared

// OutboxStatus defines message publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)

// Actor identifiers used when the system itself performs a change
const (
	ActorSystem     = "system"
	ActorRiskEngine = "risk_engine"
	ActorScheduler  = "lifecycle_scheduler"
)

// ActionAccountFrozen is reported to callers when the risk engine froze the acting identity
const ActionAccountFrozen = "account_frozen"
