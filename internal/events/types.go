package events

// Event enumerates high-level topics published on the Bus.
type Event string

const (
	EventPriceTick       Event = "price_tick"
	EventSignalEmitted   Event = "signal.emitted"
	EventTradeOpened     Event = "trade.opened"
	EventTradeClosed     Event = "trade.closed"
	EventRoyaltyRecorded Event = "royalty.recorded"
	EventStrategyStatus  Event = "strategy.status_changed"
	EventPlanUpdated     Event = "plan.updated"
	EventBillingLocked   Event = "billing.locked"
	EventRegimeChanged   Event = "regime.changed"
	EventRiskAlert       Event = "risk.alert"
)
