package types

// eventCollections maps every registered event type name to its target
// collection, so components that only know an event type string (the
// Backfill Scheduler's per-event-type configuration) can query the right
// collection without holding a decoded instance.
var eventCollections = map[string]string{
	TokenCreationEvent{}.EventType():        TokenCreationEvent{}.Collection(),
	PoolCreationEvent{}.EventType():         PoolCreationEvent{}.Collection(),
	NftClaimEvent{}.EventType():             NftClaimEvent{}.Collection(),
	RewardDistributionEvent{}.EventType():   RewardDistributionEvent{}.Collection(),
	LpChangeEvent{}.EventType():             LpChangeEvent{}.Collection(),
	DepositEvent{}.EventType():              DepositEvent{}.Collection(),
	LaunchEvent{}.EventType():                LaunchEvent{}.Collection(),
	SwapEvent{}.EventType():                 SwapEvent{}.Collection(),
}

// CollectionForEventType returns the collection name the given event
// type name persists to, and whether it's a recognized event type.
func CollectionForEventType(eventType string) (string, bool) {
	c, ok := eventCollections[eventType]
	return c, ok
}
