// Package gas implements the two monotonic debit counters that ride with
// every dispatch execution -- the per-message gas counter and the
// per-block gas allowance counter -- plus the Schedule cost table that
// assigns a price to every chargeable event in the runtime.
//
// The two counters are charged together by Charge, but only the gas
// counter is credited by Refund: allowance is a block-wide resource that a
// single message can never get back once spent.
package gas

// Outcome is the result of a Counter.Charge call.
type Outcome uint8

const (
	// Charged means both counters had enough headroom and were debited.
	Charged Outcome = iota
	// NotEnoughGas means the per-message counter could not cover the cost.
	// Policy: this terminates the actor with Trap(GasLimitExceeded).
	NotEnoughGas
	// NotEnoughAllowance means the per-block counter could not cover the
	// cost even though the per-message counter could. Policy: this is
	// recoverable -- the dispatch is requeued and StopProcessing is
	// journalled instead of faulting the actor.
	NotEnoughAllowance
)

// Counter tracks a message's gas budget alongside the block's remaining gas
// allowance. Both counters only ever move down via Charge; Refund credits
// only the gas counter, matching the policy that allowance is never
// refunded mid-block.
type Counter struct {
	limit     uint64
	allowance uint64

	gasLeft     uint64
	allowLeft   uint64
	burnedTotal uint64
}

// NewCounter creates a Counter for a message with the given gas limit,
// sharing the block's remaining allowance.
func NewCounter(limit, allowance uint64) *Counter {
	return &Counter{
		limit:     limit,
		allowance: allowance,
		gasLeft:   limit,
		allowLeft: allowance,
	}
}

// Charge attempts to debit cost from both counters atomically: if either
// counter lacks headroom, neither is modified and the corresponding Outcome
// is returned. Gas is checked before allowance, matching the policy that an
// out-of-gas actor trap takes priority when a message has exhausted both
// resources in the same step.
func (c *Counter) Charge(cost uint64) Outcome {
	if cost > c.gasLeft {
		return NotEnoughGas
	}
	if cost > c.allowLeft {
		return NotEnoughAllowance
	}
	c.gasLeft -= cost
	c.allowLeft -= cost
	c.burnedTotal += cost
	return Charged
}

// Refund credits amount back to the gas counter only. It never exceeds the
// original limit, matching the invariant that burned() + left() + refunds
// this execution never produces more gas than the message started with.
func (c *Counter) Refund(amount uint64) {
	c.gasLeft += amount
	if c.gasLeft > c.limit {
		c.gasLeft = c.limit
	}
	if amount > c.burnedTotal {
		c.burnedTotal = 0
	} else {
		c.burnedTotal -= amount
	}
}

// Burned returns the amount debited from the gas counter since construction,
// net of any refunds.
func (c *Counter) Burned() uint64 { return c.burnedTotal }

// GasLeft returns the message's remaining gas counter value.
func (c *Counter) GasLeft() uint64 { return c.gasLeft }

// AllowanceLeft returns the block's remaining allowance counter value.
func (c *Counter) AllowanceLeft() uint64 { return c.allowLeft }

// Left returns the minimum of the two counters: the actual amount of work
// this execution can still afford before hitting either ceiling.
func (c *Counter) Left() uint64 {
	if c.gasLeft < c.allowLeft {
		return c.gasLeft
	}
	return c.allowLeft
}
