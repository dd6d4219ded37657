package bank

// Interest rate models. A market carries exactly one model variant; the
// dynamic variant additionally keeps runtime throttling state separate from
// its immutable parameters so swapping parameters never carries stale
// counters along.

// LinearModel is the stateless kinked borrow-rate curve. The rate is
// recomputed from utilization on every call.
type LinearModel struct {
	Base               Dec `json:"base"`
	Slope1             Dec `json:"slope1"`
	Slope2             Dec `json:"slope2"`
	OptimalUtilization Dec `json:"optimalUtilization"`
}

func (m LinearModel) Validate() error {
	if m.OptimalUtilization.IsNegative() || m.OptimalUtilization.GT(OneDec()) {
		return errInvalidRateModel
	}
	if m.Base.IsNegative() || m.Slope1.IsNegative() || m.Slope2.IsNegative() {
		return errInvalidRateModel
	}
	return nil
}

// BorrowRate evaluates the curve at the given utilization:
// below the kink the rate climbs along slope1, above it along slope2.
func (m LinearModel) BorrowRate(utilization Dec) Dec {
	rate := m.Base
	if m.OptimalUtilization.IsZero() {
		return rate.Add(m.Slope1.Mul(minDec(utilization, OneDec())))
	}
	below := minDec(utilization, m.OptimalUtilization)
	rate = rate.Add(m.Slope1.Mul(below.Quo(m.OptimalUtilization)))
	if utilization.GT(m.OptimalUtilization) {
		excess := utilization.Sub(m.OptimalUtilization)
		span := OneDec().Sub(m.OptimalUtilization)
		if !span.IsZero() {
			rate = rate.Add(m.Slope2.Mul(excess.Quo(span)))
		}
	}
	return rate
}

// DynamicModel is a proportional controller nudging the borrow rate toward
// the optimal utilization. Recomputation is throttled: the rate only moves
// once either a time threshold or a transaction-count threshold has been
// exceeded since the previous update, which protects the market against
// update flooding.
type DynamicModel struct {
	MinBorrowRate           Dec `json:"minBorrowRate"`
	MaxBorrowRate           Dec `json:"maxBorrowRate"`
	OptimalUtilization      Dec `json:"optimalUtilization"`
	Kp1                     Dec `json:"kp1"`
	Kp2                     Dec `json:"kp2"`
	KpAugmentationThreshold Dec `json:"kpAugmentationThreshold"`

	UpdateThresholdSeconds int64  `json:"updateThresholdSeconds"`
	UpdateThresholdTxs     uint32 `json:"updateThresholdTxs"`
}

func (m DynamicModel) Validate() error {
	if !m.MinBorrowRate.LT(m.MaxBorrowRate) {
		return errInvalidRateModel
	}
	if m.OptimalUtilization.IsNegative() || m.OptimalUtilization.GT(OneDec()) {
		return errInvalidRateModel
	}
	return nil
}

// NextRate moves the current rate against the utilization error. When the
// error magnitude exceeds the augmentation threshold the stronger Kp2 gain is
// applied. The result is clamped into [MinBorrowRate, MaxBorrowRate].
func (m DynamicModel) NextRate(current, utilization Dec) Dec {
	err := m.OptimalUtilization.Sub(utilization)
	absErr := err
	if absErr.IsNegative() {
		absErr = ZeroDec().Sub(absErr)
	}
	kp := m.Kp1
	if absErr.GTE(m.KpAugmentationThreshold) && !m.KpAugmentationThreshold.IsZero() {
		kp = m.Kp2
	}
	next := current.Sub(kp.Mul(err))
	next = maxDec(next, m.MinBorrowRate)
	next = minDec(next, m.MaxBorrowRate)
	return next
}

// RateState is the mutable throttling state of a dynamic model. It lives next
// to the model parameters in the market record but is a distinct value so
// parameter updates can preserve or reset it explicitly.
type RateState struct {
	BorrowRateLastUpdated int64  `json:"borrowRateLastUpdated"`
	TxsSinceLastUpdate    uint32 `json:"txsSinceLastUpdate"`
}

// shouldUpdate reports whether enough time or traffic has passed for the
// dynamic model to recompute.
func (s RateState) shouldUpdate(m DynamicModel, now int64) bool {
	if now-s.BorrowRateLastUpdated >= m.UpdateThresholdSeconds {
		return true
	}
	return s.TxsSinceLastUpdate+1 >= m.UpdateThresholdTxs
}

// InterestRateModel is the tagged union stored on a market. Exactly one
// variant must be set.
type InterestRateModel struct {
	Linear  *LinearModel  `json:"linear,omitempty"`
	Dynamic *DynamicModel `json:"dynamic,omitempty"`
}

func (m InterestRateModel) Validate() error {
	switch {
	case m.Linear != nil && m.Dynamic == nil:
		return m.Linear.Validate()
	case m.Dynamic != nil && m.Linear == nil:
		return m.Dynamic.Validate()
	default:
		return errInvalidRateModel
	}
}

// borrowRate resolves the next borrow rate for the market. For the dynamic
// variant the rate state is advanced in place; the returned flag reports
// whether the rate was actually recomputed.
func (m InterestRateModel) borrowRate(current, utilization Dec, state *RateState, now int64) (Dec, bool) {
	switch {
	case m.Linear != nil:
		return m.Linear.BorrowRate(utilization), true
	case m.Dynamic != nil:
		if state == nil {
			return current, false
		}
		if !state.shouldUpdate(*m.Dynamic, now) {
			state.TxsSinceLastUpdate++
			return current, false
		}
		state.BorrowRateLastUpdated = now
		state.TxsSinceLastUpdate = 0
		return m.Dynamic.NextRate(current, utilization), true
	default:
		return current, false
	}
}
