package logic

// Reading is one line read-back. OK is false when the read failed, in which
// case Level is meaningless and the line is left out of reconciliation.
type Reading struct {
	Level int
	OK    bool
}

// Drift describes a relay whose displayed state no longer matches the line.
type Drift struct {
	Index int  // 0-based relay index
	On    bool // observed logical state
}

// Reconcile compares displayed relay states with line read-backs and returns
// the relays that must be republished, in relay order.
func Reconcile(displayed [NumRelays]bool, readings [NumRelays]Reading, p Polarity) []Drift {
	var drifts []Drift
	for i, r := range readings {
		if !r.OK {
			continue
		}
		on := ToLogical(r.Level, p)
		if on != displayed[i] {
			drifts = append(drifts, Drift{Index: i, On: on})
		}
	}
	return drifts
}
