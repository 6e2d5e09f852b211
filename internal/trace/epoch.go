package trace

import (
	"sync/atomic"
	"time"

	"github.com/beevik/ntp"
)

const defaultNTPPool = "pool.ntp.org"

// ntpQuery is overridden by tests to avoid a real network call.
var ntpQuery = ntp.Query

var startingEpoch atomic.Int64 // unix micros, process-wide singleton

// Init stamps the process-wide starting epoch exactly once; later
// calls are no-ops so a restart of the trace subsystem mid-process
// never rewinds it.
func Init(epoch time.Time) {
	startingEpoch.CompareAndSwap(0, epoch.UnixMicro())
}

func startingEpochMicros() int64 { return startingEpoch.Load() }

func nowMicros() int64 { return time.Now().UnixMicro() }

// CalibrateEpoch queries pool for the current NTP-corrected time,
// falling back to the uncorrected local clock and returning the query
// error for the caller to log. NTP is advisory only — never fatal; a
// failed query is a reported status, not a startup failure.
func CalibrateEpoch(pool string) (time.Time, error) {
	if pool == "" {
		pool = defaultNTPPool
	}
	resp, err := ntpQuery(pool)
	if err != nil {
		return time.Now(), err
	}
	return time.Now().Add(resp.ClockOffset), nil
}
