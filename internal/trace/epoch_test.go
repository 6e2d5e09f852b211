package trace

import (
	"errors"
	"testing"
	"time"

	"github.com/beevik/ntp"
)

func TestCalibrateEpoch_UsesOffsetOnSuccess(t *testing.T) {
	orig := ntpQuery
	defer func() { ntpQuery = orig }()

	offset := 250 * time.Millisecond
	ntpQuery = func(host string) (*ntp.Response, error) {
		return &ntp.Response{ClockOffset: offset}, nil
	}

	before := time.Now()
	got, err := CalibrateEpoch("pool.ntp.org")
	if err != nil {
		t.Fatalf("CalibrateEpoch: %v", err)
	}
	if got.Before(before) {
		t.Fatal("CalibrateEpoch returned a time before the call started")
	}
}

func TestCalibrateEpoch_FallsBackToLocalClockOnError(t *testing.T) {
	orig := ntpQuery
	defer func() { ntpQuery = orig }()

	wantErr := errors.New("no route to ntp pool")
	ntpQuery = func(host string) (*ntp.Response, error) {
		return nil, wantErr
	}

	before := time.Now()
	got, err := CalibrateEpoch("")
	if !errors.Is(err, wantErr) {
		t.Fatalf("CalibrateEpoch err = %v, want %v", err, wantErr)
	}
	if got.Before(before) {
		t.Fatal("CalibrateEpoch did not fall back to a current local time")
	}
}

func TestInit_OnlyStampsOnce(t *testing.T) {
	startingEpoch.Store(0)
	first := time.UnixMicro(1000)
	second := time.UnixMicro(2000)

	Init(first)
	Init(second)

	if got := startingEpochMicros(); got != first.UnixMicro() {
		t.Fatalf("startingEpochMicros() = %d, want %d (Init should be idempotent)", got, first.UnixMicro())
	}
}
