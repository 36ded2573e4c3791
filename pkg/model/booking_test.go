package model

import (
	"strings"
	"testing"
)

func TestCanTransition(t *testing.T) {
	allowed := map[[2]BookingStatus]bool{
		{BookingRequested, BookingConfirmed}: true,
		{BookingRequested, BookingCanceled}:  true,
		{BookingConfirmed, BookingCompleted}: true,
		{BookingConfirmed, BookingCanceled}:  true,
		{BookingConfirmed, BookingNoShow}:    true,
	}

	statuses := []BookingStatus{
		BookingRequested, BookingConfirmed, BookingCompleted, BookingCanceled, BookingNoShow,
	}
	for _, from := range statuses {
		for _, to := range statuses {
			want := allowed[[2]BookingStatus{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []BookingStatus{BookingCompleted, BookingCanceled, BookingNoShow} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []BookingStatus{BookingRequested, BookingConfirmed} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestNewBookingCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := NewBookingCode()
		if !strings.HasPrefix(code, "BKG-") {
			t.Fatalf("code %q lacks prefix", code)
		}
		if len(code) != len("BKG-")+6 {
			t.Fatalf("code %q has unexpected length", code)
		}
		if code != strings.ToUpper(code) {
			t.Fatalf("code %q is not uppercase", code)
		}
		seen[code] = true
	}
	if len(seen) < 90 {
		t.Errorf("codes collide too often: %d unique of 100", len(seen))
	}
}

func TestActorValid(t *testing.T) {
	if !SystemActor("reminder").Valid() {
		t.Error("system actor with job name should be valid")
	}
	if !(Actor{Kind: ActorSystem}).Valid() {
		t.Error("bare system actor should be valid")
	}
	if (Actor{Kind: ActorCustomer}).Valid() {
		t.Error("customer actor without ID should be invalid")
	}
	if (Actor{Kind: "robot", ID: "x"}).Valid() {
		t.Error("unknown kind should be invalid")
	}
	if got := CustomerActor("c1").String(); got != "customer:c1" {
		t.Errorf("String() = %q", got)
	}
}
