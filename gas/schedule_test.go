package gas

import "testing"

func TestCostForLenAmortizesRate(t *testing.T) {
	s := DefaultSchedule()
	got := s.CostForLen(Send, 10)
	want := s.Syscalls[Send].Base + s.Syscalls[Send].PerByte*10
	if got != want {
		t.Fatalf("CostForLen = %d, want %d", got, want)
	}
}

func TestCostForCreateProgramBothRates(t *testing.T) {
	s := DefaultSchedule()
	got := s.CostForCreateProgram(5, 7)
	want := s.CreateProgram.Base + s.CreateProgram.PerPayloadByte*5 + s.CreateProgram.PerSaltByte*7
	if got != want {
		t.Fatalf("CostForCreateProgram = %d, want %d", got, want)
	}
}

func TestFeesAreDbWriteMultiples(t *testing.T) {
	s := DefaultSchedule()
	if s.SendingFee() != 2*s.DB.Write {
		t.Error("SendingFee mismatch")
	}
	if s.ScheduledSendingFee() != 4*s.DB.Write {
		t.Error("ScheduledSendingFee mismatch")
	}
	if s.WaitingFee() != 3*s.DB.Write {
		t.Error("WaitingFee mismatch")
	}
	if s.WakingFee() != 2*s.DB.Write {
		t.Error("WakingFee mismatch")
	}
	if s.ReservationFee() != 2*s.DB.Write {
		t.Error("ReservationFee mismatch")
	}
}
