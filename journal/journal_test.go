package journal

import (
	"testing"

	"github.com/gear-tech/gear-core-go/hostcall"
	"github.com/gear-tech/gear-core-go/ids"
	"github.com/gear-tech/gear-core-go/msgctx"
	"github.com/gear-tech/gear-core-go/types"
)

func TestBuildGasAllowanceExceededStopsImmediately(t *testing.T) {
	notes := Build(Result{
		Dispatch:  types.IncomingDispatch{Message: types.Message{Id: ids.MessageId{1}}},
		ProgramId: ids.ActorId{2},
		Outcome:   OutcomeGasAllowanceExceeded,
		GasBurned: 10,
	})
	if len(notes) != 2 {
		t.Fatalf("len(notes) = %d, want 2 (GasBurned, StopProcessing)", len(notes))
	}
	if notes[0].Kind != NoteGasBurned || notes[1].Kind != NoteStopProcessing {
		t.Fatalf("notes = %+v", notes)
	}
}

func TestBuildSuccessEndsWithDispatchedThenConsumed(t *testing.T) {
	notes := Build(Result{
		Dispatch:  types.IncomingDispatch{Message: types.Message{Id: ids.MessageId{1}}},
		ProgramId: ids.ActorId{2},
		Outcome:   OutcomeSuccess,
		GasBurned: 5,
	})
	last2 := notes[len(notes)-2:]
	if last2[0].Kind != NoteMessageDispatched || last2[1].Kind != NoteMessageConsumed {
		t.Fatalf("notes tail = %+v, want [MessageDispatched, MessageConsumed]", last2)
	}
	if !last2[0].Outcome.Success {
		t.Fatal("expected a Success outcome on the MessageDispatched note")
	}
}

func TestBuildWaitDoesNotConsumeTheMessage(t *testing.T) {
	notes := Build(Result{
		Dispatch:  types.IncomingDispatch{Message: types.Message{Id: ids.MessageId{1}}},
		ProgramId: ids.ActorId{2},
		Outcome:   OutcomeWait,
		WaitKind:  hostcall.WaitIndefinite,
	})
	for _, n := range notes {
		if n.Kind == NoteMessageConsumed {
			t.Fatal("a waiting dispatch must not be journalled as consumed")
		}
	}
	if notes[len(notes)-1].Kind != NoteWaitDispatch {
		t.Fatalf("notes = %+v, want to end in WaitDispatch", notes)
	}
}

func TestBuildUnavailableExitedCarriesInheritorAsPayload(t *testing.T) {
	inheritor := ids.ActorId{3}
	dispatch := types.IncomingDispatch{Kind: types.Handle, Message: types.Message{Id: ids.MessageId{1}, Source: ids.ActorId{4}}}
	notes := BuildUnavailable(dispatch, ids.ActorId{2}, ReasonProgramExited, inheritor)

	if len(notes) != 3 {
		t.Fatalf("len(notes) = %d, want 3 (SendDispatch, MessageDispatched, MessageConsumed)", len(notes))
	}
	if notes[0].Kind != NoteSendDispatch {
		t.Fatalf("notes[0].Kind = %v, want SendDispatch", notes[0].Kind)
	}
	if got := notes[0].Dispatch.Message.Payload.Bytes(); string(got) != string(inheritor[:]) {
		t.Fatalf("error-reply payload = %x, want inheritor id %x", got, inheritor[:])
	}
	if !notes[1].Outcome.NoExecution {
		t.Fatal("expected NoExecution on the MessageDispatched note")
	}
}

func TestBuildUnavailableSignalNeverGetsErrorReply(t *testing.T) {
	dispatch := types.IncomingDispatch{Kind: types.Signal, Message: types.Message{Id: ids.MessageId{1}}}
	notes := BuildUnavailable(dispatch, ids.ActorId{2}, ReasonUninitialized, ids.ActorId{})
	for _, n := range notes {
		if n.Kind == NoteSendDispatch {
			t.Fatal("a Signal dispatch to an unavailable program must not produce an error-reply")
		}
	}
}

func TestBuildOrdersSendValueBeforeSendDispatch(t *testing.T) {
	dest := ids.ActorId{9}
	payload, _ := types.NewPayload(nil)
	notes := Build(Result{
		Dispatch:  types.IncomingDispatch{Message: types.Message{Id: ids.MessageId{1}}},
		ProgramId: ids.ActorId{2},
		Outcome:   OutcomeSuccess,
		Generated: []msgctx.GeneratedDispatch{{
			Message: types.OutgoingMessage{
				Message: types.Message{Destination: dest, Payload: payload, Value: types.NewValue(5)},
				Kind:    types.Handle,
			},
		}},
	})

	var sendValueIdx, sendDispatchIdx = -1, -1
	for i, n := range notes {
		if n.Kind == NoteSendValue && sendValueIdx == -1 {
			sendValueIdx = i
		}
		if n.Kind == NoteSendDispatch && sendDispatchIdx == -1 {
			sendDispatchIdx = i
		}
	}
	if sendValueIdx == -1 || sendDispatchIdx == -1 || sendValueIdx > sendDispatchIdx {
		t.Fatalf("notes = %+v, want SendValue before SendDispatch", notes)
	}
}
