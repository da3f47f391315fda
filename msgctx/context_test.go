package msgctx

import (
	"testing"

	"github.com/gear-tech/gear-core-go/gas"
	"github.com/gear-tech/gear-core-go/hostcall"
	"github.com/gear-tech/gear-core-go/ids"
	"github.com/gear-tech/gear-core-go/types"
)

func newTestContext(t *testing.T, limit, allowance uint64) *Context {
	t.Helper()
	schedule := gas.DefaultSchedule()
	dispatch := types.IncomingDispatch{
		Kind: types.Handle,
		Message: types.Message{
			Id:     mustMessageId(t, 1),
			Source: mustActorId(t, 2),
		},
	}
	return New(dispatch, mustActorId(t, 3), FeesFromSchedule(schedule), gas.NewCounter(limit, allowance), nil)
}

func mustMessageId(t *testing.T, b byte) ids.MessageId {
	t.Helper()
	buf := make([]byte, ids.Size)
	buf[0] = b
	id, err := ids.MessageIdFromBytes(buf)
	if err != nil {
		t.Fatalf("MessageIdFromBytes: %v", err)
	}
	return id
}

func mustActorId(t *testing.T, b byte) ids.ActorId {
	t.Helper()
	buf := make([]byte, ids.Size)
	buf[0] = b
	id, err := ids.ActorIdFromBytes(buf)
	if err != nil {
		t.Fatalf("ActorIdFromBytes: %v", err)
	}
	return id
}

func packet(t *testing.T, dest byte, payload []byte) types.OutgoingMessage {
	t.Helper()
	p, err := types.NewPayload(payload)
	if err != nil {
		t.Fatalf("NewPayload: %v", err)
	}
	return types.OutgoingMessage{
		Message: types.Message{
			Destination: mustActorId(t, dest),
			Payload:     p,
			Value:       types.ZeroValue(),
		},
	}
}

func TestSendProducesDistinctIds(t *testing.T) {
	ctx := newTestContext(t, 1_000_000_000, 1_000_000_000)
	id1, err := ctx.Send(packet(t, 9, []byte("hello")), nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	id2, err := ctx.Send(packet(t, 9, []byte("world")), nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if id1 == id2 {
		t.Fatal("successive sends must derive distinct message ids")
	}
}

func TestSendDrainRoundTrip(t *testing.T) {
	ctx := newTestContext(t, 1_000_000_000, 1_000_000_000)
	id, err := ctx.Send(packet(t, 9, []byte("hello")), nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	out, reply := ctx.Drain()
	if reply != nil {
		t.Fatal("no reply was built, Drain must report nil")
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if out[0].Message.Id != id {
		t.Fatalf("drained message id = %v, want %v", out[0].Message.Id, id)
	}
	if string(out[0].Message.Payload.Bytes()) != "hello" {
		t.Fatalf("drained payload = %q, want %q", out[0].Message.Payload.Bytes(), "hello")
	}
}

func TestSendInitPushCommitBuildsHandle(t *testing.T) {
	ctx := newTestContext(t, 1_000_000_000, 1_000_000_000)
	handle, err := ctx.SendInit()
	if err != nil {
		t.Fatalf("SendInit: %v", err)
	}
	if err := ctx.SendPush(handle, []byte("foo")); err != nil {
		t.Fatalf("SendPush: %v", err)
	}
	if err := ctx.SendPush(handle, []byte("bar")); err != nil {
		t.Fatalf("SendPush: %v", err)
	}
	if _, err := ctx.SendCommit(handle, mustActorId(t, 9), types.ZeroValue(), 0, nil); err != nil {
		t.Fatalf("SendCommit: %v", err)
	}
	out, _ := ctx.Drain()
	if len(out) != 1 || string(out[0].Message.Payload.Bytes()) != "foobar" {
		t.Fatalf("out = %+v, want one message with payload 'foobar'", out)
	}
}

func TestSendPushAfterCommitIsLateAccess(t *testing.T) {
	ctx := newTestContext(t, 1_000_000_000, 1_000_000_000)
	handle, err := ctx.SendInit()
	if err != nil {
		t.Fatalf("SendInit: %v", err)
	}
	if _, err := ctx.SendCommit(handle, mustActorId(t, 9), types.ZeroValue(), 0, nil); err != nil {
		t.Fatalf("SendCommit: %v", err)
	}
	if err := ctx.SendPush(handle, []byte("too late")); err == nil {
		t.Fatal("expected late-access error after commit")
	}
}

func TestReplyPushWithoutReplyFails(t *testing.T) {
	ctx := newTestContext(t, 1_000_000_000, 1_000_000_000)
	if err := ctx.ReplyPush([]byte("x")); err == nil {
		t.Fatal("expected NoReplyFound before any reply* call created a slot")
	}
}

func TestReplyThenPushThenCommit(t *testing.T) {
	ctx := newTestContext(t, 1_000_000_000, 1_000_000_000)
	p, err := types.NewPayload([]byte("hi "))
	if err != nil {
		t.Fatalf("NewPayload: %v", err)
	}
	id, err := ctx.Reply(p, types.ZeroValue(), nil)
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if err := ctx.ReplyPush([]byte("there")); err != nil {
		t.Fatalf("ReplyPush: %v", err)
	}
	commitId, err := ctx.ReplyCommit(types.ZeroValue(), nil)
	if err != nil {
		t.Fatalf("ReplyCommit: %v", err)
	}
	if commitId != id {
		t.Fatalf("commit id %v != reply id %v", commitId, id)
	}
	_, reply := ctx.Drain()
	if reply == nil {
		t.Fatal("expected a drained reply")
	}
	if string(reply.Message.Payload.Bytes()) != "hi there" {
		t.Fatalf("reply payload = %q, want %q", reply.Message.Payload.Bytes(), "hi there")
	}
	if reply.Message.Reply == nil || reply.Message.Reply.ReplyToId != ctx.dispatch.Message.Id {
		t.Fatal("drained reply must carry ReplyDetails pointing at the incoming message")
	}
}

func TestDoubleReplyIsDuplicateReply(t *testing.T) {
	ctx := newTestContext(t, 1_000_000_000, 1_000_000_000)
	p, _ := types.NewPayload(nil)
	if _, err := ctx.Reply(p, types.ZeroValue(), nil); err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if _, err := ctx.Reply(p, types.ZeroValue(), nil); err == nil {
		t.Fatal("expected DuplicateReply on a second reply() call")
	}
}

func TestReplyPushInputAutoCreatesSlot(t *testing.T) {
	ctx := newTestContext(t, 1_000_000_000, 1_000_000_000)
	ctx.dispatch.Message.Payload, _ = types.NewPayload([]byte("incoming-bytes"))
	if err := ctx.ReplyPushInput(0, 8); err != nil {
		t.Fatalf("ReplyPushInput: %v", err)
	}
	if _, err := ctx.ReplyCommit(types.ZeroValue(), nil); err != nil {
		t.Fatalf("ReplyCommit: %v", err)
	}
	_, reply := ctx.Drain()
	if reply == nil || string(reply.Message.Payload.Bytes()) != "incoming" {
		t.Fatalf("reply = %+v, want payload 'incoming'", reply)
	}
}

func TestOutgoingLimitRejectsSendPastCap(t *testing.T) {
	ctx := newTestContext(t, 1_000_000_000, 1_000_000_000)
	ctx.settings.OutgoingLimit = 1
	if _, err := ctx.Send(packet(t, 9, nil), nil); err != nil {
		t.Fatalf("first send within limit: %v", err)
	}
	if _, err := ctx.Send(packet(t, 9, nil), nil); err == nil {
		t.Fatal("expected outgoing limit exceeded on the second send")
	}
}

func TestSendingFeeExhaustsGas(t *testing.T) {
	ctx := newTestContext(t, 10, 10)
	if _, err := ctx.Send(packet(t, 9, nil), nil); err == nil {
		t.Fatal("expected gas exhaustion charging the sending fee")
	}
}

func TestSendingFeeDistinguishesAllowanceFromGasLimit(t *testing.T) {
	schedule := gas.DefaultSchedule()
	fee := schedule.SendingFee()

	ctx := newTestContext(t, fee+1_000, fee-1)
	if _, err := ctx.Send(packet(t, 9, nil), nil); err != hostcall.ErrGasAllowanceExceeded {
		t.Fatalf("Send with exhausted allowance = %v, want ErrGasAllowanceExceeded", err)
	}

	ctx = newTestContext(t, fee-1, fee+1_000)
	if _, err := ctx.Send(packet(t, 9, nil), nil); err != hostcall.ErrGasLimitExceeded {
		t.Fatalf("Send with exhausted gas limit = %v, want ErrGasLimitExceeded", err)
	}
}

func TestOutgoingLimitRejectsAtExactCap(t *testing.T) {
	ctx := newTestContext(t, 1_000_000_000, 1_000_000_000)
	ctx.settings.OutgoingLimit = 2
	if _, err := ctx.Send(packet(t, 9, nil), nil); err != nil {
		t.Fatalf("first send within limit: %v", err)
	}
	if _, err := ctx.Send(packet(t, 9, nil), nil); err != nil {
		t.Fatalf("second send reaching the cap: %v", err)
	}
	if _, err := ctx.Send(packet(t, 9, nil), nil); err == nil {
		t.Fatal("expected the third send, past the cap, to be rejected")
	}
}

func TestCreateProgramDerivesDeterministicAddress(t *testing.T) {
	ctx := newTestContext(t, 1_000_000_000, 1_000_000_000)
	var codeId ids.CodeId
	codeId[0] = 7
	id1, _, err := ctx.CreateProgram(codeId, []byte("salt"), []byte("init"), types.ZeroValue(), 0)
	if err != nil {
		t.Fatalf("CreateProgram: %v", err)
	}

	ctx2 := newTestContext(t, 1_000_000_000, 1_000_000_000)
	id2, _, err := ctx2.CreateProgram(codeId, []byte("salt"), []byte("init"), types.ZeroValue(), 0)
	if err != nil {
		t.Fatalf("CreateProgram: %v", err)
	}
	if id1 != id2 {
		t.Fatal("create_program address must be a deterministic function of (code id, salt)")
	}

	if len(ctx.Candidates()) != 1 || ctx.Candidates()[0].CandidateId != id1 {
		t.Fatalf("Candidates() = %+v", ctx.Candidates())
	}
}

func TestSignalFromRejectsNonSignalDispatch(t *testing.T) {
	ctx := newTestContext(t, 1_000_000_000, 1_000_000_000)
	if _, err := ctx.SignalFrom(); err == nil {
		t.Fatal("expected an error for a Handle-kind dispatch")
	}
}
