package scheduler

import (
	"testing"

	"github.com/gear-tech/gear-core-go/ids"
	"github.com/gear-tech/gear-core-go/types"
)

type fakeStorage struct {
	queue     []types.StoredDispatch
	waitlist  map[types.WaitlistKey]types.WaitlistEntry
	mailbox   map[types.MailboxKey]types.MailboxEntry
	stash     map[types.StashKey]types.StashEntry
	tasks     map[types.BlockNumber][]types.Task
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		waitlist: make(map[types.WaitlistKey]types.WaitlistEntry),
		mailbox:  make(map[types.MailboxKey]types.MailboxEntry),
		stash:    make(map[types.StashKey]types.StashEntry),
		tasks:    make(map[types.BlockNumber][]types.Task),
	}
}

func (f *fakeStorage) Enqueue(d types.StoredDispatch, atBlock types.BlockNumber) {
	f.queue = append(f.queue, d)
}
func (f *fakeStorage) WaitlistPut(key types.WaitlistKey, e types.WaitlistEntry) { f.waitlist[key] = e }
func (f *fakeStorage) WaitlistTake(key types.WaitlistKey) (types.WaitlistEntry, bool) {
	e, ok := f.waitlist[key]
	delete(f.waitlist, key)
	return e, ok
}
func (f *fakeStorage) MailboxPut(key types.MailboxKey, e types.MailboxEntry) { f.mailbox[key] = e }
func (f *fakeStorage) MailboxTake(key types.MailboxKey) (types.MailboxEntry, bool) {
	e, ok := f.mailbox[key]
	delete(f.mailbox, key)
	return e, ok
}
func (f *fakeStorage) StashPut(key types.StashKey, e types.StashEntry) { f.stash[key] = e }
func (f *fakeStorage) StashTake(key types.StashKey) (types.StashEntry, bool) {
	e, ok := f.stash[key]
	delete(f.stash, key)
	return e, ok
}
func (f *fakeStorage) ScheduleTask(atBlock types.BlockNumber, t types.Task) {
	f.tasks[atBlock] = append(f.tasks[atBlock], t)
}

func testActor(b byte) ids.ActorId {
	var a ids.ActorId
	a[0] = b
	return a
}

func testMessage(b byte) ids.MessageId {
	var m ids.MessageId
	m[0] = b
	return m
}

func TestWaitUpToExpiryCapsToAffordableBlocks(t *testing.T) {
	expiry, full := WaitUpToExpiry(100, 500, 10)
	if expiry != 50 || full {
		t.Fatalf("expiry=%d full=%v, want 50,false", expiry, full)
	}
	expiry, full = WaitUpToExpiry(10, 500, 10)
	if expiry != 10 || !full {
		t.Fatalf("expiry=%d full=%v, want 10,true", expiry, full)
	}
}

func TestWaitThenWakeZeroDelayReEnqueues(t *testing.T) {
	fs := newFakeStorage()
	d := NewDriver(fs, 100, 5)
	program := testActor(1)
	dispatch := types.StoredDispatch{IncomingDispatch: types.IncomingDispatch{Message: types.Message{Id: testMessage(9)}}}

	d.Wait(program, dispatch, 20, true)
	if len(fs.waitlist) != 1 {
		t.Fatalf("expected one waitlist entry, got %d", len(fs.waitlist))
	}

	d.Wake(program, testMessage(9), 0)
	if len(fs.waitlist) != 0 {
		t.Fatal("Wake with delay 0 must remove the waitlist entry")
	}
	if len(fs.queue) != 1 {
		t.Fatalf("expected the dispatch re-enqueued, got %d entries", len(fs.queue))
	}
}

func TestWakeWithDelaySchedulesTask(t *testing.T) {
	fs := newFakeStorage()
	d := NewDriver(fs, 100, 5)
	program := testActor(1)
	dispatch := types.StoredDispatch{IncomingDispatch: types.IncomingDispatch{Message: types.Message{Id: testMessage(9)}}}
	d.Wait(program, dispatch, 20, true)

	d.Wake(program, testMessage(9), 10)
	if len(fs.waitlist) != 1 {
		t.Fatal("delayed wake must not remove the waitlist entry immediately")
	}
	tasks := fs.tasks[110]
	if len(tasks) != 1 || tasks[0].Kind != types.TaskWakeMessage {
		t.Fatalf("tasks[110] = %+v, want one TaskWakeMessage", tasks)
	}
}
