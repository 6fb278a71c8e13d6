package storyboard

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"clipstudio/apitest"
	"clipstudio/client"
	"clipstudio/refimage"
	"clipstudio/types"
)

const testInterval = 10 * time.Millisecond

func init() {
	gin.SetMode(gin.TestMode)
}

type recorder struct {
	mu     sync.Mutex
	events map[int][]Slot
}

func newRecorder() *recorder {
	return &recorder{events: make(map[int][]Slot)}
}

func (r *recorder) listen(index int, slot Slot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[index] = append(r.events[index], slot)
}

func (r *recorder) statuses(index int) []types.ClipStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.ClipStatus, 0, len(r.events[index]))
	for _, s := range r.events[index] {
		out = append(out, s.Status)
	}
	return out
}

func (r *recorder) count(index int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events[index])
}

func newTestBoard(t *testing.T, opts ...Option) (*Board, *apitest.Server, *recorder) {
	t.Helper()
	fake := apitest.New()
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)

	rec := newRecorder()
	opts = append([]Option{WithPollInterval(testInterval), WithListener(rec.listen)}, opts...)
	b := New(client.NewClient(srv.URL, 5*time.Second), opts...)
	t.Cleanup(b.Close)
	return b, fake, rec
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitForStatus(t *testing.T, b *Board, index int, want types.ClipStatus) Slot {
	t.Helper()
	var slot Slot
	waitFor(t, "slot "+string(want), func() bool {
		s, err := b.Slot(index)
		if err != nil {
			return false
		}
		slot = s
		return s.Status == want
	})
	return slot
}

func TestNewBoardDefaults(t *testing.T) {
	b, _, _ := newTestBoard(t)
	slots := b.Slots()
	if len(slots) != 1 {
		t.Fatalf("new board has %d slots; want 1", len(slots))
	}
	if slots[0].Status != types.ClipIdle || slots[0].Duration != 4 || slots[0].Prompt != "" {
		t.Fatalf("unexpected default slot: %+v", slots[0])
	}
}

func TestSetCountPreservesSlots(t *testing.T) {
	b, _, _ := newTestBoard(t)

	if err := b.SetCount(3); err != nil {
		t.Fatalf("SetCount(3): %v", err)
	}
	prompts := []string{"sunrise over hills", "a fox runs", "city at night"}
	for i, p := range prompts {
		if err := b.SetPrompt(i, p); err != nil {
			t.Fatalf("SetPrompt(%d): %v", i, err)
		}
	}
	if err := b.SetDuration(1, 12); err != nil {
		t.Fatalf("SetDuration: %v", err)
	}

	if err := b.SetCount(5); err != nil {
		t.Fatalf("SetCount(5): %v", err)
	}
	slots := b.Slots()
	if len(slots) != 5 {
		t.Fatalf("got %d slots; want 5", len(slots))
	}
	for i, p := range prompts {
		if slots[i].Prompt != p {
			t.Fatalf("slot %d prompt = %q; want %q", i, slots[i].Prompt, p)
		}
	}
	if slots[1].Duration != 12 {
		t.Fatalf("slot 1 duration = %d; want 12", slots[1].Duration)
	}
	if slots[4].Prompt != "" || slots[4].Status != types.ClipIdle || slots[4].Duration != 4 {
		t.Fatalf("new slot not blank: %+v", slots[4])
	}

	if err := b.SetCount(2); err != nil {
		t.Fatalf("SetCount(2): %v", err)
	}
	slots = b.Slots()
	if len(slots) != 2 || slots[0].Prompt != prompts[0] || slots[1].Prompt != prompts[1] || slots[1].Duration != 12 {
		t.Fatalf("shrink lost state: %+v", slots)
	}

	for _, n := range []int{0, -1, 12} {
		if err := b.SetCount(n); !errors.Is(err, ErrValidation) {
			t.Fatalf("SetCount(%d) error = %v; want ErrValidation", n, err)
		}
	}
	if b.Count() != 2 {
		t.Fatalf("invalid SetCount changed count to %d", b.Count())
	}
}

func TestGenerateEmptyPromptMakesNoRequest(t *testing.T) {
	b, fake, rec := newTestBoard(t)

	for _, prompt := range []string{"", "   \n\t"} {
		if err := b.SetPrompt(0, prompt); err != nil {
			t.Fatalf("SetPrompt: %v", err)
		}
		if err := b.Generate(0, ""); !errors.Is(err, ErrValidation) {
			t.Fatalf("Generate(%q) error = %v; want ErrValidation", prompt, err)
		}
	}

	if n := len(fake.Submissions()); n != 0 {
		t.Fatalf("server received %d submissions; want 0", n)
	}
	slot, _ := b.Slot(0)
	if slot.Status != types.ClipIdle {
		t.Fatalf("status = %s; want idle", slot.Status)
	}
	if rec.count(0) != 0 {
		t.Fatalf("listener called %d times; want 0", rec.count(0))
	}
}

func TestGenerateCompletes(t *testing.T) {
	b, fake, rec := newTestBoard(t)

	if err := b.SetPrompt(0, "  a lighthouse in a storm  "); err != nil {
		t.Fatalf("SetPrompt: %v", err)
	}
	if err := b.SetDuration(0, 8); err != nil {
		t.Fatalf("SetDuration: %v", err)
	}
	if err := b.Generate(0, "sk-user"); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	slot := waitForStatus(t, b, 0, types.ClipCompleted)
	if slot.ClipID == "" {
		t.Fatal("completed slot has no clip id")
	}
	if got, want := slot.DownloadPath(), "/api/download-clip/"+slot.ClipID; got != want {
		t.Fatalf("DownloadPath = %q; want %q", got, want)
	}

	subs := fake.Submissions()
	if len(subs) != 1 {
		t.Fatalf("got %d submissions; want 1", len(subs))
	}
	if subs[0].Prompt != "a lighthouse in a storm" || subs[0].Duration != 8 || subs[0].APIKey != "sk-user" || subs[0].Multipart {
		t.Fatalf("unexpected submission: %+v", subs[0])
	}

	// generating, clip id assigned, completed
	got := rec.statuses(0)
	want := []types.ClipStatus{types.ClipGenerating, types.ClipGenerating, types.ClipCompleted}
	if len(got) != len(want) {
		t.Fatalf("statuses = %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("statuses = %v; want %v", got, want)
		}
	}

	polls := fake.StatusCalls(slot.ClipID)
	time.Sleep(5 * testInterval)
	if after := fake.StatusCalls(slot.ClipID); after != polls {
		t.Fatalf("polling continued after completion: %d -> %d", polls, after)
	}
}

func TestGenerateFailedStatus(t *testing.T) {
	cases := []struct {
		name    string
		errText string
		want    string
	}{
		{"server message", "Content policy violation", "Content policy violation"},
		{"fallback", "", client.MsgGenerationFailed},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b, fake, _ := newTestBoard(t)
			fake.ScriptClips(
				types.ClipStatusResponse{Status: types.ClipGenerating},
				types.ClipStatusResponse{Status: types.ClipFailed, Error: c.errText},
			)
			_ = b.SetPrompt(0, "forbidden scene")
			if err := b.Generate(0, ""); err != nil {
				t.Fatalf("Generate: %v", err)
			}

			slot := waitForStatus(t, b, 0, types.ClipFailed)
			if slot.Error != c.want {
				t.Fatalf("error = %q; want %q", slot.Error, c.want)
			}
			if slot.DownloadPath() != "" {
				t.Fatalf("failed slot exposes download path %q", slot.DownloadPath())
			}
			polls := fake.StatusCalls(slot.ClipID)
			time.Sleep(5 * testInterval)
			if after := fake.StatusCalls(slot.ClipID); after != polls {
				t.Fatalf("polling continued after failure: %d -> %d", polls, after)
			}
		})
	}
}

func TestSubmissionFailure(t *testing.T) {
	cases := []struct {
		name    string
		failure apitest.Failure
		want    string
	}{
		{"server message", apitest.Failure{Status: 400, Message: "Invalid API key"}, "Invalid API key"},
		{"fallback", apitest.Failure{Status: 500}, client.MsgStartGenerationFailed},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b, fake, _ := newTestBoard(t)
			fake.Fail("generate-clip", c.failure)
			_ = b.SetPrompt(0, "a prompt")
			if err := b.Generate(0, ""); err != nil {
				t.Fatalf("Generate: %v", err)
			}
			slot := waitForStatus(t, b, 0, types.ClipFailed)
			if slot.Error != c.want || slot.ClipID != "" {
				t.Fatalf("slot = %+v; want error %q and no clip id", slot, c.want)
			}
			if fake.TotalStatusCalls() != 0 {
				t.Fatal("polled after failed submission")
			}
		})
	}
}

func TestStatusRequestFailureIsTerminal(t *testing.T) {
	b, fake, _ := newTestBoard(t)
	fake.Fail("clip-status", apitest.Failure{Status: 502})
	_ = b.SetPrompt(0, "a prompt")
	if err := b.Generate(0, ""); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	slot := waitForStatus(t, b, 0, types.ClipFailed)
	if slot.Error != client.MsgStatusFailed {
		t.Fatalf("error = %q; want %q", slot.Error, client.MsgStatusFailed)
	}
	time.Sleep(5 * testInterval)
	if n := fake.StatusCalls(slot.ClipID); n != 1 {
		t.Fatalf("status polled %d times; want exactly 1", n)
	}
}

func TestRegenerateAfterFailure(t *testing.T) {
	b, fake, _ := newTestBoard(t)
	fake.Fail("generate-clip", apitest.Failure{Status: 500, Message: "busy"})
	_ = b.SetPrompt(0, "a prompt")
	_ = b.Generate(0, "")
	waitForStatus(t, b, 0, types.ClipFailed)

	fake.ClearFailures()
	if err := b.Generate(0, ""); err != nil {
		t.Fatalf("Generate after failure: %v", err)
	}
	slot := waitForStatus(t, b, 0, types.ClipCompleted)
	if slot.Error != "" {
		t.Fatalf("error not cleared: %q", slot.Error)
	}
}

func TestGenerateRejectsBusySlot(t *testing.T) {
	b, fake, _ := newTestBoard(t)
	fake.ScriptClips(types.ClipStatusResponse{Status: types.ClipGenerating})
	_ = b.SetPrompt(0, "a slow clip")
	if err := b.Generate(0, ""); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := b.Generate(0, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("second Generate error = %v; want ErrValidation", err)
	}
	waitFor(t, "first poll", func() bool { return fake.TotalStatusCalls() > 0 })
	if n := len(fake.Submissions()); n != 1 {
		t.Fatalf("got %d submissions; want 1", n)
	}
}

func TestShrinkCancelsRemovedPolls(t *testing.T) {
	b, fake, rec := newTestBoard(t, WithSlotCount(3))
	fake.ScriptClips(types.ClipStatusResponse{Status: types.ClipGenerating})

	_ = b.SetPrompt(0, "kept")
	_ = b.SetPrompt(2, "removed")
	if err := b.Generate(0, ""); err != nil {
		t.Fatalf("Generate(0): %v", err)
	}
	if err := b.Generate(2, ""); err != nil {
		t.Fatalf("Generate(2): %v", err)
	}

	var removedID, keptID string
	waitFor(t, "both clips polled", func() bool {
		kept, _ := b.Slot(0)
		removed, _ := b.Slot(2)
		keptID, removedID = kept.ClipID, removed.ClipID
		return keptID != "" && removedID != "" && fake.StatusCalls(keptID) > 0 && fake.StatusCalls(removedID) > 0
	})

	if err := b.SetCount(2); err != nil {
		t.Fatalf("SetCount(2): %v", err)
	}
	events := rec.count(2)

	time.Sleep(3 * testInterval)
	removedPolls := fake.StatusCalls(removedID)
	keptPolls := fake.StatusCalls(keptID)
	time.Sleep(10 * testInterval)

	if after := fake.StatusCalls(removedID); after != removedPolls {
		t.Fatalf("removed slot still polled: %d -> %d", removedPolls, after)
	}
	if after := fake.StatusCalls(keptID); after <= keptPolls {
		t.Fatalf("kept slot stopped polling: %d -> %d", keptPolls, after)
	}
	if rec.count(2) != events {
		t.Fatal("listener notified for removed slot")
	}
	if slot, _ := b.Slot(0); slot.Status != types.ClipGenerating || slot.ClipID != keptID {
		t.Fatalf("kept slot lost state: %+v", slot)
	}

	// Growing again yields a fresh slot at the removed position.
	if err := b.SetCount(3); err != nil {
		t.Fatalf("SetCount(3): %v", err)
	}
	if slot, _ := b.Slot(2); slot.Status != types.ClipIdle || slot.Prompt != "" {
		t.Fatalf("re-added slot not fresh: %+v", slot)
	}
}

func TestCost(t *testing.T) {
	b, fake, _ := newTestBoard(t)

	cases := []struct {
		duration int
		want     string
	}{
		{4, "$0.40"},
		{8, "$0.80"},
		{12, "$1.20"},
	}
	for _, c := range cases {
		if err := b.SetDuration(0, c.duration); err != nil {
			t.Fatalf("SetDuration(%d): %v", c.duration, err)
		}
		cost, err := b.Cost(0)
		if err != nil {
			t.Fatalf("Cost: %v", err)
		}
		if got := FormatCost(cost); got != c.want {
			t.Fatalf("cost for %ds = %s; want %s", c.duration, got, c.want)
		}
	}

	if err := b.SetDuration(0, 5); !errors.Is(err, ErrValidation) {
		t.Fatalf("SetDuration(5) error = %v; want ErrValidation", err)
	}
	if next, _ := b.CycleDuration(0); next != 4 {
		t.Fatalf("CycleDuration from 12 = %d; want 4", next)
	}

	_ = b.SetCount(2)
	_ = b.SetDuration(1, 8)
	if got := FormatCost(b.TotalCost()); got != "$1.20" {
		t.Fatalf("TotalCost = %s; want $1.20", got)
	}
	if len(fake.Submissions()) != 0 || fake.TotalStatusCalls() != 0 {
		t.Fatal("cost changes made network calls")
	}
}

func TestReferenceImageSentOnGenerate(t *testing.T) {
	b, fake, _ := newTestBoard(t)

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	img, err := refimage.New("look.png", buf.Bytes())
	if err != nil {
		t.Fatalf("refimage.New: %v", err)
	}

	if err := b.AttachReference(0, img); err != nil {
		t.Fatalf("AttachReference: %v", err)
	}
	if len(fake.Submissions()) != 0 {
		t.Fatal("attaching an image made a request")
	}
	_ = b.SetPrompt(0, "match this look")
	if err := b.Generate(0, ""); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	waitForStatus(t, b, 0, types.ClipCompleted)

	subs := fake.Submissions()
	if len(subs) != 1 || !subs[0].Multipart || subs[0].ReferenceName != "look.png" || subs[0].ReferenceSize != int64(buf.Len()) {
		t.Fatalf("unexpected submission: %+v", subs)
	}

	if err := b.RemoveReference(0); err != nil {
		t.Fatalf("RemoveReference: %v", err)
	}
	if slot, _ := b.Slot(0); slot.Reference != nil {
		t.Fatal("reference not removed")
	}
	if err := b.AttachReference(0, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("AttachReference(nil) error = %v", err)
	}
}

func TestCloseStopsPolling(t *testing.T) {
	b, fake, _ := newTestBoard(t)
	fake.ScriptClips(types.ClipStatusResponse{Status: types.ClipGenerating})
	_ = b.SetPrompt(0, "forever")
	_ = b.Generate(0, "")
	waitFor(t, "first poll", func() bool { return fake.TotalStatusCalls() > 0 })

	b.Close()
	polls := fake.TotalStatusCalls()
	time.Sleep(5 * testInterval)
	if after := fake.TotalStatusCalls(); after != polls {
		t.Fatalf("polling continued after Close: %d -> %d", polls, after)
	}
	if err := b.Generate(0, ""); !errors.Is(err, ErrClosed) {
		t.Fatalf("Generate after Close error = %v; want ErrClosed", err)
	}
}

func TestSlotIndexValidation(t *testing.T) {
	b, _, _ := newTestBoard(t)
	if _, err := b.Slot(3); !errors.Is(err, ErrValidation) {
		t.Fatalf("Slot(3) error = %v", err)
	}
	if err := b.SetPrompt(-1, "x"); !errors.Is(err, ErrValidation) {
		t.Fatalf("SetPrompt(-1) error = %v", err)
	}
	if err := b.Generate(1, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("Generate(1) error = %v", err)
	}
}
