package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"clipstudio/storyboard"
	"clipstudio/types"
	"clipstudio/wizard"
)

func TestProducerPublishes(t *testing.T) {
	mp := mocks.NewSyncProducer(t, NewSaramaConfig())
	mp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var e Event
		if err := json.Unmarshal(val, &e); err != nil {
			return err
		}
		if e.Type != ClipCompleted || e.ClipID != "ab12cd34" || e.ID == "" {
			return fmt.Errorf("unexpected event %+v", e)
		}
		return nil
	})
	mp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewProducerWith(mp, "clipstudio.completions")
	e := Event{ID: "evt-1", Type: ClipCompleted, ClipID: "ab12cd34"}
	if err := p.Publish(context.Background(), e); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if err := p.Publish(context.Background(), e); !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("Publish error = %v; want ErrOutOfBrokers", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestFromSlot(t *testing.T) {
	cases := []struct {
		name     string
		slot     storyboard.Slot
		wantOK   bool
		wantType string
	}{
		{"idle", storyboard.Slot{Status: types.ClipIdle}, false, ""},
		{"generating", storyboard.Slot{Status: types.ClipGenerating, ClipID: "c1"}, false, ""},
		{"completed", storyboard.Slot{Status: types.ClipCompleted, ClipID: "c1", Prompt: "p", Duration: 8}, true, ClipCompleted},
		{"failed", storyboard.Slot{Status: types.ClipFailed, ClipID: "c1"}, true, ClipFailed},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			e, ok := FromSlot(2, c.slot, "http://studio:5000")
			if ok != c.wantOK {
				t.Fatalf("ok = %v; want %v", ok, c.wantOK)
			}
			if !ok {
				return
			}
			if e.Type != c.wantType || e.Slot != 3 || e.Key() != "c1" {
				t.Fatalf("unexpected event: %+v", e)
			}
			if c.wantType == ClipCompleted && e.DownloadURL != "http://studio:5000/api/download-clip/c1" {
				t.Fatalf("download url = %q", e.DownloadURL)
			}
			if c.wantType == ClipFailed && e.Error == "" {
				t.Fatal("failed event has no error text")
			}
		})
	}
}

func TestFromWizard(t *testing.T) {
	if _, ok := FromWizard(wizard.State{Step: wizard.StepResult}, ""); ok {
		t.Fatal("event without job")
	}
	job := &types.Job{ID: "job-1", TotalClips: 3}
	if _, ok := FromWizard(wizard.State{Step: wizard.StepProgress, Job: job}, ""); ok {
		t.Fatal("event for running job")
	}
	e, ok := FromWizard(wizard.State{Step: wizard.StepResult, Job: job}, "http://h")
	if !ok || e.Type != JobCompleted || e.PreviewURL != "http://h/api/preview/job-1" || e.Key() != "job-1" {
		t.Fatalf("completed event = %+v, %v", e, ok)
	}
	e, ok = FromWizard(wizard.State{Step: wizard.StepError, Job: job, Error: "boom"}, "")
	if !ok || e.Type != JobFailed || e.Error != "boom" {
		t.Fatalf("failed event = %+v, %v", e, ok)
	}
}

type memorySink struct {
	mu     sync.Mutex
	got    []Event
	closed bool
}

func (m *memorySink) Publish(ctx context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, e)
	return nil
}

func (m *memorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	sink := &memorySink{}
	d := NewDispatcher(sink, 16)
	for i := 0; i < 5; i++ {
		d.Send(Event{ID: fmt.Sprint(i), Type: ClipCompleted})
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if len(sink.got) != 5 || !sink.closed {
		t.Fatalf("sink got %d events, closed=%v", len(sink.got), sink.closed)
	}
	for i, e := range sink.got {
		if e.ID != fmt.Sprint(i) {
			t.Fatalf("events out of order: %v", sink.got)
		}
	}
}

func TestGroupHandlerMarks(t *testing.T) {
	var handled []Event
	h := &groupHandler{handler: func(ctx context.Context, e Event) error {
		if e.Type == JobFailed {
			return errors.New("downstream unavailable")
		}
		handled = append(handled, e)
		return nil
	}}

	ok, _ := json.Marshal(Event{ID: "1", Type: JobCompleted})
	bad, _ := json.Marshal(Event{ID: "2", Type: JobFailed})

	if !h.handle(context.Background(), ok) {
		t.Fatal("handled event not marked")
	}
	if h.handle(context.Background(), bad) {
		t.Fatal("failed event marked")
	}
	if !h.handle(context.Background(), []byte("{not json")) {
		t.Fatal("undecodable event not skipped")
	}
	if len(handled) != 1 || handled[0].ID != "1" {
		t.Fatalf("handled = %+v", handled)
	}
}
