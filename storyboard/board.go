package storyboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"clipstudio/client"
	"clipstudio/config"
	"clipstudio/refimage"
	"clipstudio/types"
)

// Generator is the part of the service client the board drives.
type Generator interface {
	GenerateClip(ctx context.Context, req client.ClipRequest) (*types.GenerateClipResponse, error)
	ClipStatus(ctx context.Context, clipID string) (*types.ClipStatusResponse, error)
}

// Listener receives the new state of a slot after each generation state
// change. It is called without the board lock held; calls for one slot
// arrive in order. Edits made through Set* are not reported.
type Listener func(index int, slot Slot)

// Option configures a Board.
type Option func(*Board)

// WithPollInterval overrides config.ClipPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(b *Board) {
		if d > 0 {
			b.interval = d
		}
	}
}

// WithListener registers the change listener.
func WithListener(l Listener) Option {
	return func(b *Board) {
		b.listener = l
	}
}

// WithSlotCount sets the initial number of slots.
func WithSlotCount(n int) Option {
	return func(b *Board) {
		if n >= 1 && n <= config.MaxSlots {
			b.initial = n
		}
	}
}

type slotState struct {
	Slot
	token  uint64
	cancel context.CancelFunc
}

// Board is an ordered list of clip slots, each generated and polled on its
// own goroutine.
type Board struct {
	api      Generator
	interval time.Duration
	listener Listener
	initial  int

	mu     sync.Mutex
	slots  []*slotState
	closed bool
	wg     sync.WaitGroup
}

// New creates a board with config.DefaultSlotCount idle slots.
func New(api Generator, opts ...Option) *Board {
	b := &Board{
		api:      api,
		interval: config.ClipPollInterval,
		initial:  config.DefaultSlotCount,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.slots = make([]*slotState, b.initial)
	for i := range b.slots {
		b.slots[i] = &slotState{Slot: newSlot()}
	}
	return b
}

// SetListener replaces the change listener.
func (b *Board) SetListener(l Listener) {
	b.mu.Lock()
	b.listener = l
	b.mu.Unlock()
}

// Count returns the number of slots.
func (b *Board) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.slots)
}

// Slots returns a snapshot of every slot in order.
func (b *Board) Slots() []Slot {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Slot, len(b.slots))
	for i, s := range b.slots {
		out[i] = s.Slot
	}
	return out
}

// Slot returns a snapshot of the slot at index.
func (b *Board) Slot(index int) (Slot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.slotLocked(index)
	if err != nil {
		return Slot{}, err
	}
	return s.Slot, nil
}

// SetCount resizes the board to n slots. Slots below n keep their state and
// any running poll; slots at or above n have their poll cancelled and are
// discarded.
func (b *Board) SetCount(n int) error {
	if n < 1 || n > config.MaxSlots {
		return fmt.Errorf("%w: slot count must be between 1 and %d, got %d", ErrValidation, config.MaxSlots, n)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	old := len(b.slots)
	for i := n; i < old; i++ {
		s := b.slots[i]
		s.token++
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
			log.Debug().Int("slot", i).Str("clip_id", s.ClipID).Msg("Cancelled poll for removed slot")
		}
		b.slots[i] = nil
	}
	if n < old {
		b.slots = b.slots[:n]
	}
	for i := old; i < n; i++ {
		b.slots = append(b.slots, &slotState{Slot: newSlot()})
	}
	return nil
}

// SetPrompt replaces the prompt text of a slot.
func (b *Board) SetPrompt(index int, prompt string) error {
	return b.edit(index, func(s *slotState) error {
		s.Prompt = prompt
		return nil
	})
}

// SetDuration sets the clip length of a slot to one of config.ClipDurations.
func (b *Board) SetDuration(index, seconds int) error {
	if !config.IsValidDuration(seconds) {
		return fmt.Errorf("%w: duration must be one of %v, got %d", ErrValidation, config.ClipDurations, seconds)
	}
	return b.edit(index, func(s *slotState) error {
		s.Duration = seconds
		return nil
	})
}

// CycleDuration advances a slot to the next allowed duration.
func (b *Board) CycleDuration(index int) (int, error) {
	var next int
	err := b.edit(index, func(s *slotState) error {
		next = config.NextDuration(s.Duration)
		s.Duration = next
		return nil
	})
	return next, err
}

// Cost returns the price of generating the slot at its current duration.
func (b *Board) Cost(index int) (float64, error) {
	s, err := b.Slot(index)
	if err != nil {
		return 0, err
	}
	return s.Cost(), nil
}

// TotalCost sums the cost of every slot.
func (b *Board) TotalCost() float64 {
	var total float64
	for _, s := range b.Slots() {
		total += s.Cost()
	}
	return total
}

// AttachReference sets the image sent with the slot's next generation.
func (b *Board) AttachReference(index int, img *refimage.Image) error {
	if img == nil {
		return fmt.Errorf("%w: reference image is nil", ErrValidation)
	}
	return b.edit(index, func(s *slotState) error {
		s.Reference = img
		return nil
	})
}

// RemoveReference drops the slot's reference image.
func (b *Board) RemoveReference(index int) error {
	return b.edit(index, func(s *slotState) error {
		s.Reference = nil
		return nil
	})
}

// Generate submits the slot's prompt and starts polling for the result.
// apiKey may be empty to use the server default. An empty prompt or a slot
// that is already generating is rejected without any request.
func (b *Board) Generate(index int, apiKey string) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	s, err := b.slotLocked(index)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	prompt := strings.TrimSpace(s.Prompt)
	if prompt == "" {
		b.mu.Unlock()
		return fmt.Errorf("%w: please enter a prompt for clip %d", ErrValidation, index+1)
	}
	if s.Busy() {
		b.mu.Unlock()
		return fmt.Errorf("%w: clip %d is already generating", ErrValidation, index+1)
	}

	s.Status = types.ClipGenerating
	s.Error = ""
	s.ClipID = ""
	s.token++
	token := s.token

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	req := client.ClipRequest{
		Prompt:    prompt,
		Duration:  s.Duration,
		APIKey:    apiKey,
		Reference: s.Reference,
	}
	snap := s.Slot
	listener := b.listener
	b.wg.Add(1)
	b.mu.Unlock()

	if listener != nil {
		listener(index, snap)
	}

	log.Info().Int("slot", index).Int("duration", req.Duration).Bool("reference", req.Reference != nil).Msg("Submitting clip")
	go b.run(ctx, index, s, token, req)
	return nil
}

// Close cancels every poll and waits for the goroutines to exit.
func (b *Board) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, s := range b.slots {
		s.token++
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
	}
	b.mu.Unlock()
	b.wg.Wait()
}

// run submits one clip then polls it until a terminal status. The slot is
// only updated while token still matches.
func (b *Board) run(ctx context.Context, index int, s *slotState, token uint64, req client.ClipRequest) {
	defer b.wg.Done()

	resp, err := b.api.GenerateClip(ctx, req)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		log.Error().Err(err).Int("slot", index).Msg("Clip submission failed")
		b.finish(index, s, token, types.ClipFailed, client.Message(err, client.MsgStartGenerationFailed))
		return
	}

	clipID := resp.ClipID
	if !b.apply(index, s, token, func(s *slotState) { s.ClipID = clipID }) {
		return
	}
	log.Info().Int("slot", index).Str("clip_id", clipID).Msg("Clip accepted, polling")

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		status, err := b.api.ClipStatus(ctx, clipID)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Error().Err(err).Str("clip_id", clipID).Msg("Clip status check failed")
			b.finish(index, s, token, types.ClipFailed, client.Message(err, client.MsgStatusFailed))
			return
		}

		switch status.Status {
		case types.ClipCompleted:
			log.Info().Str("clip_id", clipID).Msg("Clip completed")
			b.finish(index, s, token, types.ClipCompleted, "")
			return
		case types.ClipFailed:
			msg := status.Error
			if msg == "" {
				msg = client.MsgGenerationFailed
			}
			log.Warn().Str("clip_id", clipID).Str("error", msg).Msg("Clip failed")
			b.finish(index, s, token, types.ClipFailed, msg)
			return
		}
	}
}

func (b *Board) finish(index int, s *slotState, token uint64, status types.ClipStatus, msg string) {
	b.apply(index, s, token, func(s *slotState) {
		s.Status = status
		s.Error = msg
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
	})
}

// apply mutates s and notifies the listener, unless the slot was removed or
// regenerated since token was issued.
func (b *Board) apply(index int, s *slotState, token uint64, fn func(*slotState)) bool {
	b.mu.Lock()
	if s.token != token {
		b.mu.Unlock()
		return false
	}
	fn(s)
	snap := s.Slot
	listener := b.listener
	b.mu.Unlock()

	if listener != nil {
		listener(index, snap)
	}
	return true
}

func (b *Board) edit(index int, fn func(*slotState) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.slotLocked(index)
	if err != nil {
		return err
	}
	return fn(s)
}

func (b *Board) slotLocked(index int) (*slotState, error) {
	if index < 0 || index >= len(b.slots) {
		return nil, fmt.Errorf("%w: slot %d out of range (have %d)", ErrValidation, index, len(b.slots))
	}
	return b.slots[index], nil
}
