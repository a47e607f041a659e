// filepath: internal/flow/warfarin_flow.go
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/WarfarinBot/internal/models"
	"github.com/BTreeMap/WarfarinBot/internal/store"
	"github.com/BTreeMap/WarfarinBot/internal/warfarin"
)

// Option configures a WarfarinFlow.
type Option func(*WarfarinFlow)

// WithClock overrides the time source used for session timestamps and follow-up dates.
func WithClock(now func() time.Time) Option {
	return func(f *WarfarinFlow) {
		if now != nil {
			f.now = now
		}
	}
}

// WithTriggers replaces the phrases that start the flow.
func WithTriggers(triggers ...string) Option {
	return func(f *WarfarinFlow) {
		var cleaned []string
		for _, t := range triggers {
			if t = strings.TrimSpace(t); t != "" {
				cleaned = append(cleaned, t)
			}
		}
		if len(cleaned) > 0 {
			f.triggers = cleaned
		}
	}
}

// WarfarinFlow walks a user through INR, weekly dose, bleeding and supplement questions and
// answers with a dose recommendation.
type WarfarinFlow struct {
	sessions store.SessionStore
	triggers []string
	now      func() time.Time
	locks    *keyedMutex
}

// NewWarfarinFlow creates a WarfarinFlow backed by the given session store.
func NewWarfarinFlow(sessions store.SessionStore, opts ...Option) *WarfarinFlow {
	f := &WarfarinFlow{
		sessions: sessions,
		triggers: append([]string(nil), DefaultTriggers...),
		now:      time.Now,
		locks:    newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(f)
	}
	slog.Debug("Creating WarfarinFlow", "triggers", f.triggers)
	return f
}

// Triggers returns the phrases that start the flow.
func (f *WarfarinFlow) Triggers() []string {
	return append([]string(nil), f.triggers...)
}

// IsTrigger reports whether text starts the flow. Matching ignores case and surrounding space.
func (f *WarfarinFlow) IsTrigger(text string) bool {
	text = strings.TrimSpace(text)
	for _, t := range f.triggers {
		if strings.EqualFold(text, t) {
			return true
		}
	}
	return false
}

// HandleMessage advances the user's session by one step. Invalid answers leave the session
// untouched and re-prompt. The only errors returned come from the session store.
func (f *WarfarinFlow) HandleMessage(ctx context.Context, userID, text string) (Result, error) {
	if userID == "" {
		return Result{}, models.ErrEmptyUserID
	}
	unlock := f.locks.Lock(userID)
	defer unlock()

	t := strings.TrimSpace(text)
	slog.Debug("WarfarinFlow HandleMessage", "userID", userID, "text", t)

	if f.IsTrigger(t) {
		sess, err := f.sessions.Restart(ctx, userID, models.FlowTypeWarfarin, f.now())
		if err != nil {
			slog.Error("WarfarinFlow restart failed", "error", err, "userID", userID)
			return Result{}, fmt.Errorf("restart session: %w", err)
		}
		slog.Info("WarfarinFlow session started", "userID", userID)
		return reply(sess.Step, models.TextMessage(PromptINR)), nil
	}

	sess, err := f.sessions.Get(ctx, userID)
	if err != nil {
		slog.Error("WarfarinFlow load session failed", "error", err, "userID", userID)
		return Result{}, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		slog.Debug("WarfarinFlow no session", "userID", userID, "error", ErrUnknownCommand)
		return reply("", models.TextMessage(HelpText(f.triggers))), nil
	}

	switch sess.Step {
	case models.StateAwaitINR:
		return f.handleINR(ctx, *sess, t)
	case models.StateAwaitTWD:
		return f.handleTWD(ctx, *sess, t)
	case models.StateAwaitBleeding:
		return f.handleBleeding(ctx, *sess, t)
	case models.StateAwaitSupplementChoice:
		return f.handleSupplementChoice(ctx, *sess, t)
	case models.StateAwaitSupplementText:
		return f.complete(ctx, *sess, t)
	default:
		slog.Error("WarfarinFlow session in unknown step, discarding", "userID", userID, "step", sess.Step)
		if err := f.sessions.Delete(ctx, userID); err != nil {
			return Result{}, fmt.Errorf("delete session: %w", err)
		}
		return reply("", models.TextMessage(HelpText(f.triggers))), nil
	}
}

func (f *WarfarinFlow) handleINR(ctx context.Context, sess models.Session, t string) (Result, error) {
	inr, err := ParseFloat("INR", t)
	if err != nil {
		slog.Warn("WarfarinFlow invalid INR", "userID", sess.UserID, "error", err)
		return reply(sess.Step, models.TextMessage(ErrorPromptINR)), nil
	}
	sess.INR = inr
	return f.advance(ctx, sess, models.StateAwaitTWD, models.TextMessage(PromptTWD))
}

func (f *WarfarinFlow) handleTWD(ctx context.Context, sess models.Session, t string) (Result, error) {
	twd, err := ParseFloat("weekly dose", t)
	if err != nil {
		slog.Warn("WarfarinFlow invalid weekly dose", "userID", sess.UserID, "error", err)
		return reply(sess.Step, models.TextMessage(ErrorPromptTWD)), nil
	}
	sess.TWD = twd
	return f.advance(ctx, sess, models.StateAwaitBleeding, models.TextMessage(PromptBleeding))
}

func (f *WarfarinFlow) handleBleeding(ctx context.Context, sess models.Session, t string) (Result, error) {
	b, err := models.ParseBleeding(t)
	if err != nil {
		verr := &ValidationError{Field: "bleeding", Input: t, Err: err}
		slog.Warn("WarfarinFlow invalid bleeding answer", "userID", sess.UserID, "error", verr)
		return reply(sess.Step, models.TextMessage(ErrorPromptBleeding)), nil
	}
	sess.Bleeding = b
	if b == models.BleedingYes {
		slog.Warn("WarfarinFlow bleeding reported", "userID", sess.UserID)
	}
	return f.advance(ctx, sess, models.StateAwaitSupplementChoice, models.MenuMessage(warfarin.SupplementMenu()))
}

func (f *WarfarinFlow) handleSupplementChoice(ctx context.Context, sess models.Session, t string) (Result, error) {
	switch {
	case t == warfarin.OptionNoneUsed:
		return f.complete(ctx, sess, "")
	case warfarin.IsFreeTextOption(t):
		return f.advance(ctx, sess, models.StateAwaitSupplementText, models.TextMessage(PromptSupplementText))
	default:
		// A single named supplement, or text typed instead of tapping the menu.
		return f.complete(ctx, sess, t)
	}
}

func (f *WarfarinFlow) advance(ctx context.Context, sess models.Session, next models.StateType, msg models.OutboundMessage) (Result, error) {
	prev := sess.Step
	sess.Step = next
	sess.UpdatedAt = f.now()
	if err := f.sessions.Put(ctx, sess); err != nil {
		slog.Error("WarfarinFlow save session failed", "error", err, "userID", sess.UserID, "step", next)
		return Result{}, fmt.Errorf("save session: %w", err)
	}
	slog.Debug("WarfarinFlow transition", "userID", sess.UserID, "from", prev, "to", next)
	return reply(next, msg), nil
}

func (f *WarfarinFlow) complete(ctx context.Context, sess models.Session, supplementText string) (Result, error) {
	text := warfarin.Recommend(sess.INR, sess.TWD, sess.Bleeding, supplementText, f.now())
	if err := f.finish(ctx, sess.UserID); err != nil {
		return Result{}, err
	}
	slog.Info("WarfarinFlow recommendation issued", "userID", sess.UserID, "inr", sess.INR, "twd", sess.TWD)
	return Result{Messages: []models.OutboundMessage{models.TextMessage(text)}, Completed: true}, nil
}

func (f *WarfarinFlow) finish(ctx context.Context, userID string) error {
	if err := f.sessions.Delete(ctx, userID); err != nil {
		slog.Error("WarfarinFlow clear session failed", "error", err, "userID", userID)
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
