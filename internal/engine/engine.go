// Package engine runs the turn loop: load the session, read the utterance,
// fold it into the order tree, decide what to say, save. One turn per session
// at a time; concurrent turns on the same session serialize on a per-session
// lock so the tree is only ever owned by one turn.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/orderline/orderline/internal/apply"
	"github.com/orderline/orderline/internal/catalog"
	"github.com/orderline/orderline/internal/eventbus"
	"github.com/orderline/orderline/internal/fallback"
	"github.com/orderline/orderline/internal/lexicon"
	"github.com/orderline/orderline/internal/orchestrate"
	"github.com/orderline/orderline/internal/order"
	"github.com/orderline/orderline/internal/parse"
	"github.com/orderline/orderline/internal/session"
	"github.com/orderline/orderline/pkg/cerr"
)

// TurnResult is what one utterance produced.
type TurnResult struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
	// Terminal reports that the conversation is over, either finalized or
	// cancelled out.
	Terminal bool           `json:"terminal"`
	Order    *OrderSnapshot `json:"order"`
	// Tree is the full task state for callers in-process; the wire response
	// carries the snapshot instead.
	Tree *order.OrderTask `json:"-"`
}

// OrderSnapshot is the wire-level view of the order after a turn.
type OrderSnapshot struct {
	Summary     string  `json:"summary"`
	ItemCount   int     `json:"item_count"`
	Subtotal    float64 `json:"subtotal"`
	Total       float64 `json:"total,omitempty"`
	OrderNumber string  `json:"order_number,omitempty"`
}

func snapshotOf(tree *order.OrderTask) *OrderSnapshot {
	return &OrderSnapshot{
		Summary:     tree.Summary(),
		ItemCount:   tree.Items.Count(),
		Subtotal:    tree.Items.Subtotal(),
		Total:       tree.Checkout.Total,
		OrderNumber: tree.Checkout.OrderNumber,
	}
}

type Engine struct {
	sessions     session.Repository
	provider     catalog.Provider
	normalizer   *lexicon.Normalizer
	parser       *parse.Parser
	applier      *apply.Applier
	orchestrator *orchestrate.Orchestrator
	fallback     *fallback.Adapter
	bus          *eventbus.Bus

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(sessions session.Repository, provider catalog.Provider, fb *fallback.Adapter, bus *eventbus.Bus) *Engine {
	pricer := catalog.NewCatalogPricer(provider)
	return &Engine{
		sessions:     sessions,
		provider:     provider,
		normalizer:   lexicon.New(provider),
		parser:       parse.NewParser(provider),
		applier:      apply.New(provider, pricer),
		orchestrator: orchestrate.New(provider),
		fallback:     fb,
		bus:          bus,
		locks:        map[string]*sync.Mutex{},
	}
}

// StartSession creates a fresh session and returns the greeting.
func (e *Engine) StartSession(ctx context.Context) (*session.Session, string, error) {
	s := session.New()
	greeting := "Hi! What can I get for you?"
	s.Record("", greeting)
	if err := e.sessions.Create(ctx, s); err != nil {
		return nil, "", err
	}
	e.bus.PublishNew(eventbus.TypeSessionStarted, s.ID, "", nil)
	return s, greeting, nil
}

// Turn processes one customer utterance against the session's order tree.
func (e *Engine) Turn(ctx context.Context, sessionID, utterance string) (*TurnResult, error) {
	lock := e.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	s, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Closed {
		return nil, cerr.NewError(cerr.FailedPrecondition, "session is closed", nil)
	}
	if s.Tree == nil {
		s.Tree = order.New(s.ID)
	}

	reply, terminal := e.processTurn(ctx, s.Tree, utterance)

	s.Record(utterance, reply)
	s.Closed = terminal
	if err := e.sessions.Update(ctx, s); err != nil {
		return nil, err
	}

	return &TurnResult{SessionID: s.ID, Reply: reply, Terminal: terminal, Order: snapshotOf(s.Tree), Tree: s.Tree}, nil
}

// GetSession exposes the stored session for the read API.
func (e *Engine) GetSession(ctx context.Context, sessionID string) (*session.Session, error) {
	return e.sessions.Get(ctx, sessionID)
}

// ResetSession wipes the order state but keeps the session and its
// transcript, so a counter conversation can start over mid-stream.
func (e *Engine) ResetSession(ctx context.Context, sessionID string) (*TurnResult, error) {
	lock := e.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	s, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Tree == nil {
		s.Tree = order.New(s.ID)
	} else {
		s.Tree.Reset()
	}
	s.Closed = false

	reply := "Okay, let's start over. What can I get for you?"
	s.Record("", reply)
	if err := e.sessions.Update(ctx, s); err != nil {
		return nil, err
	}
	e.bus.PublishNew(eventbus.TypeOrderCancelled, s.ID, "", nil)
	return &TurnResult{SessionID: s.ID, Reply: reply, Order: snapshotOf(s.Tree), Tree: s.Tree}, nil
}

func (e *Engine) processTurn(ctx context.Context, tree *order.OrderTask, utterance string) (string, bool) {
	normalized, aliases := e.normalizer.Normalize(utterance)
	if len(aliases) > 0 {
		slog.Debug("normalized utterance", "session_id", tree.SessionID, "aliases", aliases)
	}

	// A pending "which one did you mean" owns the utterance before any
	// other rule gets a look at it.
	if consumed, out := e.applier.ConsumeDisambiguation(tree, normalized); consumed {
		return e.respond(tree, out), false
	}

	in, err := e.parser.Parse(normalized, tree)
	if err != nil {
		if !errors.Is(err, parse.ErrLowConfidence) {
			slog.Warn("parser failed", "session_id", tree.SessionID, "error", err)
		}
		in = e.interpretFallback(ctx, tree, utterance)
		if in == nil {
			// Degraded: state untouched, generic re-prompt.
			return e.respond(tree, &apply.Outcome{
				Notes: []string{"Sorry, I didn't quite catch that."},
			}), false
		}
	}

	out := e.applier.Apply(tree, in)
	e.publishChanges(tree, in, out)

	if out.OrderCancelled {
		return strings.Join(out.Notes, " "), true
	}
	reply := e.respond(tree, out)
	return reply, tree.Complete()
}

func (e *Engine) interpretFallback(ctx context.Context, tree *order.OrderTask, utterance string) *parse.ParsedInput {
	if e.fallback == nil {
		return nil
	}
	req := fallback.Request{
		Utterance:    utterance,
		OrderSummary: tree.Summary(),
	}
	if tree.Asked != nil {
		req.Scope = tree.Asked.Scope
		req.Question = tree.Asked.SlotName
	}
	in, err := e.fallback.Interpret(ctx, req)
	if err != nil {
		e.bus.PublishNew(eventbus.TypeFallbackDegraded, tree.SessionID, utterance, nil)
		return nil
	}
	return in
}

// respond runs the orchestrator and prefixes its question with the applier's
// acknowledgements and any validation complaint.
func (e *Engine) respond(tree *order.OrderTask, out *apply.Outcome) string {
	var parts []string
	parts = append(parts, out.Notes...)
	if out.InvalidAnswer && out.InvalidReason != "" {
		parts = append(parts, out.InvalidReason)
	}

	action := e.orchestrator.NextAction(tree)
	if action.Reply != "" {
		parts = append(parts, action.Reply)
	}
	if action.Terminal {
		e.publishFinalized(tree)
	}
	return strings.Join(parts, " ")
}

func (e *Engine) publishChanges(tree *order.OrderTask, in *parse.ParsedInput, out *apply.Outcome) {
	if out.OrderCancelled {
		e.bus.PublishNew(eventbus.TypeOrderCancelled, tree.SessionID, "", nil)
		return
	}
	for _, ni := range in.NewItems {
		e.bus.PublishNew(eventbus.TypeItemAdded, tree.SessionID, ni.Name, map[string]string{
			"quantity": fmt.Sprintf("%d", ni.Quantity),
		})
	}
	if in.Intents.CancelItemRef != "" {
		e.bus.PublishNew(eventbus.TypeItemCancelled, tree.SessionID, in.Intents.CancelItemRef, nil)
	}
	if in.Confirmation != nil && *in.Confirmation && tree.Checkout.Confirmed {
		e.bus.PublishNew(eventbus.TypeOrderConfirmed, tree.SessionID, "", nil)
	}
}

func (e *Engine) publishFinalized(tree *order.OrderTask) {
	e.bus.PublishNew(eventbus.TypeOrderFinalized, tree.SessionID, tree.Checkout.OrderNumber, map[string]string{
		"total":      fmt.Sprintf("%.2f", tree.Checkout.Total),
		"order_type": tree.Delivery.OrderType,
		"customer":   tree.Customer.Name,
	})
}

func (e *Engine) sessionLock(sessionID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[sessionID] = lock
	}
	return lock
}
