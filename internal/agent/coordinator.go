// Package agent runs the conversational turn loop: assemble context from
// memory, call the model, execute any requested tools, call the model once
// more, classify the reply into an action, and record the exchange. A turn
// never surfaces an error upward; orchestration failures collapse into a
// fixed apology with a human handoff.
package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"renterchat/internal/catalog"
	"renterchat/internal/llm"
	"renterchat/internal/logging"
	"renterchat/internal/memory"
)

// Action is the classified outcome of a turn.
type Action string

const (
	ActionProposeTour      Action = "propose_tour"
	ActionAskClarification Action = "ask_clarification"
	ActionHandoffHuman     Action = "handoff_human"
)

// StatedPreferences are preferences attached explicitly to a request, as
// opposed to ones learned from conversation.
type StatedPreferences struct {
	Bedrooms *int   `json:"bedrooms,omitempty"`
	MoveIn   string `json:"move_in,omitempty"`
}

// TurnRequest is one inbound client message with its lead context.
type TurnRequest struct {
	ClientID    string
	Lead        memory.Lead
	Message     string
	Stated      *StatedPreferences
	CommunityID string
}

// TurnResponse is the assistant's reply plus the classified next action.
type TurnResponse struct {
	Reply        string     `json:"reply"`
	Action       Action     `json:"action"`
	ProposedTime *time.Time `json:"proposed_time,omitempty"`
}

// Coordinator drives turns. Turns for the same client are serialized with a
// per-client mutex, so one client's transcript grows in strict request
// order; turns for different clients run concurrently.
type Coordinator struct {
	client  llm.Client
	catalog *catalog.Store
	memory  *memory.Store

	now func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// CoordinatorOption customizes Coordinator construction.
type CoordinatorOption func(*Coordinator)

// WithClock overrides the time source used for proposed tour times.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator wires the turn loop over its collaborators.
func NewCoordinator(client llm.Client, cat *catalog.Store, mem *memory.Store, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		client:  client,
		catalog: cat,
		memory:  mem,
		now:     time.Now,
		locks:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProcessTurn runs one full turn. It always returns a usable response: any
// model failure along the way yields the fixed fallback reply instead of an
// error. The user's message is recorded before the first model call, so it
// survives even a failed turn.
func (c *Coordinator) ProcessTurn(ctx context.Context, req TurnRequest) TurnResponse {
	lock := c.clientLock(req.ClientID)
	lock.Lock()
	defer lock.Unlock()

	timer := logging.StartTimer(logging.CategoryAgent, fmt.Sprintf("turn for %s", req.ClientID))
	defer timer.Stop()

	// History excludes the current message; it becomes the prior turns of
	// the model conversation.
	history := c.memory.Transcript(req.ClientID)
	c.memory.RecordUser(ctx, req.ClientID, req.Lead, req.CommunityID, req.Message)

	reply, err := c.converse(ctx, req, history)
	if err != nil {
		logging.AgentError("turn for %s failed: %v", req.ClientID, err)
		return c.fallback(req)
	}

	action, proposedTime := c.classify(reply)
	c.memory.RecordAssistant(req.ClientID, reply)

	logging.Agent("turn for %s done: action=%s reply_len=%d", req.ClientID, action, len(reply))
	return TurnResponse{Reply: reply, Action: action, ProposedTime: proposedTime}
}

// converse performs the two-phase model exchange: one completion, at most
// one round of tool execution, then one closing completion.
func (c *Coordinator) converse(ctx context.Context, req TurnRequest, history []memory.Message) (string, error) {
	messages := make([]llm.Message, 0, len(history)+3)
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: c.composeContext(req, len(history))})

	system := c.systemPrompt(req.CommunityID, req.Lead.FirstName())
	tools := toolDefinitions()

	first, err := c.client.CompleteWithTools(ctx, llm.ToolRequest{
		System:   system,
		Messages: messages,
		Tools:    tools,
	})
	if err != nil {
		return "", fmt.Errorf("first model call: %w", err)
	}

	if len(first.ToolCalls) == 0 {
		return first.Text, nil
	}

	// Exactly one tool round: execute everything the model asked for, hand
	// the results back, and take the second completion as final.
	results := make([]llm.ToolResult, 0, len(first.ToolCalls))
	for _, call := range first.ToolCalls {
		content, err := c.executeTool(ctx, call.Name, call.Input)
		if err != nil {
			// The model sees the failure and can still answer around it.
			logging.Get(logging.CategoryTools).Error("tool %s failed: %v", call.Name, err)
			results = append(results, llm.ToolResult{ToolUseID: call.ID, Content: fmt.Sprintf("Error: %v", err), IsError: true})
			continue
		}
		results = append(results, llm.ToolResult{ToolUseID: call.ID, Content: content})
	}

	messages = append(messages,
		llm.Message{Role: llm.RoleAssistant, Content: first.Text, ToolCalls: first.ToolCalls},
		llm.Message{Role: llm.RoleUser, ToolResults: results},
	)

	second, err := c.client.CompleteWithTools(ctx, llm.ToolRequest{
		System:   system,
		Messages: messages,
		Tools:    tools,
	})
	if err != nil {
		return "", fmt.Errorf("second model call: %w", err)
	}
	return second.Text, nil
}

// composeContext wraps the lead's message with everything known about them.
func (c *Coordinator) composeContext(req TurnRequest, priorMessages int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Lead message: %s\n", req.Message)

	if req.Stated != nil {
		var stated []string
		if req.Stated.Bedrooms != nil {
			stated = append(stated, fmt.Sprintf("bedrooms=%d", *req.Stated.Bedrooms))
		}
		if req.Stated.MoveIn != "" {
			stated = append(stated, fmt.Sprintf("move_in=%s", req.Stated.MoveIn))
		}
		if len(stated) > 0 {
			fmt.Fprintf(&b, "\nStated preferences: %s\n", strings.Join(stated, ", "))
		}
	}

	if profile, ok := c.memory.Profile(req.ClientID); ok {
		if known := profile.Preferences.Known(); len(known) > 0 {
			fields := make([]string, 0, len(known))
			for f := range known {
				fields = append(fields, f)
			}
			sort.Strings(fields)
			var learned []string
			for _, f := range fields {
				learned = append(learned, fmt.Sprintf("%s=%v", f, known[f]))
			}
			fmt.Fprintf(&b, "\nLearned preferences: %s\n", strings.Join(learned, ", "))
		}
	}

	if priorMessages > 0 {
		fmt.Fprintf(&b, "\n(This conversation has %d prior messages.)", priorMessages)
	}
	return b.String()
}

func (c *Coordinator) systemPrompt(communityID, leadName string) string {
	display := displayName(communityID)

	return fmt.Sprintf(`You are a helpful leasing assistant for %s apartments. Your goal is to help prospective renters find their perfect home.

Lead Information:
- Lead name: %s
- Community: %s

Your Role:
- Be friendly, professional, and helpful
- Use the lead's first name when appropriate
- Always prioritize the lead's needs and preferences
- Provide accurate information using the available tools
- Guide conversations toward scheduling tours when appropriate

Available Actions:
- "propose_tour": When you want to suggest scheduling a tour (include a proposed time)
- "ask_clarification": When you need more information from the lead
- "handoff_human": When the inquiry is complex or requires human assistance

Guidelines:
- Never re-ask for information the lead has already given; the learned preferences above are known facts
- When details are missing, ask for the community first, then the move-in date, then anything else
- Choose exactly one of the three actions each turn
- Always check availability, pet policies, and pricing using the provided tools
- Be specific about dates, prices, and unit details
- If you don't have information, use tools to get it or suggest connecting with a specialist
- Keep responses conversational but informative
- Focus on benefits and features that match the lead's needs

Remember: You have access to real-time data through tools, so use them to provide accurate information.`, display, leadName, display)
}

// classify inspects the reply for fixed phrase markers. Tour proposals get
// a synthetic time two days out in the afternoon; anything unrecognized is
// a clarification request.
func (c *Coordinator) classify(reply string) (Action, *time.Time) {
	lower := strings.ToLower(reply)

	if containsAny(lower, "schedule a tour", "tour available", "would you like to see", "tour time") {
		proposed := c.proposedTourTime()
		return ActionProposeTour, &proposed
	}
	if containsAny(lower, "could you tell me", "what are you looking for", "more information", "help me understand") {
		return ActionAskClarification, nil
	}
	if containsAny(lower, "connect you with", "leasing specialist", "specialist", "complex") {
		return ActionHandoffHuman, nil
	}
	return ActionAskClarification, nil
}

// proposedTourTime is 2 PM two days from now.
func (c *Coordinator) proposedTourTime() time.Time {
	day := c.now().AddDate(0, 0, 2)
	return time.Date(day.Year(), day.Month(), day.Day(), 14, 0, 0, 0, day.Location())
}

// fallback is the fixed degraded response. It performs no I/O beyond the
// in-process transcript append, so it cannot itself fail.
func (c *Coordinator) fallback(req TurnRequest) TurnResponse {
	reply := fmt.Sprintf("Hi %s! I apologize, but I'm having technical difficulties right now. Let me connect you with one of our leasing specialists who can assist you immediately.", req.Lead.FirstName())
	c.memory.RecordAssistant(req.ClientID, reply)
	return TurnResponse{Reply: reply, Action: ActionHandoffHuman}
}

func (c *Coordinator) clientLock(clientID string) *sync.Mutex {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()

	lock, ok := c.locks[clientID]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[clientID] = lock
	}
	return lock
}

// displayName turns a community slug into a headline form, e.g.
// "sunset-ridge" becomes "Sunset Ridge".
func displayName(communityID string) string {
	words := strings.Split(communityID, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func containsAny(s string, phrases ...string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
