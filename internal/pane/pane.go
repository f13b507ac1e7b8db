// Package pane coordinates one mounted resource pane: it resolves note
// quotes against the displayed scope, maintains the pane's highlight
// registry, and exchanges group state with other panes over the bus.
package pane

import (
	"sync"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/CedarLink/core/align"
	"github.com/FocuswithJustin/CedarLink/core/highlight"
	"github.com/FocuswithJustin/CedarLink/core/quote"
	"github.com/FocuswithJustin/CedarLink/core/ref"
	"github.com/FocuswithJustin/CedarLink/core/token"
	"github.com/FocuswithJustin/CedarLink/internal/bus"
	"github.com/FocuswithJustin/CedarLink/internal/logging"
)

// Note is one note row as it arrives from note content: the reference and
// occurrence are untrusted strings.
type Note struct {
	ID         string
	Reference  string
	Quote      string
	Occurrence string
}

// NoteResult reports the outcome of resolving one note. Failures are
// per-note and never abort the batch.
type NoteResult struct {
	NoteID     string
	GroupID    string
	Match      quote.Result
	TokenIDs   []int
	ColorIndex int
}

// Controller owns a pane's highlight state. It is the single writer for its
// source id on the bus; remote state arriving via HandleEnvelope is applied
// under distinct source ids and never merged with local groups.
type Controller struct {
	mu       sync.Mutex
	sourceID string
	book     string
	scope    string
	registry *highlight.Registry
	index    *align.Index
	hub      *bus.Hub
	debounce *bus.Debouncer

	// remote tracks which registry source ids each bus source contributed,
	// so a GroupsClear can retire exactly that source's groups.
	remote map[string][]string
}

// NewController creates a pane controller with a generated source id.
// The registry and alignment index are injected; the index may be nil when
// the pane shows no aligned translation.
func NewController(registry *highlight.Registry, index *align.Index, hub *bus.Hub) *Controller {
	return &Controller{
		sourceID: uuid.New().String(),
		registry: registry,
		index:    index,
		hub:      hub,
		debounce: bus.NewDebouncer(bus.DefaultDebounce),
		remote:   make(map[string][]string),
	}
}

// SourceID returns the pane's bus source id.
func (c *Controller) SourceID() string {
	return c.sourceID
}

// Registry returns the pane's highlight registry.
func (c *Controller) Registry() *highlight.Registry {
	return c.registry
}

// SetNotes replaces the pane's note groups for a new scope. Each note is
// resolved independently; a note whose reference, occurrence, or quote fails
// resolution yields a failed NoteResult and contributes no group. The
// resulting group state is broadcast after a debounce window, and the
// broadcast is discarded if the scope has moved on by then.
func (c *Controller) SetNotes(book, reference string, notes []Note, verses token.VerseProvider) []NoteResult {
	scope, err := ref.Parse(book, reference)
	if err != nil {
		logging.PaneEvent("notes_bad_reference", c.sourceID, "reference", reference, "error", err.Error())
		results := make([]NoteResult, len(notes))
		for i, n := range notes {
			results[i] = NoteResult{NoteID: n.ID, ColorIndex: -1, Match: quote.Result{Err: err.Error()}}
		}
		return results
	}
	scopeStr := scope.String()

	c.mu.Lock()
	c.book = book
	previous := c.scope
	c.scope = scopeStr
	c.mu.Unlock()

	if previous != "" && previous != scopeStr {
		c.publishClear(previous)
	}
	c.registry.ClearKind(highlight.KindNotes)

	results := make([]NoteResult, 0, len(notes))
	colorable := 0
	records := make([]bus.GroupRecord, 0, len(notes))

	for _, n := range notes {
		res := c.resolveNote(scope, reference, n, verses, &colorable)
		results = append(results, res)
		if res.GroupID != "" {
			records = append(records, bus.GroupRecord{
				NoteID:     n.ID,
				Quote:      n.Quote,
				Occurrence: occurrenceOf(n),
				TokenIDs:   res.TokenIDs,
				ColorIndex: res.ColorIndex,
			})
		}
	}

	c.debounce.Trigger(func() {
		c.mu.Lock()
		current := c.scope
		c.mu.Unlock()
		if current != scopeStr {
			logging.PaneEvent("broadcast_stale", c.sourceID, "scope", scopeStr)
			return
		}
		c.publishUpsert(scopeStr, records)
	})
	return results
}

func (c *Controller) resolveNote(scope ref.Scope, paneRef string, n Note, verses token.VerseProvider, colorable *int) NoteResult {
	occurrence, err := ref.ParseOccurrence(n.Occurrence)
	if err != nil {
		return NoteResult{NoteID: n.ID, ColorIndex: -1, Match: quote.Result{Err: err.Error()}}
	}
	if n.Reference != "" && n.Reference != paneRef {
		// A note addressing a different range resolves against its own scope.
		s, err := ref.Parse(c.bookOf(), n.Reference)
		if err != nil {
			return NoteResult{NoteID: n.ID, ColorIndex: -1, Match: quote.Result{Err: err.Error()}}
		}
		scope = s
	}

	res := quote.Resolve(scope, n.Quote, occurrence, verses)
	logging.MatchEvent(c.sourceID, scope.String(), n.Quote, occurrence, res.Success)
	if !res.Success {
		return NoteResult{NoteID: n.ID, ColorIndex: -1, Match: res}
	}

	g := highlight.NewGroup(highlight.KindNotes, n.ID, n.Quote)
	g.Quote = n.Quote
	g.Occurrence = occurrence
	if g.Colorable() {
		g.ColorIndex = *colorable % c.registry.PaletteSize()
		*colorable++
	}

	ids := make([]int, 0, len(res.TotalTokens))
	for _, tok := range res.TotalTokens {
		g.TokenIDs[tok.ID] = struct{}{}
		ids = append(ids, tok.ID)
	}
	c.registry.AddGroup(g)

	return NoteResult{
		NoteID:     n.ID,
		GroupID:    g.ID,
		Match:      res,
		TokenIDs:   ids,
		ColorIndex: g.ColorIndex,
	}
}

func (c *Controller) bookOf() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.book
}

// SelectNote focuses the group contributed by the given note and announces
// the selection as a one-shot event.
func (c *Controller) SelectNote(noteID string) {
	for _, g := range c.registry.Groups() {
		if g.SourceKind == highlight.KindNotes && g.SourceID == noteID {
			c.registry.SetActive(g.ID)
			c.publishEvent(bus.NoteSelect{NoteID: noteID, GroupID: g.ID, Quote: g.Quote})
			return
		}
	}
	c.registry.SetActive("")
}

// ClickToken records a manual token selection and announces it. The selection
// group covers the clicked token plus its alignment counterparts; it is a
// structural group and never participates in color assignment.
func (c *Controller) ClickToken(docID string, tok token.Token, verseRef string) {
	var aligned []int
	if c.index != nil {
		aligned = c.index.AlignedIDs(docID, tok)
	}

	g := highlight.NewGroup(highlight.KindSelection, c.sourceID, tok.Text)
	g.TokenIDs[tok.ID] = struct{}{}
	for _, id := range aligned {
		g.TokenIDs[id] = struct{}{}
	}
	c.registry.AddGroup(g)

	c.publishEvent(bus.TokenClick{
		TokenID:    tok.ID,
		Text:       tok.Text,
		AlignedIDs: aligned,
		VerseRef:   verseRef,
	})
}

// HandleEnvelope applies a bus message from another pane. Messages from the
// controller's own source id are ignored.
func (c *Controller) HandleEnvelope(env bus.Envelope) error {
	if env.Source == c.sourceID {
		return nil
	}

	payload, err := env.Decode()
	if err != nil {
		return err
	}

	switch p := payload.(type) {
	case bus.GroupsUpsert:
		c.applyRemoteGroups(env.Source, p)
	case bus.GroupsClear:
		c.clearRemoteGroups(env.Source)
	case bus.TokenClick:
		g := highlight.NewGroup(highlight.KindSelection, env.Source, p.Text)
		g.TokenIDs[p.TokenID] = struct{}{}
		for _, id := range p.AlignedIDs {
			g.TokenIDs[id] = struct{}{}
		}
		c.registry.AddGroup(g)
	case bus.NoteSelect:
		for _, g := range c.registry.Groups() {
			if g.SourceID == remoteSourceID(env.Source, p.NoteID) {
				c.registry.SetActive(g.ID)
				break
			}
		}
	}
	return nil
}

func remoteSourceID(busSource, noteID string) string {
	return busSource + "/" + noteID
}

func (c *Controller) applyRemoteGroups(source string, u bus.GroupsUpsert) {
	c.clearRemoteGroups(source)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range u.Groups {
		g := highlight.NewGroup(highlight.KindOther, remoteSourceID(source, rec.NoteID), rec.Quote)
		g.Quote = rec.Quote
		g.Occurrence = rec.Occurrence
		g.ColorIndex = rec.ColorIndex
		for _, id := range rec.TokenIDs {
			g.TokenIDs[id] = struct{}{}
		}
		c.registry.AddGroup(g)
		c.remote[source] = append(c.remote[source], g.SourceID)
	}
	logging.PaneEvent("remote_groups", c.sourceID, "from", source, "groups", len(u.Groups))
}

func (c *Controller) clearRemoteGroups(source string) {
	c.mu.Lock()
	ids := c.remote[source]
	delete(c.remote, source)
	c.mu.Unlock()

	for _, id := range ids {
		c.registry.ClearSource(id)
	}
}

// Reset clears all pane state on a navigation change and retires the pane's
// retained bus state.
func (c *Controller) Reset() {
	c.mu.Lock()
	scope := c.scope
	c.scope = ""
	c.remote = make(map[string][]string)
	c.mu.Unlock()

	c.registry.Reset()
	if scope != "" {
		c.publishClear(scope)
	}
}

// Close flushes any pending broadcast and retires the pane's retained state.
func (c *Controller) Close() {
	c.debounce.Flush()
	c.debounce.Stop()

	c.mu.Lock()
	scope := c.scope
	c.mu.Unlock()
	if scope != "" {
		c.publishClear(scope)
	}
	logging.PaneEvent("close", c.sourceID)
}

func (c *Controller) publishUpsert(scope string, records []bus.GroupRecord) {
	if c.hub == nil {
		return
	}
	env, err := bus.NewEnvelope(c.sourceID, scope, bus.GroupsUpsert{Reference: scope, Groups: records})
	if err != nil {
		logging.Error("build groups upsert", "error", err)
		return
	}
	c.hub.Publish(env)
}

func (c *Controller) publishClear(scope string) {
	if c.hub == nil {
		return
	}
	env, err := bus.NewEnvelope(c.sourceID, scope, bus.GroupsClear{Reference: scope})
	if err != nil {
		logging.Error("build groups clear", "error", err)
		return
	}
	c.hub.Publish(env)
}

func (c *Controller) publishEvent(payload any) {
	if c.hub == nil {
		return
	}
	env, err := bus.NewEnvelope(c.sourceID, "", payload)
	if err != nil {
		logging.Error("build event", "error", err)
		return
	}
	c.hub.Publish(env)
}

func occurrenceOf(n Note) int {
	occ, err := ref.ParseOccurrence(n.Occurrence)
	if err != nil {
		return 0
	}
	return occ
}
