package pane

import (
	"testing"

	"github.com/FocuswithJustin/CedarLink/core/align"
	"github.com/FocuswithJustin/CedarLink/core/highlight"
	"github.com/FocuswithJustin/CedarLink/core/token"
	"github.com/FocuswithJustin/CedarLink/internal/bus"
)

// testDocument is a single tokenized verse of 1 John 1:2.
// Word ids: καὶ=1 ἡμεῖς=3 μαρτυροῦμεν=5 καὶ=7 ἀπαγγέλλομεν=9.
func testDocument() *token.Document {
	words := []string{"καὶ", "ἡμεῖς", "μαρτυροῦμεν", "καὶ", "ἀπαγγέλλομεν"}
	v := token.Verse{Chapter: 1, Verse: 2}
	id := 1
	for i, w := range words {
		if i > 0 {
			v.Tokens = append(v.Tokens, token.Token{ID: id, Text: " ", Kind: token.Whitespace})
			id++
		}
		v.Tokens = append(v.Tokens, token.Token{ID: id, Text: w, Kind: token.Word})
		id++
	}
	return &token.Document{
		ID:     "UGNT-1JN",
		Book:   "1John",
		Role:   token.RoleOriginal,
		Verses: []token.Verse{v},
	}
}

func newTestController(t *testing.T) (*Controller, *bus.Hub) {
	t.Helper()
	hub := bus.NewHub()
	t.Cleanup(hub.Close)
	c := NewController(highlight.NewRegistry(), nil, hub)
	return c, hub
}

func TestSetNotesResolvesAndBroadcasts(t *testing.T) {
	c, hub := newTestController(t)
	provider := token.DocumentProvider{Doc: testDocument()}

	results := c.SetNotes("1John", "1:2", []Note{
		{ID: "n1", Quote: "ἡμεῖς", Occurrence: "1"},
	}, provider)

	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	r := results[0]
	if !r.Match.Success || r.GroupID == "" {
		t.Fatalf("note did not resolve: %+v", r)
	}
	if len(r.TokenIDs) != 1 || r.TokenIDs[0] != 3 {
		t.Errorf("TokenIDs = %v, want [3]", r.TokenIDs)
	}
	if r.ColorIndex != 0 {
		t.Errorf("ColorIndex = %d, want 0", r.ColorIndex)
	}

	groups, _, ok := c.Registry().ColorFor(3)
	if !ok || len(groups) != 1 {
		t.Errorf("ColorFor(3) = %v, %v, want one colored group", groups, ok)
	}

	// Pending broadcast becomes retained state once flushed.
	c.debounce.Flush()
	env, ok := hub.Retained(c.SourceID(), "1John.1.2")
	if !ok {
		t.Fatal("no retained state after flush")
	}
	payload, err := env.Decode()
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	u, ok := payload.(bus.GroupsUpsert)
	if !ok {
		t.Fatalf("payload = %T, want GroupsUpsert", payload)
	}
	if len(u.Groups) != 1 || u.Groups[0].NoteID != "n1" {
		t.Errorf("broadcast groups = %+v, want one group for n1", u.Groups)
	}
}

func TestPerNoteFailureIsolation(t *testing.T) {
	c, _ := newTestController(t)
	provider := token.DocumentProvider{Doc: testDocument()}

	results := c.SetNotes("1John", "1:2", []Note{
		{ID: "bad-occ", Quote: "καὶ", Occurrence: "x"},
		{ID: "no-match", Quote: "λόγος", Occurrence: "1"},
		{ID: "good", Quote: "καὶ", Occurrence: "2"},
	}, provider)

	if results[0].Match.Err == "" || results[0].GroupID != "" {
		t.Errorf("bad occurrence should fail without a group: %+v", results[0])
	}
	if results[1].Match.Err == "" {
		t.Errorf("unmatched quote should carry an error: %+v", results[1])
	}
	if !results[2].Match.Success {
		t.Errorf("valid note should still resolve: %+v", results[2])
	}
	if results[2].TokenIDs[0] != 7 {
		t.Errorf("second καὶ = %v, want [7]", results[2].TokenIDs)
	}
	if got := len(c.Registry().Groups()); got != 1 {
		t.Errorf("registry groups = %d, want 1", got)
	}
}

func TestSetNotesInvalidReference(t *testing.T) {
	c, _ := newTestController(t)
	provider := token.DocumentProvider{Doc: testDocument()}

	results := c.SetNotes("1John", "not-a-ref", []Note{
		{ID: "n1", Quote: "καὶ", Occurrence: "1"},
	}, provider)

	if results[0].Match.Err == "" || results[0].GroupID != "" {
		t.Errorf("invalid reference should fail every note: %+v", results[0])
	}
}

func TestScopeChangeRetiresOldState(t *testing.T) {
	c, hub := newTestController(t)
	provider := token.DocumentProvider{Doc: testDocument()}
	notes := []Note{{ID: "n1", Quote: "καὶ", Occurrence: "1"}}

	c.SetNotes("1John", "1:2", notes, provider)
	c.debounce.Flush()

	c.SetNotes("1John", "1:2-3", notes, provider)
	c.debounce.Flush()

	old, ok := hub.Retained(c.SourceID(), "1John.1.2")
	if !ok {
		t.Fatal("old topic should retain an explicit clear")
	}
	if old.Kind != bus.KindGroupsClear {
		t.Errorf("old topic kind = %q, want groups_clear", old.Kind)
	}

	cur, ok := hub.Retained(c.SourceID(), "1John.1.2-3")
	if !ok || cur.Kind != bus.KindGroupsUpsert {
		t.Errorf("new topic retained = %+v, %v, want an upsert", cur, ok)
	}
}

func TestStaleBroadcastDiscarded(t *testing.T) {
	c, hub := newTestController(t)
	provider := token.DocumentProvider{Doc: testDocument()}
	notes := []Note{{ID: "n1", Quote: "καὶ", Occurrence: "1"}}

	c.SetNotes("1John", "1:2", notes, provider)

	// Move the scope before the debounce fires; the pending broadcast for
	// 1:2 must not be published.
	c.mu.Lock()
	c.scope = "1John.1.3"
	c.mu.Unlock()
	c.debounce.Flush()

	if _, ok := hub.Retained(c.SourceID(), "1John.1.2"); ok {
		t.Error("stale broadcast should have been discarded")
	}
}

func TestNoteReferenceScoping(t *testing.T) {
	c, _ := newTestController(t)

	// Add a second verse so a note can address a range the pane is not
	// showing. Word ids continue after the first verse: τὸ=10 φῶς=12.
	doc := testDocument()
	doc.Verses = append(doc.Verses, token.Verse{
		Chapter: 1, Verse: 3,
		Tokens: []token.Token{
			{ID: 10, Text: "τὸ", Kind: token.Word},
			{ID: 11, Text: " ", Kind: token.Whitespace},
			{ID: 12, Text: "φῶς", Kind: token.Word},
		},
	})
	provider := token.DocumentProvider{Doc: doc}

	results := c.SetNotes("1John", "1:2", []Note{
		{ID: "same", Reference: "1:2", Quote: "ἡμεῖς", Occurrence: "1"},
		{ID: "other", Reference: "1:3", Quote: "φῶς", Occurrence: "1"},
		{ID: "bad-ref", Reference: "nope", Quote: "ἡμεῖς", Occurrence: "1"},
	}, provider)

	// A reference equal to the pane's resolves in the pane's scope.
	if !results[0].Match.Success || results[0].TokenIDs[0] != 3 {
		t.Errorf("note at pane reference = %+v, want token 3", results[0])
	}
	// A reference to another range resolves against that range.
	if !results[1].Match.Success || results[1].TokenIDs[0] != 12 {
		t.Errorf("note at own reference = %+v, want token 12", results[1])
	}
	// A malformed reference fails just that note.
	if results[2].Match.Err == "" || results[2].GroupID != "" {
		t.Errorf("malformed note reference should fail in isolation: %+v", results[2])
	}
}

func TestSelectNote(t *testing.T) {
	c, _ := newTestController(t)
	provider := token.DocumentProvider{Doc: testDocument()}

	results := c.SetNotes("1John", "1:2", []Note{
		{ID: "n1", Quote: "ἡμεῖς", Occurrence: "1"},
	}, provider)

	c.SelectNote("n1")
	if c.Registry().Active() != results[0].GroupID {
		t.Errorf("Active = %q, want %q", c.Registry().Active(), results[0].GroupID)
	}

	c.SelectNote("unknown")
	if c.Registry().Active() != "" {
		t.Error("selecting an unknown note should clear the focus")
	}
}

func TestClickTokenUsesAlignment(t *testing.T) {
	hub := bus.NewHub()
	defer hub.Close()

	orig := testDocument()
	// Translation token 1 aligned to original ids 3 and 5.
	trans := &token.Document{
		ID:   "ULT-1JN",
		Book: "1John",
		Role: token.RoleTranslation,
		Verses: []token.Verse{{
			Chapter: 1, Verse: 2,
			Tokens: []token.Token{{ID: 1, Text: "we", Kind: token.Word, AlignedTo: []int{3, 5}}},
		}},
	}
	ix := align.NewIndex()
	ix.AddDocument(orig)
	ix.AddDocument(trans)

	c := NewController(highlight.NewRegistry(), ix, hub)
	sub := hub.Subscribe(4)
	defer sub.Unsubscribe()

	tok, _ := trans.TokenByID(1)
	c.ClickToken("ULT-1JN", tok, "1John.1.2")

	groups := c.Registry().GroupsFor(3)
	if len(groups) != 1 || groups[0].SourceKind != highlight.KindSelection {
		t.Fatalf("GroupsFor(3) = %+v, want one selection group", groups)
	}
	if groups[0].Colorable() {
		t.Error("click selection must not participate in color assignment")
	}

	env := <-sub.C
	if env.Kind != bus.KindTokenClick {
		t.Errorf("event kind = %q, want token_click", env.Kind)
	}
}

func TestHandleEnvelopeRemoteLifecycle(t *testing.T) {
	c, _ := newTestController(t)

	upsert, err := bus.NewEnvelope("other-pane", "1John.1.2", bus.GroupsUpsert{
		Reference: "1John.1.2",
		Groups: []bus.GroupRecord{
			{NoteID: "r1", Quote: "καὶ", Occurrence: 1, TokenIDs: []int{1}, ColorIndex: 0},
			{NoteID: "r2", Quote: "ἡμεῖς", Occurrence: 1, TokenIDs: []int{3}, ColorIndex: 1},
		},
	})
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}
	if err := c.HandleEnvelope(upsert); err != nil {
		t.Fatalf("HandleEnvelope failed: %v", err)
	}
	if got := len(c.Registry().Groups()); got != 2 {
		t.Fatalf("registry groups = %d, want 2", got)
	}
	if _, color, ok := c.Registry().ColorFor(3); !ok || color == "" {
		t.Error("remote group should color its tokens")
	}

	clear, err := bus.NewEnvelope("other-pane", "1John.1.2", bus.GroupsClear{Reference: "1John.1.2"})
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}
	if err := c.HandleEnvelope(clear); err != nil {
		t.Fatalf("HandleEnvelope failed: %v", err)
	}
	if got := len(c.Registry().Groups()); got != 0 {
		t.Errorf("registry groups after clear = %d, want 0", got)
	}
}

func TestHandleEnvelopeIgnoresOwnMessages(t *testing.T) {
	c, _ := newTestController(t)

	env, err := bus.NewEnvelope(c.SourceID(), "1John.1.2", bus.GroupsUpsert{
		Reference: "1John.1.2",
		Groups:    []bus.GroupRecord{{NoteID: "n1", TokenIDs: []int{1}}},
	})
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}
	if err := c.HandleEnvelope(env); err != nil {
		t.Fatalf("HandleEnvelope failed: %v", err)
	}
	if got := len(c.Registry().Groups()); got != 0 {
		t.Errorf("own messages must not re-enter the registry, got %d groups", got)
	}
}

func TestCloseRetiresState(t *testing.T) {
	c, hub := newTestController(t)
	provider := token.DocumentProvider{Doc: testDocument()}

	c.SetNotes("1John", "1:2", []Note{{ID: "n1", Quote: "καὶ", Occurrence: "1"}}, provider)
	c.Close()

	env, ok := hub.Retained(c.SourceID(), "1John.1.2")
	if !ok {
		t.Fatal("close should retain a final state message")
	}
	if env.Kind != bus.KindGroupsClear {
		t.Errorf("retained kind = %q, want groups_clear", env.Kind)
	}
}

func TestResetClearsEverything(t *testing.T) {
	c, hub := newTestController(t)
	provider := token.DocumentProvider{Doc: testDocument()}

	c.SetNotes("1John", "1:2", []Note{{ID: "n1", Quote: "καὶ", Occurrence: "1"}}, provider)
	c.debounce.Flush()
	c.Reset()

	if got := len(c.Registry().Groups()); got != 0 {
		t.Errorf("registry groups after reset = %d, want 0", got)
	}
	env, ok := hub.Retained(c.SourceID(), "1John.1.2")
	if !ok || env.Kind != bus.KindGroupsClear {
		t.Errorf("retained after reset = %+v, %v, want a clear", env, ok)
	}
}
