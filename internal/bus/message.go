// Package bus moves highlight, click, and selection messages between
// independently mounted resource panes.
//
// Messages split into two disjoint classes. State messages (token groups)
// are keyed by source+topic and retained latest-wins: a newer message from
// the same source unconditionally supersedes the prior one, and late
// subscribers receive the retained state on attach. Event messages (token
// clicks, note selections) are one-shot and never retained. Receivers must
// not assume events arrive before or after state messages.
package bus

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/FocuswithJustin/CedarLink/core/errors"
)

// MsgKind tags the closed set of message variants. Receivers match
// exhaustively; an unknown kind is a decode error, not a silent drop
// discovered at runtime.
type MsgKind string

// Message kind constants.
const (
	// KindGroupsUpsert replaces the sender's token groups for a verse range.
	KindGroupsUpsert MsgKind = "groups_upsert"
	// KindGroupsClear retires everything previously sent by the source.
	KindGroupsClear MsgKind = "groups_clear"
	// KindTokenClick reports a user click on a token.
	KindTokenClick MsgKind = "token_click"
	// KindNoteSelect reports a user selecting a note.
	KindNoteSelect MsgKind = "note_select"
)

// IsState reports whether the kind is retained latest-wins per source+topic.
func (k MsgKind) IsState() bool {
	return k == KindGroupsUpsert || k == KindGroupsClear
}

// IsValid reports whether the kind is known.
func (k MsgKind) IsValid() bool {
	switch k {
	case KindGroupsUpsert, KindGroupsClear, KindTokenClick, KindNoteSelect:
		return true
	}
	return false
}

// Envelope is the wire form of every bus message.
type Envelope struct {
	// Kind selects the payload variant.
	Kind MsgKind `json:"kind"`

	// Source is the owning pane's source id. Only the owner may publish
	// state for its source id.
	Source string `json:"source"`

	// Topic scopes state retention (e.g., the verse-range reference).
	Topic string `json:"topic,omitempty"`

	// Seq is monotonically increasing per source; an older Seq from the same
	// source+topic never supersedes a newer one.
	Seq int64 `json:"seq"`

	// Timestamp is the send time.
	Timestamp time.Time `json:"timestamp"`

	// Payload is the JSON-encoded variant body.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// StateKey returns the retention key for state messages.
func (e Envelope) StateKey() string {
	return e.Source + "|" + e.Topic
}

// GroupRecord is one note's resolved token group inside a GroupsUpsert.
type GroupRecord struct {
	NoteID     string `json:"note_id"`
	Quote      string `json:"quote,omitempty"`
	Occurrence int    `json:"occurrence,omitempty"`
	TokenIDs   []int  `json:"token_ids"`
	ColorIndex int    `json:"color_index"`
}

// GroupsUpsert replaces the sender's groups for the referenced verse range.
type GroupsUpsert struct {
	// Reference is the verse-range reference the groups belong to.
	Reference string `json:"reference"`

	// Groups is the ordered group list; order fixes color assignment.
	Groups []GroupRecord `json:"groups"`
}

// Empty reports whether the upsert carries no token ids at all. The loose
// upstream convention overloads an empty payload to mean "clear"; the codec
// decodes such an upsert as an explicit GroupsClear.
func (u GroupsUpsert) Empty() bool {
	for _, g := range u.Groups {
		if len(g.TokenIDs) > 0 {
			return false
		}
	}
	return true
}

// GroupsClear retires everything previously sent by the source.
type GroupsClear struct {
	// Reference is the verse-range reference being cleared, if known.
	Reference string `json:"reference,omitempty"`
}

// TokenClick reports a user click on a token.
type TokenClick struct {
	TokenID    int    `json:"token_id"`
	Text       string `json:"text"`
	AlignedIDs []int  `json:"aligned_ids,omitempty"`
	VerseRef   string `json:"verse_ref"`
}

// NoteSelect reports a user selecting a note (focus follows).
type NoteSelect struct {
	NoteID    string `json:"note_id"`
	GroupID   string `json:"group_id,omitempty"`
	Quote     string `json:"quote,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// seqCounter hands out per-process sequence numbers; see NewEnvelope.
var seqCounter atomic.Int64

func nextSeq() int64 {
	return seqCounter.Add(1)
}

// NewEnvelope builds an envelope for the given payload variant. The variant
// type determines the kind; passing any other type is an error.
func NewEnvelope(source, topic string, payload any) (Envelope, error) {
	var kind MsgKind
	switch payload.(type) {
	case GroupsUpsert, *GroupsUpsert:
		kind = KindGroupsUpsert
	case GroupsClear, *GroupsClear:
		kind = KindGroupsClear
	case TokenClick, *TokenClick:
		kind = KindTokenClick
	case NoteSelect, *NoteSelect:
		kind = KindNoteSelect
	default:
		return Envelope{}, errors.NewUnsupported("message payload", fmt.Sprintf("%T", payload))
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, errors.Wrap(err, "marshal payload")
	}
	return Envelope{
		Kind:      kind,
		Source:    source,
		Topic:     topic,
		Seq:       nextSeq(),
		Timestamp: time.Now().UTC(),
		Payload:   data,
	}, nil
}

// Decode unmarshals the envelope's payload into its variant. An upsert whose
// token id lists are all empty decodes as GroupsClear (the explicit form of
// the legacy empty-payload convention).
func (e Envelope) Decode() (any, error) {
	switch e.Kind {
	case KindGroupsUpsert:
		var u GroupsUpsert
		if err := json.Unmarshal(e.Payload, &u); err != nil {
			return nil, errors.NewParse("message", "", err.Error())
		}
		if u.Empty() {
			return GroupsClear{Reference: u.Reference}, nil
		}
		return u, nil

	case KindGroupsClear:
		var c GroupsClear
		if len(e.Payload) > 0 {
			if err := json.Unmarshal(e.Payload, &c); err != nil {
				return nil, errors.NewParse("message", "", err.Error())
			}
		}
		return c, nil

	case KindTokenClick:
		var c TokenClick
		if err := json.Unmarshal(e.Payload, &c); err != nil {
			return nil, errors.NewParse("message", "", err.Error())
		}
		return c, nil

	case KindNoteSelect:
		var s NoteSelect
		if err := json.Unmarshal(e.Payload, &s); err != nil {
			return nil, errors.NewParse("message", "", err.Error())
		}
		return s, nil

	default:
		return nil, errors.NewUnsupported("message kind", string(e.Kind))
	}
}
