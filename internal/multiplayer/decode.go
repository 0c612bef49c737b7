package multiplayer

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownEvent is returned by DecodeClientMessage for unrecognised event names.
var ErrUnknownEvent = errors.New("multiplayer: unknown event")

// DecodeClientMessage turns a named event and its raw JSON payload into a
// typed ClientMessage. Decoding is field-by-field: a missing or mistyped
// field becomes nil and never fails the whole message. Only an unknown
// event name is an error.
func DecodeClientMessage(name string, payload json.RawMessage) (ClientMessage, error) {
	fields := objectFields(payload)

	switch name {
	case EventQueueJoin:
		return QueueJoinMsg{}, nil
	case EventQueueLeave:
		return QueueLeaveMsg{}, nil
	case EventPing:
		return PingMsg{Ms: numberField(fields, "ms")}, nil
	case EventPlayerMove:
		return PlayerMoveMsg{
			X:           numberField(fields, "x"),
			Y:           numberField(fields, "y"),
			AnimSpeed:   numberField(fields, "animSpeed"),
			FacingRight: boolField(fields, "facingRight"),
		}, nil
	case EventSkillCast:
		return SkillCastMsg{
			SkillType: stringField(fields, "skillType"),
			DirX:      numberField(fields, "dirX"),
			DirY:      numberField(fields, "dirY"),
		}, nil
	case EventPlayerDamage:
		var target SessionID
		if s := stringField(fields, "targetId"); s != nil {
			target = SessionID(*s)
		}
		return PlayerDamageMsg{
			TargetID: target,
			Damage:   numberField(fields, "damage"),
		}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownEvent, name)
	}
}

// objectFields splits a JSON object into raw fields.
// Anything that is not an object yields no fields.
func objectFields(payload json.RawMessage) map[string]json.RawMessage {
	if len(payload) == 0 {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil
	}
	return fields
}

func numberField(fields map[string]json.RawMessage, name string) *float64 {
	raw, ok := field(fields, name)
	if !ok {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	return &f
}

func boolField(fields map[string]json.RawMessage, name string) *bool {
	raw, ok := field(fields, name)
	if !ok {
		return nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil
	}
	return &b
}

func stringField(fields map[string]json.RawMessage, name string) *string {
	raw, ok := field(fields, name)
	if !ok {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}

// field returns a raw field value, treating an explicit null as missing.
func field(fields map[string]json.RawMessage, name string) (json.RawMessage, bool) {
	raw, ok := fields[name]
	if !ok || string(raw) == "null" {
		return nil, false
	}
	return raw, true
}
