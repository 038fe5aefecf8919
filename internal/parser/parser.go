package parser

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kimjune01/slunk/internal/accessibility/tree"
)

// Roles and attribute names the parser expects a chat client's conversation
// pane to expose through the accessibility tree. Real clients vary in
// naming; these are the canonical names C1 adapters normalize onto.
const (
	RolePane       = "conversation-pane"
	RoleHeader     = "pane-header"
	RoleRow        = "message-row"
	RoleVirtualRow = "virtualized-row"
	RoleReaction   = "reaction"
	RoleAttachment = "attachment"

	AttrSender         = "sender"
	AttrTimestamp      = "timestamp"
	AttrKind           = "kind"
	AttrMention        = "mention"
	AttrReactionCount  = "count"
	AttrChannelName    = "channel"
	AttrWorkspaceName  = "workspace"
	AttrThreadParentID = "thread_parent_id"
)

// Walk reads the current state of t's focused pane and returns one
// ConversationSnapshot. now anchors relative/year-less timestamp parsing.
func Walk(ctx context.Context, t tree.Tree, now time.Time) (ConversationSnapshot, error) {
	root, err := t.Root(ctx)
	if err != nil {
		return ConversationSnapshot{}, err
	}

	role, err := root.Role(ctx)
	if err != nil {
		return ConversationSnapshot{}, err
	}
	if role != RolePane {
		return ConversationSnapshot{}, fmt.Errorf("parser: root role %q is not %q", role, RolePane)
	}

	snap := ConversationSnapshot{
		ChannelType: ChannelTypeChannel,
		CapturedAt:  now,
	}

	children, err := root.Children(ctx)
	if err != nil {
		return ConversationSnapshot{}, err
	}

	for _, child := range children {
		childRole, err := child.Role(ctx)
		if err != nil {
			return ConversationSnapshot{}, err
		}
		switch childRole {
		case RoleHeader:
			if err := readHeader(ctx, child, &snap); err != nil {
				return ConversationSnapshot{}, err
			}
		case RoleRow:
			msg, ok, err := readRow(ctx, child, now)
			if err != nil {
				return ConversationSnapshot{}, err
			}
			if ok {
				snap.Messages = append(snap.Messages, msg)
			}
		case RoleVirtualRow:
			// Virtualized placeholder rows carry no content yet; skip them
			// rather than emitting an empty message.
			continue
		}
	}

	return snap, nil
}

func readHeader(ctx context.Context, header tree.Element, snap *ConversationSnapshot) error {
	if v, err := header.Attribute(ctx, AttrWorkspaceName); err == nil && v != nil {
		snap.Workspace = fmt.Sprintf("%v", v)
	}
	if v, err := header.Attribute(ctx, AttrChannelName); err == nil && v != nil {
		snap.Channel = fmt.Sprintf("%v", v)
	}
	if v, err := header.Attribute(ctx, AttrThreadParentID); err == nil && v != nil {
		id := fmt.Sprintf("%v", v)
		if id != "" {
			snap.ChannelType = ChannelTypeThread
			snap.ThreadParentID = id
		}
	}
	return nil
}

func readRow(ctx context.Context, row tree.Element, now time.Time) (RawMessage, bool, error) {
	subrole, err := row.Subrole(ctx)
	if err != nil {
		return RawMessage{}, false, err
	}

	msg := RawMessage{
		Kind:      KindUser,
		Reactions: map[string]int{},
	}

	if v, err := row.Attribute(ctx, AttrSender); err == nil && v != nil {
		msg.Sender = fmt.Sprintf("%v", v)
	}
	if v, err := row.Attribute(ctx, AttrTimestamp); err == nil && v != nil {
		msg.RawTimestamp = fmt.Sprintf("%v", v)
		if ts, ok := ParseTimestamp(msg.RawTimestamp, now); ok {
			msg.ParsedAt = ts
			msg.HasParsedTime = true
		}
	}
	if v, err := row.Attribute(ctx, AttrKind); err == nil && v != nil {
		switch strings.ToLower(fmt.Sprintf("%v", v)) {
		case "bot":
			msg.Kind = KindBot
		case "system":
			msg.Kind = KindSystem
		}
	}

	body, err := row.Value(ctx)
	if err != nil {
		return RawMessage{}, false, err
	}
	msg.Body = body

	children, err := row.Children(ctx)
	if err != nil {
		return RawMessage{}, false, err
	}
	for _, child := range children {
		childRole, err := child.Role(ctx)
		if err != nil {
			return RawMessage{}, false, err
		}
		switch childRole {
		case RoleReaction:
			emoji, countStr := "", ""
			if v, err := child.Value(ctx); err == nil {
				emoji = v
			}
			if v, err := child.Attribute(ctx, AttrReactionCount); err == nil && v != nil {
				countStr = fmt.Sprintf("%v", v)
			}
			n, _ := strconv.Atoi(countStr)
			if emoji != "" {
				msg.Reactions[emoji] = n
			}
		case RoleAttachment:
			if v, err := child.Value(ctx); err == nil && v != "" {
				msg.Attachments = append(msg.Attachments, v)
			}
		}
	}

	_ = subrole
	return msg, true, nil
}
