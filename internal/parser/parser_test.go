package parser

import (
	"context"
	"testing"
	"time"

	"github.com/kimjune01/slunk/internal/accessibility/tree"
)

func buildPane(thread bool) *tree.Node {
	header := tree.NewNode(RoleHeader).
		WithAttr(AttrWorkspaceName, "acme").
		WithAttr(AttrChannelName, "general")
	if thread {
		header.WithAttr(AttrThreadParentID, "msg-100")
	}

	row1 := tree.NewNode(RoleRow).
		WithValue("hello team").
		WithAttr(AttrSender, "alice").
		WithAttr(AttrTimestamp, "2026-07-30 09:15")

	reaction := tree.NewNode(RoleReaction).WithValue("👍").WithAttr(AttrReactionCount, "3")
	row2 := tree.NewNode(RoleRow, reaction).
		WithValue("thanks!").
		WithAttr(AttrSender, "bob").
		WithAttr(AttrTimestamp, "5 minutes ago").
		WithAttr(AttrKind, "bot")

	placeholder := tree.NewNode(RoleVirtualRow)

	return tree.NewNode(RolePane, header, row1, row2, placeholder)
}

func TestWalkExtractsMessagesAndHeader(t *testing.T) {
	now := time.Date(2026, 7, 30, 9, 20, 0, 0, time.UTC)
	ft := tree.NewFake(buildPane(false))

	snap, err := Walk(context.Background(), ft, now)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if snap.Workspace != "acme" || snap.Channel != "general" {
		t.Fatalf("unexpected header fields: %+v", snap)
	}
	if snap.ChannelType != ChannelTypeChannel {
		t.Fatalf("expected channel type channel, got %s", snap.ChannelType)
	}
	if len(snap.Messages) != 2 {
		t.Fatalf("expected 2 messages (virtual row skipped), got %d", len(snap.Messages))
	}

	first := snap.Messages[0]
	if first.Sender != "alice" || first.Body != "hello team" {
		t.Fatalf("unexpected first message: %+v", first)
	}
	if !first.HasParsedTime {
		t.Fatalf("expected parsed timestamp for first message")
	}

	second := snap.Messages[1]
	if second.Kind != KindBot {
		t.Fatalf("expected bot kind, got %s", second.Kind)
	}
	if second.Reactions["👍"] != 3 {
		t.Fatalf("expected reaction count 3, got %v", second.Reactions)
	}
	if !second.HasParsedTime || second.ParsedAt.After(now) {
		t.Fatalf("expected relative timestamp resolved before now, got %v", second.ParsedAt)
	}
}

func TestWalkDetectsThreadPane(t *testing.T) {
	ft := tree.NewFake(buildPane(true))
	snap, err := Walk(context.Background(), ft, time.Now())
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if snap.ChannelType != ChannelTypeThread {
		t.Fatalf("expected thread channel type, got %s", snap.ChannelType)
	}
	if snap.ThreadParentID != "msg-100" {
		t.Fatalf("expected thread parent id msg-100, got %s", snap.ThreadParentID)
	}
}
