package discord

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/presale/internal/notify"
)

type mockSession struct {
	embeds []*discordgo.MessageEmbed
	errs   []error
}

func (m *mockSession) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.embeds = append(m.embeds, embed)
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return nil, err
	}
	return &discordgo.Message{ChannelID: channelID}, nil
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Opts{ChannelID: "1"}); err == nil || !strings.Contains(err.Error(), "bot token is required") {
		t.Errorf("err = %v, want bot token error", err)
	}
	if _, err := New(Opts{Session: &mockSession{}}); err == nil || !strings.Contains(err.Error(), "channel id is required") {
		t.Errorf("err = %v, want channel error", err)
	}
}

func TestNotify_SendsEmbed(t *testing.T) {
	ms := &mockSession{}
	n, err := New(Opts{ChannelID: "42", Session: ms})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	at := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
	ev := notify.Event{Kind: "presale_plan", Name: "Plan A", Resolution: "Approved", Status: "Approved", Version: "2", At: at}
	if err := n.Notify(context.Background(), ev); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(ms.embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(ms.embeds))
	}
	e := ms.embeds[0]
	if e.Color != 0x36a64f {
		t.Errorf("Color = %x, want 36a64f", e.Color)
	}
	if e.Timestamp != "2026-03-01T02:00:00Z" {
		t.Errorf("Timestamp = %q", e.Timestamp)
	}
	if !strings.Contains(e.Title, "approved") {
		t.Errorf("Title = %q", e.Title)
	}
}

func TestNotify_RetriesOn429(t *testing.T) {
	rateLimited := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusTooManyRequests}}
	ms := &mockSession{errs: []error{rateLimited}}
	n, _ := New(Opts{ChannelID: "42", Session: ms})
	n.baseBackoff = time.Millisecond

	if err := n.Notify(context.Background(), notify.Event{}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(ms.embeds) != 2 {
		t.Errorf("attempts = %d, want 2", len(ms.embeds))
	}
}

func TestParseHexColor(t *testing.T) {
	tests := map[string]int{"#36a64f": 0x36a64f, "e53935": 0xe53935, "#2196F3": 0x2196f3}
	for in, want := range tests {
		if got := parseHexColor(in); got != want {
			t.Errorf("parseHexColor(%q) = %x, want %x", in, got, want)
		}
	}
}
