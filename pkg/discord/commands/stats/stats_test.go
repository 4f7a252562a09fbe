package stats

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/confessbot/pkg/discord/commands/core"
	"github.com/small-frappuccino/confessbot/pkg/files"
)

type responseRecorder struct {
	mu        sync.Mutex
	responses []discordgo.InteractionResponse
}

func (r *responseRecorder) add(resp discordgo.InteractionResponse) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, resp)
}

func (r *responseRecorder) all() []discordgo.InteractionResponse {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]discordgo.InteractionResponse, len(r.responses))
	copy(out, r.responses)
	return out
}

func newTestSession(t *testing.T) (*discordgo.Session, *responseRecorder) {
	t.Helper()
	rec := &responseRecorder{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/callback") {
			var resp discordgo.InteractionResponse
			_ = json.NewDecoder(r.Body).Decode(&resp)
			rec.add(resp)
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	oldAPI := discordgo.EndpointAPI
	oldWebhooks := discordgo.EndpointWebhooks
	discordgo.EndpointAPI = server.URL + "/"
	discordgo.EndpointWebhooks = server.URL + "/webhooks/"
	t.Cleanup(func() {
		discordgo.EndpointAPI = oldAPI
		discordgo.EndpointWebhooks = oldWebhooks
	})

	s, err := discordgo.New("Bot test-token")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return s, rec
}

func TestStatsCommandRepliesPublicly(t *testing.T) {
	s, rec := newTestSession(t)

	cm := files.NewConfigManagerWithPath(filepath.Join(t.TempDir(), "settings.json"))
	if err := cm.LoadConfig(); err != nil {
		t.Fatalf("load config: %v", err)
	}
	if _, err := cm.IncrementConfessionCount(); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if _, err := cm.IncrementConfessionCount(); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if _, err := cm.IncrementReplyCount(); err != nil {
		t.Fatalf("increment: %v", err)
	}

	h := NewHandler(core.NewResponseManager(s), nil)
	ctx := &core.Context{
		Session: s,
		Interaction: &discordgo.InteractionCreate{
			Interaction: &discordgo.Interaction{
				ID:      "interaction-stats",
				AppID:   "app",
				Token:   "token",
				Type:    discordgo.InteractionApplicationCommand,
				GuildID: "guild",
				Member:  &discordgo.Member{User: &discordgo.User{ID: "anyone"}},
				Data:    discordgo.ApplicationCommandInteractionData{Name: "stats"},
			},
		},
		Config:  cm,
		Ack:     core.NewAckTracker(),
		GuildID: "guild",
		UserID:  "anyone",
	}

	if err := h.handleStatsCommand(ctx); err != nil {
		t.Fatalf("stats command failed: %v", err)
	}

	responses := rec.all()
	if len(responses) != 1 {
		t.Fatalf("expected one reply, got %d", len(responses))
	}
	if responses[0].Data.Flags&discordgo.MessageFlagsEphemeral != 0 {
		t.Fatalf("stats reply must be visible to the channel")
	}
	if len(responses[0].Data.Embeds) != 1 {
		t.Fatalf("expected one embed, got %+v", responses[0].Data)
	}

	fields := responses[0].Data.Embeds[0].Fields
	byName := make(map[string]string, len(fields))
	for _, f := range fields {
		byName[f.Name] = f.Value
	}
	if byName["Confessions posted"] != "2" {
		t.Fatalf("expected 2 confessions, got %q", byName["Confessions posted"])
	}
	if byName["Replies posted"] != "1" {
		t.Fatalf("expected 1 reply, got %q", byName["Replies posted"])
	}
}
