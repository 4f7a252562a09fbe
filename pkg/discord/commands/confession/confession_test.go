package confession

import (
	"io"
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

type apiRecorder struct {
	mu           sync.Mutex
	posted       []string // bodies of channel message posts
	webhookEdits []string // bodies of interaction response edits
	failPosts    bool
}

func (r *apiRecorder) addPost(body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posted = append(r.posted, body)
}

func (r *apiRecorder) addEdit(body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.webhookEdits = append(r.webhookEdits, body)
}

func (r *apiRecorder) posts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.posted...)
}

func (r *apiRecorder) edits() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.webhookEdits...)
}

func newTestSession(t *testing.T, rec *apiRecorder) *discordgo.Session {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && strings.Contains(r.URL.Path, "/messages") && !strings.Contains(r.URL.Path, "/webhooks/"):
			if rec.failPosts {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			body, _ := io.ReadAll(r.Body)
			rec.addPost(string(body))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"posted-msg","channel_id":"confess-chan"}`))
		case r.Method == http.MethodPatch && strings.Contains(r.URL.Path, "/webhooks/"):
			body, _ := io.ReadAll(r.Body)
			rec.addEdit(string(body))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"edited"}`))
		case r.Method == http.MethodPatch && strings.Contains(r.URL.Path, "/messages/"):
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"posted-msg","channel_id":"confess-chan"}`))
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(server.Close)

	oldAPI := discordgo.EndpointAPI
	oldChannels := discordgo.EndpointChannels
	oldWebhooks := discordgo.EndpointWebhooks
	discordgo.EndpointAPI = server.URL + "/"
	discordgo.EndpointChannels = server.URL + "/channels/"
	discordgo.EndpointWebhooks = server.URL + "/webhooks/"
	t.Cleanup(func() {
		discordgo.EndpointAPI = oldAPI
		discordgo.EndpointChannels = oldChannels
		discordgo.EndpointWebhooks = oldWebhooks
	})

	s, err := discordgo.New("Bot test-token")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	// The bot owns the test guild so channel permissions resolve from state.
	s.State.User = &discordgo.User{ID: "bot"}
	_ = s.State.GuildAdd(&discordgo.Guild{ID: "guild", OwnerID: "bot"})
	_ = s.State.ChannelAdd(&discordgo.Channel{ID: "confess-chan", GuildID: "guild", Type: discordgo.ChannelTypeGuildText})
	return s
}

func newTestConfig(t *testing.T, confessionChannel string) *files.ConfigManager {
	t.Helper()
	cm := files.NewConfigManagerWithPath(filepath.Join(t.TempDir(), "settings.json"))
	if err := cm.LoadConfig(); err != nil {
		t.Fatalf("load config: %v", err)
	}
	if confessionChannel != "" {
		if err := cm.SetConfessionChannel(confessionChannel); err != nil {
			t.Fatalf("set channel: %v", err)
		}
	}
	return cm
}

func buildSubmission(t *testing.T, s *discordgo.Session, cm *files.ConfigManager, text string) *core.Context {
	t.Helper()
	i := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:        "interaction-submit",
			AppID:     "app",
			Token:     "token",
			Type:      discordgo.InteractionModalSubmit,
			GuildID:   "guild",
			ChannelID: "confess-chan",
			Member:    &discordgo.Member{User: &discordgo.User{ID: "user"}},
			Data: discordgo.ModalSubmitInteractionData{
				CustomID: ModalSubmitConfession,
				Components: []discordgo.MessageComponent{
					&discordgo.ActionsRow{
						Components: []discordgo.MessageComponent{
							&discordgo.TextInput{CustomID: "confession", Value: text},
						},
					},
				},
			},
		},
	}
	return &core.Context{
		Session:     s,
		Interaction: i,
		Config:      cm,
		Ack:         core.NewAckTracker(),
		GuildID:     "guild",
		UserID:      "user",
	}
}

func TestSubmissionPostsNumberedConfession(t *testing.T) {
	rec := &apiRecorder{}
	s := newTestSession(t, rec)
	cm := newTestConfig(t, "confess-chan")
	h := NewHandler(core.NewResponseManager(s), nil, nil)

	ctx := buildSubmission(t, s, cm, "I still use tabs in YAML files")
	if err := h.handleSubmission(ctx); err != nil {
		t.Fatalf("submission failed: %v", err)
	}

	posts := rec.posts()
	if len(posts) != 1 {
		t.Fatalf("expected 1 posted message, got %d", len(posts))
	}
	if !strings.Contains(posts[0], "Confession #1") {
		t.Fatalf("expected numbered title, got %s", posts[0])
	}
	if !strings.Contains(posts[0], "tabs in YAML") {
		t.Fatalf("expected confession body, got %s", posts[0])
	}

	if got := cm.ConfessionCount(); got != 1 {
		t.Fatalf("counter should be 1, got %d", got)
	}

	edits := rec.edits()
	if len(edits) != 1 || !strings.Contains(edits[0], "posted anonymously") {
		t.Fatalf("expected one confirmation edit, got %v", edits)
	}
	if ctx.Ack.State() == core.AckNone {
		t.Fatalf("interaction must be acknowledged")
	}
}

func TestSubmissionWithoutChannelFailsOnce(t *testing.T) {
	rec := &apiRecorder{}
	s := newTestSession(t, rec)
	cm := newTestConfig(t, "")
	h := NewHandler(core.NewResponseManager(s), nil, nil)

	ctx := buildSubmission(t, s, cm, "nobody will read this")
	if err := h.handleSubmission(ctx); err != nil {
		t.Fatalf("handler should absorb the configuration error: %v", err)
	}

	if got := cm.ConfessionCount(); got != 0 {
		t.Fatalf("counter must not move when nothing was posted, got %d", got)
	}
	if posts := rec.posts(); len(posts) != 0 {
		t.Fatalf("nothing should be posted, got %d", len(posts))
	}
	edits := rec.edits()
	if len(edits) != 1 || !strings.Contains(edits[0], "/setup") {
		t.Fatalf("expected a single setup hint, got %v", edits)
	}
}

func TestSubmissionWithoutSendPermissionDoesNotReserveNumber(t *testing.T) {
	rec := &apiRecorder{}
	s := newTestSession(t, rec)

	// Strip the bot down to a plain member whose roles cannot send messages.
	g, err := s.State.Guild("guild")
	if err != nil {
		t.Fatalf("guild missing from state: %v", err)
	}
	g.OwnerID = "owner"
	g.Roles = []*discordgo.Role{{ID: "guild", Permissions: discordgo.PermissionViewChannel}}
	if err := s.State.MemberAdd(&discordgo.Member{GuildID: "guild", User: &discordgo.User{ID: "bot"}}); err != nil {
		t.Fatalf("member add: %v", err)
	}

	cm := newTestConfig(t, "confess-chan")
	h := NewHandler(core.NewResponseManager(s), nil, nil)

	ctx := buildSubmission(t, s, cm, "the bot cannot even deliver this")
	if err := h.handleSubmission(ctx); err != nil {
		t.Fatalf("handler should absorb the permission problem: %v", err)
	}

	if got := cm.ConfessionCount(); got != 0 {
		t.Fatalf("counter must not move when the channel is unusable, got %d", got)
	}
	if posts := rec.posts(); len(posts) != 0 {
		t.Fatalf("nothing should be posted, got %d", len(posts))
	}
	edits := rec.edits()
	if len(edits) != 1 || !strings.Contains(edits[0], "permission") {
		t.Fatalf("expected a single permission notice, got %v", edits)
	}
}

func TestSubmissionCounterSurvivesPostFailure(t *testing.T) {
	rec := &apiRecorder{failPosts: true}
	s := newTestSession(t, rec)
	cm := newTestConfig(t, "confess-chan")
	h := NewHandler(core.NewResponseManager(s), nil, nil)

	ctx := buildSubmission(t, s, cm, "this one gets lost")
	if err := h.handleSubmission(ctx); err != nil {
		t.Fatalf("handler should absorb the post failure: %v", err)
	}

	// The number was reserved before posting; a failed post leaves a gap
	// rather than rolling the counter back.
	if got := cm.ConfessionCount(); got != 1 {
		t.Fatalf("reserved number must survive post failure, got %d", got)
	}
	edits := rec.edits()
	if len(edits) != 1 || !strings.Contains(edits[0], "Could not post") {
		t.Fatalf("expected a single failure notice, got %v", edits)
	}
}

func TestConfessCommandRequiresConfiguredChannel(t *testing.T) {
	rec := &apiRecorder{}
	s := newTestSession(t, rec)
	cm := newTestConfig(t, "")
	h := NewHandler(core.NewResponseManager(s), nil, nil)

	i := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:        "interaction-confess",
			AppID:     "app",
			Token:     "token",
			Type:      discordgo.InteractionApplicationCommand,
			GuildID:   "guild",
			ChannelID: "somewhere",
			Member:    &discordgo.Member{User: &discordgo.User{ID: "user"}},
			Data:      discordgo.ApplicationCommandInteractionData{Name: "confess"},
		},
	}
	ctx := &core.Context{
		Session:     s,
		Interaction: i,
		Config:      cm,
		Ack:         core.NewAckTracker(),
		GuildID:     "guild",
		UserID:      "user",
	}

	if err := h.handleConfessCommand(ctx); err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if ctx.Ack.State() != core.AckReplied {
		t.Fatalf("expected a direct reply, got %v", ctx.Ack.State())
	}
}

func TestConfessCommandWrongChannel(t *testing.T) {
	rec := &apiRecorder{}
	s := newTestSession(t, rec)
	cm := newTestConfig(t, "confess-chan")
	h := NewHandler(core.NewResponseManager(s), nil, nil)

	i := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:        "interaction-confess",
			AppID:     "app",
			Token:     "token",
			Type:      discordgo.InteractionApplicationCommand,
			GuildID:   "guild",
			ChannelID: "other-chan",
			Member:    &discordgo.Member{User: &discordgo.User{ID: "user"}},
			Data:      discordgo.ApplicationCommandInteractionData{Name: "confess"},
		},
	}
	ctx := &core.Context{
		Session:     s,
		Interaction: i,
		Config:      cm,
		Ack:         core.NewAckTracker(),
		GuildID:     "guild",
		UserID:      "user",
	}

	if err := h.handleConfessCommand(ctx); err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if ctx.Ack.State() != core.AckReplied {
		t.Fatalf("expected a redirect reply, got %v", ctx.Ack.State())
	}
	if posts := rec.posts(); len(posts) != 0 {
		t.Fatalf("no confession may be posted from the wrong channel")
	}
}

func TestReplyModalRejectsPendingTarget(t *testing.T) {
	rec := &apiRecorder{}
	s := newTestSession(t, rec)
	cm := newTestConfig(t, "confess-chan")
	h := NewHandler(core.NewResponseManager(s), nil, nil)

	i := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:      "interaction-reply",
			AppID:   "app",
			Token:   "token",
			Type:    discordgo.InteractionMessageComponent,
			GuildID: "guild",
			Member:  &discordgo.Member{User: &discordgo.User{ID: "user"}},
			Data: discordgo.MessageComponentInteractionData{
				CustomID:      ButtonReplyPrefix + "pending",
				ComponentType: discordgo.ButtonComponent,
			},
		},
	}
	ctx := &core.Context{
		Session:     s,
		Interaction: i,
		Config:      cm,
		Ack:         core.NewAckTracker(),
		GuildID:     "guild",
		UserID:      "user",
	}

	if err := h.openReplyModal(ctx, "pending"); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if ctx.Ack.State() != core.AckReplied {
		t.Fatalf("expected an error reply, got %v", ctx.Ack.State())
	}
}
