package api

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"kenivoire-client/internal/gateway"
	"kenivoire-client/internal/model"
	"kenivoire-client/internal/session"
	"kenivoire-client/internal/stubserver"
)

type testEnv struct {
	srv    *httptest.Server
	store  *stubserver.Store
	cfg    stubserver.TokenConfig
	tokens *session.Store
	client *Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := stubserver.NewStore()
	cfg := stubserver.DefaultTokenConfig("test-secret")
	srv := httptest.NewServer(stubserver.NewRouter(stubserver.Deps{Store: st, TokenConfig: cfg}))
	t.Cleanup(srv.Close)

	tokens := session.NewStore("")
	gw := gateway.New(gateway.Config{
		BaseURL: srv.URL + "/api/",
		Tokens:  tokens,
		Logger:  zerolog.Nop(),
	})
	return &testEnv{srv: srv, store: st, cfg: cfg, tokens: tokens, client: New(gw, tokens)}
}

func (e *testEnv) register(t *testing.T, username string) model.User {
	t.Helper()
	user, err := e.store.CreateUser(username, username, username+"@example.ci", "", "Abidjan")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user
}

func TestLoginInstallsSession(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "awa")

	sess, err := env.client.Login(context.Background(), "awa", "awa")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.Username != "awa" || sess.SubjectID == "" {
		t.Fatalf("unexpected session: %+v", sess)
	}

	current, ok := env.tokens.Current()
	if !ok || current.AccessToken != sess.AccessToken {
		t.Fatalf("session not installed in token store")
	}

	me, err := env.client.Me(context.Background())
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if me.Username != "awa" {
		t.Fatalf("expected awa, got %q", me.Username)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "awa")

	_, err := env.client.Login(context.Background(), "awa", "wrong")
	var apiErr *gateway.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if _, ok := env.tokens.Current(); ok {
		t.Fatalf("failed login must not install a session")
	}
}

func TestAdsCRUDAndSearch(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "awa")
	if _, err := env.client.Login(context.Background(), "awa", "awa"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	ctx := context.Background()

	ad, err := env.client.CreateAd(ctx, AdInput{
		Title: "Toyota Corolla", Description: "bon état", Price: 4_000_000,
		Location: "Abidjan", Category: "vehicules",
	})
	if err != nil {
		t.Fatalf("CreateAd: %v", err)
	}
	if _, err := env.client.CreateAd(ctx, AdInput{
		Title: "Appartement 3 pièces", Price: 250_000, Location: "Bouaké", Category: "immobilier",
	}); err != nil {
		t.Fatalf("CreateAd: %v", err)
	}

	ads, err := env.client.ListAds(ctx, AdQuery{Ville: "Abidjan"})
	if err != nil {
		t.Fatalf("ListAds: %v", err)
	}
	if len(ads) != 1 || ads[0].ID != ad.ID {
		t.Fatalf("ville filter returned %d ads", len(ads))
	}

	ads, err = env.client.ListAds(ctx, AdQuery{Q: "corolla", PrixMax: 5_000_000})
	if err != nil {
		t.Fatalf("ListAds: %v", err)
	}
	if len(ads) != 1 {
		t.Fatalf("search returned %d ads", len(ads))
	}

	mine, err := env.client.ListAds(ctx, AdQuery{Mine: true})
	if err != nil {
		t.Fatalf("ListAds mine: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 own ads, got %d", len(mine))
	}

	updated, err := env.client.UpdateAd(ctx, ad.ID, map[string]any{"price": 3_900_000})
	if err != nil {
		t.Fatalf("UpdateAd: %v", err)
	}
	if updated.Price != 3_900_000 {
		t.Fatalf("patch not applied: %+v", updated)
	}

	if err := env.client.DeleteAd(ctx, ad.ID); err != nil {
		t.Fatalf("DeleteAd: %v", err)
	}
	if _, err := env.client.GetAd(ctx, ad.ID); err == nil {
		t.Fatalf("expected deleted ad to be gone")
	}
}

func TestMessagingFlow(t *testing.T) {
	env := newTestEnv(t)
	seller := env.register(t, "awa")
	env.register(t, "kouame")
	ctx := context.Background()

	ad := env.store.CreateAd(model.Ad{Title: "Vélo", SellerID: seller.ID, CreatedAt: time.Now().UnixMilli()})

	// Buyer opens the conversation with a first message.
	if _, err := env.client.Login(ctx, "kouame", "kouame"); err != nil {
		t.Fatalf("Login buyer: %v", err)
	}
	conv, err := env.client.CreateConversation(ctx, ad.ID, "Toujours disponible ?")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if len(conv.Messages) != 1 {
		t.Fatalf("expected first message in conversation, got %d", len(conv.Messages))
	}

	// Seller sees it with one unread message.
	if _, err := env.client.Login(ctx, "awa", "awa"); err != nil {
		t.Fatalf("Login seller: %v", err)
	}
	convs, err := env.client.ListConversations(ctx)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 1 || convs[0].ID != conv.ID {
		t.Fatalf("seller does not see the conversation")
	}
	count, err := env.client.UnreadCount(ctx)
	if err != nil {
		t.Fatalf("UnreadCount: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 unread, got %d", count)
	}

	msg, err := env.client.SendMessage(ctx, conv.ID, "Oui, toujours.")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if msg.ID == "" || msg.ConversationID != conv.ID {
		t.Fatalf("unexpected message: %+v", msg)
	}

	if err := env.client.MarkRead(ctx, conv.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	count, err = env.client.UnreadCount(ctx)
	if err != nil {
		t.Fatalf("UnreadCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 unread after mark-read, got %d", count)
	}

	if err := env.client.DeleteConversation(ctx, conv.ID); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}
	convs, err = env.client.ListConversations(ctx)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 0 {
		t.Fatalf("expected no conversations after delete")
	}
}

func TestProfileUpdateAndPasswordChange(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "awa")
	ctx := context.Background()
	if _, err := env.client.Login(ctx, "awa", "awa"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	user, err := env.client.UpdateProfile(ctx, map[string]any{"location": "Yamoussoukro"})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if user.Location != "Yamoussoukro" {
		t.Fatalf("patch not applied: %+v", user)
	}

	if err := env.client.ChangePassword(ctx, "awa", "nouveau"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := env.client.Login(ctx, "awa", "nouveau"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestExpiredAccessRefreshedTransparently(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "awa")
	ctx := context.Background()

	// Install a session whose access token is already expired but whose
	// refresh token is live.
	shortCfg := env.cfg
	shortCfg.AccessExpiry = time.Millisecond
	expired, err := stubserver.CreateAccessToken(user.ID, user.Username, shortCfg)
	if err != nil {
		t.Fatalf("CreateAccessToken: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	refresh := env.store.IssueRefresh(user.ID)
	if err := env.tokens.Set(session.Session{AccessToken: expired, RefreshToken: refresh}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	me, err := env.client.Me(ctx)
	if err != nil {
		t.Fatalf("Me should succeed via transparent refresh: %v", err)
	}
	if me.Username != "awa" {
		t.Fatalf("expected awa, got %q", me.Username)
	}

	current, ok := env.tokens.Current()
	if !ok || current.AccessToken == expired {
		t.Fatalf("expected a renewed access token in the store")
	}
	if current.RefreshToken == refresh {
		t.Fatalf("expected the refresh token to have rotated")
	}
}

func TestConsumedRefreshTokenForcesLogout(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "awa")
	ctx := context.Background()

	shortCfg := env.cfg
	shortCfg.AccessExpiry = time.Millisecond
	expired, err := stubserver.CreateAccessToken(user.ID, user.Username, shortCfg)
	if err != nil {
		t.Fatalf("CreateAccessToken: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	refresh := env.store.IssueRefresh(user.ID)
	// Consume the token server-side, as a racing second client would.
	if _, _, ok := env.store.RotateRefresh(refresh); !ok {
		t.Fatalf("RotateRefresh: token should have been valid")
	}

	if err := env.tokens.Set(session.Session{AccessToken: expired, RefreshToken: refresh}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	_, err = env.client.Me(ctx)
	if !errors.Is(err, gateway.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if _, ok := env.tokens.Current(); ok {
		t.Fatalf("expected session cleared")
	}
}
