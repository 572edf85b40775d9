package stubserver

import (
	"testing"
	"time"

	"kenivoire-client/internal/model"
)

func seedUsers(t *testing.T, st *Store) (seller, buyer model.User) {
	t.Helper()
	var err error
	seller, err = st.CreateUser("awa", "awa", "awa@example.ci", "", "Abidjan")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	buyer, err = st.CreateUser("kouame", "kouame", "kouame@example.ci", "", "Bouaké")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return seller, buyer
}

func TestRotateRefreshIsSingleUse(t *testing.T) {
	st := NewStore()
	seller, _ := seedUsers(t, st)

	token := st.IssueRefresh(seller.ID)
	userID, next, ok := st.RotateRefresh(token)
	if !ok || userID != seller.ID || next == "" || next == token {
		t.Fatalf("rotate: userID=%q next=%q ok=%v", userID, next, ok)
	}

	// The consumed token is dead; only its replacement works.
	if _, _, ok := st.RotateRefresh(token); ok {
		t.Fatalf("consumed token rotated again")
	}
	if _, _, ok := st.RotateRefresh(next); !ok {
		t.Fatalf("replacement token rejected")
	}
}

func TestRevokeRefreshTokens(t *testing.T) {
	st := NewStore()
	seller, buyer := seedUsers(t, st)

	sellerToken := st.IssueRefresh(seller.ID)
	buyerToken := st.IssueRefresh(buyer.ID)

	st.RevokeRefreshTokens(seller.ID)
	if _, _, ok := st.RotateRefresh(sellerToken); ok {
		t.Fatalf("revoked token still rotates")
	}
	if _, _, ok := st.RotateRefresh(buyerToken); !ok {
		t.Fatalf("other user's token was revoked too")
	}
}

func TestGetOrCreateConversation(t *testing.T) {
	st := NewStore()
	seller, buyer := seedUsers(t, st)
	ad := st.CreateAd(model.Ad{Title: "Vélo", SellerID: seller.ID})

	conv, err := st.GetOrCreateConversation(ad.ID, buyer.ID)
	if err != nil {
		t.Fatalf("GetOrCreateConversation: %v", err)
	}
	if len(conv.Participants) != 2 {
		t.Fatalf("participants = %d, want 2", len(conv.Participants))
	}

	again, err := st.GetOrCreateConversation(ad.ID, buyer.ID)
	if err != nil {
		t.Fatalf("second GetOrCreateConversation: %v", err)
	}
	if again.ID != conv.ID {
		t.Fatalf("second call created a new conversation")
	}

	if _, err := st.GetOrCreateConversation(ad.ID, seller.ID); err == nil {
		t.Fatalf("seller messaging their own ad must fail")
	}
	if _, err := st.GetOrCreateConversation("missing", buyer.ID); err == nil {
		t.Fatalf("unknown ad must fail")
	}
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	st := NewStore()
	seller, buyer := seedUsers(t, st)
	ad := st.CreateAd(model.Ad{Title: "Vélo", SellerID: seller.ID})
	conv, err := st.GetOrCreateConversation(ad.ID, buyer.ID)
	if err != nil {
		t.Fatalf("GetOrCreateConversation: %v", err)
	}

	now := time.Now().UnixMilli()
	for i, content := range []string{"bonjour", "toujours dispo ?"} {
		if _, err := st.AppendMessage(conv.ID, buyer.ID, content, now+int64(i)); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}
	if _, err := st.AppendMessage(conv.ID, seller.ID, "oui", now+2); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	if n := st.UnreadCount(seller.ID); n != 2 {
		t.Fatalf("seller unread = %d, want 2", n)
	}
	if n := st.UnreadCount(buyer.ID); n != 1 {
		t.Fatalf("buyer unread = %d, want 1", n)
	}

	flipped, err := st.MarkRead(conv.ID, seller.ID)
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if flipped != 2 {
		t.Fatalf("flipped = %d, want 2", flipped)
	}
	if n := st.UnreadCount(seller.ID); n != 0 {
		t.Fatalf("seller unread after mark = %d, want 0", n)
	}
	// The seller's own message to the buyer is untouched.
	if n := st.UnreadCount(buyer.ID); n != 1 {
		t.Fatalf("buyer unread changed to %d", n)
	}

	flipped, err = st.MarkRead(conv.ID, seller.ID)
	if err != nil || flipped != 0 {
		t.Fatalf("second mark: flipped=%d err=%v", flipped, err)
	}
}

func TestAdOwnershipChecks(t *testing.T) {
	st := NewStore()
	seller, buyer := seedUsers(t, st)
	ad := st.CreateAd(model.Ad{Title: "Vélo", Price: 50_000, SellerID: seller.ID})

	if _, err := st.UpdateAd(ad.ID, buyer.ID, map[string]any{"price": float64(40_000)}); err == nil {
		t.Fatalf("non-seller patched the ad")
	}
	if err := st.DeleteAd(ad.ID, buyer.ID); err == nil {
		t.Fatalf("non-seller deleted the ad")
	}

	updated, err := st.UpdateAd(ad.ID, seller.ID, map[string]any{"price": float64(40_000)})
	if err != nil {
		t.Fatalf("UpdateAd: %v", err)
	}
	if updated.Price != 40_000 {
		t.Fatalf("price = %d, want 40000", updated.Price)
	}
	if err := st.DeleteAd(ad.ID, seller.ID); err != nil {
		t.Fatalf("DeleteAd: %v", err)
	}
}

func TestConversationAccessControl(t *testing.T) {
	st := NewStore()
	seller, buyer := seedUsers(t, st)
	outsider, err := st.CreateUser("yao", "yao", "", "", "")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	ad := st.CreateAd(model.Ad{Title: "Vélo", SellerID: seller.ID})
	conv, err := st.GetOrCreateConversation(ad.ID, buyer.ID)
	if err != nil {
		t.Fatalf("GetOrCreateConversation: %v", err)
	}

	if _, err := st.GetConversation(conv.ID, outsider.ID); err == nil {
		t.Fatalf("outsider read the conversation")
	}
	if _, err := st.AppendMessage(conv.ID, outsider.ID, "hé", 1); err == nil {
		t.Fatalf("outsider posted a message")
	}
	if err := st.DeleteConversation(conv.ID, outsider.ID); err == nil {
		t.Fatalf("outsider deleted the conversation")
	}
	if st.IsParticipant(conv.ID, outsider.ID) {
		t.Fatalf("outsider counted as participant")
	}

	if len(st.ListConversations(outsider.ID)) != 0 {
		t.Fatalf("outsider lists conversations")
	}
	if len(st.ListConversations(seller.ID)) != 1 {
		t.Fatalf("seller does not list the conversation")
	}
}
