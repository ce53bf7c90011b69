package interceptors

import (
	"context"
	"testing"

	sessiondomain "voice-journal/backend/internal/session/domain"
	userdomain "voice-journal/backend/internal/user/domain"
)

func TestWithIdentity_SetsAllValues(t *testing.T) {
	u := &userdomain.User{ID: "user-1"}
	s := &sessiondomain.Session{ID: "session-1", UserID: "user-1"}
	ctx := WithIdentity(context.Background(), u, s)

	if got, ok := GetUser(ctx); !ok || got != u {
		t.Errorf("GetUser = %v, %v", got, ok)
	}
	if got, ok := GetSession(ctx); !ok || got != s {
		t.Errorf("GetSession = %v, %v", got, ok)
	}
	if id, ok := GetUserID(ctx); !ok || id != "user-1" {
		t.Errorf("GetUserID = %q, %v", id, ok)
	}
	if id, ok := GetSessionID(ctx); !ok || id != "session-1" {
		t.Errorf("GetSessionID = %q, %v", id, ok)
	}
}

func TestGetters_ReturnFalseWhenNotSet(t *testing.T) {
	ctx := context.Background()
	if _, ok := GetUser(ctx); ok {
		t.Error("GetUser should be false")
	}
	if _, ok := GetSession(ctx); ok {
		t.Error("GetSession should be false")
	}
	if id, ok := GetUserID(ctx); ok || id != "" {
		t.Errorf("GetUserID = %q, %v", id, ok)
	}
	if id, ok := GetSessionID(ctx); ok || id != "" {
		t.Errorf("GetSessionID = %q, %v", id, ok)
	}
}

func TestWithIdentity_NilValues(t *testing.T) {
	ctx := WithIdentity(context.Background(), nil, nil)
	if _, ok := GetUser(ctx); ok {
		t.Error("nil user should read as unset")
	}
	if _, ok := GetSessionID(ctx); ok {
		t.Error("nil session should read as unset")
	}
}

func TestContext_Isolation(t *testing.T) {
	parent := context.Background()
	child := WithIdentity(parent, &userdomain.User{ID: "u"}, &sessiondomain.Session{ID: "s"})
	if _, ok := GetUserID(parent); ok {
		t.Error("parent context must not see the identity")
	}
	if _, ok := GetUserID(child); !ok {
		t.Error("child context should see the identity")
	}
}
