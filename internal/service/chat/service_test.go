package chat_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zhouzirui/course-advisor/backend/internal/memory"
	model "github.com/zhouzirui/course-advisor/backend/internal/model/chat"
	chat "github.com/zhouzirui/course-advisor/backend/internal/service/chat"
)

func newService() *chat.Service {
	return chat.NewService(memory.DefaultConfig(), []string{"sonnet", "haiku"})
}

func TestServiceGetSession(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, model.Identity{Username: " s1234567 ", Password: "pw"}, "", "")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	got, err := svc.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}

	if got.ID != session.ID {
		t.Fatalf("unexpected session ID: got %s want %s", got.ID, session.ID)
	}
	if got.Username != "s1234567" {
		t.Fatalf("unexpected username: got %q", got.Username)
	}
	if got.Mode != model.ModeCatalog {
		t.Fatalf("expected default catalog mode, got %s", got.Mode)
	}

	identity, err := svc.Identity(ctx, session.ID)
	if err != nil {
		t.Fatalf("Identity err: %v", err)
	}
	if identity.Password != "pw" {
		t.Fatalf("identity password not kept")
	}
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	if _, err := svc.GetSession(ctx, "missing"); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestServiceCreateSessionValidation(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	cases := []struct {
		name     string
		username string
		password string
		mode     model.Mode
		modelID  string
		want     error
	}{
		{"blank username", "   ", "pw", model.ModeCatalog, "", chat.ErrUsernameRequired},
		{"missing password", "s1234567", "", model.ModeCatalog, "", chat.ErrPasswordRequired},
		{"unknown mode", "u", "pw", model.Mode("pdf"), "", chat.ErrInvalidMode},
		{"model outside allow list", "u", "pw", model.ModeDocuments, "gpt-4", chat.ErrModelNotAllowed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateSession(ctx, model.Identity{Username: tc.username, Password: tc.password}, tc.mode, tc.modelID)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestServiceUpdateSession(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	session, _ := svc.CreateSession(ctx, model.Identity{Username: "u", Password: "pw"}, model.ModeCatalog, "sonnet")

	mode := model.ModeDocuments
	modelID := "haiku"
	updated, err := svc.UpdateSession(ctx, session.ID, chat.SessionUpdate{Mode: &mode, ModelID: &modelID})
	if err != nil {
		t.Fatalf("UpdateSession err: %v", err)
	}
	if updated.Mode != model.ModeDocuments || updated.ModelID != "haiku" {
		t.Fatalf("unexpected session after update: %+v", updated)
	}

	bad := "opus"
	if _, err := svc.UpdateSession(ctx, session.ID, chat.SessionUpdate{ModelID: &bad}); !errors.Is(err, chat.ErrModelNotAllowed) {
		t.Fatalf("expected ErrModelNotAllowed, got %v", err)
	}
}

func TestServiceSessionsAreIsolated(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	a, _ := svc.CreateSession(ctx, model.Identity{Username: "a", Password: "pw"}, "", "")
	b, _ := svc.CreateSession(ctx, model.Identity{Username: "b", Password: "pw"}, "", "")

	err := svc.WithConversation(ctx, a.ID, func(c *memory.Conversation) error {
		c.Append(model.UserTurn("What core units in year 2?"))
		c.SetSummary("- goal: year 2 planning")
		return nil
	})
	if err != nil {
		t.Fatalf("WithConversation err: %v", err)
	}

	turns, _ := svc.LoadTranscript(ctx, b.ID)
	if len(turns) != 0 {
		t.Fatalf("session b should be empty, got %d turns", len(turns))
	}
	summary, _ := svc.Summary(ctx, b.ID)
	if summary != "" {
		t.Fatalf("session b should have no summary, got %q", summary)
	}

	turns, _ = svc.LoadTranscript(ctx, a.ID)
	if len(turns) != 1 || turns[0].Content != "What core units in year 2?" {
		t.Fatalf("unexpected transcript for a: %+v", turns)
	}
}

func TestServiceWithConversationSerializes(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx, model.Identity{Username: "u", Password: "pw"}, "", "")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.WithConversation(ctx, session.ID, func(c *memory.Conversation) error {
				c.Append(model.UserTurn("q"))
				c.Append(model.AssistantTurn("a"))
				return nil
			})
		}()
	}
	wg.Wait()

	turns, _ := svc.LoadTranscript(ctx, session.ID)
	if len(turns) != 40 {
		t.Fatalf("expected 40 turns, got %d", len(turns))
	}
	for i := 0; i < len(turns); i += 2 {
		if turns[i].Role != model.RoleUser || turns[i+1].Role != model.RoleAssistant {
			t.Fatalf("turn pair %d interleaved: %s/%s", i/2, turns[i].Role, turns[i+1].Role)
		}
	}
}

func TestServiceDocuments(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx, model.Identity{Username: "u", Password: "pw"}, model.ModeDocuments, "")

	if err := svc.AddDocuments(ctx, session.ID, model.Document{Name: "handbook.txt", Text: "BP355 structure"}); err != nil {
		t.Fatalf("AddDocuments err: %v", err)
	}

	docs, err := svc.Documents(ctx, session.ID)
	if err != nil {
		t.Fatalf("Documents err: %v", err)
	}
	if len(docs) != 1 || docs[0].Chars != len("BP355 structure") || docs[0].UploadedAt.IsZero() {
		t.Fatalf("unexpected documents: %+v", docs)
	}
}

func TestServiceDeleteSession(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx, model.Identity{Username: "u", Password: "pw"}, "", "")

	if err := svc.DeleteSession(ctx, session.ID); err != nil {
		t.Fatalf("DeleteSession err: %v", err)
	}
	if _, err := svc.LoadTranscript(ctx, session.ID); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after logout, got %v", err)
	}
	if err := svc.DeleteSession(ctx, session.ID); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on second delete, got %v", err)
	}
}

func TestServiceReadsDoNotWaitForWriter(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx, model.Identity{Username: "u", Password: "pw"}, "", "")

	entered := make(chan struct{})
	release := make(chan struct{})
	writeDone := make(chan error)
	go func() {
		writeDone <- svc.WithConversation(ctx, session.ID, func(c *memory.Conversation) error {
			c.Append(model.Turn{Role: model.RoleUser, Content: "What core units in year 2?"})
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	readsDone := make(chan error)
	go func() {
		turns, err := svc.LoadTranscript(ctx, session.ID)
		if err == nil && len(turns) != 1 {
			err = errors.New("pending question missing from transcript")
		}
		if err == nil {
			_, err = svc.Summary(ctx, session.ID)
		}
		if err == nil {
			_, err = svc.GetSession(ctx, session.ID)
		}
		if err == nil {
			_, err = svc.Documents(ctx, session.ID)
		}
		readsDone <- err
	}()

	select {
	case err := <-readsDone:
		if err != nil {
			t.Fatalf("read during write: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("read-only views blocked behind the writer")
	}

	close(release)
	if err := <-writeDone; err != nil {
		t.Fatalf("WithConversation err: %v", err)
	}
}
