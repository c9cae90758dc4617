package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/course-advisor/backend/internal/memory"
	"github.com/zhouzirui/course-advisor/backend/internal/model/chat"
	"github.com/zhouzirui/course-advisor/backend/internal/observability"
)

var (
	ErrUsernameRequired = errors.New("username is required")
	ErrPasswordRequired = errors.New("password is required")
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidMode      = errors.New("invalid context mode")
	ErrModelNotAllowed  = errors.New("model is not allowed")
)

// SessionUpdate carries the fields a client may change on a live session. Nil fields are kept.
type SessionUpdate struct {
	Mode    *chat.Mode
	ModelID *string
}

// sessionState 保存单个会话的全部状态。
// writer 在整个问答周期内持有, 串行化对话写入; mu 只保护元数据, 持有时间很短。
type sessionState struct {
	writer sync.Mutex

	mu        sync.RWMutex
	closed    bool
	session   chat.Session
	identity  chat.Identity
	documents []chat.Document

	conversation *memory.Conversation
}

// live returns the conversation, or ErrSessionNotFound once the session was logged out.
func (st *sessionState) live() (*memory.Conversation, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.closed {
		return nil, ErrSessionNotFound
	}
	return st.conversation, nil
}

// Service encapsulates conversation state management. Writers of one session are serialized by
// that session's own lock, so separate sessions never block each other. Read-only views never
// wait for an in-flight answer.
type Service struct {
	mu            sync.RWMutex
	sessions      map[string]*sessionState
	memory        memory.Config
	allowedModels map[string]struct{}
}

// NewService bootstraps the in-memory chat service. An empty allowedModels accepts any model id.
func NewService(cfg memory.Config, allowedModels []string) *Service {
	allowed := make(map[string]struct{}, len(allowedModels))
	for _, id := range allowedModels {
		allowed[id] = struct{}{}
	}
	return &Service{
		sessions:      make(map[string]*sessionState),
		memory:        cfg,
		allowedModels: allowed,
	}
}

// CreateSession logs identity in and provisions an empty conversation. Both username and password
// must be present; the password is only checked later by the completion backend. An empty mode
// selects the catalog.
func (s *Service) CreateSession(_ context.Context, identity chat.Identity, mode chat.Mode, modelID string) (chat.Session, error) {
	identity.Username = strings.TrimSpace(identity.Username)
	if identity.Username == "" {
		return chat.Session{}, ErrUsernameRequired
	}
	if identity.Password == "" {
		return chat.Session{}, ErrPasswordRequired
	}
	if mode == "" {
		mode = chat.ModeCatalog
	}
	if !mode.Valid() {
		return chat.Session{}, ErrInvalidMode
	}
	if !s.modelAllowed(modelID) {
		return chat.Session{}, ErrModelNotAllowed
	}

	session := chat.Session{
		ID:        uuid.NewString(),
		Username:  identity.Username,
		Mode:      mode,
		ModelID:   modelID,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = &sessionState{
		session:      session,
		identity:     identity,
		conversation: memory.NewConversation(s.memory),
	}
	s.mu.Unlock()

	observability.SessionOpened()
	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	state, err := s.lookup(sessionID)
	if err != nil {
		return chat.Session{}, err
	}

	state.mu.RLock()
	defer state.mu.RUnlock()
	if state.closed {
		return chat.Session{}, ErrSessionNotFound
	}
	return state.session, nil
}

// Identity returns the credentials the session logged in with.
func (s *Service) Identity(_ context.Context, sessionID string) (chat.Identity, error) {
	state, err := s.lookup(sessionID)
	if err != nil {
		return chat.Identity{}, err
	}

	state.mu.RLock()
	defer state.mu.RUnlock()
	if state.closed {
		return chat.Identity{}, ErrSessionNotFound
	}
	return state.identity, nil
}

// UpdateSession switches the context mode and/or model of a live session. The transcript and
// summary are kept.
func (s *Service) UpdateSession(_ context.Context, sessionID string, update SessionUpdate) (chat.Session, error) {
	if update.Mode != nil && !update.Mode.Valid() {
		return chat.Session{}, ErrInvalidMode
	}
	if update.ModelID != nil && !s.modelAllowed(*update.ModelID) {
		return chat.Session{}, ErrModelNotAllowed
	}

	state, err := s.lookup(sessionID)
	if err != nil {
		return chat.Session{}, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	if state.closed {
		return chat.Session{}, ErrSessionNotFound
	}
	if update.Mode != nil {
		state.session.Mode = *update.Mode
	}
	if update.ModelID != nil {
		state.session.ModelID = *update.ModelID
	}
	return state.session, nil
}

// DeleteSession logs the session out and discards its transcript, summary and documents. An
// answer still in flight finishes against the discarded conversation.
func (s *Service) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	state, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	state.mu.Lock()
	state.closed = true
	state.documents = nil
	state.mu.Unlock()

	observability.SessionClosed()
	return nil
}

// WithConversation runs fn with exclusive access to the session's conversation. Calls for the
// same session are serialized; fn must not call back into the Service for that session.
func (s *Service) WithConversation(ctx context.Context, sessionID string, fn func(*memory.Conversation) error) error {
	state, err := s.lookup(sessionID)
	if err != nil {
		return err
	}

	state.writer.Lock()
	defer state.writer.Unlock()

	conv, err := state.live()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(conv)
}

// LoadTranscript returns a copy of the session's turns in order. It does not wait for an
// answer in flight; the pending question is already part of the copy.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Turn, error) {
	conv, err := s.conversation(sessionID)
	if err != nil {
		return nil, err
	}
	return conv.Turns(), nil
}

// Summary returns the session's long-term summary, "" before the first summarization.
func (s *Service) Summary(_ context.Context, sessionID string) (string, error) {
	conv, err := s.conversation(sessionID)
	if err != nil {
		return "", err
	}
	return conv.Summary(), nil
}

func (s *Service) conversation(sessionID string) (*memory.Conversation, error) {
	state, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return state.live()
}

// AddDocuments attaches extracted documents to the session.
func (s *Service) AddDocuments(_ context.Context, sessionID string, docs ...chat.Document) error {
	state, err := s.lookup(sessionID)
	if err != nil {
		return err
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	if state.closed {
		return ErrSessionNotFound
	}

	now := time.Now().UTC()
	for _, doc := range docs {
		if doc.UploadedAt.IsZero() {
			doc.UploadedAt = now
		}
		doc.Chars = len([]rune(doc.Text))
		state.documents = append(state.documents, doc)
	}
	return nil
}

// Documents returns the documents uploaded to the session in upload order.
func (s *Service) Documents(_ context.Context, sessionID string) ([]chat.Document, error) {
	state, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	state.mu.RLock()
	defer state.mu.RUnlock()
	if state.closed {
		return nil, ErrSessionNotFound
	}
	return append([]chat.Document(nil), state.documents...), nil
}

func (s *Service) lookup(sessionID string) (*sessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return state, nil
}

func (s *Service) modelAllowed(modelID string) bool {
	if modelID == "" || len(s.allowedModels) == 0 {
		return true
	}
	_, ok := s.allowedModels[modelID]
	return ok
}
