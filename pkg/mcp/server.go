package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/starcourier/starcourier/pkg/achievements"
	"github.com/starcourier/starcourier/pkg/game"
	"github.com/starcourier/starcourier/pkg/models"
)

const maxLineSize = 1024 * 1024

// CacheStatter provides response cache statistics without coupling to the API client.
type CacheStatter interface {
	CacheStats() models.CacheStats
}

// Server exposes one game store as MCP tools over line-delimited JSON-RPC.
type Server struct {
	store        *game.Store
	cache        CacheStatter
	achievements *achievements.Tracker
	version      string
	events       bool

	// mu serializes writes; session events may arrive from other goroutines.
	mu sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithGameEvents makes Run send a notifications/game_event message for
// every session change.
func WithGameEvents() Option {
	return func(s *Server) { s.events = true }
}

// New creates a Server. cache and tracker may be nil.
func New(store *game.Store, cache CacheStatter, tracker *achievements.Tracker, version string, opts ...Option) *Server {
	s := &Server{
		store:        store,
		cache:        cache,
		achievements: tracker,
		version:      version,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run serves requests read line by line from r until r is exhausted or ctx
// is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	if s.events {
		unsub := s.store.Session().Subscribe(func(ev game.Event) {
			s.write(w, Notification{
				JSONRPC: jsonrpcVersion,
				Method:  MethodGameEvent,
				Params:  gameEvent(ev),
			})
		})
		defer unsub()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, maxLineSize), maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.write(w, errorResponse(nil, CodeParseError, "parse error"))
			continue
		}
		if resp := s.dispatch(ctx, &req); resp != nil {
			s.write(w, resp)
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	if req.JSONRPC != jsonrpcVersion {
		if len(req.ID) == 0 {
			return nil
		}
		return errorResponse(req.ID, CodeInvalidRequest, "jsonrpc must be 2.0")
	}

	switch req.Method {
	case MethodInitialize:
		return resultResponse(req.ID, s.initializeResult())
	case MethodInitialized:
		return nil
	case MethodPing:
		return resultResponse(req.ID, struct{}{})
	case MethodToolsList:
		return resultResponse(req.ID, ToolsListResult{Tools: allTools})
	case MethodToolsCall:
		return s.handleToolsCall(ctx, req)
	}
	if len(req.ID) == 0 {
		return nil
	}
	return errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("unknown method: %s", req.Method))
}

func (s *Server) initializeResult() InitializeResult {
	caps := map[string]any{"tools": map[string]any{}}
	if s.events {
		caps["experimental"] = map[string]any{"gameEvents": map[string]any{}}
	}
	return InitializeResult{
		ProtocolVersion: ProtocolVersion,
		ServerInfo:      ServerInfo{Name: "starcourier", Version: s.version},
		Capabilities:    caps,
	}
}

func (s *Server) handleToolsCall(ctx context.Context, req *Request) *Response {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "invalid params")
	}

	handler, ok := toolHandlers[params.Name]
	if !ok {
		return resultResponse(req.ID, errorResult(fmt.Sprintf("unknown tool: %s", params.Name)))
	}
	return resultResponse(req.ID, handler(ctx, s, params.Arguments))
}

func gameEvent(ev game.Event) GameEventParams {
	st := ev.State
	return GameEventParams{
		Type:        string(ev.Type),
		PlayerID:    st.PlayerID,
		Scene:       st.CurrentSceneID,
		ChoicesMade: st.ChoicesMade,
		Progress:    st.Progress(),
		GameOver:    st.IsGameOver(),
		Error:       st.Error,
	}
}

func (s *Server) write(w io.Writer, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("mcp: marshal error: %v", err)
		return
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := w.Write(data); err != nil {
		log.Printf("mcp: write error: %v", err)
	}
}
