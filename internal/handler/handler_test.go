package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelchat/internal/config"
	"hotelchat/internal/embedding"
	"hotelchat/internal/handler"
	"hotelchat/internal/location"
	"hotelchat/internal/model"
	"hotelchat/internal/observability"
	"hotelchat/internal/repository"
	"hotelchat/internal/seed"
	"hotelchat/internal/service"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// echoModel calls the search tool once, then repeats its output
type echoModel struct {
	err error
}

func (echoModel) Name() string { return "echo" }

func (m echoModel) Complete(_ context.Context, req service.CompletionRequest) (*service.Completion, error) {
	if m.err != nil {
		return nil, m.err
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role == service.RoleTool {
		return &service.Completion{Content: last.Content}, nil
	}
	return &service.Completion{ToolCalls: []service.ToolCall{{
		ID:        "call_1",
		Name:      service.SearchToolName,
		Arguments: `{"query": "` + last.Content + `", "location": "Lvov", "max_price": 50}`,
	}}}, nil
}

type server struct {
	router   *gin.Engine
	catalog  *repository.MemoryRepository
	sessions *service.SessionStore
}

func newServer(t *testing.T, llm service.LanguageModel) *server {
	t.Helper()
	rooms, err := seed.Rooms()
	require.NoError(t, err)

	logger := zerolog.Nop()
	e := embedding.NewHashEmbedder(256)
	catalog := repository.NewMemoryRepository()
	locs := location.NewCachedSource(catalog, 0)
	loader := service.NewCatalogLoader(e, catalog, 8, logger, locs)
	_, err = loader.Load(context.Background(), rooms)
	require.NoError(t, err)

	tool := service.NewRoomSearchTool(service.NewRanker(e, catalog, 5, logger), locs, logger)
	sessions := service.NewSessionStore(0)
	agent := service.NewAgent(llm, service.AgentOptions{}, logger, tool)

	router := handler.NewRouter(config.ServerConfig{AllowedOrigins: "*"}, handler.BuildInfo{Version: "test"}, handler.Routes{
		Search:   handler.NewSearchHandler(tool, locs),
		Rooms:    handler.NewRoomHandler(loader, 20),
		Chat:     handler.NewChatHandler(agent, sessions),
		Catalog:  catalog,
		Registry: observability.InitRegistry(),
	}, logger)

	return &server{router: router, catalog: catalog, sessions: sessions}
}

func (s *server) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

const lvivHostel = "[Lviv] Budget-friendly hostel room in Lviv old town with shared bathroom and kitchen access. - $35.0"

func TestSearch(t *testing.T) {
	s := newServer(t, echoModel{})

	t.Run("resolves misspelled location", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/search", gin.H{"query": "budget room", "location": "Lvov", "max_price": 50})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, lvivHostel, decode[model.SearchResponse](t, w).Result)
	})

	t.Run("no matches", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/search", gin.H{"query": "room", "max_price": 1})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, service.NoRoomsSentinel, decode[model.SearchResponse](t, w).Result)
	})

	t.Run("query is required", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/search", gin.H{"location": "Kyiv"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLocations(t *testing.T) {
	s := newServer(t, echoModel{})

	w := s.do(t, http.MethodGet, "/api/v1/locations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	locs := decode[model.LocationsResponse](t, w).Locations
	assert.Len(t, locs, 10)
	assert.Contains(t, locs, "Carpathian Mountains")
	assert.IsNonDecreasing(t, locs)
}

func TestRoomsBatch(t *testing.T) {
	t.Run("stores rooms and exposes the new location", func(t *testing.T) {
		s := newServer(t, echoModel{})
		w := s.do(t, http.MethodPost, "/api/v1/rooms/batch", model.RoomBatchRequest{Rooms: []model.RoomInput{
			{Description: "Lakeside cottage with a sauna", Price: 140, Location: "Shatsk"},
			{Description: "Ski chalet room", Price: 90, Location: "Bukovel", Amenities: []string{"Wi-Fi"}},
		}})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		resp := decode[model.RoomBatchResponse](t, w)
		assert.Equal(t, 2, resp.Inserted)
		assert.Len(t, resp.IDs, 2)

		w = s.do(t, http.MethodGet, "/api/v1/locations", nil)
		assert.Contains(t, decode[model.LocationsResponse](t, w).Locations, "Shatsk")
	})

	t.Run("invalid room rejects whole batch", func(t *testing.T) {
		s := newServer(t, echoModel{})
		w := s.do(t, http.MethodPost, "/api/v1/rooms/batch", model.RoomBatchRequest{Rooms: []model.RoomInput{
			{Description: "Fine", Price: 10, Location: "Kyiv"},
			{Description: "", Price: 10, Location: "Kyiv"},
		}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "room 1")

		rooms, err := s.catalog.ListRooms(context.Background())
		require.NoError(t, err)
		assert.Len(t, rooms, 10)
	})

	t.Run("empty batch", func(t *testing.T) {
		s := newServer(t, echoModel{})
		w := s.do(t, http.MethodPost, "/api/v1/rooms/batch", gin.H{"rooms": []any{}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("batch too large", func(t *testing.T) {
		s := newServer(t, echoModel{})
		rooms := make([]model.RoomInput, 21)
		for i := range rooms {
			rooms[i] = model.RoomInput{Description: "Room", Price: 1, Location: "Kyiv"}
		}
		w := s.do(t, http.MethodPost, "/api/v1/rooms/batch", model.RoomBatchRequest{Rooms: rooms})
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}

func TestChat(t *testing.T) {
	t.Run("runs a turn and keeps the session", func(t *testing.T) {
		s := newServer(t, echoModel{})

		w := s.do(t, http.MethodPost, "/api/v1/chat", model.ChatRequest{Message: "budget room"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		first := decode[model.ChatResponse](t, w)
		require.NotEmpty(t, first.SessionID)
		assert.Equal(t, lvivHostel, first.Reply)

		w = s.do(t, http.MethodPost, "/api/v1/chat", model.ChatRequest{SessionID: first.SessionID, Message: "budget room"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, first.SessionID, decode[model.ChatResponse](t, w).SessionID)
		assert.Equal(t, 1, s.sessions.Len())

		conv := s.sessions.Open(first.SessionID)
		assert.Len(t, conv.History(), 8)
	})

	t.Run("reset", func(t *testing.T) {
		s := newServer(t, echoModel{})
		w := s.do(t, http.MethodPost, "/api/v1/chat", model.ChatRequest{Message: "hi"})
		id := decode[model.ChatResponse](t, w).SessionID

		assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/v1/chat/"+id, nil).Code)
		w = s.do(t, http.MethodDelete, "/api/v1/chat/"+id, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "not found")
	})

	t.Run("model failure", func(t *testing.T) {
		s := newServer(t, echoModel{err: errors.New("quota exceeded")})
		w := s.do(t, http.MethodPost, "/api/v1/chat", model.ChatRequest{Message: "hi"})
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Contains(t, w.Body.String(), "quota exceeded")
	})

	t.Run("message is required", func(t *testing.T) {
		s := newServer(t, echoModel{})
		assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/v1/chat", gin.H{}).Code)
	})
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t, echoModel{})

	w := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, w)["status"])

	w = s.do(t, http.MethodGet, "/version", nil)
	assert.Equal(t, "test", decode[map[string]string](t, w)["version"])

	s.do(t, http.MethodPost, "/api/v1/search", gin.H{"query": "room"})
	w = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hotelchat_room_searches_total")
	assert.Contains(t, w.Body.String(), "hotelchat_http_requests_total")
}
