package http

import (
	"bytes"
	"encoding/json"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/siberialabel/telegram-support-bot/internal/api/http/handlers"
	"github.com/siberialabel/telegram-support-bot/internal/auth"
	"github.com/siberialabel/telegram-support-bot/internal/config"
	"github.com/siberialabel/telegram-support-bot/internal/engine"
	"github.com/siberialabel/telegram-support-bot/internal/events"
	"github.com/siberialabel/telegram-support-bot/internal/observability"
	"github.com/siberialabel/telegram-support-bot/internal/queue"
	"github.com/siberialabel/telegram-support-bot/internal/store"
	"github.com/siberialabel/telegram-support-bot/internal/transport"
)

const testAdminID = "admin-1"

func setupApp(t *testing.T) (*fiber.App, *auth.TokenManager) {
	t.Helper()

	logger := zap.NewNop()
	st, err := store.OpenFileStore(filepath.Join(t.TempDir(), "bot_data.json"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(st.Close)

	q := queue.NewDirectiveQueue(config.RedisConfig{Addr: "127.0.0.1:0"}, logger)
	t.Cleanup(q.Close)

	metrics := observability.NewMetrics("test")
	dispatcher := events.NewInMemoryDispatcher()
	limiter := engine.NewRateLimiter(st, 300*time.Second)
	adminPolicy := engine.NewAdminPolicy(testAdminID, st, dispatcher)
	tickets := engine.NewTicketService(engine.TicketDependencies{
		Store:      st,
		Limiter:    limiter,
		Admin:      adminPolicy,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	conv := engine.NewConversation(st, limiter, adminPolicy)
	eng := engine.NewEngine(st, tickets, conv, adminPolicy, logger)

	hash, err := auth.HashPassword("opensesame", 0)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	tokens := auth.NewTokenManager("test-secret", 60)
	deliverer := transport.NewWebhookDeliverer("", 0, logger)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second, nil)
	RegisterRoutes(app, RouteConfig{
		Health:          handlers.NewHealthHandler("test", "dev", st, q),
		Events:          handlers.NewEventsHandler(eng, q, logger),
		Admin:           handlers.NewAdminHandler(eng, tokens, deliverer, testAdminID, hash),
		AdminMiddleware: auth.NewAdminMiddleware(tokens, testAdminID),
		Metrics:         metrics,
	})
	return app, tokens
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, payload any) (int, map[string]any) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	decoded := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, decoded
}

func adminToken(t *testing.T, tokens *auth.TokenManager) string {
	t.Helper()
	token, _, err := tokens.GenerateToken(testAdminID)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func TestHealthLive(t *testing.T) {
	app, _ := setupApp(t)
	status, body := doJSON(t, app, stdhttp.MethodGet, "/health/live", "", nil)
	if status != stdhttp.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body["status"] != "alive" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestEventsReportRoundTrip(t *testing.T) {
	app, _ := setupApp(t)

	status, body := doJSON(t, app, stdhttp.MethodPost, "/events", "", map[string]any{
		"sender_id": "u1",
		"kind":      "command",
		"command":   "report",
	})
	if status != stdhttp.StatusOK {
		t.Fatalf("expected 200, got %d: %v", status, body)
	}
	data := body["data"].(map[string]any)
	if data["kind"] != "awaiting_report" {
		t.Fatalf("expected awaiting_report, got %v", data["kind"])
	}

	status, body = doJSON(t, app, stdhttp.MethodPost, "/events", "", map[string]any{
		"sender_id": "u1",
		"kind":      "free_text",
		"text":      "everything is broken",
	})
	if status != stdhttp.StatusOK {
		t.Fatalf("expected 200, got %d: %v", status, body)
	}
	data = body["data"].(map[string]any)
	if data["kind"] != "ticket_created" {
		t.Fatalf("expected ticket_created, got %v", data["kind"])
	}
	ticket := data["ticket"].(map[string]any)
	if ticket["id"].(float64) != 1 {
		t.Errorf("expected ticket id 1, got %v", ticket["id"])
	}
}

func TestEventsRejectsMissingSender(t *testing.T) {
	app, _ := setupApp(t)
	status, body := doJSON(t, app, stdhttp.MethodPost, "/events", "", map[string]any{"kind": "command"})
	if status != stdhttp.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %v", status, body)
	}
	errBody := body["error"].(map[string]any)
	if errBody["code"] != "VALIDATION_FAILED" {
		t.Errorf("unexpected error code: %v", errBody["code"])
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	app, _ := setupApp(t)
	status, body := doJSON(t, app, stdhttp.MethodGet, "/admin/stats", "", nil)
	if status != stdhttp.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %v", status, body)
	}
	errBody := body["error"].(map[string]any)
	if errBody["code"] != "UNAUTHORIZED" {
		t.Errorf("unexpected error code: %v", errBody["code"])
	}
}

func TestAdminLoginAndStats(t *testing.T) {
	app, _ := setupApp(t)

	status, body := doJSON(t, app, stdhttp.MethodPost, "/auth/admin/login", "", map[string]any{
		"password": "wrong",
	})
	if status != stdhttp.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", status)
	}

	status, body = doJSON(t, app, stdhttp.MethodPost, "/auth/admin/login", "", map[string]any{
		"password": "opensesame",
	})
	if status != stdhttp.StatusOK {
		t.Fatalf("expected 200, got %d: %v", status, body)
	}
	token := body["data"].(map[string]any)["token"].(string)
	if token == "" {
		t.Fatal("expected token in login response")
	}

	status, body = doJSON(t, app, stdhttp.MethodGet, "/admin/stats", token, nil)
	if status != stdhttp.StatusOK {
		t.Fatalf("expected 200, got %d: %v", status, body)
	}
	data := body["data"].(map[string]any)
	if data["total_reports"].(float64) != 0 {
		t.Errorf("expected zero reports, got %v", data["total_reports"])
	}
}

func TestAdminResolveFlow(t *testing.T) {
	app, tokens := setupApp(t)
	token := adminToken(t, tokens)

	if status, body := doJSON(t, app, stdhttp.MethodPost, "/events", "", map[string]any{
		"sender_id": "u1",
		"kind":      "command",
		"command":   "report",
	}); status != stdhttp.StatusOK {
		t.Fatalf("report command: %d %v", status, body)
	}
	if status, body := doJSON(t, app, stdhttp.MethodPost, "/events", "", map[string]any{
		"sender_id": "u1",
		"kind":      "free_text",
		"text":      "please help",
	}); status != stdhttp.StatusOK {
		t.Fatalf("report text: %d %v", status, body)
	}

	status, body := doJSON(t, app, stdhttp.MethodPost, "/admin/tickets/1/resolve", token, nil)
	if status != stdhttp.StatusOK {
		t.Fatalf("resolve: %d %v", status, body)
	}
	data := body["data"].(map[string]any)
	if data["status"] != "RESOLVED" {
		t.Errorf("expected RESOLVED, got %v", data["status"])
	}

	// reply delivery runs against the null deliverer, which drops quietly
	status, body = doJSON(t, app, stdhttp.MethodPost, "/admin/tickets/1/reply", token, map[string]any{
		"text": "fixed it",
	})
	if status != stdhttp.StatusOK {
		t.Fatalf("reply: %d %v", status, body)
	}

	status, body = doJSON(t, app, stdhttp.MethodGet, "/admin/tickets/999", token, nil)
	if status != stdhttp.StatusNotFound {
		t.Fatalf("expected 404, got %d: %v", status, body)
	}
}
