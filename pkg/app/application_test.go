package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"slotify/internal/slots/events"
	"slotify/internal/slots/handler"
	"slotify/internal/slots/policy"
	"slotify/internal/slots/repository"
	"slotify/internal/slots/service"
	"slotify/internal/slots/timewindow"
	"slotify/pkg/auth"
	"slotify/pkg/client"
	"slotify/pkg/config"
	"slotify/pkg/logger"
	"slotify/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	server   *httptest.Server
	repo     *repository.MemorySlotRepository
	recorder *events.Recorder
	date     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	cfg := &config.Config{
		StoreDriver:        config.StoreMemory,
		Port:               config.DefaultPort,
		JWTSecret:          testSecret,
		Location:           loc,
		BookingLeadTime:    config.DefaultBookingLeadTime,
		CancelLeadTime:     config.DefaultCancelLeadTime,
		MaxSlotIntervalMin: config.DefaultMaxSlotIntervalMin,
		RateLimitRequests:  1000,
		RateLimitWindow:    time.Minute,
		RequestTimeout:     5 * time.Second,
		IdempotencyTTL:     time.Hour,
		MaxRequestSize:     config.DefaultMaxRequestSize,
		ReadTimeout:        config.DefaultReadTimeout,
		WriteTimeout:       config.DefaultWriteTimeout,
		IdleTimeout:        config.DefaultIdleTimeout,
		ShutdownTimeout:    time.Second,
		Log:                logger.Discard(),
		Client:             client.NewClient(),
	}

	repo := repository.NewMemorySlotRepository()
	recorder := &events.Recorder{}
	slotPolicy := policy.New(policy.Config{
		BookingLead:        cfg.BookingLeadTime,
		CancelLead:         cfg.CancelLeadTime,
		MaxIntervalMinutes: cfg.MaxSlotIntervalMin,
		Location:           loc,
	}, cfg.Log)
	clock := timewindow.SystemClock{Location: loc}
	authenticator := auth.NewAuthenticator(cfg.JWTSecret, cfg.Log)

	application := NewApplication(cfg).WithCallerKey(authenticator.Subject)
	application.SetApp(
		handler.NewSlotHandler(
			service.NewSlotService(repo, slotPolicy, recorder, clock, cfg),
			service.NewBookingService(repo, slotPolicy, recorder, clock, cfg),
			authenticator,
			cfg.Log,
		),
		handler.NewHealthHandler(repo, nil, cfg.Log),
	)

	server := httptest.NewServer(application.Handler())
	t.Cleanup(func() {
		server.Close()
		application.Stop(context.Background())
	})

	return &testEnv{
		server:   server,
		repo:     repo,
		recorder: recorder,
		date:     time.Now().In(loc).AddDate(0, 0, 3).Format(timewindow.DateLayout),
	}
}

func (e *testEnv) client(t *testing.T, sub, role string) *client.SlotClient {
	t.Helper()
	token, err := auth.SignHS256(auth.Claims{Sub: sub, Role: role, Exp: time.Now().Add(time.Hour).Unix()}, testSecret)
	require.NoError(t, err)
	return client.NewSlotClient(e.server.URL, token)
}

func (e *testEnv) createSlots(t *testing.T, admin *client.SlotClient, start, end string) *model.SlotCreationResult {
	t.Helper()
	resp, err := admin.CreateSlots(context.Background(), model.SlotCreationInput{
		Date:            e.date,
		StartTime:       start,
		EndTime:         end,
		IntervalMinutes: json.Number("30"),
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(resp.Body))
	result, err := admin.DecodeCreationResult(resp)
	require.NoError(t, err)
	return result
}

func TestSlotLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.client(t, "admin-1", auth.RoleAdmin)
	alice := env.client(t, "alice", "user")
	bob := env.client(t, "bob", "user")

	result := env.createSlots(t, admin, "09:00", "11:00")
	assert.Equal(t, 4, result.Created)
	assert.Zero(t, result.Skipped)

	resp, err := alice.ListAvailable(ctx, env.date)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	available, err := alice.DecodeSlots(resp)
	require.NoError(t, err)
	require.Len(t, available, 4)
	assert.Equal(t, "09:00", available[0].StartTime)

	target := available[1]
	resp, err = alice.Book(ctx, target.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(resp.Body))
	booked, err := alice.DecodeSlot(resp)
	require.NoError(t, err)
	assert.True(t, booked.OwnedBy("alice"))

	resp, err = bob.Book(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "CONFLICT", client.ErrorCode(resp))

	resp, err = bob.Cancel(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "CANCEL_NOT_ALLOWED", client.ErrorCode(resp))

	resp, err = admin.DeleteSlot(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "ALREADY_BOOKED", client.ErrorCode(resp))

	resp, err = admin.ListBooked(ctx, env.date)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	bookedSlots, err := admin.DecodeBookedSlots(resp)
	require.NoError(t, err)
	require.Len(t, bookedSlots, 1)
	assert.Equal(t, target.ID, bookedSlots[0].ID)

	resp, err = alice.MyBookings(ctx)
	require.NoError(t, err)
	mine, err := alice.DecodeSlots(resp)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	resp, err = alice.Cancel(ctx, target.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(resp.Body))

	resp, err = admin.DeleteSlot(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, env.repo.Count())

	assert.Len(t, env.recorder.OfType(events.SlotsCreated), 1)
	assert.Len(t, env.recorder.OfType(events.SlotBooked), 1)
	assert.Len(t, env.recorder.OfType(events.SlotCancelled), 1)
	assert.Len(t, env.recorder.OfType(events.SlotDeleted), 1)
}

func TestCreateSlots_DuplicateSubmission(t *testing.T) {
	env := newTestEnv(t)
	admin := env.client(t, "admin-1", auth.RoleAdmin)

	env.createSlots(t, admin, "09:00", "10:00")

	resp, err := admin.CreateSlots(context.Background(), model.SlotCreationInput{
		Date:            env.date,
		StartTime:       "09:00",
		EndTime:         "10:00",
		IntervalMinutes: json.Number("30"),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "ALL_DUPLICATE", client.ErrorCode(resp))
	assert.Equal(t, 2, env.repo.Count())
}

func TestCreateSlots_IdempotentReplay(t *testing.T) {
	env := newTestEnv(t)
	admin := env.client(t, "admin-1", auth.RoleAdmin)
	input := model.SlotCreationInput{
		Date:            env.date,
		StartTime:       "09:00",
		EndTime:         "10:00",
		IntervalMinutes: json.Number("30"),
	}

	first, err := admin.CreateSlotsIdempotent(context.Background(), input, "create-1")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, first.StatusCode)

	second, err := admin.CreateSlotsIdempotent(context.Background(), input, "create-1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, second.StatusCode)
	assert.Equal(t, "true", second.Header.Get("Idempotent-Replayed"))
	assert.Equal(t, string(first.Body), string(second.Body))
	assert.Len(t, env.recorder.OfType(events.SlotsCreated), 1)
}

func TestConcurrentReservations_OneWinner(t *testing.T) {
	env := newTestEnv(t)
	admin := env.client(t, "admin-1", auth.RoleAdmin)
	env.createSlots(t, admin, "09:00", "09:30")

	resp, err := admin.ListAvailable(context.Background(), env.date)
	require.NoError(t, err)
	slots, err := admin.DecodeSlots(resp)
	require.NoError(t, err)
	require.Len(t, slots, 1)

	const users = 20
	clients := make([]*client.SlotClient, users)
	for i := range clients {
		clients[i] = env.client(t, fmt.Sprintf("user-%d", i), "user")
	}

	var wg sync.WaitGroup
	statuses := make([]int, users)
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := clients[i].Book(context.Background(), slots[0].ID)
			if err != nil {
				t.Errorf("book failed: %v", err)
				return
			}
			statuses[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	won := 0
	for _, status := range statuses {
		switch status {
		case http.StatusOK:
			won++
		case http.StatusConflict:
		default:
			t.Errorf("unexpected status %d", status)
		}
	}
	assert.Equal(t, 1, won)
}

func TestRoutesRequireAuthentication(t *testing.T) {
	env := newTestEnv(t)
	anonymous := client.NewSlotClient(env.server.URL, "")
	user := env.client(t, "alice", "user")

	resp, err := anonymous.ListAvailable(context.Background(), env.date)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = user.CreateSlots(context.Background(), model.SlotCreationInput{
		Date: env.date, StartTime: "09:00", EndTime: "10:00", IntervalMinutes: json.Number("30"),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)
	hc := client.NewHttpClient(env.server.URL)

	resp, err := hc.GET(context.Background(), "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = hc.GET(context.Background(), "/ready")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
