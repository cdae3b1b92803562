package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tpms-dashboard/backend/internal/models"
	"github.com/tpms-dashboard/backend/internal/scheduler"
	"github.com/tpms-dashboard/backend/internal/session"
	"github.com/tpms-dashboard/backend/internal/status"
	"github.com/tpms-dashboard/backend/internal/testutil"
)

type manualFactory struct {
	mu    sync.Mutex
	built []*scheduler.Manual
}

func (f *manualFactory) factory() scheduler.Scheduler {
	m := scheduler.NewManual()
	f.mu.Lock()
	f.built = append(f.built, m)
	f.mu.Unlock()
	return m
}

func (f *manualFactory) last() *scheduler.Manual {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.built[len(f.built)-1]
}

type testEnv struct {
	e      *echo.Echo
	mgr    *session.Manager
	store  *testutil.MockStorage
	hub    *Hub
	scheds *manualFactory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	hub := NewHub(nil, 0, zerolog.Nop())
	scheds := &manualFactory{}
	mgr := session.NewManager(session.Options{
		Seed:      7,
		Scheduler: scheds.factory,
		Publisher: hub,
		Logger:    zerolog.Nop(),
	})
	hub.SetSessions(mgr)
	t.Cleanup(func() {
		hub.Close()
		mgr.CloseAll()
	})

	store := testutil.NewMockStorage()
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	RegisterRoutes(e, NewHandlers(&Dependencies{
		Sessions:      mgr,
		Profiles:      store,
		Hub:           hub,
		Thresholds:    status.DefaultThresholds(),
		DefaultDevice: models.DeviceSettings{RxID: "0x123", TxID: "0x456", BaudRate: 500000},
		Version:       "test",
		Logger:        zerolog.Nop(),
	}))

	return &testEnv{e: e, mgr: mgr, store: store, hub: hub, scheds: scheds}
}

func (env *testEnv) do(method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

// bootstrap opens a session and returns its ID.
func (env *testEnv) bootstrap(t *testing.T, query string) string {
	t.Helper()
	rec := env.do(http.MethodGet, "/api/bootstrap?"+query, nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp BootstrapResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Session.ID
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"version":"test"`)
	assert.Contains(t, rec.Body.String(), `"wsClients":0`)
}

func TestBootstrap_Defaults(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/bootstrap", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[BootstrapResponse](t, rec)
	assert.Equal(t, "2,4", resp.Config)
	assert.Equal(t, 6, resp.Session.TireCount)
	assert.Len(t, resp.Layout, 6)
	assert.Equal(t, "0x123", resp.Device.RxID)
	assert.Equal(t, 500000, resp.Device.BaudRate)
	assert.False(t, resp.Session.Collecting)
	assert.Equal(t, 1, env.mgr.Count())
}

func TestBootstrap_QueryParameters(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/bootstrap?no_of_tyres=8&config=2,2,4&rx_id=0x200&baud_rate=250000", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[BootstrapResponse](t, rec)
	assert.Equal(t, "2,2,4", resp.Config)
	assert.Len(t, resp.Layout, 8)
	assert.True(t, resp.Session.Collecting)
	assert.Equal(t, "0x200", resp.Device.RxID)
	assert.Equal(t, "0x456", resp.Device.TxID)
	assert.Equal(t, 250000, resp.Device.BaudRate)
	assert.Equal(t, status.DefaultThresholds(), resp.Thresholds)
}

func TestBootstrap_ConfigAloneSeedsLayout(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		config string
		tires  int
	}{
		{"2,2", 4},
		{"2,2,2,2", 8},
		{" 4 , 4 ,", 8},
		{"2", 2},
	}
	for _, tt := range tests {
		rec := env.do(http.MethodGet, "/api/bootstrap?config="+url.QueryEscape(tt.config), nil, "")
		require.Equal(t, http.StatusOK, rec.Code, tt.config)

		resp := decode[BootstrapResponse](t, rec)
		assert.Len(t, resp.Layout, tt.tires, tt.config)
		assert.Equal(t, tt.tires, resp.Session.TireCount, tt.config)
		assert.True(t, resp.Session.Collecting, "valid config starts collection: %s", tt.config)
	}
}

func TestBootstrap_AutoStartedSessionTicks(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/bootstrap?config=2,2,2,2", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	id := decode[BootstrapResponse](t, rec).Session.ID

	require.True(t, env.scheds.last().Tick(time.Now()))
	sess, ok := env.mgr.Get(id)
	require.True(t, ok)
	assert.Equal(t, int64(1), sess.Info().Ticks)
}

func TestBootstrap_InvalidParametersFallBack(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		query  string
		config string
	}{
		{"no_of_tyres=abc", "2,4"},
		{"no_of_tyres=7", "2,4"},
		{"no_of_tyres=-2", "2,4"},
		{"no_of_tyres=20", "2,4"},
		{"no_of_tyres=4", "2,2"},
		{"config=2,3&no_of_tyres=5", "2,4"},
		{"config=2,4&no_of_tyres=8", "2,2,2,2"},
		{"config=abc", "2,4"},
		{"config=2,2,2,2,2,2,2,2,2", "2,4"},
	}
	for _, tt := range tests {
		rec := env.do(http.MethodGet, "/api/bootstrap?"+tt.query, nil, "")
		require.Equal(t, http.StatusOK, rec.Code, tt.query)

		resp := decode[BootstrapResponse](t, rec)
		assert.Equal(t, tt.config, resp.Config, tt.query)
		assert.False(t, resp.Session.Collecting, "fallback layout waits for the form: %s", tt.query)
	}
	assert.Equal(t, len(tests), env.mgr.Count())
}

func configForm(values map[string]string) io.Reader {
	form := url.Values{}
	for k, v := range values {
		form.Set(k, v)
	}
	return strings.NewReader(form.Encode())
}

func TestConfig_Success(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/config", configForm(map[string]string{
		"no_of_tyres": "8",
		"tire_config": "2,2,4",
		"rx_id":       "0x321",
		"tx_id":       "0x654",
		"baud_rate":   "250000",
	}), echo.MIMEApplicationForm)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ConfigResponse](t, rec)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "Configuration received", resp.Message)
	require.NotEmpty(t, resp.SessionID)
	assert.NotEmpty(t, resp.ProfileID)

	sess, ok := env.mgr.Get(resp.SessionID)
	require.True(t, ok)
	info := sess.Info()
	assert.Equal(t, 8, info.TireCount)
	assert.Equal(t, "0x321", info.Device.RxID)

	profile, err := env.store.Get(resp.ProfileID)
	require.NoError(t, err)
	assert.Equal(t, models.AxleConfig{2, 2, 4}, profile.AxleConfig)
	assert.Equal(t, 250000, profile.Device.BaudRate)
}

func TestConfig_ReconfiguresExistingSession(t *testing.T) {
	env := newTestEnv(t)
	id := env.bootstrap(t, "")

	rec := env.do(http.MethodPost, "/config", configForm(map[string]string{
		"no_of_tyres": "4",
		"tire_config": "2,2",
		"session_id":  id,
	}), echo.MIMEApplicationForm)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, decode[ConfigResponse](t, rec).SessionID)

	sess, ok := env.mgr.Get(id)
	require.True(t, ok)
	assert.Equal(t, models.AxleConfig{2, 2}, sess.Axles())
	assert.Equal(t, 1, env.mgr.Count())
}

func TestConfig_Rejected(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		form    map[string]string
		status  int
		message string
	}{
		{"mismatch", map[string]string{"no_of_tyres": "6", "tire_config": "2,2,4"}, http.StatusBadRequest, "does not match"},
		{"odd axle", map[string]string{"tire_config": "2,3"}, http.StatusBadRequest, "even number"},
		{"empty", map[string]string{"tire_config": ""}, http.StatusBadRequest, "enter a tire configuration"},
		{"too many", map[string]string{"tire_config": "4,4,4,4,2"}, http.StatusBadRequest, "between 2 and 16"},
		{"bad count", map[string]string{"no_of_tyres": "six", "tire_config": "2,4"}, http.StatusBadRequest, "integer"},
		{"unknown session", map[string]string{"tire_config": "2,4", "session_id": "nope"}, http.StatusNotFound, "Session not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/config", configForm(tt.form), echo.MIMEApplicationForm)
			assert.Equal(t, tt.status, rec.Code)
			resp := decode[ConfigResponse](t, rec)
			assert.Equal(t, "error", resp.Status)
			assert.Contains(t, resp.Message, tt.message)
		})
	}
	assert.Zero(t, env.store.Count())
}

func TestConfig_ProfileSaveFailureStillSucceeds(t *testing.T) {
	env := newTestEnv(t)
	env.store.SaveErr = assert.AnError

	rec := env.do(http.MethodPost, "/config", configForm(map[string]string{"tire_config": "2,4"}), echo.MIMEApplicationForm)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ConfigResponse](t, rec)
	assert.Equal(t, "success", resp.Status)
	assert.Empty(t, resp.ProfileID)
}

func TestProfiles(t *testing.T) {
	env := newTestEnv(t)

	for _, cfg := range []string{"2,4", "2,2"} {
		rec := env.do(http.MethodPost, "/config", configForm(map[string]string{"tire_config": cfg}), echo.MIMEApplicationForm)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := env.do(http.MethodGet, "/api/profiles", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	profiles := decode[[]models.VehicleProfile](t, rec)
	require.Len(t, profiles, 2)
	assert.Equal(t, models.AxleConfig{2, 2}, profiles[0].AxleConfig)

	rec = env.do(http.MethodGet, "/api/profiles?limit=1", nil, "")
	assert.Len(t, decode[[]models.VehicleProfile](t, rec), 1)

	id := profiles[1].ID
	rec = env.do(http.MethodGet, "/api/profiles/"+id, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodDelete, "/api/profiles/"+id, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodGet, "/api/profiles/"+id, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"NOT_FOUND"`)

	rec = env.do(http.MethodGet, "/api/profiles?limit=x", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestThresholds(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/thresholds", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	th := decode[status.Thresholds](t, rec)
	require.NotNil(t, th.Pressure.Critical.Min)
	assert.Equal(t, 20.0, *th.Pressure.Critical.Min)
	assert.Equal(t, 60.0, *th.Temperature.Warning.Max)
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	id := env.bootstrap(t, "")
	base := "/api/sessions/" + id

	rec := env.do(http.MethodGet, base, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[models.SessionInfo](t, rec).Collecting)

	rec = env.do(http.MethodPost, base+"/start", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[models.SessionInfo](t, rec).Collecting)

	rec = env.do(http.MethodPost, base+"/stop", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[models.SessionInfo](t, rec).Collecting)

	rec = env.do(http.MethodGet, "/api/sessions", nil, "")
	assert.Len(t, decode[[]models.SessionInfo](t, rec), 1)

	rec = env.do(http.MethodDelete, base, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodGet, base, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(http.MethodDelete, base, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConfigure(t *testing.T) {
	env := newTestEnv(t)
	id := env.bootstrap(t, "")
	base := "/api/sessions/" + id

	rec := env.do(http.MethodPost, base+"/configure", strings.NewReader(`{"config":"2,2,2,2","tireCount":8}`), echo.MIMEApplicationJSON)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodGet, base+"/layout", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.TirePosition](t, rec), 8)

	rec = env.do(http.MethodPost, base+"/configure", strings.NewReader(`{"config":"2,2","tireCount":6}`), echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid axle configuration")

	rec = env.do(http.MethodPost, base+"/configure", strings.NewReader(`{`), echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// rejected requests leave the layout alone
	rec = env.do(http.MethodGet, base+"/layout", nil, "")
	assert.Len(t, decode[[]models.TirePosition](t, rec), 8)
}

func TestLiveTableAndTireDetail(t *testing.T) {
	env := newTestEnv(t)
	id := env.bootstrap(t, "")
	base := "/api/sessions/" + id

	rec := env.do(http.MethodGet, base+"/live", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]models.LiveRow](t, rec)
	require.Len(t, rows, 6)
	for i, row := range rows {
		assert.Equal(t, i+1, row.Tire)
		assert.NotEmpty(t, row.Name)
		assert.Contains(t, []models.StatusLevel{models.StatusNormal, models.StatusWarning, models.StatusCritical}, row.Status)
	}

	rec = env.do(http.MethodGet, base+"/tires/3", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[models.TireDetail](t, rec)
	assert.Equal(t, 3, detail.Tire)
	assert.Equal(t, "Rear Top Outer", detail.Name)

	sess, _ := env.mgr.Get(id)
	assert.Equal(t, 3, sess.Info().SelectedTire)

	rec = env.do(http.MethodDelete, base+"/selection", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, sess.Info().SelectedTire)

	rec = env.do(http.MethodGet, base+"/tires/7", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(http.MethodGet, base+"/tires/abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}

// collect starts collection and runs n ticks.
func (env *testEnv) collect(t *testing.T, id string, n int) {
	t.Helper()
	rec := env.do(http.MethodPost, "/api/sessions/"+id+"/start", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	sched := env.scheds.last()
	for i := 0; i < n; i++ {
		require.True(t, sched.Tick(time.Now()))
	}
}

func TestSeries(t *testing.T) {
	env := newTestEnv(t)
	id := env.bootstrap(t, "")
	env.collect(t, id, 1)
	base := "/api/sessions/" + id + "/tires/1"

	rec := env.do(http.MethodGet, base+"/series", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode[models.ChartData](t, rec)
	require.Len(t, data.Labels, 1)
	require.Len(t, data.Pressure, 1)
	assert.NotNil(t, data.Pressure[0])

	rec = env.do(http.MethodGet, base+"/series/msgpack", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/msgpack", rec.Header().Get(echo.HeaderContentType))
	var packed models.ChartData
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &packed))
	assert.Equal(t, data.Labels, packed.Labels)
	assert.Equal(t, *data.Battery[0], *packed.Battery[0])

	rec = env.do(http.MethodGet, "/api/sessions/"+id+"/tires/9/series", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChart(t *testing.T) {
	env := newTestEnv(t)
	id := env.bootstrap(t, "")
	env.collect(t, id, 2)
	base := "/api/sessions/" + id + "/tires/1/chart"

	rec := env.do(http.MethodGet, base, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/html")
	assert.Contains(t, rec.Body.String(), "Pressure (PSI)")

	rec = env.do(http.MethodGet, base+"?view=battery", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Battery (%)")
	assert.NotContains(t, rec.Body.String(), "Pressure (PSI)")

	rec = env.do(http.MethodGet, base+"?view=speed", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestArchiveDisabled(t *testing.T) {
	env := newTestEnv(t)
	id := env.bootstrap(t, "")

	rec := env.do(http.MethodGet, "/api/sessions/"+id+"/tires/1/archive", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type fakeArchive struct {
	limit int
	tire  int
}

func (f *fakeArchive) Query(_ context.Context, sessionID string, tire, limit int) ([]models.ArchivedReading, error) {
	f.limit, f.tire = limit, tire
	return []models.ArchivedReading{{SessionID: sessionID, Tire: tire, Pressure: 32}}, nil
}

func TestArchiveQuery(t *testing.T) {
	env := newTestEnv(t)
	id := env.bootstrap(t, "")
	archive := &fakeArchive{}

	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	RegisterRoutes(e, NewHandlers(&Dependencies{
		Sessions: env.mgr,
		Archive:  archive,
		Logger:   zerolog.Nop(),
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/tires/2/archive?limit=50000", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	readings := decode[[]models.ArchivedReading](t, rec)
	require.Len(t, readings, 1)
	assert.Equal(t, 2, archive.tire)
	assert.Equal(t, maxArchiveLimit, archive.limit)

	req = httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/tires/2/archive?limit=0", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExports(t *testing.T) {
	env := newTestEnv(t)
	id := env.bootstrap(t, "")
	env.collect(t, id, 3)
	base := "/api/sessions/" + id

	rec := env.do(http.MethodGet, base+"/export.xlsx", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, mimeXLSX, rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), ".xlsx")
	// xlsx is a zip archive
	assert.True(t, strings.HasPrefix(rec.Body.String(), "PK"))

	rec = env.do(http.MethodGet, base+"/export.pdf", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, mimePDF, rec.Header().Get(echo.HeaderContentType))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))

	rec = env.do(http.MethodGet, "/api/sessions/missing/export.pdf", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
