package parking

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"parking-svc/src/internal/config"
	"parking-svc/src/internal/vehicle"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupVehicleRouter(t *testing.T) (*gin.Engine, *fixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := newFixture(t, nil, config.ParkingSettings{})
	h := NewHandler(&config.Configuration{App: config.Application{Timeout: 5}}, f.service)

	r := gin.New()
	api := r.Group("/api/v1")
	api.POST("/vehicle", h.Admit)
	api.GET("/vehicles", h.ListAll)
	api.PUT("/vehicle/:id", h.Update)
	api.DELETE("/vehicle/:id", h.Remove)
	api.POST("/close-day", h.CloseDay)
	api.GET("/occupancy", h.Occupancy)
	return r, f
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_Admit(t *testing.T) {
	router, _ := setupVehicleRouter(t)

	w := doRequest(router, http.MethodPost, "/api/v1/vehicle",
		`{"plate":"ABC123","vehicleClass":"light_vehicle","isElectricOrHybrid":false,"assignedSpot":1}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var session vehicle.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, "ABC123", session.Plate)
	assert.Equal(t, "120", session.Cost.String())
	assert.Nil(t, session.ExitTime)
}

func TestHandler_AdmitValidation(t *testing.T) {
	router, f := setupVehicleRouter(t)

	testCases := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ``},
		{name: "missing plate", body: `{"vehicleClass":"motorcycle","assignedSpot":1}`},
		{name: "non alphanumeric plate", body: `{"plate":"AB-123","vehicleClass":"motorcycle","assignedSpot":1}`},
		{name: "unknown class", body: `{"plate":"ABC123","vehicleClass":"truck","assignedSpot":1}`},
		{name: "zero spot", body: `{"plate":"ABC123","vehicleClass":"motorcycle","assignedSpot":0}`},
		{name: "negative spot", body: `{"plate":"ABC123","vehicleClass":"motorcycle","assignedSpot":-2}`},
		{name: "unknown field", body: `{"plate":"ABC123","vehicleClass":"motorcycle","assignedSpot":1,"cost":0}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(router, http.MethodPost, "/api/v1/vehicle", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}

	assert.Empty(t, f.sink.kinds())
}

func TestHandler_AdmitCapacityExceeded(t *testing.T) {
	router, _ := setupVehicleRouter(t)
	body := `{"plate":"ABC123","vehicleClass":"light_vehicle","assignedSpot":2}`

	require.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/api/v1/vehicle", body).Code)

	w := doRequest(router, http.MethodPost, "/api/v1/vehicle", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "No spots available")
}

func TestHandler_UpdateAndRemove(t *testing.T) {
	router, f := setupVehicleRouter(t)
	car := f.admit(t, "ABC123", vehicle.ClassLightVehicle, false, 1)

	exit := car.EntryTime.Add(2 * time.Hour).Format(time.RFC3339)
	w := doRequest(router, http.MethodPut, "/api/v1/vehicle/"+car.ID, `{"assignedSpot":3,"exitTime":"`+exit+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated vehicle.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, 3, updated.AssignedSpot)
	require.NotNil(t, updated.ExitTime)

	w = doRequest(router, http.MethodDelete, "/api/v1/vehicle/"+car.ID, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Vehicle removed successfully"}`, w.Body.String())

	w = doRequest(router, http.MethodDelete, "/api/v1/vehicle/"+car.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_UpdateValidation(t *testing.T) {
	router, f := setupVehicleRouter(t)
	car := f.admit(t, "ABC123", vehicle.ClassLightVehicle, false, 1)

	w := doRequest(router, http.MethodPut, "/api/v1/vehicle/"+car.ID, `{"plate":"HACKED"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "unknown fields are rejected")

	w = doRequest(router, http.MethodPut, "/api/v1/vehicle/"+car.ID, `{"assignedSpot":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodPut, "/api/v1/vehicle/"+car.ID, `{"exitTime":"yesterday"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodPut, "/api/v1/vehicle/missing", `{"isElectricOrHybrid":true}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_UpdateWithEmptyBody(t *testing.T) {
	router, f := setupVehicleRouter(t)
	car := f.admit(t, "ABC123", vehicle.ClassLightVehicle, true, 2)

	w := doRequest(router, http.MethodPut, "/api/v1/vehicle/"+car.ID, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated vehicle.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, car.ID, updated.ID)
	assert.Equal(t, 2, updated.AssignedSpot)
	assert.True(t, updated.IsElectricOrHybrid)
	assert.Nil(t, updated.ExitTime)

	w = doRequest(router, http.MethodPut, "/api/v1/vehicle/"+car.ID, "{}")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodPut, "/api/v1/vehicle/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodPost, "/api/v1/vehicle", "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "admission still requires a body")
}

func TestHandler_CloseDay(t *testing.T) {
	router, f := setupVehicleRouter(t)
	f.admit(t, "ABC123", vehicle.ClassLightVehicle, false, 1)
	f.admit(t, "XYZ789", vehicle.ClassMotorcycle, true, 1)
	f.clock.Advance(90 * time.Minute)

	w := doRequest(router, http.MethodPost, "/api/v1/close-day", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Message      string            `json:"message"`
		TotalRevenue json.Number       `json:"totalRevenue"`
		SettledCount int               `json:"settledCount"`
		Failures     []json.RawMessage `json:"failures"`
	}
	decoder := json.NewDecoder(strings.NewReader(w.Body.String()))
	decoder.UseNumber()
	require.NoError(t, decoder.Decode(&body))

	assert.Equal(t, "Day closed successfully", body.Message)
	assert.Equal(t, "333", body.TotalRevenue.String())
	assert.Equal(t, 2, body.SettledCount)
	assert.Empty(t, body.Failures)
}

func TestHandler_ListAllAndOccupancy(t *testing.T) {
	router, f := setupVehicleRouter(t)
	f.admit(t, "ABC123", vehicle.ClassLightVehicle, false, 1)

	w := doRequest(router, http.MethodGet, "/api/v1/vehicles", "")
	require.Equal(t, http.StatusOK, w.Code)
	var sessions []vehicle.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sessions))
	assert.Len(t, sessions, 1)

	w = doRequest(router, http.MethodGet, "/api/v1/occupancy", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"vehicleClass":"light_vehicle"`)
}
