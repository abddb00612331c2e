package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"healthcare-companion-server/internal/config"
	"healthcare-companion-server/internal/metrics"
	"healthcare-companion-server/internal/models"
)

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Details []string        `json:"details"`
}

type api struct {
	t      *testing.T
	router *gin.Engine
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.Migrate(db))

	cfg := &config.Config{
		Origin:                    "http://localhost:4200",
		Environment:               "test",
		JWTSecret:                 "access-secret-for-tests",
		JWTRefreshSecret:          "refresh-secret-for-tests",
		JWTExpirationMinutes:      15,
		JWTRefreshExpirationHours: 24,
		Scheduling:                config.SchedulingConfig{SlotMinutes: 30, Timezone: "UTC"},
	}
	deps := NewDeps(cfg, db, metrics.NewCollector("test"), zap.NewNop())
	return &api{t: t, router: NewRouter(deps, zap.NewNop())}
}

func (a *api) do(method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return a.send(req, token)
}

func (a *api) send(req *http.Request, token string) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(req.URL.Path, "/api/") && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

// signUp registers an account and returns its id and access token.
func (a *api) signUp(role, specialty string) (string, string) {
	a.t.Helper()
	email := uuid.NewString() + "@example.com"
	w, env := a.do(http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"firstName": "Test",
		"lastName":  role,
		"email":     email,
		"password":  "correct-horse",
		"role":      role,
		"specialty": specialty,
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())

	var user struct {
		ID string `json:"id"`
	}
	require.NoError(a.t, json.Unmarshal(env.Data, &user))

	w, env = a.do(http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": "correct-horse",
	})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	var login struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(a.t, json.Unmarshal(env.Data, &login))
	require.NotEmpty(a.t, login.AccessToken)
	return user.ID, login.AccessToken
}

// slotBase is a whole hour two days ahead, fixed for the test binary.
var slotBase = time.Now().Add(48 * time.Hour).Truncate(time.Hour)

func futureSlot(offset time.Duration) int64 {
	return slotBase.Add(offset).UnixMilli()
}

func TestHealthAndMetrics(t *testing.T) {
	a := newAPI(t)

	w, _ := a.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w, _ = a.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `test_http_requests_total{method="GET",path="/health",status="200"} 1`)
}

func TestAuthFlow(t *testing.T) {
	a := newAPI(t)

	t.Run("admin self-registration is rejected", func(t *testing.T) {
		w, env := a.do(http.MethodPost, "/api/v1/auth/register", "", map[string]any{
			"firstName": "Eve", "lastName": "Admin", "email": "eve@example.com",
			"password": "correct-horse", "role": "admin",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Validation failed", env.Error)
	})

	t.Run("profile requires a token", func(t *testing.T) {
		w, _ := a.do(http.MethodGet, "/api/v1/auth/profile", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("emails are trimmed and case folded", func(t *testing.T) {
		w, env := a.do(http.MethodPost, "/api/v1/auth/register", "", map[string]any{
			"firstName": "Ada", "lastName": "Lovelace", "email": "  Ada@Example.com ",
			"password": "correct-horse", "role": "patient",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Contains(t, string(env.Data), `"email":"ada@example.com"`)

		w, _ = a.do(http.MethodPost, "/api/v1/auth/login", "", map[string]any{"email": " ADA@example.com", "password": "correct-horse"})
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})

	t.Run("login, profile and refresh", func(t *testing.T) {
		email := "pat@example.com"
		w, _ := a.do(http.MethodPost, "/api/v1/auth/register", "", map[string]any{
			"firstName": "Pat", "lastName": "Doe", "email": email,
			"password": "correct-horse", "role": "patient",
		})
		require.Equal(t, http.StatusCreated, w.Code)

		w, _ = a.do(http.MethodPost, "/api/v1/auth/register", "", map[string]any{
			"firstName": "Pat", "lastName": "Again", "email": email,
			"password": "correct-horse", "role": "patient",
		})
		assert.Equal(t, http.StatusConflict, w.Code)

		w, _ = a.do(http.MethodPost, "/api/v1/auth/login", "", map[string]any{"email": email, "password": "wrong-password"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w, env := a.do(http.MethodPost, "/api/v1/auth/login", "", map[string]any{"email": email, "password": "correct-horse"})
		require.Equal(t, http.StatusOK, w.Code)
		var login struct {
			AccessToken  string `json:"accessToken"`
			RefreshToken string `json:"refreshToken"`
			User         struct {
				Email string `json:"email"`
			} `json:"user"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &login))
		assert.Equal(t, email, login.User.Email)
		assert.Contains(t, w.Header().Get("Set-Cookie"), "refresh_token=")

		w, env = a.do(http.MethodGet, "/api/v1/auth/profile", login.AccessToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, string(env.Data), email)
		assert.NotContains(t, string(env.Data), "password")

		w, env = a.do(http.MethodPost, "/api/v1/auth/refresh-token", "", map[string]any{"refreshToken": login.RefreshToken})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var pair struct {
			RefreshToken string `json:"refreshToken"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &pair))
		assert.NotEqual(t, login.RefreshToken, pair.RefreshToken)

		w, _ = a.do(http.MethodPost, "/api/v1/auth/refresh-token", "", map[string]any{"refreshToken": login.RefreshToken})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAppointmentLifecycle(t *testing.T) {
	a := newAPI(t)
	doctorID, doctorToken := a.signUp("doctor", "Cardiology")
	_, patientToken := a.signUp("patient", "")
	_, otherToken := a.signUp("patient", "")

	w, env := a.do(http.MethodGet, "/api/v1/users/doctors", patientToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), doctorID)

	when := futureSlot(0)
	w, env = a.do(http.MethodPost, "/api/v1/appointments", patientToken, map[string]any{
		"doctorId":    doctorID,
		"date":        when,
		"description": "chest pain after exercise",
		"priority":    "high",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var appt struct {
		ID                string `json:"id"`
		Priority          string `json:"priority"`
		SuggestedPriority string `json:"suggestedPriority"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &appt))
	assert.Equal(t, "low", appt.Priority)

	t.Run("slot is exclusive", func(t *testing.T) {
		w, _ := a.do(http.MethodPost, "/api/v1/appointments", otherToken, map[string]any{"doctorId": doctorID, "date": when})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("doctors cannot book", func(t *testing.T) {
		w, _ := a.do(http.MethodPost, "/api/v1/appointments", doctorToken, map[string]any{"doctorId": doctorID, "date": futureSlot(time.Hour)})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("outsiders cannot read it", func(t *testing.T) {
		w, _ := a.do(http.MethodGet, "/api/v1/appointments/"+appt.ID, otherToken, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("doctor sets priority and order", func(t *testing.T) {
		w, env := a.do(http.MethodPatch, "/api/v1/appointments/"+appt.ID+"/priority", doctorToken, map[string]any{"priority": "high"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, string(env.Data), `"priority":"high"`)

		w, env = a.do(http.MethodPatch, "/api/v1/appointments/order", doctorToken, map[string]any{
			"updates": []map[string]any{{"id": appt.ID, "order": 0}, {"id": uuid.NewString(), "order": 1}},
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var results []struct {
			Applied bool   `json:"applied"`
			Reason  string `json:"reason"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &results))
		require.Len(t, results, 2)
		assert.True(t, results[0].Applied)
		assert.Equal(t, "not_found", results[1].Reason)

		w, _ = a.do(http.MethodPatch, "/api/v1/appointments/order", patientToken, map[string]any{
			"updates": []map[string]any{{"id": appt.ID, "order": 0}},
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("reschedule negotiation", func(t *testing.T) {
		w, _ := a.do(http.MethodPatch, "/api/v1/appointments/"+appt.ID+"/reschedule", doctorToken, map[string]any{"action": "approve"})
		assert.Equal(t, http.StatusNotFound, w.Code)

		w, _ = a.do(http.MethodPost, "/api/v1/appointments/"+appt.ID+"/reschedule", patientToken, map[string]any{
			"newDate": futureSlot(2 * time.Hour), "reason": "work trip",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w, _ = a.do(http.MethodPost, "/api/v1/appointments/"+appt.ID+"/reschedule", patientToken, map[string]any{
			"newDate": futureSlot(3 * time.Hour),
		})
		assert.Equal(t, http.StatusConflict, w.Code)

		w, _ = a.do(http.MethodPatch, "/api/v1/appointments/"+appt.ID+"/reschedule", doctorToken, map[string]any{
			"action": "suggest", "suggestedDate": futureSlot(4 * time.Hour),
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w, env := a.do(http.MethodPost, "/api/v1/appointments/"+appt.ID+"/reschedule/accept", patientToken, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, string(env.Data), fmt.Sprintf(`"newDate":%d,"status":"pending"`, futureSlot(4*time.Hour)))

		w, env = a.do(http.MethodPatch, "/api/v1/appointments/"+appt.ID+"/reschedule", doctorToken, map[string]any{"action": "approve"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, string(env.Data), fmt.Sprintf(`"scheduledAt":%d`, futureSlot(4*time.Hour)))
		assert.NotContains(t, string(env.Data), "rescheduleRequest")
	})

	t.Run("prescription completes the appointment", func(t *testing.T) {
		w, _ := a.do(http.MethodPost, "/api/v1/appointments/"+appt.ID+"/prescription", doctorToken, map[string]any{
			"diagnosis": "stable angina",
			"items": []map[string]any{{
				"name": "Aspirin", "dosage": "75mg", "durationDays": 7,
				"schedule": []map[string]any{{"timeOfDay": "morning", "food": "after"}},
			}},
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w, env := a.do(http.MethodGet, "/api/v1/appointments/"+appt.ID, patientToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, string(env.Data), `"status":"completed"`)

		w, _ = a.do(http.MethodPatch, "/api/v1/appointments/"+appt.ID+"/status", patientToken, map[string]any{"status": "cancelled"})
		assert.Equal(t, http.StatusConflict, w.Code)

		w, env = a.do(http.MethodGet, "/api/v1/medications", patientToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, string(env.Data), "Aspirin")

		w, env = a.do(http.MethodGet, "/api/v1/prescriptions", patientToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, string(env.Data), "stable angina")

		w, _ = a.do(http.MethodPost, "/api/v1/appointments/"+appt.ID+"/prescription", doctorToken, map[string]any{
			"items": []map[string]any{{"name": "Again", "durationDays": 1, "schedule": []map[string]any{{"timeOfDay": "night"}}}},
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("doctor inbox has the booking", func(t *testing.T) {
		w, env := a.do(http.MethodGet, "/api/v1/notifications?limit=10", doctorToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var inbox struct {
			Items  []json.RawMessage `json:"items"`
			Unread int64             `json:"unread"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &inbox))
		assert.NotEmpty(t, inbox.Items)
		assert.Equal(t, int64(len(inbox.Items)), inbox.Unread)

		w, _ = a.do(http.MethodPatch, "/api/v1/notifications/read-all", doctorToken, nil)
		require.Equal(t, http.StatusOK, w.Code)

		w, env = a.do(http.MethodGet, "/api/v1/notifications", doctorToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, string(env.Data), `"unread":0`)
	})
}

func TestMedicationTracking(t *testing.T) {
	a := newAPI(t)
	_, patientToken := a.signUp("patient", "")
	_, doctorToken := a.signUp("doctor", "")

	w, env := a.do(http.MethodPost, "/api/v1/medications", patientToken, map[string]any{
		"name": "Vitamin D", "durationDays": 30,
		"schedule": []map[string]any{{"timeOfDay": "morning"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var med struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &med))

	w, _ = a.do(http.MethodPost, "/api/v1/medications", doctorToken, map[string]any{"name": "Nope"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	today := time.Now().UTC().Format(models.DateLayout)
	w, env = a.do(http.MethodPatch, "/api/v1/medications/"+med.ID+"/taken", patientToken, map[string]any{
		"date": today, "timeOfDay": "morning", "status": "taken",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, string(env.Data), `"streak":1`)

	w, _ = a.do(http.MethodPatch, "/api/v1/medications/"+med.ID+"/taken", patientToken, map[string]any{
		"date": today, "timeOfDay": "morning", "status": "forgotten",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = a.do(http.MethodGet, "/api/v1/medications/stats", patientToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"streak":1`)

	w, env = a.do(http.MethodGet, "/api/v1/achievements", patientToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, env.Data)

	w, _ = a.do(http.MethodPatch, "/api/v1/medications/"+med.ID+"/deactivate", patientToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = a.do(http.MethodPatch, "/api/v1/medications/"+uuid.NewString()+"/deactivate", patientToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReportUploadAndDownload(t *testing.T) {
	a := newAPI(t)
	patientID, patientToken := a.signUp("patient", "")
	doctorID, doctorToken := a.signUp("doctor", "")
	_, strangerToken := a.signUp("doctor", "")
	_, otherToken := a.signUp("patient", "")

	upload := func(contentType string, data []byte) (*httptest.ResponseRecorder, envelope) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		require.NoError(t, mw.WriteField("title", "Blood panel"))
		require.NoError(t, mw.WriteField("reportType", "LabResult"))
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="panel.txt"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return a.send(req, patientToken)
	}

	w, _ := upload("application/x-msdownload", []byte("MZ"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	content := []byte("hemoglobin 14.1 g/dL")
	w, env := upload("text/plain; charset=utf-8", content)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, string(env.Data), "fileData")
	var report struct {
		ID       string `json:"id"`
		FileType string `json:"fileType"`
		FileSize int64  `json:"fileSize"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, "text/plain", report.FileType)
	assert.Equal(t, int64(len(content)), report.FileSize)

	// doctors see reports only once the patient has booked with them
	w, _ = a.do(http.MethodGet, "/api/v1/reports?patientId="+patientID, doctorToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = a.do(http.MethodPost, "/api/v1/appointments", patientToken, map[string]any{
		"doctorId": doctorID, "date": futureSlot(0),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, env = a.do(http.MethodGet, "/api/v1/reports?patientId="+patientID, doctorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), report.ID)

	w, _ = a.do(http.MethodGet, "/api/v1/reports/"+report.ID+"/download", otherToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = a.do(http.MethodGet, "/api/v1/reports/"+report.ID+"/download", strangerToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = a.do(http.MethodGet, "/api/v1/reports/"+report.ID+"/download", doctorToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, content, w.Body.Bytes())
	assert.Equal(t, `attachment; filename="panel.txt"`, w.Header().Get("Content-Disposition"))
}

func TestDoctorAvailabilityAndSlots(t *testing.T) {
	a := newAPI(t)
	doctorID, doctorToken := a.signUp("doctor", "")
	_, patientToken := a.signUp("patient", "")

	w, _ := a.do(http.MethodGet, "/api/v1/users/me/availability", patientToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = a.do(http.MethodPut, "/api/v1/users/me/availability", doctorToken, map[string]any{
		"days": []string{"Mon"}, "startTime": "17:00", "endTime": "09:00",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = a.do(http.MethodPut, "/api/v1/users/me/availability", doctorToken, map[string]any{
		"days": []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}, "startTime": "09:00", "endTime": "10:00",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env := a.do(http.MethodGet, "/api/v1/users/doctors/"+doctorID+"/availability", patientToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"startTime":"09:00"`)

	w, _ = a.do(http.MethodGet, "/api/v1/users/doctors/"+doctorID+"/slots", patientToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	day := time.Now().UTC().Add(72 * time.Hour).Format(models.DateLayout)
	w, env = a.do(http.MethodGet, "/api/v1/users/doctors/"+doctorID+"/slots?date="+day, patientToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, string(env.Data), "09:30")
}

func TestAdminUserManagement(t *testing.T) {
	a := newAPI(t)
	_, patientToken := a.signUp("patient", "")

	w, _ := a.do(http.MethodGet, "/api/v1/users", patientToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = a.do(http.MethodGet, "/api/v1/users/doctor-patients", patientToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
