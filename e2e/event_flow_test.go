package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Request はHTTPリクエストを実行
func (s *TestServer) Request(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody []byte
	if body != nil {
		reqBody, _ = json.Marshal(body)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(reqBody))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func dateFromToday(days int) string {
	return time.Now().UTC().AddDate(0, 0, days).Format(time.DateOnly)
}

// TestE2E_HealthCheck はヘルスチェックをテスト
func TestE2E_HealthCheck(t *testing.T) {
	server := getTestServer(t)

	rec := server.Request(http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

// TestE2E_CompleteRegistrationJourney はイベント作成から締め切りまでの流れをテスト
func TestE2E_CompleteRegistrationJourney(t *testing.T) {
	server := getTestServer(t)
	heldOn := dateFromToday(30)
	eventPath := fmt.Sprintf("/api/events/%s/Go%%20Meetup", heldOn)

	// 1. イベント作成
	t.Run("イベント作成", func(t *testing.T) {
		rec := server.Request(http.MethodPost, "/api/events", map[string]interface{}{
			"heldOn":        heldOn,
			"name":          "Go Meetup",
			"numberOfSeats": 2,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, eventPath, rec.Header().Get(echo.HeaderLocation))
	})

	// 2. 同じイベントは作成できない
	t.Run("重複作成は409", func(t *testing.T) {
		rec := server.Request(http.MethodPost, "/api/events", map[string]interface{}{
			"heldOn": heldOn,
			"name":   "Go Meetup",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, eventPath, rec.Header().Get(echo.HeaderLocation))
	})

	// 3. 登録
	t.Run("登録", func(t *testing.T) {
		rec := server.Request(http.MethodPost, eventPath+"/registrations", map[string]string{
			"email": "John.Doe@Example.com",
			"name":  "John Doe",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, "joh*****@example.com", decode(t, rec)["email"])

		rec = server.Request(http.MethodPost, eventPath+"/registrations", map[string]string{
			"email": "john.doe@example.com",
			"name":  "John Again",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "同じメールアドレスでは登録できない")
	})

	// 4. 空席数と登録一覧
	t.Run("空席数と登録一覧", func(t *testing.T) {
		rec := server.Request(http.MethodGet, eventPath, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(1), decode(t, rec)["numberOfFreeSeats"])

		rec = server.Request(http.MethodGet, eventPath+"/registrations", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		embedded := decode(t, rec)["_embedded"].(map[string]interface{})
		regs := embedded["registrations"].([]interface{})
		require.Len(t, regs, 1)
		assert.Equal(t, "John Doe", regs[0].(map[string]interface{})["name"])
	})

	// 5. 受付中一覧に含まれる
	t.Run("受付中一覧", func(t *testing.T) {
		rec := server.Request(http.MethodGet, "/api/events", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		events := decode(t, rec)["_embedded"].(map[string]interface{})["events"].([]interface{})
		require.Len(t, events, 1)
		assert.Equal(t, "Go Meetup", events[0].(map[string]interface{})["name"])
	})

	// 6. 満席
	t.Run("満席になると409", func(t *testing.T) {
		rec := server.Request(http.MethodPost, eventPath+"/registrations", map[string]string{
			"email": "jane@example.com", "name": "Jane",
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = server.Request(http.MethodPost, eventPath+"/registrations", map[string]string{
			"email": "bob@example.com", "name": "Bob",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	// 7. 締め切り
	t.Run("締め切り後は一覧に出ない", func(t *testing.T) {
		rec := server.Request(http.MethodPost, eventPath+"/close", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = server.Request(http.MethodGet, "/api/events", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		events := decode(t, rec)["_embedded"].(map[string]interface{})["events"].([]interface{})
		assert.Empty(t, events)
	})
}

// TestE2E_NotFound は存在しないイベントへのアクセスをテスト
func TestE2E_NotFound(t *testing.T) {
	server := getTestServer(t)
	path := fmt.Sprintf("/api/events/%s/Nothing", dateFromToday(3))

	assert.Equal(t, http.StatusNotFound, server.Request(http.MethodGet, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, server.Request(http.MethodPost, path+"/registrations",
		map[string]string{"email": "john@example.com", "name": "John"}).Code)
}

// TestE2E_ConcurrentRegistration は同時登録で座席数を超えないことをテスト
func TestE2E_ConcurrentRegistration(t *testing.T) {
	server := getTestServer(t)
	heldOn := dateFromToday(10)

	rec := server.Request(http.MethodPost, "/api/events", map[string]interface{}{
		"heldOn": heldOn, "name": "Popular", "numberOfSeats": 5,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	const numRequests = 15
	codes := make([]int, numRequests)
	var wg sync.WaitGroup
	for i := 0; i < numRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			rec := server.Request(http.MethodPost, fmt.Sprintf("/api/events/%s/Popular/registrations", heldOn),
				map[string]string{"email": fmt.Sprintf("user%02d@example.com", n), "name": fmt.Sprintf("User %d", n)})
			codes[n] = rec.Code
		}(i)
	}
	wg.Wait()

	created := 0
	for _, code := range codes {
		if code == http.StatusCreated {
			created++
		} else {
			assert.Equal(t, http.StatusConflict, code)
		}
	}
	assert.LessOrEqual(t, created, 5)

	rec = server.Request(http.MethodGet, fmt.Sprintf("/api/events/%s/Popular", heldOn), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(5-created), decode(t, rec)["numberOfFreeSeats"])
}
