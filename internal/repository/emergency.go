package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shenikar/emergency_tracker/internal/models"
	"github.com/shenikar/emergency_tracker/internal/service"
	"github.com/sirupsen/logrus"
)

// StatusError - бэкенд ответил кодом вне 2xx
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// EmergencyRepository - REST-клиент бэкенда вызовов
type EmergencyRepository struct {
	client *resty.Client
	logger *logrus.Logger

	mu    sync.RWMutex
	token string
}

// NewEmergencyRepository создает клиент. baseURL включает префикс API, например http://host/api.
// Повторяются только GET-запросы: действия пользователя не должны применяться дважды.
func NewEmergencyRepository(baseURL string, timeout time.Duration, retries int, logger *logrus.Logger) service.EmergencyBackend {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
				return false
			}
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return &EmergencyRepository{
		client: client,
		logger: logger,
	}
}

// SetToken задает bearer-токен сессии; пустая строка снимает авторизацию
func (r *EmergencyRepository) SetToken(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token = token
}

// GetEmergency возвращает запись вызова по id
func (r *EmergencyRepository) GetEmergency(ctx context.Context, id string) (map[string]any, error) {
	return r.object(ctx, http.MethodGet, "/emergencies/"+id, nil)
}

// GetLatest возвращает последний вызов пользователя сессии
func (r *EmergencyRepository) GetLatest(ctx context.Context) (map[string]any, error) {
	return r.object(ctx, http.MethodGet, "/emergencies/latest", nil)
}

// GetHistory возвращает историю вызова [{event_type, payload, created_at}]
func (r *EmergencyRepository) GetHistory(ctx context.Context, id string) ([]map[string]any, error) {
	return r.list(ctx, "/emergencies/"+id+"/history")
}

// ListEmergencies возвращает вызовы, видимые пользователю сессии
func (r *EmergencyRepository) ListEmergencies(ctx context.Context) ([]map[string]any, error) {
	return r.list(ctx, "/emergencies")
}

// PerformAction выполняет действие пользователя над вызовом
func (r *EmergencyRepository) PerformAction(ctx context.Context, action models.Action, emergencyID string) (map[string]any, error) {
	switch action {
	case models.ActionAccept, models.ActionArrive, models.ActionResolve:
		return r.object(ctx, http.MethodPost, "/emergencies/"+string(action), map[string]string{"emergencyId": emergencyID})
	case models.ActionMarkFraud:
		return r.object(ctx, http.MethodPut, "/emergencies/"+emergencyID+"/mark-fraud", map[string]any{})
	}
	return nil, fmt.Errorf("repository: unsupported action %q", action)
}

// CreateSOS создает вызов
func (r *EmergencyRepository) CreateSOS(ctx context.Context, req models.SOSRequest) (map[string]any, error) {
	return r.object(ctx, http.MethodPost, "/emergencies/sos", req)
}

// PostResponderLocation отправляет позицию ответчика
func (r *EmergencyRepository) PostResponderLocation(ctx context.Context, report models.LocationReport) error {
	_, err := r.do(ctx, http.MethodPost, "/emergencies/responder/location", report)
	return err
}

// Health проверяет доступность бэкенда
func (r *EmergencyRepository) Health(ctx context.Context) error {
	_, err := r.do(ctx, http.MethodGet, "/health", nil)
	return err
}

func (r *EmergencyRepository) object(ctx context.Context, method, path string, body any) (map[string]any, error) {
	raw, err := r.do(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		if method == http.MethodGet {
			return nil, fmt.Errorf("repository: %s %s: response is not an object", method, path)
		}
		// ответ на запись может быть не объектом; подтверждением служит код 2xx
		return map[string]any{}, nil
	}
	if nested, ok := obj["emergency"].(map[string]any); ok {
		return nested, nil
	}
	return obj, nil
}

func (r *EmergencyRepository) list(ctx context.Context, path string) ([]map[string]any, error) {
	raw, err := r.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("repository: GET %s: response is not a list: %w", path, err)
	}
	if items == nil {
		items = []map[string]any{}
	}
	return items, nil
}

func (r *EmergencyRepository) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	correlationID := uuid.NewString()
	log := r.logger.WithFields(logrus.Fields{
		"repository":     "emergency",
		"method":         method,
		"path":           path,
		"correlation_id": correlationID,
	})

	req := r.client.R().
		SetContext(ctx).
		SetHeader("X-Correlation-Id", correlationID)
	r.mu.RLock()
	if r.token != "" {
		req.SetAuthToken(r.token)
	}
	r.mu.RUnlock()
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		log.WithError(err).Debug("Backend request failed")
		return nil, fmt.Errorf("repository: %s %s: %w", method, path, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("repository: %s %s: %w", method, path, models.ErrNotFound)
	}
	if resp.IsError() {
		log.WithField("status_code", resp.StatusCode()).Debug("Backend returned error status")
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode(),
			Body:       truncate(resp.String(), 256),
		}
	}
	return resp.Body(), nil
}

// IsStatus сообщает, является ли err ответом бэкенда с кодом code
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
