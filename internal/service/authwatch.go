package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/shenikar/emergency_tracker/internal/models"
	"github.com/sirupsen/logrus"
)

// AuthWatcher следит за файлом состояния авторизации {user_id, token, role}.
// Появление или изменение файла открывает сессию, удаление или пустой токен закрывает ее.
type AuthWatcher struct {
	path    string
	tracker TrackerService
	logger  *logrus.Logger
}

// NewAuthWatcher создает наблюдателя за файлом path
func NewAuthWatcher(path string, tracker TrackerService, logger *logrus.Logger) *AuthWatcher {
	return &AuthWatcher{
		path:    filepath.Clean(path),
		tracker: tracker,
		logger:  logger,
	}
}

// Run применяет текущее состояние файла и следит за изменениями до отмены ctx.
// Наблюдается каталог: редакторы и менеджеры секретов заменяют файл переименованием.
func (w *AuthWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("service: could not create auth watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("service: could not watch %s: %w", filepath.Dir(w.path), err)
	}

	log := w.logger.WithFields(logrus.Fields{
		"service": "auth_watcher",
		"path":    w.path,
	})
	log.Info("Auth watcher started")
	w.apply(ctx, log)

	for {
		select {
		case <-ctx.Done():
			log.Info("Auth watcher stopped")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.apply(ctx, log)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("Auth watcher error")
		}
	}
}

func (w *AuthWatcher) apply(ctx context.Context, log *logrus.Entry) {
	session, err := w.read()
	if errors.Is(err, os.ErrNotExist) {
		session = models.Session{}
	} else if err != nil {
		// файл может быть записан частично; дождемся следующего события
		log.WithError(err).Warn("Failed to read auth file")
		return
	}

	if session.Token == "" {
		if _, ok := w.tracker.CurrentSession(); ok {
			log.Info("Auth state cleared, logging out")
		}
		if err := w.tracker.Logout(ctx); err != nil {
			log.WithError(err).Error("Failed to logout")
		}
		return
	}

	if current, ok := w.tracker.CurrentSession(); ok && current == session {
		return
	}
	if err := w.tracker.Login(ctx, session); err != nil {
		log.WithError(err).Error("Failed to login from auth file")
		return
	}
	log.WithField("user_id", session.UserID).Info("Logged in from auth file")
}

func (w *AuthWatcher) read() (models.Session, error) {
	raw, err := os.ReadFile(w.path)
	if err != nil {
		return models.Session{}, err
	}
	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return models.Session{}, fmt.Errorf("service: malformed auth file: %w", err)
	}
	return session, nil
}
