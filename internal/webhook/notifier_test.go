package webhook_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shenikar/emergency_tracker/internal/models"
	"github.com/shenikar/emergency_tracker/internal/webhook"
	"github.com/shenikar/emergency_tracker/internal/webhook/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestNotifier_Notify(t *testing.T) {
	// Подготовка
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockWebhookPublisher(ctrl)
	notifier := webhook.NewNotifier(publisher)
	snap := models.Snapshot{EmergencyID: "E1", Status: models.StatusResolved, Terminal: true, Version: 7}

	// Ожидания
	publisher.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, event webhook.SnapshotEvent) error {
			assert.Equal(t, "u1", event.UserID)
			assert.Equal(t, "E1", event.EmergencyID)
			assert.Equal(t, models.StatusResolved, event.Status)
			assert.True(t, event.Terminal)
			assert.Equal(t, uint64(7), event.Version)
			assert.Equal(t, snap, event.Snapshot)
			assert.WithinDuration(t, time.Now(), event.Timestamp, time.Minute)
			return nil
		}).
		Times(1)

	// Действие
	err := notifier.Notify(context.Background(), "u1", snap)

	// Проверки
	require.NoError(t, err)
}

func TestNotifier_PublishError(t *testing.T) {
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockWebhookPublisher(ctrl)
	notifier := webhook.NewNotifier(publisher)
	expectedErr := errors.New("redis down")

	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(expectedErr).Times(1)

	err := notifier.Notify(context.Background(), "u1", models.Snapshot{})

	assert.ErrorIs(t, err, expectedErr)
}
