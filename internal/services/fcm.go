package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMService handles Firebase Cloud Messaging
type FCMService struct {
	client *messaging.Client
}

// NewFCMService creates a new FCM service instance from a credentials file
func NewFCMService(credentialsFile string) (*FCMService, error) {
	ctx := context.Background()

	opt := option.WithCredentialsFile(credentialsFile)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	return &FCMService{client: client}, nil
}

// NewFCMServiceFromBase64 creates a new FCM service instance from base64-encoded credentials
// This is useful for cloud deployments (Railway, Fly.io, Render) where you can't upload files easily
func NewFCMServiceFromBase64(credentialsBase64 string) (*FCMService, error) {
	ctx := context.Background()

	credentialsJSON, err := base64.StdEncoding.DecodeString(credentialsBase64)
	if err != nil {
		return nil, fmt.Errorf("error decoding base64 credentials: %w", err)
	}

	opt := option.WithCredentialsJSON(credentialsJSON)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	return &FCMService{client: client}, nil
}

// SendStepGoalReachedNotification congratulates a member who hit their daily
// step goal.
func (s *FCMService) SendStepGoalReachedNotification(token string, steps, goal int) error {
	ctx := context.Background()

	message := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: "Step goal smashed! 🎉",
			Body:  fmt.Sprintf("%d steps today, past your goal of %d. Keep it up!", steps, goal),
		},
		Data: map[string]string{
			"type":  "step_goal_reached",
			"steps": strconv.Itoa(steps),
			"goal":  strconv.Itoa(goal),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					ContentAvailable: true,
					Sound:            "default",
				},
			},
		},
	}

	_, err := s.client.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("error sending step goal notification: %w", err)
	}
	return nil
}

// SendSessionSummaryNotification delivers the wrap-up after a session ends.
func (s *FCMService) SendSessionSummaryNotification(token string, distanceKm float64, durationSeconds int64, steps int) error {
	ctx := context.Background()

	minutes := durationSeconds / 60
	message := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: "Session complete",
			Body:  fmt.Sprintf("%.2f km in %d min (%d steps). Nice work!", distanceKm, minutes, steps),
		},
		Data: map[string]string{
			"type":             "session_summary",
			"distance_km":      fmt.Sprintf("%.3f", distanceKm),
			"duration_seconds": strconv.FormatInt(durationSeconds, 10),
			"steps":            strconv.Itoa(steps),
		},
		Android: &messaging.AndroidConfig{
			Priority: "normal",
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}

	_, err := s.client.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("error sending session summary notification: %w", err)
	}
	return nil
}
