// internal/common/firebase/messaging.go
package firebase

import (
	"context"
	"fmt"

	"bookverse-notifications/internal/common/logger"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// NewMessagingClient initializes a Firebase app and returns its FCM client.
// An empty credentials file falls back to GOOGLE_APPLICATION_CREDENTIALS or
// the ambient default credentials.
func NewMessagingClient(ctx context.Context, credentialsFile, projectID string, log logger.Logger) (*messaging.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	} else {
		log.Warn("no firebase credentials file configured, using default credentials", nil)
	}

	var appCfg *firebase.Config
	if projectID != "" {
		appCfg = &firebase.Config{ProjectID: projectID}
	}

	app, err := firebase.NewApp(ctx, appCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}
	return client, nil
}
