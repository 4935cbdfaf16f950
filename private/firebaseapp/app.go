// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package firebaseapp creates the Firebase app shared by messaging,
// Firestore and Cloud Storage clients.
package firebaseapp

import (
	"context"
	"os"

	firebase "firebase.google.com/go/v4"
	"github.com/zeebo/errs"
	"google.golang.org/api/option"
)

// Error is the error class for this package.
var Error = errs.Class("firebase app")

// Config contains Firebase project configuration.
type Config struct {
	ProjectID       string `help:"Firebase project ID" default:""`
	CredentialsPath string `help:"path to Firebase service account credentials JSON" default:""`
	CredentialsJSON string `help:"Firebase credentials as JSON string (alternative to path)" default:""`
	StorageBucket   string `help:"Cloud Storage bucket holding notice attachments" default:""`
}

// New initializes a Firebase app from config.
func New(ctx context.Context, config Config) (*firebase.App, error) {
	opts, err := ClientOptions(config)
	if err != nil {
		return nil, err
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:     config.ProjectID,
		StorageBucket: config.StorageBucket,
	}, opts...)
	if err != nil {
		return nil, Error.New("failed to initialize Firebase app: %v", err)
	}
	return app, nil
}

// ClientOptions returns the credential options for config.
func ClientOptions(config Config) ([]option.ClientOption, error) {
	switch {
	case config.CredentialsPath != "":
		return []option.ClientOption{option.WithCredentialsFile(config.CredentialsPath)}, nil
	case config.CredentialsJSON != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(config.CredentialsJSON))}, nil
	case os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "":
		return nil, nil
	case os.Getenv("FIRESTORE_EMULATOR_HOST") != "":
		// the emulator accepts unauthenticated clients.
		return []option.ClientOption{option.WithoutAuthentication()}, nil
	default:
		return nil, Error.New("Firebase credentials not provided")
	}
}
