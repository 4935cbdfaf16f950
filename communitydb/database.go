// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package communitydb implements community.DB on Cloud Firestore.
package communitydb

import (
	"context"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/StorXNetwork/gatehouse/community"
)

var (
	mon = monkit.Package()

	// Error is the default communitydb errs class.
	Error = errs.Class("communitydb")
)

// ensures that DB implements community.DB.
var _ community.DB = (*DB)(nil)

// DB is the Firestore backed community database.
type DB struct {
	client *firestore.Client
}

// Open creates a Firestore client from the Firebase app.
func Open(ctx context.Context, app *firebase.App) (*DB, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, Error.New("failed to create Firestore client: %v", err)
	}
	return New(client), nil
}

// New wraps an existing Firestore client.
func New(client *firestore.Client) *DB {
	return &DB{client: client}
}

// Client returns the underlying Firestore client.
func (db *DB) Client() *firestore.Client { return db.client }

// Accounts implements community.DB.
func (db *DB) Accounts() community.Accounts { return &accounts{db: db} }

// GatePasses implements community.DB.
func (db *DB) GatePasses() community.GatePasses { return &gatePasses{db: db} }

// GatePassRequests implements community.DB.
func (db *DB) GatePassRequests() community.GatePassRequests { return &gatePassRequests{db: db} }

// Visitors implements community.DB.
func (db *DB) Visitors() community.Visitors { return &visitors{db: db} }

// Notices implements community.DB.
func (db *DB) Notices() community.Notices { return &notices{db: db} }

// Close closes the Firestore client.
func (db *DB) Close() error {
	return Error.Wrap(db.client.Close())
}

func (db *DB) community(communityID string) *firestore.DocumentRef {
	return db.client.Collection("communities").Doc(communityID)
}

func (db *DB) collection(communityID, name string) *firestore.CollectionRef {
	return db.community(communityID).Collection(name)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func isAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}

// communityOf returns the community id of a document nested under
// communities/{communityId}.
func communityOf(ref *firestore.DocumentRef) string {
	if ref == nil || ref.Parent == nil || ref.Parent.Parent == nil {
		return ""
	}
	return ref.Parent.Parent.ID
}

func strings2interfaces(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, value := range values {
		out[i] = value
	}
	return out
}
