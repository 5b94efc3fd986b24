// Package docstore connects to MongoDB for the runner and the default
// application server.
//
// Connector/Conn are the database-connector half: connect, drop, disconnect.
// Store is the document half the application server reads and writes through.
package docstore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// DefaultDatabase is used when the URI names no database.
const DefaultDatabase = "parse-test"

// Connector opens MongoDB connections.
type Connector struct {
	// ClientOptions is applied after the URI. Optional.
	ClientOptions *options.ClientOptions
}

// Conn is an open, pinged MongoDB connection bound to one database.
type Conn struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect opens a client for uri and pings the primary. The client is
// disconnected again if the ping fails.
func (c Connector) Connect(ctx context.Context, uri string) (*Conn, error) {
	name, err := DatabaseName(uri)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = DefaultDatabase
	}

	opts := []*options.ClientOptions{options.Client().ApplyURI(uri)}
	if c.ClientOptions != nil {
		opts = append(opts, c.ClientOptions)
	}

	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("docstore: connect: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("docstore: ping: %w", err)
	}

	return &Conn{client: client, db: client.Database(name)}, nil
}

// Client returns the underlying driver client.
func (c *Conn) Client() *mongo.Client { return c.client }

// Database returns the database named by the connection string.
func (c *Conn) Database() *mongo.Database { return c.db }

// Store returns a document store over the connection's database.
func (c *Conn) Store() *Store { return NewStore(c.db) }

// DropDatabase drops the whole database. Irreversible.
func (c *Conn) DropDatabase(ctx context.Context) error {
	if err := c.db.Drop(ctx); err != nil {
		return fmt.Errorf("docstore: drop %s: %w", c.db.Name(), err)
	}
	return nil
}

// Disconnect closes every pooled connection.
func (c *Conn) Disconnect(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("docstore: disconnect: %w", err)
	}
	return nil
}
