// Package flight exposes derived tables over Arrow Flight.
package flight

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ---------------------------------------------------------------------
// Flight Client
// ---------------------------------------------------------------------

// Client wraps an Apache Arrow Flight client to fetch derived tables.
type Client struct {
	client flight.Client
}

// NewClient connects to the Flight service at addr without transport
// security.
func NewClient(addr string) (*Client, error) {
	client, err := flight.NewClientWithMiddleware(addr, nil, nil,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create flight client: %w", err)
	}
	return &Client{client: client}, nil
}

// Fetch retrieves the derived table named by t. The caller releases the
// returned records.
func (c *Client) Fetch(ctx context.Context, t Ticket) ([]arrow.Record, error) {
	tkt, err := t.Encode()
	if err != nil {
		return nil, err
	}
	stream, err := c.client.DoGet(ctx, tkt)
	if err != nil {
		return nil, fmt.Errorf("DoGet failed: %w", err)
	}
	reader, err := flight.NewRecordReader(stream)
	if err != nil {
		return nil, fmt.Errorf("failed to create reader: %w", err)
	}
	defer reader.Release()
	return readAllRecords(reader)
}

// List returns the tickets the service advertises.
func (c *Client) List(ctx context.Context) ([]Ticket, error) {
	stream, err := c.client.ListFlights(ctx, &flight.Criteria{})
	if err != nil {
		return nil, fmt.Errorf("ListFlights failed: %w", err)
	}
	var tickets []Ticket
	for {
		info, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return tickets, nil
		}
		if err != nil {
			return nil, err
		}
		if len(info.GetEndpoint()) == 0 {
			continue
		}
		t, err := decodeTicket(info.GetEndpoint()[0].GetTicket().GetTicket())
		if err != nil {
			return nil, fmt.Errorf("bad advertised ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// readAllRecords pulls all available record batches from a DoGet stream.
func readAllRecords(stream *flight.Reader) ([]arrow.Record, error) {
	var result []arrow.Record
	for stream.Next() {
		rec := stream.Record()
		// Retain the record so it's safe to use after Next() call
		rec.Retain()
		result = append(result, rec)
	}
	if err := stream.Err(); err != nil && !errors.Is(err, io.EOF) {
		for _, rec := range result {
			rec.Release()
		}
		return nil, fmt.Errorf("error reading from flight stream: %w", err)
	}
	return result, nil
}
