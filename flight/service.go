package flight

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/aqilqeka/Aqil-project/loader"
	"github.com/aqilqeka/Aqil-project/query"
)

// Ticket selects one derived table. Rows limits the pass to the first Rows
// transactions; zero or less means the whole table.
type Ticket struct {
	Aggregate query.Aggregate `json:"aggregate"`
	Rows      int             `json:"rows"`
}

// Encode serializes t into a Flight ticket.
func (t Ticket) Encode() (*flight.Ticket, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode ticket: %w", err)
	}
	return &flight.Ticket{Ticket: data}, nil
}

func decodeTicket(data []byte) (Ticket, error) {
	var t Ticket
	if err := json.Unmarshal(data, &t); err != nil {
		return Ticket{}, err
	}
	if _, err := query.ParseAggregate(string(t.Aggregate)); err != nil {
		return Ticket{}, err
	}
	return t, nil
}

// Service serves derived tables over Arrow Flight.
type Service struct {
	flight.BaseFlightServer
	session  *loader.Session
	pipeline *query.Pipeline
	logger   *zap.Logger
	mem      memory.Allocator
}

// NewService creates a Flight service reading from session.
func NewService(session *loader.Session, pipeline *query.Pipeline, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		session:  session,
		pipeline: pipeline,
		logger:   logger,
		mem:      memory.NewGoAllocator(),
	}
}

// DoGet runs one render pass for the ticket's aggregate and streams the
// resulting derived table as a single record batch.
func (s *Service) DoGet(ticket *flight.Ticket, stream flight.FlightService_DoGetServer) error {
	t, err := decodeTicket(ticket.GetTicket())
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid ticket: %v", err)
	}

	table, err := s.session.Table()
	if errors.Is(err, loader.ErrNotInitialized) {
		return status.Error(codes.Unavailable, "dataset is still loading")
	}
	if err != nil {
		return status.Errorf(codes.FailedPrecondition, "dataset failed to load: %v", err)
	}

	rows := t.Rows
	if rows <= 0 {
		rows = table.Len()
	}
	res, err := s.pipeline.Run(table, rows, t.Aggregate)
	if err != nil {
		return status.Errorf(codes.Internal, "aggregation failed: %v", err)
	}
	rec, err := query.EncodeRecord(s.mem, t.Aggregate, res)
	if err != nil {
		return status.Errorf(codes.Internal, "encode failed: %v", err)
	}
	defer rec.Release()

	writer := flight.NewRecordWriter(stream, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(s.mem))
	defer writer.Close()

	if err := writer.Write(rec); err != nil {
		return status.Errorf(codes.Internal, "failed to write record: %v", err)
	}
	s.logger.Debug("flight DoGet served",
		zap.String("aggregate", string(t.Aggregate)),
		zap.Int("rows", res.Rows),
		zap.Int64("records", rec.NumRows()))
	return nil
}

// ListFlights advertises one flight per aggregate over the whole table.
func (s *Service) ListFlights(_ *flight.Criteria, stream flight.FlightService_ListFlightsServer) error {
	for _, kind := range query.Aggregates {
		schema, err := query.Schema(kind)
		if err != nil {
			return status.Errorf(codes.Internal, "schema for %s: %v", kind, err)
		}
		tkt, err := Ticket{Aggregate: kind}.Encode()
		if err != nil {
			return status.Error(codes.Internal, err.Error())
		}
		info := &flight.FlightInfo{
			Schema: flight.SerializeSchema(schema, s.mem),
			FlightDescriptor: &flight.FlightDescriptor{
				Type: flight.DescriptorCMD,
				Cmd:  tkt.GetTicket(),
			},
			Endpoint:     []*flight.FlightEndpoint{{Ticket: tkt}},
			TotalRecords: -1,
			TotalBytes:   -1,
		}
		if err := stream.Send(info); err != nil {
			return err
		}
	}
	return nil
}
