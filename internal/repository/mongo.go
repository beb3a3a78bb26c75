package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zoonotic-report-server/internal/domain"
)

// MongoReportStore keeps reports in a MongoDB collection. It reads collections
// written by earlier deployments; _id becomes the report id.
type MongoReportStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
	log        *logrus.Logger
}

// NewMongoReportStore connects to cfg.URI and verifies the connection.
func NewMongoReportStore(ctx context.Context, cfg domain.MongoConfig, logger *logrus.Logger) (*MongoReportStore, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}
	if cfg.Database == "" {
		cfg.Database = "zoonotic_db"
	}
	if cfg.Collection == "" {
		cfg.Collection = "reports"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"database":   cfg.Database,
		"collection": cfg.Collection,
	}).Info("MongoDB report store connected")

	return &MongoReportStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		timeout:    cfg.Timeout,
		log:        logger,
	}, nil
}

// Insert implements domain.ReportStore.
func (s *MongoReportStore) Insert(ctx context.Context, report *domain.Report) (string, error) {
	doc, err := encodeReport(report)
	if err != nil {
		return "", err
	}
	return s.InsertDocument(ctx, doc)
}

// InsertDocument stores doc without changing its field layout.
func (s *MongoReportStore) InsertDocument(ctx context.Context, doc json.RawMessage) (string, error) {
	var d bson.D
	if err := bson.UnmarshalExtJSON(doc, false, &d); err != nil {
		return "", fmt.Errorf("converting report to bson: %w", err)
	}
	d = withoutKey(d, "id")

	res, err := s.collection.InsertOne(ctx, d)
	if err != nil {
		s.log.WithError(err).Error("Failed to insert report")
		return "", fmt.Errorf("inserting report: %w", err)
	}
	return idString(res.InsertedID), nil
}

// ListAll implements domain.ReportStore. Documents come back in _id order, which
// follows insertion for ObjectIDs.
func (s *MongoReportStore) ListAll(ctx context.Context) ([]*domain.Report, error) {
	cursor, err := s.collection.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer cursor.Close(ctx)

	reports := make([]*domain.Report, 0)
	for cursor.Next(ctx) {
		var d bson.D
		if err := cursor.Decode(&d); err != nil {
			return nil, fmt.Errorf("decoding report: %w", err)
		}

		var id string
		for _, e := range d {
			if e.Key == "_id" {
				id = idString(e.Value)
				break
			}
		}
		data, err := bson.MarshalExtJSON(withoutKey(d, "_id"), false, false)
		if err != nil {
			return nil, fmt.Errorf("converting report %s: %w", id, err)
		}
		if report, ok := decodeListed(s.log, id, data); ok {
			reports = append(reports, report)
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterating reports: %w", err)
	}
	return reports, nil
}

// DeleteAll implements domain.ReportStore.
func (s *MongoReportStore) DeleteAll(ctx context.Context) error {
	res, err := s.collection.DeleteMany(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("deleting reports: %w", err)
	}
	s.log.WithField("deleted", res.DeletedCount).Info("Reports cleared")
	return nil
}

// Health implements domain.ReportStore.
func (s *MongoReportStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close implements domain.ReportStore.
func (s *MongoReportStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func withoutKey(d bson.D, key string) bson.D {
	out := make(bson.D, 0, len(d))
	for _, e := range d {
		if e.Key != key {
			out = append(out, e)
		}
	}
	return out
}

func idString(v interface{}) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}
