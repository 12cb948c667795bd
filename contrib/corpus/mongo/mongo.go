// Package mongo persists the knowledge base in MongoDB. It implements the
// corpus store contract only: search stays on PostgreSQL, where hybrid
// full-text plus vector ranking lives. Mongo suits deployments that already
// run it for content authoring and want chunk inspection tooling there.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/thomassleeman/therapy-app-sub000/corpus"
	"github.com/thomassleeman/therapy-app-sub000/knowledge"
)

// Config holds MongoDB connection configuration.
type Config struct {
	URI        string
	Database   string
	Collection string
}

// DefaultConfig returns the default connection settings.
func DefaultConfig() Config {
	return Config{
		URI:        "mongodb://localhost:27017",
		Database:   "therapy_kb",
		Collection: "documents",
	}
}

// Store implements corpus.Store on MongoDB. Each document is stored as one
// record embedding its chunks, so replace-by-title is a single upsert.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

type chunkRecord struct {
	Content         string    `bson:"content"`
	ChunkIndex      int       `bson:"chunk_index"`
	SectionPath     string    `bson:"section_path,omitempty"`
	IsParent        bool      `bson:"is_parent"`
	ParentIndex     *int      `bson:"parent_index,omitempty"`
	Embedding       []float32 `bson:"embedding,omitempty"`
	Strategy        string    `bson:"strategy,omitempty"`
	CharStart       int       `bson:"char_start"`
	CharEnd         int       `bson:"char_end"`
	EstimatedTokens int       `bson:"estimated_tokens"`
}

type documentRecord struct {
	Title         string        `bson:"_id"`
	Category      string        `bson:"category"`
	Jurisdiction  string        `bson:"jurisdiction,omitempty"`
	Modality      string        `bson:"modality,omitempty"`
	Source        string        `bson:"source,omitempty"`
	Version       string        `bson:"version,omitempty"`
	URL           string        `bson:"url,omitempty"`
	EffectiveDate string        `bson:"effective_date,omitempty"`
	Tags          []string      `bson:"tags,omitempty"`
	Chunks        []chunkRecord `bson:"chunks"`
	UpdatedAt     time.Time     `bson:"updated_at"`
}

// Open connects to MongoDB and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return &Store{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// Close disconnects from MongoDB.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// UpsertDocument replaces a document and its chunks by title.
func (s *Store) UpsertDocument(ctx context.Context, doc corpus.Document, chunks []corpus.Chunk) error {
	record := documentRecord{
		Title:         doc.Title,
		Category:      string(doc.Category),
		Jurisdiction:  doc.Jurisdiction,
		Modality:      doc.Modality,
		Source:        doc.Source,
		Version:       doc.Version,
		URL:           doc.URL,
		EffectiveDate: doc.EffectiveDate,
		Tags:          doc.Tags,
		Chunks:        make([]chunkRecord, len(chunks)),
		UpdatedAt:     time.Now().UTC(),
	}
	for i, c := range chunks {
		record.Chunks[i] = chunkRecord{
			Content:         c.Content,
			ChunkIndex:      c.ChunkIndex,
			SectionPath:     c.SectionPath,
			IsParent:        c.IsParent,
			ParentIndex:     c.ParentIndex,
			Embedding:       c.Embedding,
			Strategy:        c.Strategy,
			CharStart:       c.CharStart,
			CharEnd:         c.CharEnd,
			EstimatedTokens: c.EstimatedTokens,
		}
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := s.collection.ReplaceOne(ctx, bson.M{"_id": doc.Title}, record, opts); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// DeleteDocument removes a document by title.
func (s *Store) DeleteDocument(ctx context.Context, title string) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": title})
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if res.DeletedCount == 0 {
		return corpus.ErrNotFound
	}
	return nil
}

// CountChunks reports the number of searchable (child) chunks across all
// documents.
func (s *Store) CountChunks(ctx context.Context) (int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$unwind", Value: "$chunks"}},
		{{Key: "$match", Value: bson.M{"chunks.is_parent": false}}},
		{{Key: "$count", Value: "total"}},
	}
	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	defer cursor.Close(ctx)

	var result struct {
		Total int `bson:"total"`
	}
	if cursor.Next(ctx) {
		if err := cursor.Decode(&result); err != nil {
			return 0, err
		}
	} else if err := cursor.Err(); err != nil {
		return 0, err
	}
	return result.Total, nil
}

// GetDocument loads a document's metadata and chunks by title.
func (s *Store) GetDocument(ctx context.Context, title string) (corpus.Document, []corpus.Chunk, error) {
	var record documentRecord
	err := s.collection.FindOne(ctx, bson.M{"_id": title}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return corpus.Document{}, nil, corpus.ErrNotFound
	}
	if err != nil {
		return corpus.Document{}, nil, fmt.Errorf("find document: %w", err)
	}

	doc := corpus.Document{
		Title:         record.Title,
		Jurisdiction:  record.Jurisdiction,
		Modality:      record.Modality,
		Source:        record.Source,
		Version:       record.Version,
		URL:           record.URL,
		EffectiveDate: record.EffectiveDate,
		Tags:          record.Tags,
	}
	doc.Category, _ = knowledge.ParseDocumentType(record.Category)

	chunks := make([]corpus.Chunk, len(record.Chunks))
	for i, c := range record.Chunks {
		chunks[i] = corpus.Chunk{
			Content:         c.Content,
			ChunkIndex:      c.ChunkIndex,
			SectionPath:     c.SectionPath,
			IsParent:        c.IsParent,
			ParentIndex:     c.ParentIndex,
			Embedding:       c.Embedding,
			Strategy:        c.Strategy,
			CharStart:       c.CharStart,
			CharEnd:         c.CharEnd,
			EstimatedTokens: c.EstimatedTokens,
		}
	}
	return doc, chunks, nil
}
