package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoCollection = "indexing_status"

// mongoJob is the document shape stored in the jobs collection.
type mongoJob struct {
	IndexID   string    `bson:"index_id"`
	Namespace string    `bson:"namespace"`
	RepoURL   string    `bson:"repo_url"`
	Branch    string    `bson:"branch"`
	Status    string    `bson:"status"`
	Error     string    `bson:"error,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d mongoJob) toJob() Job {
	return Job{
		IndexID:   d.IndexID,
		Namespace: d.Namespace,
		RepoURL:   d.RepoURL,
		Branch:    d.Branch,
		Status:    Status(d.Status),
		Error:     d.Error,
		CreatedAt: d.CreatedAt,
	}
}

// MongoStore is the document metadata store. The client connects lazily,
// once, on first use.
type MongoStore struct {
	uri      string
	database string

	once    sync.Once
	client  *mongo.Client
	col     *mongo.Collection
	connErr error
}

// NewMongoStore validates the connection settings and returns a store.
func NewMongoStore(uri, database string) (*MongoStore, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo metadata store: mongo_uri is required")
	}
	if database == "" {
		return nil, fmt.Errorf("mongo metadata store: database name is required")
	}
	return &MongoStore{uri: uri, database: database}, nil
}

func (s *MongoStore) getCollection(ctx context.Context) (*mongo.Collection, error) {
	s.once.Do(func() {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.uri))
		if err != nil {
			s.connErr = fmt.Errorf("connecting to mongo: %w", err)
			return
		}
		col := client.Database(s.database).Collection(mongoCollection)
		_, err = col.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: "index_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			client.Disconnect(ctx)
			s.connErr = fmt.Errorf("ensuring index_id index: %w", err)
			return
		}
		s.client = client
		s.col = col
	})
	return s.col, s.connErr
}

func (s *MongoStore) CreateJob(ctx context.Context, indexID, repoURL, branch, namespace string) error {
	col, err := s.getCollection(ctx)
	if err != nil {
		return err
	}
	_, err = col.InsertOne(ctx, mongoJob{
		IndexID:   indexID,
		Namespace: namespace,
		RepoURL:   repoURL,
		Branch:    branch,
		Status:    string(StatusStarted),
		CreatedAt: time.Now().UTC(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("index_id %s: %w", indexID, ErrJobExists)
	}
	if err != nil {
		return fmt.Errorf("inserting job: %w", err)
	}
	return nil
}

func (s *MongoStore) UpdateStatus(ctx context.Context, indexID string, status Status, errMsg string) error {
	col, err := s.getCollection(ctx)
	if err != nil {
		return err
	}
	set := bson.M{"status": string(status)}
	if errMsg != "" {
		set["error"] = errMsg
	}
	_, err = col.UpdateOne(ctx, bson.M{"index_id": indexID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("updating job status: %w", err)
	}
	return nil
}

func (s *MongoStore) GetJob(ctx context.Context, indexID string) (*Job, error) {
	col, err := s.getCollection(ctx)
	if err != nil {
		return nil, err
	}
	var doc mongoJob
	err = col.FindOne(ctx, bson.M{"index_id": indexID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding job: %w", err)
	}
	job := doc.toJob()
	return &job, nil
}

func (s *MongoStore) ListActivity(ctx context.Context, limit int) ([]Job, error) {
	col, err := s.getCollection(ctx)
	if err != nil {
		return nil, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("querying activity: %w", err)
	}
	return collectMongoJobs(ctx, cursor)
}

func (s *MongoStore) ListLive(ctx context.Context) ([]Job, error) {
	col, err := s.getCollection(ctx)
	if err != nil {
		return nil, err
	}
	live := make([]string, len(NonTerminalStatuses))
	for i, st := range NonTerminalStatuses {
		live[i] = string(st)
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := col.Find(ctx, bson.M{"status": bson.M{"$in": live}}, opts)
	if err != nil {
		return nil, fmt.Errorf("querying live jobs: %w", err)
	}
	return collectMongoJobs(ctx, cursor)
}

func (s *MongoStore) ListIndexedRepos(ctx context.Context) ([]RepoSummary, error) {
	col, err := s.getCollection(ctx)
	if err != nil {
		return nil, err
	}

	// Latest document per (repo, branch, namespace) group.
	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "repo_url", Value: "$repo_url"},
				{Key: "branch", Value: "$branch"},
				{Key: "namespace", Value: "$namespace"},
			}},
			{Key: "status", Value: bson.D{{Key: "$first", Value: "$status"}}},
			{Key: "created_at", Value: bson.D{{Key: "$first", Value: "$created_at"}}},
		}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "_id.namespace", Value: 1},
			{Key: "_id.repo_url", Value: 1},
			{Key: "_id.branch", Value: 1},
		}}},
	}

	cursor, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregating indexed repos: %w", err)
	}
	defer cursor.Close(ctx)

	var repos []RepoSummary
	for cursor.Next(ctx) {
		var doc struct {
			ID struct {
				RepoURL   string `bson:"repo_url"`
				Branch    string `bson:"branch"`
				Namespace string `bson:"namespace"`
			} `bson:"_id"`
			Status    string    `bson:"status"`
			CreatedAt time.Time `bson:"created_at"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding repo summary: %w", err)
		}
		repos = append(repos, RepoSummary{
			RepoURL:     doc.ID.RepoURL,
			Branch:      doc.ID.Branch,
			Namespace:   doc.ID.Namespace,
			Status:      Status(doc.Status),
			LastUpdated: doc.CreatedAt,
		})
	}
	return repos, cursor.Err()
}

func (s *MongoStore) GetCounts(ctx context.Context) (Counts, error) {
	var counts Counts
	col, err := s.getCollection(ctx)
	if err != nil {
		return counts, err
	}

	repos, err := col.Distinct(ctx, "repo_url", bson.M{"status": string(StatusCompleted)})
	if err != nil {
		return counts, fmt.Errorf("counting completed repos: %w", err)
	}
	counts.DistinctCompletedRepos = len(repos)

	runs, err := col.CountDocuments(ctx, bson.M{"status": string(StatusCompleted)})
	if err != nil {
		return counts, fmt.Errorf("counting completed runs: %w", err)
	}
	counts.TotalCompletedRuns = int(runs)
	return counts, nil
}

func (s *MongoStore) ResetAll(ctx context.Context) error {
	col, err := s.getCollection(ctx)
	if err != nil {
		return err
	}
	if _, err := col.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("clearing job records: %w", err)
	}
	return nil
}

func (s *MongoStore) Close() error {
	if s.client != nil {
		return s.client.Disconnect(context.Background())
	}
	return nil
}

func collectMongoJobs(ctx context.Context, cursor *mongo.Cursor) ([]Job, error) {
	defer cursor.Close(ctx)
	var jobsList []Job
	for cursor.Next(ctx) {
		var doc mongoJob
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding job: %w", err)
		}
		jobsList = append(jobsList, doc.toJob())
	}
	return jobsList, cursor.Err()
}
