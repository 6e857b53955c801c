package registry

import (
	"context"
	stderrors "errors"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/plcpack/pkg/errors"
	"github.com/matzehuels/plcpack/pkg/protocol"
)

// DefaultMongoDatabase is used when the URI names no database.
const DefaultMongoDatabase = "plcpack"

// versionDoc is one published artifact. Package metadata is repeated on
// every version so catalog queries need no joins.
type versionDoc struct {
	ID             int          `bson:"_id"`
	PackageID      int          `bson:"package_id"`
	Name           string       `bson:"name"`
	NameKey        string       `bson:"name_key"`
	Distributor    string       `bson:"distributor"`
	DistributorKey string       `bson:"distributor_key"`
	DisplayName    string       `bson:"display_name,omitempty"`
	Description    string       `bson:"description,omitempty"`
	Title          string       `bson:"title,omitempty"`
	Authors        string       `bson:"authors,omitempty"`
	Version        string       `bson:"version"`
	Branch         string       `bson:"branch"`
	Target         string       `bson:"target"`
	Configuration  string       `bson:"configuration"`
	Compiled       bool         `bson:"compiled"`
	License        string       `bson:"license,omitempty"`
	Notes          string       `bson:"notes,omitempty"`
	ProjectURL     string       `bson:"project_url,omitempty"`
	Sha256         string       `bson:"sha256,omitempty"`
	Dependencies   []dependency `bson:"dependencies,omitempty"`
	Binary         []byte       `bson:"binary,omitempty"`
	LicenseBinary  []byte       `bson:"license_binary,omitempty"`
	Downloads      int          `bson:"downloads"`
	CreatedAt      time.Time    `bson:"created_at"`
}

// MongoStore is a [Store] in a MongoDB database.
type MongoStore struct {
	client   *mongo.Client
	versions *mongo.Collection
	counters *mongo.Collection
}

// metadataOnly leaves artifacts out of query results.
var metadataOnly = bson.M{"binary": 0, "license_binary": 0}

// NewMongoStore connects to uri and prepares the collections in database
// (DefaultMongoDatabase when empty).
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "connect to %s", uri)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "ping %s", uri)
	}
	if database == "" {
		database = DefaultMongoDatabase
	}
	db := client.Database(database)
	s := &MongoStore{client: client, versions: db.Collection("versions"), counters: db.Collection("counters")}

	_, err = s.versions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "name_key", Value: 1}, {Key: "distributor_key", Value: 1}, {Key: "version", Value: 1},
				{Key: "branch", Value: 1}, {Key: "target", Value: 1}, {Key: "configuration", Value: 1}, {Key: "compiled", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("unique_version"),
		},
		{Keys: bson.D{{Key: "package_id", Value: 1}}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "create registry indexes")
	}
	return s, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// next returns the next value of the named sequence.
func (s *MongoStore) next(ctx context.Context, name string) (int, error) {
	var c struct {
		Seq int `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&c)
	return c.Seq, err
}

func (s *MongoStore) Put(ctx context.Context, v *protocol.PackageVersion) (*protocol.PackageVersion, error) {
	if err := validate(v); err != nil {
		return nil, err
	}
	doc := versionDoc{
		Name:           v.Name,
		NameKey:        strings.ToLower(v.Name),
		Distributor:    v.DistributorName,
		DistributorKey: strings.ToLower(v.DistributorName),
		DisplayName:    firstNonEmpty(v.DisplayName, v.Title),
		Description:    v.Description,
		Title:          v.Title,
		Authors:        v.Authors,
		Version:        v.Version,
		Branch:         v.Branch,
		Target:         v.Target,
		Configuration:  v.Configuration,
		Compiled:       v.Compiled,
		License:        v.License,
		Notes:          v.Notes,
		ProjectURL:     v.ProjectURL,
		Sha256:         v.BinarySha256,
		Dependencies:   toDependencies(v.Dependencies),
		Binary:         v.Binary,
		LicenseBinary:  v.LicenseBinary,
		CreatedAt:      time.Now().UTC(),
	}

	var existing versionDoc
	err := s.versions.FindOne(ctx,
		bson.M{"name_key": doc.NameKey, "distributor_key": doc.DistributorKey},
		options.FindOne().SetProjection(bson.M{"package_id": 1}),
	).Decode(&existing)
	switch {
	case stderrors.Is(err, mongo.ErrNoDocuments):
		if doc.PackageID, err = s.next(ctx, "packages"); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "allocate package id")
		}
	case err != nil:
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "look up package %s", v.Name)
	default:
		doc.PackageID = existing.PackageID
	}

	if doc.ID, err = s.next(ctx, "versions"); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "allocate version id")
	}
	if _, err := s.versions.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, duplicate(v)
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "store %s %s", v.Name, v.Version)
	}

	// Package metadata follows the latest upload.
	if doc.DisplayName != "" || doc.Description != "" {
		set := bson.M{}
		if doc.DisplayName != "" {
			set["display_name"] = doc.DisplayName
		}
		if doc.Description != "" {
			set["description"] = doc.Description
		}
		if _, err := s.versions.UpdateMany(ctx, bson.M{"package_id": doc.PackageID}, bson.M{"$set": set}); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "update package %s", v.Name)
		}
	}
	return doc.version(), nil
}

func (s *MongoStore) find(ctx context.Context, filter bson.M) ([]versionDoc, error) {
	cur, err := s.versions.Find(ctx, filter, options.Find().SetProjection(metadataOnly).SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []versionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *MongoStore) Versions(ctx context.Context, name, distributor string) ([]*protocol.PackageVersion, error) {
	filter := bson.M{"name_key": strings.ToLower(name)}
	if distributor != "" {
		filter["distributor_key"] = strings.ToLower(distributor)
	}
	docs, err := s.find(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "list versions of %s", name)
	}
	out := make([]*protocol.PackageVersion, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].version())
	}
	return out, nil
}

func (s *MongoStore) Version(ctx context.Context, id int) (*protocol.PackageVersion, error) {
	var doc versionDoc
	err := s.versions.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(metadataOnly)).Decode(&doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.New(errors.ErrCodeNotFound, "no version with id %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "get version %d", id)
	}
	return doc.version(), nil
}

func (s *MongoStore) Binary(ctx context.Context, id int) ([]byte, error) {
	var doc versionDoc
	err := s.versions.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"downloads": 1}},
		options.FindOneAndUpdate().SetProjection(bson.M{"binary": 1}),
	).Decode(&doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.New(errors.ErrCodeNotFound, "no artifact for version %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "get artifact %d", id)
	}
	return doc.Binary, nil
}

func (s *MongoStore) Packages(ctx context.Context, term string) ([]protocol.CatalogItem, error) {
	filter := bson.M{}
	if term != "" {
		re := bson.M{"$regex": regexp.QuoteMeta(term), "$options": "i"}
		filter["$or"] = bson.A{bson.M{"name": re}, bson.M{"display_name": re}, bson.M{"description": re}}
	}
	docs, err := s.find(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "search packages")
	}
	var c catalog
	for i := range docs {
		d := &docs[i]
		c.add(d.version(), d.DisplayName, d.Description, "", d.Downloads, d.CreatedAt)
	}
	return c.sorted(), nil
}

func (d *versionDoc) version() *protocol.PackageVersion {
	return &protocol.PackageVersion{
		PackageID:        d.PackageID,
		PackageVersionID: d.ID,
		Name:             d.Name,
		DistributorName:  d.Distributor,
		DisplayName:      d.DisplayName,
		Description:      d.Description,
		Title:            d.Title,
		Authors:          d.Authors,
		Version:          d.Version,
		Branch:           d.Branch,
		Target:           d.Target,
		Configuration:    d.Configuration,
		Compiled:         d.Compiled,
		License:          d.License,
		Notes:            d.Notes,
		ProjectURL:       d.ProjectURL,
		BinarySha256:     d.Sha256,
		Dependencies:     fromDependencies(d.Dependencies),
	}
}
