// Package search maintains a Qdrant vector index over the listing
// collection and serves similarity queries against it.
package search

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/MezgerSearch/mezger-engine/engine/listing"
)

// pointsAPI and collectionsAPI narrow the qdrant clients to the calls the
// index makes, so tests can substitute mocks.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Index owns all Qdrant operations for the listing collection.
type Index struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
}

// New creates an Index connected to Qdrant at the given gRPC address.
func New(addr, collection string) (*Index, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("search: dial qdrant %s: %w", addr, err)
	}
	return &Index{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// NewWithClients creates an Index over caller-supplied clients.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string) *Index {
	return &Index{points: points, collections: collections, collection: collection}
}

// Close closes the underlying gRPC connection, if any.
func (x *Index) Close() error {
	if x.conn == nil {
		return nil
	}
	return x.conn.Close()
}

// PointID derives the deterministic Qdrant point UUID for a listing, so
// re-indexing the same listing overwrites its previous point.
func PointID(listingID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(listingID)).String()
}

// EnsureCollection creates the collection if it doesn't exist.
func (x *Index) EnsureCollection(ctx context.Context, dims int) error {
	list, err := x.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("search: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == x.collection {
			return nil
		}
	}

	_, err = x.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: x.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("search: create collection %s: %w", x.collection, err)
	}
	return nil
}

// Upsert stores one point per listing, vectors paired by position.
func (x *Index) Upsert(ctx context.Context, listings []listing.Listing, vectors [][]float32) error {
	if len(listings) != len(vectors) {
		return fmt.Errorf("search: %d listings, %d vectors", len(listings), len(vectors))
	}
	if len(listings) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(listings))
	for i, l := range listings {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(l.ID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: vectors[i]},
				},
			},
			Payload: payload(l),
		}
	}

	wait := true
	_, err := x.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: x.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("search: upsert %d points: %w", len(points), err)
	}
	return nil
}

// Remove deletes the points for the given listing IDs.
func (x *Index) Remove(ctx context.Context, listingIDs []string) error {
	if len(listingIDs) == 0 {
		return nil
	}
	ids := make([]*pb.PointId, len(listingIDs))
	for i, id := range listingIDs {
		ids[i] = &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(id)}}
	}
	wait := true
	_, err := x.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: x.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: ids},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("search: delete %d points: %w", len(ids), err)
	}
	return nil
}

// Hit is one similarity search result.
type Hit struct {
	ListingID string  `json:"listing_id"`
	Score     float32 `json:"score"`
	Category  string  `json:"category"`
	Status    string  `json:"status"`
	Source    string  `json:"source"`
	Title     string  `json:"title"`
	Link      string  `json:"link"`
}

// Search runs k-NN search, optionally constrained to a category and
// status by keyword match on the payload.
func (x *Index) Search(ctx context.Context, vector []float32, topK int, filters map[string]string) ([]Hit, error) {
	req := &pb.SearchPoints{
		CollectionName: x.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if len(filters) > 0 {
		must := make([]*pb.Condition, 0, len(filters))
		for k, v := range filters {
			must = append(must, fieldMatch(k, v))
		}
		req.Filter = &pb.Filter{Must: must}
	}

	resp, err := x.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: query: %w", err)
	}

	hits := make([]Hit, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		h := Hit{Score: r.GetScore()}
		for k, v := range r.GetPayload() {
			s := v.GetStringValue()
			switch k {
			case "listing_id":
				h.ListingID = s
			case "category":
				h.Category = s
			case "status":
				h.Status = s
			case "source":
				h.Source = s
			case "title":
				h.Title = s
			case "link":
				h.Link = s
			}
		}
		hits[i] = h
	}
	return hits, nil
}

func payload(l listing.Listing) map[string]*pb.Value {
	p := map[string]*pb.Value{
		"listing_id": str(l.ID),
		"category":   str(string(l.Category)),
		"status":     str(string(l.Status)),
		"source":     str(l.Source),
		"title":      str(l.Title),
		"link":       str(l.Link),
	}
	if l.Year != 0 {
		p["year"] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(l.Year)}}
	}
	if l.Price > 0 {
		p["price"] = &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: l.Price}}
	}
	if l.PartNumber != "" {
		p["part_number"] = str(l.PartNumber)
	}
	return p
}

func str(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
