// Package qdrant implements the vector store on a Qdrant instance over
// its gRPC API.
package qdrant

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/selimova/docsift/internal/vector"
)

const (
	payloadText       = "text"
	payloadDocumentID = "document_id"
	payloadOrdinal    = "ordinal"
	payloadHierarchy  = "hierarchy_path"
)

// Store implements vector.Store against Qdrant.
type Store struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

// New connects to Qdrant. The connection is lazy: a bad address only
// surfaces on the first call.
func New(host string, port int, collection string) (*Store, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// EnsureCollection creates the collection with cosine distance when it
// does not exist, and verifies the configured vector width when it does.
func (s *Store) EnsureCollection(ctx context.Context, dimension int) error {
	existsResp, err := s.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{
		CollectionName: s.collection,
	})
	if err != nil {
		return wrapErr("collection exists", err)
	}

	if !existsResp.GetResult().GetExists() {
		_, err := s.collections.Create(ctx, &pb.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: &pb.VectorsConfig{
				Config: &pb.VectorsConfig_Params{
					Params: &pb.VectorParams{
						Size:     uint64(dimension),
						Distance: pb.Distance_Cosine,
					},
				},
			},
		})
		if err != nil {
			return wrapErr("create collection", err)
		}
		return nil
	}

	info, err := s.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: s.collection})
	if err != nil {
		return wrapErr("collection info", err)
	}
	existing := info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	if existing != uint64(dimension) {
		return fmt.Errorf("%w: collection %q has dimension %d, provider produces %d",
			vector.ErrSchemaMismatch, s.collection, existing, dimension)
	}
	return nil
}

// Upsert writes records and waits for them to be applied, so a search
// issued right after sees them.
func (s *Store) Upsert(ctx context.Context, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(records))
	for i, rec := range records {
		hierarchy := make([]*pb.Value, len(rec.HierarchyPath))
		for j, h := range rec.HierarchyPath {
			hierarchy[j] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: h}}
		}
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: rec.ID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: rec.Vector}}},
			Payload: map[string]*pb.Value{
				payloadText:       {Kind: &pb.Value_StringValue{StringValue: rec.Text}},
				payloadDocumentID: {Kind: &pb.Value_StringValue{StringValue: rec.DocumentID}},
				payloadOrdinal:    {Kind: &pb.Value_IntegerValue{IntegerValue: int64(rec.Ordinal)}},
				payloadHierarchy:  {Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: hierarchy}}},
			},
		}
	}

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
		Wait:           &wait,
	})
	return wrapErr("upsert", err)
}

// Search runs a similarity query and maps payloads back to results.
func (s *Store) Search(ctx context.Context, vec []float32, limit int, filter vector.Filter) ([]vector.SearchResult, error) {
	req := &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vec,
		Limit:          uint64(limit),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if filter.DocumentID != "" {
		req.Filter = &pb.Filter{
			Must: []*pb.Condition{{
				ConditionOneOf: &pb.Condition_Field{
					Field: &pb.FieldCondition{
						Key:   payloadDocumentID,
						Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: filter.DocumentID}},
					},
				},
			}},
		}
	}

	resp, err := s.points.Search(ctx, req)
	if err != nil {
		return nil, wrapErr("search", err)
	}

	results := make([]vector.SearchResult, len(resp.Result))
	for i, pt := range resp.Result {
		var hierarchy []string
		for _, v := range pt.Payload[payloadHierarchy].GetListValue().GetValues() {
			hierarchy = append(hierarchy, v.GetStringValue())
		}
		results[i] = vector.SearchResult{
			ID:            pt.Id.GetUuid(),
			DocumentID:    pt.Payload[payloadDocumentID].GetStringValue(),
			Text:          pt.Payload[payloadText].GetStringValue(),
			HierarchyPath: hierarchy,
			Score:         pt.Score,
		}
	}
	return results, nil
}

// DeleteDocument removes every point whose payload carries the document id.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	wait := true
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{{
						ConditionOneOf: &pb.Condition_Field{
							Field: &pb.FieldCondition{
								Key:   payloadDocumentID,
								Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: documentID}},
							},
						},
					}},
				},
			},
		},
	})
	return wrapErr("delete document", err)
}

// Stats reports the point count and configured dimension.
func (s *Store) Stats(ctx context.Context) (vector.Stats, error) {
	info, err := s.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: s.collection})
	if err != nil {
		return vector.Stats{}, wrapErr("collection info", err)
	}
	result := info.GetResult()
	return vector.Stats{
		Collection: s.collection,
		PointCount: result.GetPointsCount(),
		Dimension:  int(result.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()),
	}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// wrapErr maps transport-level failures onto ErrStoreUnavailable so
// callers can tell an unreachable store from a bad request.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded:
			return fmt.Errorf("qdrant %s: %w: %v", op, vector.ErrStoreUnavailable, err)
		}
	}
	return fmt.Errorf("qdrant %s: %w", op, err)
}

var _ vector.Store = (*Store)(nil)
