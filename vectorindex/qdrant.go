package vectorindex

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig configures the out-of-process Qdrant backend.
type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// SetDefaults fills unset fields with qdrant's standard gRPC port.
func (c *QdrantConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
}

// QdrantIndex is an Index backend for a running Qdrant instance, used when
// a deployment needs a vector store shared across processes rather than
// the embedded chromem-go default.
type QdrantIndex struct {
	client *qdrant.Client
}

// NewQdrantIndex dials the Qdrant instance described by cfg.
func NewQdrantIndex(cfg QdrantConfig) (*QdrantIndex, error) {
	cfg.SetDefaults()
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorindex: connect to qdrant: %w", err)
	}
	return &QdrantIndex{client: client}, nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context, collection string, vectorSize int) error {
	exists, err := q.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("vectorindex: collection exists check: %w", err)
	}
	if exists {
		return nil
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(vectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("vectorindex: create collection: %w", err)
	}
	return nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, collection string, vector []float32, doc Document) error {
	if err := q.ensureCollection(ctx, collection, len(vector)); err != nil {
		return err
	}

	payload := make(map[string]*qdrant.Value, len(doc.Metadata)+1)
	if doc.Content != "" {
		val, err := qdrant.NewValue(doc.Content)
		if err != nil {
			return fmt.Errorf("vectorindex: convert content: %w", err)
		}
		payload["content"] = val
	}
	for k, v := range doc.Metadata {
		val, err := qdrant.NewValue(v)
		if err != nil {
			return fmt.Errorf("vectorindex: convert metadata %q: %w", k, err)
		}
		payload[k] = val
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(doc.ID),
		Vectors: qdrant.NewVectors(vector...),
		Payload: payload,
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: collection, Points: []*qdrant.PointStruct{point}})
	if err != nil {
		return fmt.Errorf("vectorindex: upsert point: %w", err)
	}
	return nil
}

func (q *QdrantIndex) Search(ctx context.Context, collection string, vector []float32, topK int) ([]SearchResult, error) {
	return q.SearchWithFilter(ctx, collection, vector, topK, nil)
}

func (q *QdrantIndex) SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]string) ([]SearchResult, error) {
	searchRequest := &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if len(filter) > 0 {
		searchRequest.Filter = buildFilter(filter)
	}

	pointsClient := q.client.GetPointsClient()
	result, err := pointsClient.Search(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: search: %w", err)
	}

	out := make([]SearchResult, 0, len(result.Result))
	for _, point := range result.Result {
		id := pointIDString(point.Id)
		meta := make(map[string]any)
		content := ""
		if point.Payload != nil {
			for key, value := range point.Payload {
				gv := qdrantValueToAny(value)
				if key == "content" {
					if s, ok := gv.(string); ok {
						content = s
						continue
					}
				}
				meta[key] = gv
			}
		}
		out = append(out, SearchResult{
			Document: Document{ID: id, Content: content, Metadata: meta},
			Score:    float64(point.Score),
		})
	}
	return out, nil
}

func (q *QdrantIndex) Delete(ctx context.Context, collection, id string) error {
	deletePoints := &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{
					Ids: []*qdrant.PointId{{PointIdOptions: &qdrant.PointId_Uuid{Uuid: id}}},
				},
			},
		},
	}
	if _, err := q.client.Delete(ctx, deletePoints); err != nil {
		return fmt.Errorf("vectorindex: delete point %s: %w", id, err)
	}
	return nil
}

func (q *QdrantIndex) Close() error { return q.client.Close() }

func buildFilter(filter map[string]string) *qdrant.Filter {
	conditions := make([]*qdrant.Condition, 0, len(filter))
	for key, value := range filter {
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: key,
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keyword{Keyword: value},
					},
				},
			},
		})
	}
	return &qdrant.Filter{Must: conditions}
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil || id.PointIdOptions == nil {
		return ""
	}
	switch v := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return v.Uuid
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", v.Num)
	default:
		return ""
	}
}

func qdrantValueToAny(v *qdrant.Value) any {
	switch k := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	default:
		return nil
	}
}
