// Package dynamodb stores graph documents in a single DynamoDB table.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/realaman90/koda-sub002/application/ports"
	"github.com/realaman90/koda-sub002/infrastructure/persistence"
	pkgerrors "github.com/realaman90/koda-sub002/pkg/errors"
)

const (
	entityType  = "GRAPH_DOCUMENT"
	documentKey = "DOCUMENT"

	// OwnerIndex is the GSI listing a user's graphs
	OwnerIndex = "GSI1"
)

// API is the part of the DynamoDB client the repository uses
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// GraphRepository implements ports.GraphRepository on DynamoDB
type GraphRepository struct {
	client    API
	tableName string
	logger    *zap.Logger
}

// NewGraphRepository creates a new GraphRepository
func NewGraphRepository(client API, tableName string, logger *zap.Logger) *GraphRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphRepository{client: client, tableName: tableName, logger: logger}
}

var _ ports.GraphRepository = (*GraphRepository)(nil)

// documentItem is the DynamoDB item of one graph. The document body is
// stored as JSON so node payloads survive schema changes untouched.
type documentItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	GSI1PK     string `dynamodbav:"GSI1PK,omitempty"`
	GSI1SK     string `dynamodbav:"GSI1SK,omitempty"`
	EntityType string `dynamodbav:"EntityType"`
	GraphID    string `dynamodbav:"GraphID"`
	OwnerID    string `dynamodbav:"OwnerID,omitempty"`
	Version    int    `dynamodbav:"Version"`
	NodeCount  int    `dynamodbav:"NodeCount"`
	EdgeCount  int    `dynamodbav:"EdgeCount"`
	Document   string `dynamodbav:"Document"`
	UpdatedAt  string `dynamodbav:"UpdatedAt"`
}

func graphKey(graphID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("GRAPH#%s", graphID)},
		"SK": &types.AttributeValueMemberS{Value: documentKey},
	}
}

// Save persists a graph document
func (r *GraphRepository) Save(ctx context.Context, doc ports.GraphDocument) error {
	body, err := persistence.EncodeDocument(doc)
	if err != nil {
		return err
	}
	updated := doc.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}

	item := documentItem{
		PK:         fmt.Sprintf("GRAPH#%s", doc.ID),
		SK:         documentKey,
		EntityType: entityType,
		GraphID:    doc.ID,
		OwnerID:    doc.OwnerID,
		Version:    doc.Version,
		NodeCount:  len(doc.Nodes),
		EdgeCount:  len(doc.Edges),
		Document:   string(body),
		UpdatedAt:  updated.Format(time.RFC3339),
	}
	if doc.OwnerID != "" {
		// owner index for listing a user's graphs
		item.GSI1PK = fmt.Sprintf("USER#%s", doc.OwnerID)
		item.GSI1SK = fmt.Sprintf("GRAPH#%s", doc.ID)
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return pkgerrors.NewDatabaseError("marshal graph", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}
	if doc.OwnerID != "" {
		// never overwrite a graph that belongs to someone else
		cond := expression.Name("PK").AttributeNotExists().
			Or(expression.Name("OwnerID").AttributeNotExists()).
			Or(expression.Name("OwnerID").Equal(expression.Value(doc.OwnerID)))
		expr, err := expression.NewBuilder().WithCondition(cond).Build()
		if err != nil {
			return pkgerrors.NewDatabaseError("build save condition", err)
		}
		input.ConditionExpression = expr.Condition()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}
	if _, err := r.client.PutItem(ctx, input); err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return pkgerrors.NewConflictError("graph " + doc.ID + " belongs to another user")
		}
		r.logger.Error("Failed to save graph to DynamoDB",
			zap.Error(err),
			zap.String("graphID", doc.ID))
		return pkgerrors.NewDatabaseError("save graph", err)
	}

	r.logger.Debug("Saved graph to DynamoDB",
		zap.String("graphID", doc.ID),
		zap.Int("nodeCount", item.NodeCount),
		zap.Int("edgeCount", item.EdgeCount))
	return nil
}

// Load retrieves a graph document by id
func (r *GraphRepository) Load(ctx context.Context, graphID string) (ports.GraphDocument, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            graphKey(graphID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return ports.GraphDocument{}, pkgerrors.NewDatabaseError("load graph", fmt.Errorf("table %s does not exist: %w", r.tableName, err))
		}
		return ports.GraphDocument{}, pkgerrors.NewDatabaseError("load graph", err)
	}
	if len(out.Item) == 0 {
		return ports.GraphDocument{}, pkgerrors.NewNotFoundError("graph " + graphID)
	}

	var item documentItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return ports.GraphDocument{}, pkgerrors.NewDatabaseError("unmarshal graph", err)
	}

	doc, err := persistence.DecodeDocument([]byte(item.Document))
	if err != nil {
		return ports.GraphDocument{}, err
	}
	if doc.OwnerID == "" {
		doc.OwnerID = item.OwnerID
	}

	r.logger.Debug("Retrieved graph from DynamoDB",
		zap.String("graphID", graphID),
		zap.Int("version", doc.Version),
		zap.Int("nodeCount", item.NodeCount))
	return doc, nil
}

// Delete removes a graph document
func (r *GraphRepository) Delete(ctx context.Context, graphID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       graphKey(graphID),
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("delete graph", err)
	}
	return nil
}

// summaryItem is the projection read when listing graphs
type summaryItem struct {
	GraphID   string `dynamodbav:"GraphID"`
	OwnerID   string `dynamodbav:"OwnerID"`
	NodeCount int    `dynamodbav:"NodeCount"`
	EdgeCount int    `dynamodbav:"EdgeCount"`
	UpdatedAt string `dynamodbav:"UpdatedAt"`
}

// List returns the graphs of ownerID from the owner index, most recently
// updated first
func (r *GraphRepository) List(ctx context.Context, ownerID string) ([]ports.GraphSummary, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(fmt.Sprintf("USER#%s", ownerID)))
	filter := expression.Name("EntityType").Equal(expression.Value(entityType))
	projection := expression.NamesList(
		expression.Name("GraphID"),
		expression.Name("OwnerID"),
		expression.Name("NodeCount"),
		expression.Name("EdgeCount"),
		expression.Name("UpdatedAt"),
	)
	expr, err := expression.NewBuilder().
		WithKeyCondition(keyCond).
		WithFilter(filter).
		WithProjection(projection).
		Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("build list query", err)
	}

	summaries := []ports.GraphSummary{}
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.tableName),
			IndexName:                 aws.String(OwnerIndex),
			KeyConditionExpression:    expr.KeyCondition(),
			FilterExpression:          expr.Filter(),
			ProjectionExpression:      expr.Projection(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("list graphs", err)
		}

		var items []summaryItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, pkgerrors.NewDatabaseError("unmarshal graph list", err)
		}
		for _, item := range items {
			updated, _ := time.Parse(time.RFC3339, item.UpdatedAt)
			summaries = append(summaries, ports.GraphSummary{
				ID:        item.GraphID,
				OwnerID:   item.OwnerID,
				NodeCount: item.NodeCount,
				EdgeCount: item.EdgeCount,
				UpdatedAt: updated,
			})
		}

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}
