package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/prolynk/backend/internal/models"
)

// DynamoDBAPI is the part of the DynamoDB client the store calls.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

var _ DynamoDBAPI = (*dynamodb.Client)(nil)

// DynamoTables names the three tables. Profiles are keyed by username, users
// by user_id, links by user_id (hash) and link_id (range).
type DynamoTables struct {
	Users    string
	Profiles string
	Links    string
}

type DynamoConfig struct {
	Region string
	// Endpoint overrides the service endpoint, e.g. DynamoDB Local.
	Endpoint string
	Tables   DynamoTables
}

type DynamoStore struct {
	client DynamoDBAPI
	tables DynamoTables
}

var _ Store = (*DynamoStore)(nil)

var loadDynamoAWSConfig = config.LoadDefaultConfig

func NewDynamoStore(ctx context.Context, cfg DynamoConfig) (*DynamoStore, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := loadDynamoAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewDynamoStoreWithClient(client, cfg.Tables), nil
}

func NewDynamoStoreWithClient(client DynamoDBAPI, tables DynamoTables) *DynamoStore {
	return &DynamoStore{client: client, tables: tables}
}

func (s *DynamoStore) Close(ctx context.Context) error { return nil }

func (s *DynamoStore) GetProfile(ctx context.Context, username string) (*models.Profile, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tables.Profiles),
		Key:            map[string]types.AttributeValue{"username": &types.AttributeValueMemberS{Value: username}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, ErrProfileNotFound
	}
	var p models.Profile
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &p, nil
}

func (s *DynamoStore) SaveProfile(ctx context.Context, p *models.Profile, expectedVersion int64, acctSync models.AccountSync) error {
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	put := &types.Put{
		TableName: aws.String(s.tables.Profiles),
		Item:      item,
	}
	if expectedVersion == 0 {
		put.ConditionExpression = aws.String("attribute_not_exists(#pk)")
		put.ExpressionAttributeNames = map[string]string{"#pk": "username"}
	} else {
		put.ConditionExpression = aws.String("#uid = :uid AND #v = :expected")
		put.ExpressionAttributeNames = map[string]string{"#uid": "user_id", "#v": "version"}
		put.ExpressionAttributeValues = map[string]types.AttributeValue{
			":uid":      &types.AttributeValueMemberS{Value: p.UserID},
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedVersion, 10)},
		}
	}

	update, err := s.accountSyncUpdate(acctSync)
	if err != nil {
		return err
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: put},
			{Update: update},
		},
	})
	if isConditionFailure(err) {
		return ErrVersionConflict
	}
	return err
}

// accountSyncUpdate mirrors models.AccountSync.Apply as an update expression.
func (s *DynamoStore) accountSyncUpdate(acctSync models.AccountSync) (*types.Update, error) {
	at, err := attributevalue.Marshal(acctSync.At)
	if err != nil {
		return nil, err
	}

	expr := "SET #u = :username, #pc = :true, #ua = :at, #e = if_not_exists(#e, :email), #ca = if_not_exists(#ca, :at)"
	names := map[string]string{
		"#u":  "username",
		"#pc": "profile_complete",
		"#ua": "updated_at",
		"#e":  "email",
		"#ca": "created_at",
	}
	values := map[string]types.AttributeValue{
		":username": &types.AttributeValueMemberS{Value: acctSync.Username},
		":true":     &types.AttributeValueMemberBOOL{Value: true},
		":at":       at,
		":email":    &types.AttributeValueMemberS{Value: acctSync.Email},
	}
	if acctSync.FullName != "" {
		expr += ", #fn = :fullname"
		names["#fn"] = "fullname"
		values[":fullname"] = &types.AttributeValueMemberS{Value: acctSync.FullName}
	}
	if acctSync.DateOfBirth != "" {
		expr += ", #dob = :dob"
		names["#dob"] = "date_of_birth"
		values[":dob"] = &types.AttributeValueMemberS{Value: acctSync.DateOfBirth}
	}

	return &types.Update{
		TableName:                 aws.String(s.tables.Users),
		Key:                       map[string]types.AttributeValue{"user_id": &types.AttributeValueMemberS{Value: acctSync.UserID}},
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}, nil
}

func (s *DynamoStore) GetAccount(ctx context.Context, userID string) (*models.UserAccount, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tables.Users),
		Key:            map[string]types.AttributeValue{"user_id": &types.AttributeValueMemberS{Value: userID}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, ErrAccountNotFound
	}
	var acct models.UserAccount
	if err := attributevalue.UnmarshalMap(out.Item, &acct); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	return &acct, nil
}

func (s *DynamoStore) CreateAccount(ctx context.Context, acct *models.UserAccount) error {
	item, err := attributevalue.MarshalMap(acct)
	if err != nil {
		return fmt.Errorf("encode account: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.tables.Users),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": "user_id"},
	})
	if isConditionFailure(err) {
		return ErrAccountExists
	}
	return err
}

func (s *DynamoStore) GetLink(ctx context.Context, userID, linkID string) (*models.Link, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tables.Links),
		Key:            linkKey(userID, linkID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, ErrLinkNotFound
	}
	var l models.Link
	if err := attributevalue.UnmarshalMap(out.Item, &l); err != nil {
		return nil, fmt.Errorf("decode link: %w", err)
	}
	return &l, nil
}

func (s *DynamoStore) PutLink(ctx context.Context, link *models.Link) error {
	item, err := attributevalue.MarshalMap(link)
	if err != nil {
		return fmt.Errorf("encode link: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tables.Links),
		Item:      item,
	})
	return err
}

func (s *DynamoStore) ListLinks(ctx context.Context, userID string) ([]*models.Link, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.tables.Links),
		KeyConditionExpression: aws.String("#uid = :uid"),
		FilterExpression:       aws.String("#del = :false"),
		ExpressionAttributeNames: map[string]string{
			"#uid": "user_id",
			"#del": "is_deleted",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid":   &types.AttributeValueMemberS{Value: userID},
			":false": &types.AttributeValueMemberBOOL{Value: false},
		},
	}

	out := make([]*models.Link, 0)
	for {
		page, err := s.client.Query(ctx, in)
		if err != nil {
			return nil, err
		}
		var batch []*models.Link
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("decode links: %w", err)
		}
		out = append(out, batch...)
		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = page.LastEvaluatedKey
	}
	sortLinks(out)
	return out, nil
}

func (s *DynamoStore) SoftDeleteLink(ctx context.Context, userID, linkID string, at time.Time) (*models.Link, error) {
	atValue, err := attributevalue.Marshal(at)
	if err != nil {
		return nil, err
	}
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tables.Links),
		Key:                 linkKey(userID, linkID),
		UpdateExpression:    aws.String("SET #del = :true, #ua = :at"),
		ConditionExpression: aws.String("attribute_exists(#lid)"),
		ExpressionAttributeNames: map[string]string{
			"#del": "is_deleted",
			"#ua":  "updated_at",
			"#lid": "link_id",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true": &types.AttributeValueMemberBOOL{Value: true},
			":at":   atValue,
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if isConditionFailure(err) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, err
	}
	var l models.Link
	if err := attributevalue.UnmarshalMap(out.Attributes, &l); err != nil {
		return nil, fmt.Errorf("decode link: %w", err)
	}
	return &l, nil
}

// AddStrike counts strikes on the user's item, so the account must exist.
func (s *DynamoStore) AddStrike(ctx context.Context, userID string, at time.Time) (*models.UserFlag, error) {
	atValue, err := attributevalue.Marshal(at)
	if err != nil {
		return nil, err
	}
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tables.Users),
		Key:                 map[string]types.AttributeValue{"user_id": &types.AttributeValueMemberS{Value: userID}},
		UpdateExpression:    aws.String("ADD #s :one SET #ls = :at"),
		ConditionExpression: aws.String("attribute_exists(#uid)"),
		ExpressionAttributeNames: map[string]string{
			"#s":   "strikes",
			"#ls":  "last_strike_at",
			"#uid": "user_id",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":at":  atValue,
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if isConditionFailure(err) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	flag := &models.UserFlag{UserID: userID, LastStrikeAt: at, UpdatedAt: at}
	if v, ok := out.Attributes["strikes"]; ok {
		if err := attributevalue.Unmarshal(v, &flag.Strikes); err != nil {
			return nil, fmt.Errorf("decode strikes: %w", err)
		}
	}
	return flag, nil
}

func linkKey(userID, linkID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"user_id": &types.AttributeValueMemberS{Value: userID},
		"link_id": &types.AttributeValueMemberS{Value: linkID},
	}
}

// isConditionFailure reports whether err is a failed condition expression,
// either on a single write or inside a cancelled transaction.
func isConditionFailure(err error) bool {
	if err == nil {
		return false
	}
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, reason := range tce.CancellationReasons {
			if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
				return true
			}
		}
	}
	return false
}
